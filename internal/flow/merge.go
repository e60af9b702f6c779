package flow

import (
	"fmt"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/DanielPopoola/openapi-testflow/internal/testdata"
)

// Layers holds the four fixture layers of one section, lowest precedence
// first. Nil layers are skipped.
type Layers struct {
	Base               map[string]any
	ScenarioCommon     map[string]any
	SideEffectCommon   map[string]any
	SideEffectScenario map[string]any
}

// LayerResolver selects the layers of a flow section from the common and
// scenario fixtures.
type LayerResolver struct {
	common   testdata.Fixture
	scenario testdata.Fixture
}

func NewLayerResolver(common, scenario testdata.Fixture) *LayerResolver {
	return &LayerResolver{common: common, scenario: scenario}
}

// Layers returns the layers for section. The side effect layers are only
// populated when sideEffect is non-empty.
func (r *LayerResolver) Layers(flowType, section, sideEffect string) Layers {
	l := Layers{
		Base:           r.common.Section(flowType, domain.CommonLayer, section),
		ScenarioCommon: r.scenario.Section(flowType, domain.CommonLayer, section),
	}
	if sideEffect != "" {
		l.SideEffectCommon = r.common.Section(flowType, sideEffect, section)
		l.SideEffectScenario = r.scenario.Section(flowType, sideEffect, section)
	}
	return l
}

func (l Layers) ordered(withSideEffect bool) []map[string]any {
	layers := []map[string]any{l.Base, l.ScenarioCommon}
	if withSideEffect {
		layers = append(layers, l.SideEffectCommon, l.SideEffectScenario)
	}
	return layers
}

// MergeRequest folds the layers into a request description. found reports
// whether a side effect layer defined anything; it is true when no side
// effect was requested.
func MergeRequest(l Layers, withSideEffect bool) (spec domain.RequestSpec, found bool, err error) {
	found = !withSideEffect
	for i, raw := range l.ordered(withSideEffect) {
		layer, err := parseRequestLayer(raw)
		if err != nil {
			return domain.RequestSpec{}, false, err
		}
		if i >= 2 && layer.defined() {
			found = true
		}
		layer.applyTo(&spec)
	}
	return spec, found, nil
}

// MergeResponse folds the layers into an expected response description.
func MergeResponse(l Layers, withSideEffect bool) (spec domain.ResponseSpec, found bool, err error) {
	found = !withSideEffect
	for i, raw := range l.ordered(withSideEffect) {
		layer, err := parseResponseLayer(raw)
		if err != nil {
			return domain.ResponseSpec{}, false, err
		}
		if i >= 2 && layer.defined() {
			found = true
		}
		layer.applyTo(&spec)
	}
	return spec, found, nil
}

type requestLayer struct {
	override bool
	method   *string
	url      *string
	site     *string
	headers  map[string]any
	params   map[string]any
	data     map[string]any
}

func (l requestLayer) defined() bool {
	return l.method != nil || l.url != nil || l.site != nil ||
		l.headers != nil || l.params != nil || l.data != nil
}

func (l requestLayer) applyTo(spec *domain.RequestSpec) {
	if l.override && l.defined() {
		*spec = domain.RequestSpec{}
	}
	if l.method != nil {
		spec.Method = *l.method
	}
	if l.url != nil {
		spec.URL = *l.url
	}
	if l.site != nil {
		spec.Site = *l.site
	}
	if l.headers != nil {
		spec.Headers = toStringMap(MergeObject(fromStringMap(spec.Headers), l.headers))
	}
	if l.params != nil {
		spec.Params = MergeObject(spec.Params, l.params)
	}
	if l.data != nil {
		spec.Data = MergeObject(spec.Data, l.data)
	}
}

type responseLayer struct {
	override bool
	status   *int
	headers  map[string]any
	data     map[string]any
}

func (l responseLayer) defined() bool {
	return l.status != nil || l.headers != nil || l.data != nil
}

func (l responseLayer) applyTo(spec *domain.ResponseSpec) {
	if l.override && l.defined() {
		*spec = domain.ResponseSpec{}
	}
	if l.status != nil {
		spec.Status = *l.status
	}
	if l.headers != nil {
		spec.Headers = toStringMap(MergeObject(fromStringMap(spec.Headers), l.headers))
	}
	if l.data != nil {
		spec.Data = MergeObject(spec.Data, l.data)
	}
}

func parseRequestLayer(raw map[string]any) (requestLayer, error) {
	var l requestLayer
	if raw == nil {
		return l, nil
	}
	l.override = isTruthy(raw[domain.OverrideMarker])
	var err error
	if l.method, err = optionalString(raw, "method"); err != nil {
		return l, err
	}
	if l.url, err = optionalString(raw, "url"); err != nil {
		return l, err
	}
	if l.site, err = optionalString(raw, "site"); err != nil {
		return l, err
	}
	if l.headers, err = optionalObject(raw, "headers"); err != nil {
		return l, err
	}
	if l.params, err = optionalObject(raw, "params"); err != nil {
		return l, err
	}
	if l.data, err = optionalObject(raw, "data"); err != nil {
		return l, err
	}
	return l, nil
}

func parseResponseLayer(raw map[string]any) (responseLayer, error) {
	var l responseLayer
	if raw == nil {
		return l, nil
	}
	l.override = isTruthy(raw[domain.OverrideMarker])
	if v, ok := raw["status"]; ok && v != nil {
		status, ok := toInt(v)
		if !ok {
			return l, fmt.Errorf("status must be an integer, got %T", v)
		}
		l.status = &status
	}
	var err error
	if l.headers, err = optionalObject(raw, "headers"); err != nil {
		return l, err
	}
	if l.data, err = optionalObject(raw, "data"); err != nil {
		return l, err
	}
	return l, nil
}

// MergeObject folds layer into acc and returns a new map. Without the
// override marker the layer's keys are shallow-unioned into acc, later keys
// winning. With the marker and at least one other key, the result is exactly
// the layer's other keys. Nested objects replace the accumulated value for
// their key, except a nested object holding only the marker, which leaves it
// untouched. The marker is dropped at every depth and neither argument is
// modified.
func MergeObject(acc, layer map[string]any) map[string]any {
	fields, override := StripMarker(layer)
	if override && len(fields) > 0 {
		return fields
	}
	out := make(map[string]any, len(acc)+len(fields))
	for k, v := range acc {
		out[k] = deepCopy(v)
	}
	for k, v := range fields {
		if _, exists := out[k]; exists && markerOnly(layer[k]) {
			continue
		}
		out[k] = v
	}
	return out
}

// StripMarker returns a deep copy of obj without the override marker at any
// depth and whether the marker was set on obj itself.
func StripMarker(obj map[string]any) (map[string]any, bool) {
	out := make(map[string]any, len(obj))
	override := false
	for k, v := range obj {
		if k == domain.OverrideMarker {
			override = isTruthy(v)
			continue
		}
		out[k] = deepCopy(v)
	}
	return out, override
}

func markerOnly(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	return isTruthy(m[domain.OverrideMarker])
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			if k == domain.OverrideMarker {
				continue
			}
			out[k] = deepCopy(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = deepCopy(inner)
		}
		return out
	default:
		return v
	}
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

func optionalString(raw map[string]any, key string) (*string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return &s, nil
}

func optionalObject(raw map[string]any, key string) (map[string]any, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object, got %T", key, v)
	}
	return m, nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	}
	return 0, false
}

func fromStringMap(m map[string]string) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toStringMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case string:
			out[k] = t
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
