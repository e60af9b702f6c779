package flow

import (
	"testing"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeObject(t *testing.T) {
	t.Run("later layer wins per key", func(t *testing.T) {
		acc := map[string]any{"a": 1.0, "b": 2.0}
		out := MergeObject(acc, map[string]any{"b": 3.0, "c": 4.0})

		assert.Equal(t, map[string]any{"a": 1.0, "b": 3.0, "c": 4.0}, out)
		assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, acc)
	})

	t.Run("override replaces accumulated keys", func(t *testing.T) {
		acc := map[string]any{"a": 1.0, "b": 2.0}
		out := MergeObject(acc, map[string]any{domain.OverrideMarker: true, "c": 4.0})

		assert.Equal(t, map[string]any{"c": 4.0}, out)
	})

	t.Run("marker only layer is a no-op", func(t *testing.T) {
		acc := map[string]any{"a": 1.0}
		out := MergeObject(acc, map[string]any{domain.OverrideMarker: true})

		assert.Equal(t, acc, out)
	})

	t.Run("false marker merges normally", func(t *testing.T) {
		out := MergeObject(map[string]any{"a": 1.0}, map[string]any{domain.OverrideMarker: false, "b": 2.0})

		assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, out)
	})

	t.Run("nested objects are copied", func(t *testing.T) {
		nested := map[string]any{"x": "y"}
		out := MergeObject(nil, map[string]any{"n": nested})
		out["n"].(map[string]any)["x"] = "z"

		assert.Equal(t, "y", nested["x"])
	})

	nestedTests := []struct {
		name  string
		acc   map[string]any
		layer map[string]any
		want  map[string]any
	}{
		{
			name:  "nested override replaces the accumulated object",
			acc:   map[string]any{"payer": map[string]any{"id": "1", "name": "a"}},
			layer: map[string]any{"payer": map[string]any{domain.OverrideMarker: true, "id": "2"}},
			want:  map[string]any{"payer": map[string]any{"id": "2"}},
		},
		{
			name:  "marker dropped at every depth",
			layer: map[string]any{"a": map[string]any{"b": map[string]any{domain.OverrideMarker: true, "c": "d"}}},
			want:  map[string]any{"a": map[string]any{"b": map[string]any{"c": "d"}}},
		},
		{
			name: "marker inside arrays is dropped",
			layer: map[string]any{"items": []any{
				map[string]any{domain.OverrideMarker: true, "sku": "x"},
			}},
			want: map[string]any{"items": []any{map[string]any{"sku": "x"}}},
		},
		{
			name:  "nested marker only object keeps the accumulated value",
			acc:   map[string]any{"payer": map[string]any{"id": "1"}},
			layer: map[string]any{"payer": map[string]any{domain.OverrideMarker: true}, "amount": "5"},
			want:  map[string]any{"payer": map[string]any{"id": "1"}, "amount": "5"},
		},
		{
			name:  "top level override strips nested markers",
			acc:   map[string]any{"old": "x"},
			layer: map[string]any{domain.OverrideMarker: true, "payer": map[string]any{domain.OverrideMarker: true, "id": "3"}},
			want:  map[string]any{"payer": map[string]any{"id": "3"}},
		},
	}
	for _, tt := range nestedTests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeObject(tt.acc, tt.layer))
		})
	}
}

func TestMergeRequest(t *testing.T) {
	base := map[string]any{
		"method":  "POST",
		"url":     "/customers",
		"headers": map[string]any{"Content-Type": "application/json"},
		"data":    map[string]any{"amount": "10", "currency": "TZS"},
	}

	t.Run("precedence follows layer order", func(t *testing.T) {
		l := Layers{
			Base:               base,
			ScenarioCommon:     map[string]any{"data": map[string]any{"amount": "20"}},
			SideEffectCommon:   map[string]any{"data": map[string]any{"amount": "-1"}},
			SideEffectScenario: map[string]any{"data": map[string]any{"amount": "abc"}},
		}

		spec, found, err := MergeRequest(l, true)
		require.NoError(t, err)

		assert.True(t, found)
		assert.Equal(t, "POST", spec.Method)
		assert.Equal(t, "/customers", spec.URL)
		assert.Equal(t, "abc", spec.Data["amount"])
		assert.Equal(t, "TZS", spec.Data["currency"])
		assert.Equal(t, "application/json", spec.Headers["Content-Type"])
	})

	t.Run("side effect layers ignored without side effect", func(t *testing.T) {
		l := Layers{Base: base, SideEffectCommon: map[string]any{"method": "GET"}}

		spec, found, err := MergeRequest(l, false)
		require.NoError(t, err)

		assert.True(t, found)
		assert.Equal(t, "POST", spec.Method)
	})

	t.Run("side effect only in scenario layer is found", func(t *testing.T) {
		l := Layers{Base: base, SideEffectScenario: map[string]any{"data": map[string]any{"amount": "0"}}}

		spec, found, err := MergeRequest(l, true)
		require.NoError(t, err)

		assert.True(t, found)
		assert.Equal(t, "0", spec.Data["amount"])
	})

	t.Run("missing side effect is reported", func(t *testing.T) {
		_, found, err := MergeRequest(Layers{Base: base}, true)
		require.NoError(t, err)

		assert.False(t, found)
	})

	t.Run("section override resets earlier fields", func(t *testing.T) {
		l := Layers{
			Base:           base,
			ScenarioCommon: map[string]any{domain.OverrideMarker: true, "method": "GET", "url": "/health"},
		}

		spec, _, err := MergeRequest(l, false)
		require.NoError(t, err)

		assert.Equal(t, "GET", spec.Method)
		assert.Equal(t, "/health", spec.URL)
		assert.Empty(t, spec.Data)
		assert.Empty(t, spec.Headers)
	})

	t.Run("nested override marker never reaches the request", func(t *testing.T) {
		l := Layers{
			Base:           map[string]any{"data": map[string]any{"payer": map[string]any{"id": "1", "name": "a"}}},
			ScenarioCommon: map[string]any{"data": map[string]any{"payer": map[string]any{domain.OverrideMarker: true, "id": "2"}}},
		}

		spec, _, err := MergeRequest(l, false)
		require.NoError(t, err)

		payer, ok := spec.Data["payer"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, map[string]any{"id": "2"}, payer)
		assert.NotContains(t, payer, domain.OverrideMarker)
	})

	t.Run("rejects wrongly typed fields", func(t *testing.T) {
		_, _, err := MergeRequest(Layers{Base: map[string]any{"method": 3.0}}, false)
		assert.Error(t, err)

		_, _, err = MergeRequest(Layers{Base: map[string]any{"data": "x"}}, false)
		assert.Error(t, err)
	})
}

func TestMergeResponse(t *testing.T) {
	base := map[string]any{
		"status": 201.0,
		"data":   map[string]any{"output_ResponseCode": "INS-0", "output_ResponseDesc": "Request processed successfully"},
	}

	t.Run("override data keeps only its keys", func(t *testing.T) {
		l := Layers{
			Base: base,
			SideEffectCommon: map[string]any{
				"status": 400.0,
				"data":   map[string]any{domain.OverrideMarker: true, "output_ResponseCode": "INS-13"},
			},
		}

		spec, found, err := MergeResponse(l, true)
		require.NoError(t, err)

		assert.True(t, found)
		assert.Equal(t, 400, spec.Status)
		assert.Equal(t, map[string]any{"output_ResponseCode": "INS-13"}, spec.Data)
	})

	t.Run("rejects fractional status", func(t *testing.T) {
		_, _, err := MergeResponse(Layers{Base: map[string]any{"status": 200.5}}, false)
		assert.Error(t, err)
	})

	t.Run("fixtures are not mutated", func(t *testing.T) {
		_, _, err := MergeResponse(Layers{Base: base, ScenarioCommon: map[string]any{"data": map[string]any{"x": "y"}}}, false)
		require.NoError(t, err)

		assert.NotContains(t, base["data"], "x")
	})
}

func TestMergeObjectProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genLayer := gen.MapOf(gen.AlphaString(), gen.AlphaString())

	properties.Property("every layer key wins over the accumulator", prop.ForAll(
		func(acc, layer map[string]string) bool {
			out := MergeObject(fromStringMap(acc), fromStringMap(layer))
			for k, v := range layer {
				if out[k] != v {
					return false
				}
			}
			for k, v := range acc {
				if _, shadowed := layer[k]; !shadowed && out[k] != v {
					return false
				}
			}
			return true
		},
		genLayer, genLayer,
	))

	properties.Property("override is idempotent", prop.ForAll(
		func(acc, layer map[string]string) bool {
			l := fromStringMap(layer)
			if l == nil {
				l = map[string]any{}
			}
			l[domain.OverrideMarker] = true

			once := MergeObject(fromStringMap(acc), l)
			twice := MergeObject(once, l)
			return assert.ObjectsAreEqual(once, twice)
		},
		genLayer, genLayer,
	))

	properties.Property("override with fields drops the accumulator", prop.ForAll(
		func(acc map[string]string, key, value string) bool {
			layer := map[string]any{domain.OverrideMarker: true, "k" + key: value}
			out := MergeObject(fromStringMap(acc), layer)
			return len(out) == 1 && out["k"+key] == value
		},
		genLayer, gen.AlphaString(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}
