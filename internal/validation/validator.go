// Package validation compares actual responses with the expectations built
// from fixtures and, optionally, with an OpenAPI contract.
package validation

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

// DontCare is the expected value that matches anything.
const DontCare = ""

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the status, then the data key set (equality when strict,
// containment otherwise), then that every expected value other than
// DontCare is contained in the actual data. All mismatches are reported
// together.
func (v *Validator) Validate(actual, expected domain.ResponseSpec, strict bool) error {
	var mismatches []string

	if actual.Status != expected.Status {
		mismatches = append(mismatches, fmt.Sprintf("status: expected %d, got %d", expected.Status, actual.Status))
	}

	if actual.Data == nil && len(expected.Data) > 0 {
		mismatches = append(mismatches, "body is not a JSON object")
		return newValidationError(mismatches, actual, expected)
	}

	missing, extra := keyDiff(expected.Data, actual.Data)
	if len(missing) > 0 {
		mismatches = append(mismatches, "missing keys: "+strings.Join(missing, ", "))
	}
	if strict && len(extra) > 0 {
		mismatches = append(mismatches, "unexpected keys: "+strings.Join(extra, ", "))
	}

	for _, key := range sortedKeys(expected.Data) {
		want := expected.Data[key]
		if isDontCare(want) {
			continue
		}
		got, ok := actual.Data[key]
		if !ok {
			continue
		}
		if !Contains(got, want) {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %s, got %s", key, render(want), render(got)))
		}
	}

	return newValidationError(mismatches, actual, expected)
}

func newValidationError(mismatches []string, actual, expected domain.ResponseSpec) error {
	if len(mismatches) == 0 {
		return nil
	}
	return &domain.ValidationError{
		Mismatches: mismatches,
		Expected:   expected,
		Actual:     actual,
	}
}

// Contains reports whether want is deeply contained in got. Objects match
// when every expected key matches, arrays when every expected element
// matches some actual element, and numbers compare by value.
func Contains(got, want any) bool {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range w {
			if isDontCare(wv) {
				if _, ok := g[k]; !ok {
					return false
				}
				continue
			}
			gv, ok := g[k]
			if !ok || !Contains(gv, wv) {
				return false
			}
		}
		return true
	case []any:
		g, ok := got.([]any)
		if !ok {
			return false
		}
		for _, wv := range w {
			found := false
			for _, gv := range g {
				if Contains(gv, wv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}

	if wn, ok := toFloat(want); ok {
		gn, ok := toFloat(got)
		return ok && gn == wn
	}
	return reflect.DeepEqual(got, want)
}

func keyDiff(expected, actual map[string]any) (missing, extra []string) {
	for k := range expected {
		if _, ok := actual[k]; !ok {
			missing = append(missing, k)
		}
	}
	for k := range actual {
		if _, ok := expected[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func isDontCare(v any) bool {
	s, ok := v.(string)
	return ok && s == DontCare
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}
