package flow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

// UUIDToken is regenerated for every build unless the previous value is kept.
const UUIDToken = "uuid"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*(?:([+-])\s*(\d+)\s*)?\}\}`)

// Placeholders resolves {{ token }} and {{ token +/- n }} expressions against
// a set of values.
type Placeholders struct {
	values map[string]any
}

// NewPlaceholders merges the value sets, later sets winning.
func NewPlaceholders(sets ...map[string]any) *Placeholders {
	values := make(map[string]any)
	for _, set := range sets {
		for k, v := range set {
			values[k] = v
		}
	}
	return &Placeholders{values: values}
}

// Resolve walks maps, slices and strings and returns a new value with every
// placeholder substituted. A string that is exactly one placeholder keeps
// the resolved value's type.
func (p *Placeholders) Resolve(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return p.resolveString(v)
	case map[string]any:
		return p.ResolveMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := p.Resolve(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// ResolveMap resolves every leaf of m into a new map.
func (p *Placeholders) ResolveMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		resolved, err := p.Resolve(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ResolveStrings resolves a header style map, keeping values as strings.
func (p *Placeholders) ResolveStrings(m map[string]string) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		resolved, err := p.ResolveString(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ResolveString substitutes placeholders and always returns a string.
func (p *Placeholders) ResolveString(s string) (string, error) {
	resolved, err := p.resolveString(s)
	if err != nil {
		return "", err
	}
	return stringify(resolved), nil
}

func (p *Placeholders) resolveString(s string) (any, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		return p.evaluate(s, matches[0])
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		v, err := p.evaluate(s, m)
		if err != nil {
			return nil, err
		}
		b.WriteString(stringify(v))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

func (p *Placeholders) evaluate(s string, m []int) (any, error) {
	token := s[m[2]:m[3]]
	v, ok := p.values[token]
	if !ok {
		return nil, domain.NewUnresolvedPlaceholderError(token)
	}
	if m[4] < 0 {
		return v, nil
	}

	op := s[m[4]:m[5]]
	delta, err := strconv.ParseInt(s[m[6]:m[7]], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("placeholder %s offset: %w", token, err)
	}
	if op == "-" {
		delta = -delta
	}

	switch n := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, fmt.Errorf("placeholder %s is not numeric: %q", token, n)
		}
		return strconv.FormatFloat(f+float64(delta), 'f', -1, 64), nil
	case float64:
		return n + float64(delta), nil
	case int:
		return n + int(delta), nil
	case int64:
		return n + delta, nil
	default:
		return nil, fmt.Errorf("placeholder %s is not numeric: %T", token, v)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
