package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed fixture.schema.json
var fixtureSchemaJSON string

var fixtureSchema = jsonschema.MustCompileString("fixture.schema.json", fixtureSchemaJSON)

// Fixture is a flow fixture document: flow type -> layer -> section -> object.
// Layers are "common" or a side effect name.
type Fixture map[string]map[string]map[string]any

// LoadFixture reads a JSON or YAML fixture document and validates its shape.
func LoadFixture(path string) (Fixture, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // fixture paths come from configuration
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return ParseFixture(path, raw)
}

// ParseFixture decodes and validates fixture content. name is used for the
// format and in error messages.
func ParseFixture(name string, raw []byte) (Fixture, error) {
	doc, err := decodeDocument(name, raw)
	if err != nil {
		return nil, domain.NewInvalidFixtureError(name, err)
	}

	if err := fixtureSchema.Validate(doc); err != nil {
		return nil, domain.NewInvalidFixtureError(name, err)
	}

	root, ok := doc.(map[string]any)
	if !ok {
		return nil, domain.NewInvalidFixtureError(name, fmt.Errorf("top level is %T, want object", doc))
	}

	fixture := make(Fixture, len(root))
	for flowType, layersRaw := range root {
		layers := layersRaw.(map[string]any)
		fixture[flowType] = make(map[string]map[string]any, len(layers))
		for layer, sectionsRaw := range layers {
			fixture[flowType][layer] = sectionsRaw.(map[string]any)
		}
	}
	return fixture, nil
}

// decodeDocument returns a JSON-compatible value tree regardless of the source
// format, so numbers are always float64 and objects map[string]any.
func decodeDocument(name string, raw []byte) (any, error) {
	var doc any
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var y any
		if err := yaml.Unmarshal(raw, &y); err != nil {
			return nil, err
		}
		normalized, err := json.Marshal(y)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(normalized, &doc); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// HasFlow reports whether the fixture defines any layer for flowType.
func (f Fixture) HasFlow(flowType string) bool {
	_, ok := f[flowType]
	return ok
}

// Section returns the raw section object of a layer, or nil when undefined.
// The returned map belongs to the fixture and must not be mutated.
func (f Fixture) Section(flowType, layer, section string) map[string]any {
	layers, ok := f[flowType]
	if !ok {
		return nil
	}
	sections, ok := layers[layer]
	if !ok {
		return nil
	}
	obj, _ := sections[section].(map[string]any)
	return obj
}
