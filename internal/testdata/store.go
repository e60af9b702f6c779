// Package testdata provides the layered test-data lookup used to build flows:
// environment files, application credentials and preset placeholder values,
// plus the flow fixture documents themselves.
package testdata

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
)

// Well-known test-data keys.
const (
	KeyApplications = "applications"
	KeyPresetValues = "presetValues"
	KeyBaseURL      = "environment.baseUrl"
	KeyPublicKey    = "environment.publicKey"
	KeyListenerURL  = "environment.listenerUrl"
	KeySessionURL   = "environment.sessionUrl"
)

// Store is a precedence-ordered test-data lookup. Layers loaded later win.
type Store struct {
	k *koanf.Koanf
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{k: koanf.New(".")}
}

// Open loads every file in order; later files take precedence.
func Open(paths ...string) (*Store, error) {
	s := NewStore()
	for _, p := range paths {
		if err := s.LoadFile(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadFile merges a JSON or YAML document on top of the existing layers.
func (s *Store) LoadFile(path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parser = json.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	default:
		return fmt.Errorf("unsupported test data file %s", path)
	}
	if err := s.k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("load test data %s: %w", path, err)
	}
	return nil
}

// Overlay merges an in-memory layer, typically scenario specific values.
func (s *Store) Overlay(values map[string]any) error {
	if err := s.k.Load(confmap.Provider(values, ""), nil); err != nil {
		return fmt.Errorf("overlay test data: %w", err)
	}
	return nil
}

// Get returns the value stored under a dotted key.
func (s *Store) Get(key string) (any, bool) {
	if !s.k.Exists(key) {
		return nil, false
	}
	return s.k.Get(key), true
}

// String returns a required string value.
func (s *Store) String(key string) (string, error) {
	v, ok := s.Get(key)
	if !ok {
		return "", domain.NewMissingTestDataError(key)
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return "", domain.NewMissingTestDataError(key)
	}
	return str, nil
}

// StringOr returns the string at key or fallback when it is undefined.
func (s *Store) StringOr(key, fallback string) string {
	v, err := s.String(key)
	if err != nil {
		return fallback
	}
	return v
}

// Map returns the object stored under key, or an empty map.
func (s *Store) Map(key string) map[string]any {
	v, ok := s.Get(key)
	if !ok {
		return map[string]any{}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// APIKey returns the plaintext API key configured for an application.
func (s *Store) APIKey(application string) (string, error) {
	return s.String(KeyApplications + "." + application + ".apiKey")
}

// Presets returns the preset placeholder values.
func (s *Store) Presets() map[string]any {
	return s.Map(KeyPresetValues)
}
