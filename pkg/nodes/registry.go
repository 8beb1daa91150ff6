package nodes

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/flowcanvas/flowcanvas/pkg/canvas"
	"github.com/flowcanvas/flowcanvas/pkg/flow"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// TypeSpec describes a node type: its visual tag and default config.
type TypeSpec struct {
	Name        string         `yaml:"name" validate:"required"`
	Category    string         `yaml:"category"`
	DisplayName string         `yaml:"display_name"`
	Acronym     string         `yaml:"acronym" validate:"required"`
	Color       string         `yaml:"color" validate:"required,hexcolor"`
	Config      map[string]any `yaml:"config"`

	defaults flow.Config
}

// Catalog is the on-disk form of a set of type specs.
type Catalog struct {
	Types []TypeSpec `yaml:"types" validate:"dive"`
}

var validate = validator.New()

// Registry is the default node factory. It resolves type names against a
// catalog of type specs.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*TypeSpec
}

// NewRegistry creates a registry holding the built-in node types.
func NewRegistry() (*Registry, error) {
	r := &Registry{types: make(map[string]*TypeSpec)}
	if err := r.LoadCatalog(builtinCatalog); err != nil {
		return nil, fmt.Errorf("failed to load built-in catalog: %w", err)
	}
	return r, nil
}

// LoadCatalogFile merges the catalog stored at path into the registry.
func (r *Registry) LoadCatalogFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	if err := r.LoadCatalog(data); err != nil {
		return fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return nil
}

// LoadCatalog merges a YAML catalog into the registry. Specs replace
// existing specs of the same name. Either all specs are registered or none.
func (r *Registry) LoadCatalog(data []byte) error {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := validate.Struct(&cat); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	parsed := make([]*TypeSpec, 0, len(cat.Types))
	for i := range cat.Types {
		spec := cat.Types[i]
		cfg, err := decodeConfig(spec.Config)
		if err != nil {
			return fmt.Errorf("type %s: %w", spec.Name, err)
		}
		flow.ApplyHook(flow.Kind(spec.Name), &cfg)
		spec.defaults = cfg
		if spec.DisplayName == "" {
			spec.DisplayName = spec.Name
		}
		parsed = append(parsed, &spec)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spec := range parsed {
		r.types[spec.Name] = spec
	}
	return nil
}

// Register adds or replaces a single type spec.
func (r *Registry) Register(spec TypeSpec) error {
	if err := validate.Struct(&spec); err != nil {
		return fmt.Errorf("invalid type spec: %w", err)
	}
	cfg, err := decodeConfig(spec.Config)
	if err != nil {
		return fmt.Errorf("type %s: %w", spec.Name, err)
	}
	flow.ApplyHook(flow.Kind(spec.Name), &cfg)
	spec.defaults = cfg
	if spec.DisplayName == "" {
		spec.DisplayName = spec.Name
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[spec.Name] = &spec
	return nil
}

// Create builds the default node of typeName. It returns false when the type
// is not registered.
func (r *Registry) Create(typeName, id string, pos flow.Position) (*canvas.Node, bool) {
	r.mu.RLock()
	spec, ok := r.types[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	return &canvas.Node{
		ID:       id,
		Type:     flow.Kind(spec.Name),
		Position: pos,
		Data: canvas.NodeData{
			Title:   spec.DisplayName,
			Acronym: spec.Acronym,
			Color:   spec.Color,
			Config:  spec.defaults.Clone(),
		},
	}, true
}

// Lookup returns the spec registered under name.
func (r *Registry) Lookup(name string) (TypeSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.types[name]
	if !ok {
		return TypeSpec{}, false
	}
	return *spec, true
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns a copy of the default config of a type.
func (s TypeSpec) Defaults() flow.Config {
	return s.defaults.Clone()
}

// decodeConfig converts a YAML config mapping into a typed config by way of
// its JSON form, so both sources share one decoder.
func decodeConfig(raw map[string]any) (flow.Config, error) {
	if len(raw) == 0 {
		return flow.Config{}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return flow.Config{}, fmt.Errorf("failed to encode default config: %w", err)
	}
	var cfg flow.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return flow.Config{}, fmt.Errorf("failed to decode default config: %w", err)
	}
	return cfg, nil
}
