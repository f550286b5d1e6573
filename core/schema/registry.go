package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/latticeforge/byteentity/core/entity"
)

// Registry is an in-memory Schema built from explicit definitions or
// loaded from a YAML document. It is immutable after construction, so a
// single *Registry can be shared across concurrently-running codecs.
type Registry struct {
	elements            map[entity.Group]*ElementDef
	visibilityProperty  string
	hasVisibility       bool
	timestampProperty   string
	hasTimestamp        bool
	vertexSerialiser    Serialiser
}

// NewRegistry builds a Registry from already-constructed element
// definitions and process-wide property names.
func NewRegistry(vertexSerialiser Serialiser, visibilityProperty, timestampProperty string) *Registry {
	return &Registry{
		elements:           map[entity.Group]*ElementDef{},
		vertexSerialiser:   vertexSerialiser,
		visibilityProperty: visibilityProperty,
		hasVisibility:      visibilityProperty != "",
		timestampProperty:  timestampProperty,
		hasTimestamp:       timestampProperty != "",
	}
}

// AddElement registers (or replaces) the definition for group.
func (r *Registry) AddElement(group entity.Group, def *ElementDef) {
	r.elements[group] = def
}

func (r *Registry) GetElement(group entity.Group) (*ElementDef, bool) {
	def, ok := r.elements[group]
	return def, ok
}

func (r *Registry) GetVisibilityProperty() (string, bool) {
	return r.visibilityProperty, r.hasVisibility
}

func (r *Registry) GetTimestampProperty() (string, bool) {
	return r.timestampProperty, r.hasTimestamp
}

func (r *Registry) GetVertexSerialiser() Serialiser {
	return r.vertexSerialiser
}

// yamlConfig is the on-disk shape of a schema document.
//
//	vertexType: string
//	visibilityProperty: visibility
//	timestampProperty: timestamp
//	groups:
//	  person:
//	    properties: [name, age, visibility, timestamp]
//	    groupBy: [name]
//	    types:
//	      name: string
//	      age: int64
type yamlConfig struct {
	VertexType          string                   `yaml:"vertexType"`
	VisibilityProperty  string                   `yaml:"visibilityProperty"`
	TimestampProperty   string                   `yaml:"timestampProperty"`
	Groups              map[string]yamlGroupDef  `yaml:"groups"`
}

type yamlGroupDef struct {
	Properties []string          `yaml:"properties"`
	GroupBy    []string          `yaml:"groupBy"`
	Types      map[string]string `yaml:"types"`
}

// LoadFile parses a schema YAML document from path and builds a *Registry
// from it, resolving every named type against BuiltinSerialiser.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: failed to read %s: %w", path, err)
	}
	return Load(data)
}

// Load parses a schema YAML document from data.
func Load(data []byte) (*Registry, error) {
	var cfg yamlConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("schema: failed to parse YAML: %w", err)
	}

	vertexSer, err := BuiltinSerialiser(orDefault(cfg.VertexType, "string"))
	if err != nil {
		return nil, fmt.Errorf("schema: vertexType: %w", err)
	}

	reg := NewRegistry(vertexSer, cfg.VisibilityProperty, cfg.TimestampProperty)

	for name, g := range cfg.Groups {
		propertyDefs := map[string]*TypeDef{}
		for propName, typeName := range g.Types {
			ser, err := BuiltinSerialiser(typeName)
			if err != nil {
				return nil, fmt.Errorf("schema: group %q property %q: %w", name, propName, err)
			}
			propertyDefs[propName] = &TypeDef{Serialiser: ser}
		}
		reg.AddElement(entity.Group(name), NewElementDef(g.Properties, g.GroupBy, propertyDefs))
	}

	return reg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
