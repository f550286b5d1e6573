// Package schema defines the property-type registry the byte-entity codec
// consumes: for each element group, the ordered property list, the
// group-by subset, the per-property serialiser, and the process-wide
// visibility and timestamp property names.
package schema

import "github.com/latticeforge/byteentity/core/entity"

// Serialiser converts a property value to and from bytes for a single
// property type. SerialiseNull and DeserialiseEmptyBytes give each type its
// own convention for the "no value" and "zero-length value" cases, since a
// zero-length byte string is not always the same thing as null.
type Serialiser interface {
	Serialise(v interface{}) ([]byte, error)
	Deserialise(b []byte) (interface{}, error)
	SerialiseNull() []byte
	DeserialiseEmptyBytes() (interface{}, error)
}

// TypeDef names the serialiser for one property. A nil *TypeDef (or a
// TypeDef with a nil Serialiser) means the property is known to the schema
// but has no serialiser registered for it; encode emits an empty block for
// it rather than failing.
type TypeDef struct {
	Serialiser Serialiser
}

// GetSerialiser returns the type's serialiser, or nil if t is nil or has
// none registered.
func (t *TypeDef) GetSerialiser() Serialiser {
	if t == nil {
		return nil
	}
	return t.Serialiser
}

// ElementDef is one group's schema entry.
type ElementDef struct {
	properties   []string
	groupBy      []string
	propertyDefs map[string]*TypeDef
}

// NewElementDef builds an ElementDef. properties is the full declared
// property order; groupBy must be a subsequence of properties.
func NewElementDef(properties, groupBy []string, propertyDefs map[string]*TypeDef) *ElementDef {
	if propertyDefs == nil {
		propertyDefs = map[string]*TypeDef{}
	}
	return &ElementDef{properties: properties, groupBy: groupBy, propertyDefs: propertyDefs}
}

// GetProperties returns the declared property order.
func (d *ElementDef) GetProperties() []string { return d.properties }

// GetGroupBy returns the ordered group-by subsequence.
func (d *ElementDef) GetGroupBy() []string { return d.groupBy }

// GetPropertyTypeDef returns the type definition for name, or nil if the
// group has none registered for it.
func (d *ElementDef) GetPropertyTypeDef(name string) *TypeDef {
	return d.propertyDefs[name]
}

// isGroupBy reports whether name is one of the group's group-by
// properties.
func (d *ElementDef) isGroupBy(name string) bool {
	for _, gb := range d.groupBy {
		if gb == name {
			return true
		}
	}
	return false
}

// Schema is the property-type registry the codec consumes. It is supplied
// once at construction time and treated as immutable for the codec's
// lifetime.
type Schema interface {
	GetElement(group entity.Group) (*ElementDef, bool)
	GetVisibilityProperty() (string, bool)
	GetTimestampProperty() (string, bool)
	GetVertexSerialiser() Serialiser
}

// IsStoredInValue reports whether property name of elementDef belongs in
// the cell value: it is neither a group-by property nor the schema's
// designated timestamp property.
func IsStoredInValue(elementDef *ElementDef, timestampProperty string, name string) bool {
	if name == timestampProperty {
		return false
	}
	return !elementDef.isGroupBy(name)
}
