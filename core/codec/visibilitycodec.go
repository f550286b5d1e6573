package codec

import (
	"fmt"

	"github.com/latticeforge/byteentity/core/entity"
	"github.com/latticeforge/byteentity/core/schema"
)

// EncodeVisibility builds the cell-visibility bytes for group's designated
// visibility property. It returns an empty slice if the schema has no
// visibility property, or no serialiser registered for it in group.
func EncodeVisibility(sc schema.Schema, group entity.Group, props *entity.Properties) ([]byte, error) {
	ser, _, ok := visibilitySerialiser(sc, group)
	if !ok {
		return []byte{}, nil
	}

	v, present := props.Get(mustVisibilityProperty(sc))
	if !present || v == nil {
		return ser.SerialiseNull(), nil
	}
	encoded, err := ser.Serialise(v)
	if err != nil {
		return nil, fmt.Errorf("%w: visibility: %v", ErrSerialiseFailure, err)
	}
	return encoded, nil
}

// DecodeVisibility recovers group's visibility property, if any, from
// cell-visibility bytes b, and sets it on props.
func DecodeVisibility(sc schema.Schema, group entity.Group, b []byte, props *entity.Properties) error {
	ser, name, ok := visibilitySerialiser(sc, group)
	if !ok {
		return nil
	}

	if len(b) == 0 {
		v, err := ser.DeserialiseEmptyBytes()
		if err != nil {
			return fmt.Errorf("%w: visibility: %v", ErrDeserialiseFailure, err)
		}
		if v != nil {
			props.Set(name, v)
		}
		return nil
	}

	v, err := ser.Deserialise(b)
	if err != nil {
		return fmt.Errorf("%w: visibility: %v", ErrDeserialiseFailure, err)
	}
	props.Set(name, v)
	return nil
}

func visibilitySerialiser(sc schema.Schema, group entity.Group) (ser schema.Serialiser, name string, ok bool) {
	name, has := sc.GetVisibilityProperty()
	if !has {
		return nil, "", false
	}
	elementDef, has := sc.GetElement(group)
	if !has {
		return nil, "", false
	}
	ser = elementDef.GetPropertyTypeDef(name).GetSerialiser()
	if ser == nil {
		return nil, "", false
	}
	return ser, name, true
}

func mustVisibilityProperty(sc schema.Schema) string {
	name, _ := sc.GetVisibilityProperty()
	return name
}
