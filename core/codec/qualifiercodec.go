package codec

import (
	"fmt"

	"github.com/latticeforge/byteentity/core/entity"
	"github.com/latticeforge/byteentity/core/schema"
	"github.com/latticeforge/byteentity/internal/varint"
)

// EncodeQualifier builds the cell-qualifier bytes for group's group-by
// properties, in the schema's declared group-by order. Unlike EncodeValue,
// every group-by property contributes a record; there is no
// IsStoredInValue filter.
func EncodeQualifier(sc schema.Schema, group entity.Group, props *entity.Properties) ([]byte, error) {
	elementDef, ok := sc.GetElement(group)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}

	var out []byte
	for _, name := range elementDef.GetGroupBy() {
		ser := elementDef.GetPropertyTypeDef(name).GetSerialiser()
		if ser == nil {
			out = writeBlock(out, nil)
			continue
		}
		v, present := props.Get(name)
		var encoded []byte
		var err error
		if !present || v == nil {
			encoded = ser.SerialiseNull()
		} else {
			encoded, err = ser.Serialise(v)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: property %q: %v", ErrSerialiseFailure, name, err)
		}
		out = writeBlock(out, encoded)
	}
	return out, nil
}

// DecodeQualifier recovers group's group-by properties from cell-qualifier
// bytes b.
func DecodeQualifier(sc schema.Schema, group entity.Group, b []byte) (*entity.Properties, error) {
	out := entity.NewProperties()
	if len(b) == 0 {
		return out, nil
	}
	elementDef, ok := sc.GetElement(group)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}

	offset := 0
	for _, name := range elementDef.GetGroupBy() {
		if offset >= len(b) {
			break
		}
		payload, next, err := readBlock(b, offset)
		if err != nil {
			return nil, err
		}
		offset = next

		ser := elementDef.GetPropertyTypeDef(name).GetSerialiser()
		if ser == nil {
			continue
		}
		var v interface{}
		if len(payload) == 0 {
			v, err = ser.DeserialiseEmptyBytes()
		} else {
			v, err = ser.Deserialise(payload)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: property %q: %v", ErrDeserialiseFailure, name, err)
		}
		out.Set(name, v)
	}
	return out, nil
}

// FirstNPropertyBytes returns the prefix of encoded qualifier bytes b that
// covers exactly the first n group-by properties of group. If n equals the
// group's full group-by count, b is returned unchanged. n=0 returns an
// empty (non-nil) slice.
func FirstNPropertyBytes(sc schema.Schema, group entity.Group, b []byte, n int) ([]byte, error) {
	elementDef, ok := sc.GetElement(group)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	groupBy := elementDef.GetGroupBy()
	if n >= len(groupBy) {
		return b, nil
	}
	if n <= 0 {
		return []byte{}, nil
	}

	offset := 0
	for i := 0; i < n; i++ {
		length, next, err := varint.ReadAt(b, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadLengthPrefix, err)
		}
		offset = next + length
	}
	return b[:offset], nil
}
