package codec

import (
	"fmt"

	"github.com/latticeforge/byteentity/core/entity"
	"github.com/latticeforge/byteentity/core/schema"
	"github.com/latticeforge/byteentity/internal/varint"
)

// writeBlock appends a single length-prefixed record to out: varlen(len(b))
// followed by b itself.
func writeBlock(out, b []byte) []byte {
	out = varint.Write(len(b), out)
	return append(out, b...)
}

// readBlock reads one length-prefixed record starting at offset, returning
// its payload bytes and the offset of the next record.
func readBlock(buf []byte, offset int) (payload []byte, next int, err error) {
	length, cursor, err := varint.ReadAt(buf, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBadLengthPrefix, err)
	}
	if cursor+length > len(buf) {
		return nil, 0, fmt.Errorf("%w: record of length %d overruns buffer", ErrBadLengthPrefix, length)
	}
	return buf[cursor : cursor+length], cursor + length, nil
}

// EncodeValue builds the cell-value bytes for group's non-group-by,
// non-timestamp properties, in the schema's declared property order.
func EncodeValue(sc schema.Schema, group entity.Group, props *entity.Properties) ([]byte, error) {
	elementDef, ok := sc.GetElement(group)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	timestampProperty, _ := sc.GetTimestampProperty()

	var out []byte
	for _, name := range elementDef.GetProperties() {
		if !schema.IsStoredInValue(elementDef, timestampProperty, name) {
			continue
		}
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

// DecodeValue recovers the non-group-by, non-timestamp properties for group
// from cell-value bytes b, stopping early if b is shorter than the
// declared property list (tolerating truncation by qualifier-only
// projections).
func DecodeValue(sc schema.Schema, group entity.Group, b []byte) (*entity.Properties, error) {
	out := entity.NewProperties()
	if len(b) == 0 {
		return out, nil
	}
	elementDef, ok := sc.GetElement(group)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	timestampProperty, _ := sc.GetTimestampProperty()

	offset := 0
	for _, name := range elementDef.GetProperties() {
		if offset >= len(b) {
			break
		}
		if !schema.IsStoredInValue(elementDef, timestampProperty, name) {
			continue
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
