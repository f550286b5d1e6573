package codec

import (
	"fmt"
	"unicode/utf8"

	"github.com/latticeforge/byteentity/core/entity"
	"github.com/latticeforge/byteentity/core/schema"
)

// ElementAssembler composes ByteEscape, KeyCodec, ValueCodec,
// QualifierCodec, VisibilityCodec and TimestampCodec into whole-element
// encode/decode against a single Schema. It holds no state beyond that
// Schema reference and is safe for concurrent use.
type ElementAssembler struct {
	schema schema.Schema
}

// NewElementAssembler builds an assembler bound to sc for its lifetime.
func NewElementAssembler(sc schema.Schema) *ElementAssembler {
	return &ElementAssembler{schema: sc}
}

// Encode produces the cell or cells for el: one for an Entity or a
// self-edge, two for any other Edge.
func (a *ElementAssembler) Encode(el entity.Element) ([]Cell, error) {
	group := el.Group()
	qualifier, err := EncodeQualifier(a.schema, group, el.Properties())
	if err != nil {
		return nil, err
	}
	value, err := EncodeValue(a.schema, group, el.Properties())
	if err != nil {
		return nil, err
	}
	visibility, err := EncodeVisibility(a.schema, group, el.Properties())
	if err != nil {
		return nil, err
	}
	timestamp, err := BuildTimestamp(a.schema, el.Properties())
	if err != nil {
		return nil, err
	}
	family := []byte(group)

	var rows [][]byte
	switch e := el.(type) {
	case *entity.Entity:
		vertexBytes, err := a.schema.GetVertexSerialiser().Serialise(e.Vertex())
		if err != nil {
			return nil, fmt.Errorf("%w: vertex: %v", ErrSerialiseFailure, err)
		}
		rows = [][]byte{EncodeEntityRowKey(vertexBytes)}
	case *entity.Edge:
		srcBytes, err := a.schema.GetVertexSerialiser().Serialise(e.Source())
		if err != nil {
			return nil, fmt.Errorf("%w: source: %v", ErrSerialiseFailure, err)
		}
		dstBytes, err := a.schema.GetVertexSerialiser().Serialise(e.Destination())
		if err != nil {
			return nil, fmt.Errorf("%w: destination: %v", ErrSerialiseFailure, err)
		}
		rows = EncodeEdgeRowKeys(srcBytes, dstBytes, e.Directed()).All()
	default:
		return nil, fmt.Errorf("%w: unsupported element type %T", ErrSerialiseFailure, el)
	}

	cells := make([]Cell, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, Cell{
			Row:        row,
			Family:     family,
			Qualifier:  qualifier,
			Visibility: visibility,
			Timestamp:  timestamp,
			Value:      value,
		})
	}
	return cells, nil
}

// Decode reconstructs the Element a single cell encodes. options is
// forwarded to ParseEdgeRow for DIRECTED_INVERTED rows.
func (a *ElementAssembler) Decode(cell Cell, options Options) (entity.Element, error) {
	if !utf8.Valid(cell.Family) {
		return nil, fmt.Errorf("%w", ErrBadGroupEncoding)
	}
	group := entity.Group(cell.Family)

	props, err := a.mergeProperties(group, cell)
	if err != nil {
		return nil, err
	}

	if IsEntityRow(cell.Row) {
		vertexBytes, err := ParseEntityRow(cell.Row)
		if err != nil {
			return nil, err
		}
		vertex, err := a.schema.GetVertexSerialiser().Deserialise(vertexBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: vertex: %v", ErrDeserialiseFailure, err)
		}
		return entity.NewEntity(group, vertex, props), nil
	}

	srcBytes, dstBytes, directed, err := ParseEdgeRow(cell.Row, options)
	if err != nil {
		return nil, err
	}
	src, err := a.schema.GetVertexSerialiser().Deserialise(srcBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: source: %v", ErrDeserialiseFailure, err)
	}
	dst, err := a.schema.GetVertexSerialiser().Deserialise(dstBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: destination: %v", ErrDeserialiseFailure, err)
	}
	return entity.NewEdge(group, src, dst, directed, props), nil
}

// mergeProperties combines qualifier, value and timestamp properties, in
// that precedence. The visibility property is deliberately excluded: it
// lives in the cell's visibility column, not the element's property set,
// so decode never duplicates it back in. By construction the three
// sources have disjoint key sets.
func (a *ElementAssembler) mergeProperties(group entity.Group, cell Cell) (*entity.Properties, error) {
	qualifierProps, err := DecodeQualifier(a.schema, group, cell.Qualifier)
	if err != nil {
		return nil, err
	}
	valueProps, err := DecodeValue(a.schema, group, cell.Value)
	if err != nil {
		return nil, err
	}
	timestampProps := ExtractTimestamp(a.schema, group, cell.Timestamp)

	merged := entity.NewProperties()
	qualifierProps.Range(merged.Set)
	valueProps.Range(merged.Set)
	timestampProps.Range(merged.Set)
	return merged, nil
}
