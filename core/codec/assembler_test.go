package codec

import (
	"errors"
	"testing"

	"github.com/latticeforge/byteentity/core/entity"
	"github.com/latticeforge/byteentity/core/schema"
)

func assemblerSchema() *schema.Registry {
	def := schema.NewElementDef(
		[]string{"name", "weight", "ts"},
		[]string{"name"},
		map[string]*schema.TypeDef{
			"name":   {Serialiser: schema.StringSerialiser{}},
			"weight": {Serialiser: schema.Int64Serialiser{}},
		},
	)
	reg := schema.NewRegistry(schema.StringSerialiser{}, "", "ts")
	reg.AddElement(entity.Group("g"), def)
	return reg
}

func TestAssemblerEntityRoundTrip(t *testing.T) {
	reg := assemblerSchema()
	a := NewElementAssembler(reg)

	props := entity.NewProperties()
	props.Set("name", "alice")
	props.Set("weight", int64(42))
	props.Set("ts", int64(7))
	original := entity.NewEntity(entity.Group("g"), "alice", props)

	cells, err := a.Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell for an entity, got %d", len(cells))
	}

	decoded, err := a.Decode(cells[0], nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(*entity.Entity)
	if !ok {
		t.Fatalf("expected *entity.Entity, got %T", decoded)
	}
	if !got.Equal(original) {
		t.Fatalf("decoded entity %+v does not match original %+v", got, original)
	}
}

func TestAssemblerDirectedEdgeRoundTrip(t *testing.T) {
	reg := assemblerSchema()
	a := NewElementAssembler(reg)

	props := entity.NewProperties()
	props.Set("name", "follows")
	props.Set("weight", int64(3))
	props.Set("ts", int64(9))
	original := entity.NewEdge(entity.Group("g"), "alice", "bob", true, props)

	cells, err := a.Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells for a non-self directed edge, got %d", len(cells))
	}

	first, err := a.Decode(cells[0], nil)
	if err != nil {
		t.Fatalf("decode first cell: %v", err)
	}
	firstEdge, ok := first.(*entity.Edge)
	if !ok || !firstEdge.Equal(original) {
		t.Fatalf("first cell decoded to %+v, want %+v", first, original)
	}

	second, err := a.Decode(cells[1], nil)
	if err != nil {
		t.Fatalf("decode second cell: %v", err)
	}
	secondEdge, ok := second.(*entity.Edge)
	if !ok || !secondEdge.Equal(original) {
		t.Fatalf("second cell decoded (canonicalised) to %+v, want %+v", second, original)
	}

	secondAsStored, err := a.Decode(cells[1], Options{OptionReturnMatchedSeedsAsEdgeSource: "true"})
	if err != nil {
		t.Fatalf("decode second cell with option: %v", err)
	}
	storedEdge := secondAsStored.(*entity.Edge)
	if storedEdge.Source() != "bob" || storedEdge.Destination() != "alice" {
		t.Fatalf("expected stored order (bob, alice), got (%v, %v)", storedEdge.Source(), storedEdge.Destination())
	}
}

func TestAssemblerSelfEdgeRoundTrip(t *testing.T) {
	reg := assemblerSchema()
	a := NewElementAssembler(reg)

	original := entity.NewEdge(entity.Group("g"), "alice", "alice", true, entity.NewProperties())
	cells, err := a.Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("expected exactly 1 cell for a self-edge, got %d", len(cells))
	}

	decoded, err := a.Decode(cells[0], nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	edge := decoded.(*entity.Edge)
	if !edge.IsSelfEdge() {
		t.Fatal("expected decoded edge to report IsSelfEdge() == true")
	}
}

func TestAssemblerDecodeBadGroupEncoding(t *testing.T) {
	reg := assemblerSchema()
	a := NewElementAssembler(reg)

	cell := Cell{Row: []byte{0x61, 0x00, FlagEntity}, Family: []byte{0xff, 0xfe}}
	_, err := a.Decode(cell, nil)
	if !errors.Is(err, ErrBadGroupEncoding) {
		t.Fatalf("expected ErrBadGroupEncoding, got %v", err)
	}
}
