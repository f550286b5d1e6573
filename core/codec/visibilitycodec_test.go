package codec

import (
	"bytes"
	"testing"

	"github.com/latticeforge/byteentity/core/entity"
	"github.com/latticeforge/byteentity/core/schema"
)

func visibilitySchema(withVisibility bool) *schema.Registry {
	defs := map[string]*schema.TypeDef{
		"name": {Serialiser: schema.StringSerialiser{}},
	}
	visibilityProperty := ""
	if withVisibility {
		defs["visibility"] = &schema.TypeDef{Serialiser: schema.StringSerialiser{}}
		visibilityProperty = "visibility"
	}
	def := schema.NewElementDef([]string{"name", "visibility"}, nil, defs)
	reg := schema.NewRegistry(schema.StringSerialiser{}, visibilityProperty, "")
	reg.AddElement(entity.Group("g"), def)
	return reg
}

func TestEncodeDecodeVisibilityRoundTrip(t *testing.T) {
	reg := visibilitySchema(true)
	props := entity.NewProperties()
	props.Set("visibility", "private")

	encoded, err := EncodeVisibility(reg, entity.Group("g"), props)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(encoded, []byte("private")) {
		t.Fatalf("encoded visibility = %q, want %q", encoded, "private")
	}

	out := entity.NewProperties()
	if err := DecodeVisibility(reg, entity.Group("g"), encoded, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := out.Get("visibility"); v != "private" {
		t.Fatalf("visibility = %v, want private", v)
	}
}

func TestEncodeVisibilityUndeclared(t *testing.T) {
	reg := visibilitySchema(false)
	encoded, err := EncodeVisibility(reg, entity.Group("g"), entity.NewProperties())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(encoded) != 0 {
		t.Fatalf("expected empty visibility, got % x", encoded)
	}
}

func TestDecodeVisibilityEmptyUsesEmptyBytesConvention(t *testing.T) {
	reg := visibilitySchema(true)
	out := entity.NewProperties()
	if err := DecodeVisibility(reg, entity.Group("g"), nil, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// StringSerialiser's empty-bytes value is "", which is non-null, so it
	// is still added to the output per the non-null-add rule.
	if v, ok := out.Get("visibility"); !ok || v != "" {
		t.Fatalf("visibility = %v (present=%v), want empty string", v, ok)
	}
}
