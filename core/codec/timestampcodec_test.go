package codec

import (
	"testing"
	"time"

	"github.com/latticeforge/byteentity/core/entity"
	"github.com/latticeforge/byteentity/core/schema"
)

func timestampSchema(declareOnGroup bool) *schema.Registry {
	names := []string{"name"}
	if declareOnGroup {
		names = append(names, "ts")
	}
	def := schema.NewElementDef(names, nil, nil)
	reg := schema.NewRegistry(schema.StringSerialiser{}, "", "ts")
	reg.AddElement(entity.Group("g"), def)
	return reg
}

func TestBuildTimestampFromProperty(t *testing.T) {
	reg := timestampSchema(true)
	props := entity.NewProperties()
	props.Set("ts", int64(1000))

	got, err := BuildTimestamp(reg, props)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1000 {
		t.Fatalf("got %d, want 1000", got)
	}
}

func TestBuildTimestampFallsBackToWallClock(t *testing.T) {
	reg := timestampSchema(true)
	before := time.Now().UnixMilli()

	got, err := BuildTimestamp(reg, entity.NewProperties())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := time.Now().UnixMilli()
	if got < before || got > after {
		t.Fatalf("got %d, want a value in [%d, %d]", got, before, after)
	}
}

func TestExtractTimestampOnlyWhenDeclared(t *testing.T) {
	reg := timestampSchema(true)
	props := ExtractTimestamp(reg, entity.Group("g"), 1000)
	if v, ok := props.Get("ts"); !ok || v != int64(1000) {
		t.Fatalf("ts = %v (present=%v), want 1000", v, ok)
	}

	regWithout := timestampSchema(false)
	propsWithout := ExtractTimestamp(regWithout, entity.Group("g"), 1000)
	if propsWithout.Len() != 0 {
		t.Fatalf("expected no properties when group does not declare the timestamp property, got %v", propsWithout.Names())
	}
}
