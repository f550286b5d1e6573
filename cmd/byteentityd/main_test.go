package main

import (
	"context"
	"strings"
	"testing"

	"github.com/latticeforge/byteentity/core/codec"
	"github.com/latticeforge/byteentity/core/entity"
	"github.com/latticeforge/byteentity/core/observability"
	"github.com/latticeforge/byteentity/core/schema"
)

type fakeBackend struct {
	cells  []codec.Cell
	closed bool
}

func (f *fakeBackend) Put(cell codec.Cell) error {
	f.cells = append(f.cells, cell)
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func ingestTestSchema() *schema.Registry {
	reg := schema.NewRegistry(schema.StringSerialiser{}, "visibility", "timestamp")
	reg.AddElement(entity.Group("person"), schema.NewElementDef(
		[]string{"name", "age"},
		[]string{"name"},
		map[string]*schema.TypeDef{
			"name": {Serialiser: schema.StringSerialiser{}},
			"age":  {Serialiser: schema.Int64Serialiser{}},
		},
	))
	reg.AddElement(entity.Group("knows"), schema.NewElementDef(
		[]string{"since"},
		nil,
		map[string]*schema.TypeDef{
			"since": {Serialiser: schema.Int64Serialiser{}},
		},
	))
	return reg
}

func TestParseIngestRecord_EntityWithIntegerProperty(t *testing.T) {
	rec, err := parseIngestRecord(`{"group":"person","vertex":"alice","properties":{"name":"alice","age":30}}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Group != "person" || rec.Vertex != "alice" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	age, ok := rec.Properties["age"].(int64)
	if !ok {
		t.Fatalf("expected age to decode as int64, got %T", rec.Properties["age"])
	}
	if age != 30 {
		t.Errorf("expected age 30, got %d", age)
	}
}

func TestParseIngestRecord_Edge(t *testing.T) {
	rec, err := parseIngestRecord(`{"group":"knows","source":"alice","destination":"bob","directed":true,"properties":{"since":2020}}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	el, err := rec.toElement()
	if err != nil {
		t.Fatalf("toElement: %v", err)
	}
	edge, ok := el.(*entity.Edge)
	if !ok {
		t.Fatalf("expected *entity.Edge, got %T", el)
	}
	if edge.Source() != "alice" || edge.Destination() != "bob" || !edge.Directed() {
		t.Errorf("unexpected edge: %+v", edge)
	}
}

func TestIngestRecord_MissingVertexIsRejected(t *testing.T) {
	rec, err := parseIngestRecord(`{"group":"person"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := rec.toElement(); err == nil {
		t.Error("expected an error for a record with no vertex or destination")
	}
}

func TestIngest_EncodesAndStoresCells(t *testing.T) {
	reg := ingestTestSchema()
	assembler := codec.NewElementAssembler(reg)
	store := &fakeBackend{}
	logger := observability.NewLogger(observability.LoggerConfig{MinLevel: observability.LogLevelError})

	input := strings.NewReader(strings.Join([]string{
		`{"group":"person","vertex":"alice","properties":{"name":"alice","age":30}}`,
		``,
		`not json`,
		`{"group":"knows","source":"alice","destination":"bob","properties":{"since":2020}}`,
	}, "\n"))

	metrics := observability.NewMetricsRegistry()
	if err := ingest(context.Background(), input, assembler, store, logger, metrics, nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// Three non-empty lines reach ingestLine (the blank line is skipped
	// before the counter increments); one of them is malformed JSON but
	// still counts as an attempted record.
	if got := metrics.Counter("byteentity_ingest_records_total", nil).Get(); got != 3 {
		t.Errorf("expected 3 attempted records counted, got %d", got)
	}

	if len(store.cells) == 0 {
		t.Fatal("expected at least one cell to have been stored")
	}
}

func TestIngest_StopsOnContextCancel(t *testing.T) {
	reg := ingestTestSchema()
	assembler := codec.NewElementAssembler(reg)
	store := &fakeBackend{}
	logger := observability.NewLogger(observability.LoggerConfig{MinLevel: observability.LogLevelError})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := strings.NewReader(`{"group":"person","vertex":"alice","properties":{"name":"alice","age":30}}` + "\n")

	err := ingest(ctx, input, assembler, store, logger, nil, nil)
	if err == nil {
		t.Fatal("expected ingest to return the cancellation error")
	}
	if len(store.cells) != 0 {
		t.Errorf("expected no cells to be stored after cancellation, got %d", len(store.cells))
	}
}
