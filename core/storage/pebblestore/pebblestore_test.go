package pebblestore

import (
	"path/filepath"
	"testing"

	"github.com/latticeforge/byteentity/core/codec"
)

func TestStore_PutGet(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(Config{Path: filepath.Join(dir, "db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	cell := codec.Cell{
		Row:        []byte("alice\x00\x01"),
		Family:     []byte("person"),
		Qualifier:  []byte{},
		Visibility: []byte("public"),
		Timestamp:  1700000000000,
		Value:      []byte("payload"),
	}

	if err := store.Put(cell); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := store.Get(cell.Row)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected cell to be found")
	}
	if string(got.Value) != string(cell.Value) {
		t.Errorf("value mismatch: got %q, want %q", got.Value, cell.Value)
	}
	if got.Timestamp != cell.Timestamp {
		t.Errorf("timestamp mismatch: got %d, want %d", got.Timestamp, cell.Timestamp)
	}
	if string(got.Visibility) != string(cell.Visibility) {
		t.Errorf("visibility mismatch: got %q, want %q", got.Visibility, cell.Visibility)
	}

	if store.PutCount() != 1 {
		t.Errorf("expected PutCount 1, got %d", store.PutCount())
	}
}

func TestStore_GetMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(Config{Path: filepath.Join(dir, "db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	_, ok, err := store.Get([]byte("nonexistent"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected not found")
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(Config{Path: filepath.Join(dir, "db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	row := []byte("bob\x00\x01")
	first := codec.Cell{Row: row, Family: []byte("person"), Timestamp: 1, Value: []byte("v1")}
	second := codec.Cell{Row: row, Family: []byte("person"), Timestamp: 2, Value: []byte("v2")}

	if err := store.Put(first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := store.Put(second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got, ok, err := store.Get(row)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected cell to be found")
	}
	if string(got.Value) != "v2" {
		t.Errorf("expected overwrite to win, got %q", got.Value)
	}
}

func TestStore_OperationsAfterClose(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(Config{Path: filepath.Join(dir, "db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := store.Put(codec.Cell{Row: []byte("x")}); err == nil {
		t.Error("expected error putting to closed store")
	}
	if _, _, err := store.Get([]byte("x")); err == nil {
		t.Error("expected error getting from closed store")
	}
	if err := store.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}
