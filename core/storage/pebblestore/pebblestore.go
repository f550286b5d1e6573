// Package pebblestore is an alternate Store backend that persists cells
// directly into a github.com/cockroachdb/pebble LSM database, keyed by the
// cell's row key, instead of going through the WAL/memtable/SSTable
// pipeline in core/storage.
package pebblestore

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/latticeforge/byteentity/core/codec"
)

// Config holds configuration for a pebble-backed store.
type Config struct {
	Path      string
	CacheSize int64 // bytes; 0 uses pebble's default
}

// Store persists codec.Cells in a pebble.DB, one value per row key. Cells
// sharing a row key overwrite each other on Put, matching pebble's native
// last-write-wins semantics rather than the memtable engine's append-only
// multi-version behavior.
type Store struct {
	db     *pebble.DB
	puts   atomic.Int64
	closed atomic.Bool
}

// Open opens (or creates) a pebble database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	opts := &pebble.Options{}
	if cfg.CacheSize > 0 {
		cache := pebble.NewCache(cfg.CacheSize)
		defer cache.Unref()
		opts.Cache = cache
	}

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open %s: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

// Put writes cell's body under its row key, overwriting any prior value for
// that row key.
func (s *Store) Put(cell codec.Cell) error {
	if s.closed.Load() {
		return fmt.Errorf("pebblestore: store is closed")
	}
	body := codec.EncodeCellBody(cell)
	if err := s.db.Set(cell.Row, body, pebble.Sync); err != nil {
		return fmt.Errorf("pebblestore: set: %w", err)
	}
	s.puts.Add(1)
	return nil
}

// Get returns the cell stored under rowKey, or (codec.Cell{}, false, nil)
// if absent.
func (s *Store) Get(rowKey []byte) (codec.Cell, bool, error) {
	if s.closed.Load() {
		return codec.Cell{}, false, fmt.Errorf("pebblestore: store is closed")
	}
	value, closer, err := s.db.Get(rowKey)
	if err != nil {
		if err == pebble.ErrNotFound {
			return codec.Cell{}, false, nil
		}
		return codec.Cell{}, false, fmt.Errorf("pebblestore: get: %w", err)
	}
	defer closer.Close()

	cell, err := codec.DecodeCellBody(append([]byte{}, rowKey...), value)
	if err != nil {
		return codec.Cell{}, false, fmt.Errorf("pebblestore: decode: %w", err)
	}
	return cell, true, nil
}

// PutCount returns the number of successful Put calls since Open.
func (s *Store) PutCount() int64 {
	return s.puts.Load()
}

// Close flushes and closes the underlying pebble database.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("pebblestore: close: %w", err)
	}
	return nil
}
