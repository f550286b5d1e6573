package memtable

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/latticeforge/byteentity/core/codec"
)

// RowKey represents the byte-entity row key a cell is stored under.
type RowKey string

// cellSize approximates the memory footprint of a cell's mutable fields,
// so Memtable.ShouldFlush reflects actual bytes rather than element count.
func cellSize(cell codec.Cell) int64 {
	return int64(len(cell.Row) + len(cell.Family) + len(cell.Qualifier) +
		len(cell.Visibility) + len(cell.Value) + 8) // +8 for the timestamp
}

// memtableData holds the actual data structure.
// This is copied on each write to enable lock-free reads.
type memtableData struct {
	data map[RowKey][]codec.Cell
	size int64 // approximate memory usage in bytes
}

// Memtable is an in-memory table of codec.Cell entries with append-only
// semantics, concurrent writes, and lock-free reads. It is the write buffer
// every Cell passes through before an sstable.Writer durably persists it.
type Memtable struct {
	// Pointer to the current memtableData, accessed atomically for lock-free reads
	dataPtr unsafe.Pointer

	// Mutex for writes (only held during write operations)
	writeMu sync.Mutex

	// Configuration
	maxSize int64 // maximum size before flush is triggered
}

// New creates a new memtable with the given maximum size threshold.
// If maxSize is 0, a default of 64MB is used.
func New(maxSize int64) *Memtable {
	if maxSize <= 0 {
		maxSize = 64 * 1024 * 1024 // 64MB default
	}

	mt := &Memtable{
		maxSize: maxSize,
	}

	// Initialize with empty data
	initialData := &memtableData{
		data: make(map[RowKey][]codec.Cell),
		size: 0,
	}
	atomic.StorePointer(&mt.dataPtr, unsafe.Pointer(initialData))

	return mt
}

// getData atomically loads the current memtableData pointer.
// This provides lock-free read access.
func (mt *Memtable) getData() *memtableData {
	ptr := atomic.LoadPointer(&mt.dataPtr)
	return (*memtableData)(ptr)
}

// Put appends a cell to the memtable, keyed by its row key.
// This method is safe to call from multiple goroutines concurrently.
func (mt *Memtable) Put(cell codec.Cell) {
	mt.writeMu.Lock()
	defer mt.writeMu.Unlock()

	// Get current data
	current := mt.getData()

	rowKey := RowKey(cell.Row)

	// Create a new copy of the data map
	newData := &memtableData{
		data: make(map[RowKey][]codec.Cell, len(current.data)+1),
		size: current.size,
	}

	// Copy all existing entries
	for k, v := range current.data {
		// Copy the slice to ensure we have a new backing array
		cellsCopy := make([]codec.Cell, len(v))
		copy(cellsCopy, v)
		newData.data[k] = cellsCopy
	}

	// Append the new cell
	newData.data[rowKey] = append(newData.data[rowKey], cell)
	newData.size += cellSize(cell)

	// Atomically update the pointer
	atomic.StorePointer(&mt.dataPtr, unsafe.Pointer(newData))
}

// Get retrieves all cells for the given row key.
// This method provides lock-free read access and is safe to call
// from multiple goroutines concurrently.
func (mt *Memtable) Get(rowKey RowKey) []codec.Cell {
	data := mt.getData()
	cells := data.data[rowKey]

	// Return a copy to prevent external modification
	if len(cells) == 0 {
		return nil
	}

	result := make([]codec.Cell, len(cells))
	copy(result, cells)
	return result
}

// ShouldFlush returns true if the memtable has exceeded its size threshold.
// This method provides lock-free read access.
func (mt *Memtable) ShouldFlush() bool {
	data := mt.getData()
	return data.size >= mt.maxSize
}

// Reset clears the memtable and resets its size counter.
// This method is safe to call from multiple goroutines, but should typically
// be called when no other operations are in progress (e.g., after flushing).
func (mt *Memtable) Reset() {
	mt.writeMu.Lock()
	defer mt.writeMu.Unlock()

	// Create new empty data
	newData := &memtableData{
		data: make(map[RowKey][]codec.Cell),
		size: 0,
	}

	// Atomically update the pointer
	atomic.StorePointer(&mt.dataPtr, unsafe.Pointer(newData))
}

// Size returns the approximate memory usage of the memtable in bytes.
// This method provides lock-free read access.
func (mt *Memtable) Size() int64 {
	data := mt.getData()
	return data.size
}

// Count returns the total number of cells in the memtable.
// This method provides lock-free read access.
func (mt *Memtable) Count() int {
	data := mt.getData()
	count := 0
	for _, cells := range data.data {
		count += len(cells)
	}
	return count
}

// RowKeyCount returns the number of unique row keys in the memtable.
// This method provides lock-free read access.
func (mt *Memtable) RowKeyCount() int {
	data := mt.getData()
	return len(data.data)
}

// GetAllRowKeys returns all row keys in the memtable.
// This method provides lock-free read access.
func (mt *Memtable) GetAllRowKeys() []RowKey {
	data := mt.getData()
	keys := make([]RowKey, 0, len(data.data))
	for rowKey := range data.data {
		keys = append(keys, rowKey)
	}
	return keys
}

// GetAllData returns a snapshot of all cells in the memtable, grouped by row
// key. This method provides lock-free read access and returns a copy of the
// data. Use with caution as it may be expensive for large memtables.
func (mt *Memtable) GetAllData() map[RowKey][]codec.Cell {
	data := mt.getData()
	result := make(map[RowKey][]codec.Cell, len(data.data))
	for rowKey, cells := range data.data {
		// Copy the slice
		cellsCopy := make([]codec.Cell, len(cells))
		copy(cellsCopy, cells)
		result[rowKey] = cellsCopy
	}
	return result
}
