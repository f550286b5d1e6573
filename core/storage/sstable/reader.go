package sstable

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"
	"sync"
)

// Reader reads from an SSTable file.
// The reader is mmap-friendly and supports concurrent reads.
type Reader struct {
	data []byte // mmap-friendly: entire file in memory

	header *Header
	footer *Footer

	// Index loaded into memory for fast lookups
	index []IndexEntry

	// Mutex for thread-safe access (only needed for index building)
	mu sync.RWMutex
}

// NewReader creates a new SSTable reader from a byte slice.
// The data should be the entire SSTable file contents (e.g., from mmap).
func NewReader(data []byte) (*Reader, error) {
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("file too small: %d bytes", len(data))
	}

	// Read header
	header, err := DecodeHeader(data[0:HeaderSize])
	if err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}

	// Read footer (last FooterSize bytes)
	footerStart := len(data) - FooterSize
	footer, err := DecodeFooter(data[footerStart:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode footer: %w", err)
	}

	// Validate footer
	if footer.IndexOffset < 0 || footer.IndexOffset >= int64(len(data)) {
		return nil, fmt.Errorf("invalid index offset: %d", footer.IndexOffset)
	}
	if footer.IndexSize < 0 || footer.IndexOffset+footer.IndexSize > int64(len(data)) {
		return nil, fmt.Errorf("invalid index size: %d", footer.IndexSize)
	}

	// Load index
	indexData := data[footer.IndexOffset : footer.IndexOffset+footer.IndexSize]
	index, err := loadIndex(indexData)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	return &Reader{
		data:    data,
		header:  header,
		footer:  footer,
		index:   index,
	}, nil
}

// loadIndex loads the index from the index section.
func loadIndex(indexData []byte) ([]IndexEntry, error) {
	index := make([]IndexEntry, 0)
	offset := 0

	for offset < len(indexData) {
		entry, newOffset, err := DecodeIndexEntry(indexData, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to decode index entry at offset %d: %w", offset, err)
		}
		index = append(index, *entry)
		offset = newOffset
	}

	return index, nil
}

// Get retrieves all rows for the given row key.
// This method is safe to call from multiple goroutines concurrently.
// Note: For optimal performance, rows should be written in sorted order by row key.
// If rows for the same row key are non-contiguous, only rows starting from the
// first occurrence will be returned.
func (r *Reader) Get(rowKey RowKey) ([]*Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Find the row key in the index using binary search
	idx := sort.Search(len(r.index), func(i int) bool {
		return r.index[i].RowKey >= rowKey
	})

	if idx >= len(r.index) || r.index[idx].RowKey != rowKey {
		// Row key not found in index
		return nil, nil
	}

	// Get the offset for this row key
	offset := r.index[idx].Offset

	// Determine the end offset (start of next row key, or start of index)
	var endOffset int64
	if idx+1 < len(r.index) {
		endOffset = r.index[idx+1].Offset
	} else {
		endOffset = r.footer.IndexOffset
	}

	// Read all rows for this row key (they should be contiguous if written in sorted order)
	rows := make([]*Row, 0)
	currentOffset := offset

	for currentOffset < endOffset {
		row, nextOffset, err := r.readRowAt(currentOffset)
		if err != nil {
			return nil, fmt.Errorf("failed to read row at offset %d: %w", currentOffset, err)
		}

		// Verify row key matches (safety check - stop if we hit a different row key)
		if row.RowKey != rowKey {
			break // Reached next row key (shouldn't happen if data is sorted)
		}

		rows = append(rows, row)
		currentOffset = nextOffset
	}

	return rows, nil
}

// readRowAt reads a single row starting at the given offset.
// Returns the row and the offset of the next row.
func (r *Reader) readRowAt(offset int64) (*Row, int64, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, 0, fmt.Errorf("offset out of bounds: %d", offset)
	}

	data := r.data[offset:]
	if len(data) < 1+4 {
		return nil, 0, fmt.Errorf("insufficient data for row header")
	}

	row := &Row{}
	currentOffset := 0

	// Type
	row.Type = RowType(data[currentOffset])
	currentOffset++

	// Timestamp
	if currentOffset+8 > len(data) {
		return nil, 0, fmt.Errorf("insufficient data for timestamp")
	}
	row.Timestamp = int64(binary.LittleEndian.Uint64(data[currentOffset : currentOffset+8]))
	currentOffset += 8

	// RowKeyLen
	if currentOffset+4 > len(data) {
		return nil, 0, fmt.Errorf("insufficient data for row key length")
	}
	rowKeyLen := int(binary.LittleEndian.Uint32(data[currentOffset : currentOffset+4]))
	currentOffset += 4

	// RowKey
	if currentOffset+rowKeyLen > len(data) {
		return nil, 0, fmt.Errorf("insufficient data for row key")
	}
	row.RowKey = RowKey(data[currentOffset : currentOffset+rowKeyLen])
	currentOffset += rowKeyLen

	// DataLen
	if currentOffset+4 > len(data) {
		return nil, 0, fmt.Errorf("insufficient data for data length")
	}
	dataLen := int(binary.LittleEndian.Uint32(data[currentOffset : currentOffset+4]))
	currentOffset += 4

	// Data
	if currentOffset+dataLen > len(data) {
		return nil, 0, fmt.Errorf("insufficient data for row data")
	}
	row.Data = make([]byte, dataLen)
	copy(row.Data, data[currentOffset:currentOffset+dataLen])
	currentOffset += dataLen

	// CRC32
	if currentOffset+4 > len(data) {
		return nil, 0, fmt.Errorf("insufficient data for CRC32")
	}
	row.CRC32 = binary.LittleEndian.Uint32(data[currentOffset : currentOffset+4])
	currentOffset += 4

	// Verify CRC32
	expectedCRC := r.calculateRowCRC(row)
	if row.CRC32 != expectedCRC {
		return nil, 0, fmt.Errorf("CRC32 mismatch: expected %d, got %d", expectedCRC, row.CRC32)
	}

	nextOffset := offset + int64(currentOffset)
	return row, nextOffset, nil
}

// calculateRowCRC calculates the CRC32 checksum for a row.
func (r *Reader) calculateRowCRC(row *Row) uint32 {
	rowKeyBytes := []byte(row.RowKey)

	crcData := make([]byte, 1+8+4+len(rowKeyBytes)+4+len(row.Data))
	offset := 0

	crcData[offset] = byte(row.Type)
	offset++

	binary.LittleEndian.PutUint64(crcData[offset:offset+8], uint64(row.Timestamp))
	offset += 8

	binary.LittleEndian.PutUint32(crcData[offset:offset+4], uint32(len(rowKeyBytes)))
	offset += 4

	copy(crcData[offset:offset+len(rowKeyBytes)], rowKeyBytes)
	offset += len(rowKeyBytes)

	binary.LittleEndian.PutUint32(crcData[offset:offset+4], uint32(len(row.Data)))
	offset += 4

	copy(crcData[offset:offset+len(row.Data)], row.Data)

	return crc32.ChecksumIEEE(crcData)
}

// OldestTimestamp scans every row in the file and returns the minimum
// Timestamp seen, or 0 if the file has no rows. The planner uses this to
// judge an SSTable's staleness by the age of the cells it actually holds,
// rather than the file's mtime, which only reflects when it was flushed or
// compacted and can understate how old a WAL-recovered cell really is.
func (r *Reader) OldestTimestamp() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var oldest int64
	offset := r.header.DataOffset
	for offset < r.footer.IndexOffset {
		row, nextOffset, err := r.readRowAt(offset)
		if err != nil {
			return oldest
		}
		if oldest == 0 || row.Timestamp < oldest {
			oldest = row.Timestamp
		}
		offset = nextOffset
	}
	return oldest
}

// RowCount returns the total number of rows in the SSTable.
func (r *Reader) RowCount() int64 {
	return r.footer.RowCount
}

// RowKeyCount returns the number of unique entities in the SSTable.
func (r *Reader) RowKeyCount() int {
	return len(r.index)
}

// GetAllRowKeys returns all row keys in the SSTable.
func (r *Reader) GetAllRowKeys() []RowKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]RowKey, len(r.index))
	for i, entry := range r.index {
		ids[i] = entry.RowKey
	}
	return ids
}

// MergeReader represents a merged view of multiple SSTable readers.
// It provides a unified interface for reading from multiple SSTables.
type MergeReader struct {
	readers []*Reader
	mu      sync.RWMutex
}

// NewMergeReader creates a new merge reader from multiple SSTable readers.
// Readers should be ordered from newest to oldest (for LSM-tree semantics).
func NewMergeReader(readers ...*Reader) *MergeReader {
	return &MergeReader{
		readers: readers,
	}
}

// Get retrieves all rows for the given row key from all SSTables.
// Rows are returned in order: newest first, then older.
// This method is safe to call from multiple goroutines concurrently.
func (mr *MergeReader) Get(rowKey RowKey) ([]*Row, error) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	allRows := make([]*Row, 0)

	// Read from all readers (newest first)
	for _, reader := range mr.readers {
		rows, err := reader.Get(rowKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read from SSTable: %w", err)
		}
		allRows = append(allRows, rows...)
	}

	return allRows, nil
}

// RowCount returns the total number of rows across all SSTables.
func (mr *MergeReader) RowCount() int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	total := int64(0)
	for _, reader := range mr.readers {
		total += reader.RowCount()
	}
	return total
}

// RowKeyCount returns the number of unique entities across all SSTables.
// A row key present in more than one SSTable is counted once.
func (mr *MergeReader) RowKeyCount() int {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	rowKeySet := make(map[RowKey]bool)
	for _, reader := range mr.readers {
		ids := reader.GetAllRowKeys()
		for _, id := range ids {
			rowKeySet[id] = true
		}
	}
	return len(rowKeySet)
}

