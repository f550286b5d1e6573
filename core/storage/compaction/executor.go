package compaction

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/latticeforge/byteentity/core/storage/sstable"
)

// Executor executes SSTable compaction by merging multiple SSTables.
type Executor struct {
	sstableDir    string
	sstablePrefix string
	nextSeq       uint64
	seqMu         sync.Mutex
}

// ExecutorConfig holds configuration for the compaction executor.
type ExecutorConfig struct {
	SSTableDir    string // Directory containing SSTable files
	SSTablePrefix string // Prefix for SSTable files (default: "sstable")
}

// DefaultExecutorConfig returns a default executor configuration.
func DefaultExecutorConfig(sstableDir string) ExecutorConfig {
	return ExecutorConfig{
		SSTableDir:    sstableDir,
		SSTablePrefix: "sstable",
	}
}

// NewExecutor creates a new compaction executor.
func NewExecutor(config ExecutorConfig) (*Executor, error) {
	// Find the highest sequence number
	nextSeq, err := findNextSequence(config.SSTableDir, config.SSTablePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to find next sequence: %w", err)
	}

	return &Executor{
		sstableDir:    config.SSTableDir,
		sstablePrefix: config.SSTablePrefix,
		nextSeq:       nextSeq,
	}, nil
}

// findNextSequence finds the next available sequence number for SSTable files.
func findNextSequence(dir, prefix string) (uint64, error) {
	pattern := filepath.Join(dir, prefix+"-*.sst")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, err
	}

	maxSeq := uint64(0)
	for _, match := range matches {
		var seq uint64
		_, err := fmt.Sscanf(filepath.Base(match), prefix+"-%d.sst", &seq)
		if err != nil {
			continue
		}
		if seq >= maxSeq {
			maxSeq = seq + 1
		}
	}

	return maxSeq, nil
}

// Compact merges multiple SSTables into a single new SSTable.
// The merge process:
// 1. Streams rows from all input SSTables
// 2. Deduplicates by row key and timestamp (keeps newest)
// 3. Writes merged rows to a new SSTable
// 4. Atomically swaps the old SSTables with the new one
func (e *Executor) Compact(inputPaths []string) (string, error) {
	if len(inputPaths) == 0 {
		return "", fmt.Errorf("no input SSTables provided")
	}

	// Find the highest sequence number from existing files and inputs to avoid collisions.
	inputSet := make(map[string]bool)
	e.seqMu.Lock()
	maxSeq := e.nextSeq
	for _, path := range inputPaths {
		inputSet[path] = true
		var seq uint64
		if _, err := fmt.Sscanf(filepath.Base(path), e.sstablePrefix+"-%d.sst", &seq); err == nil && seq >= maxSeq {
			maxSeq = seq + 1
		}
	}
	pattern := filepath.Join(e.sstableDir, e.sstablePrefix+"-*.sst")
	matches, err := filepath.Glob(pattern)
	if err == nil {
		for _, match := range matches {
			// Skip input files
			if inputSet[match] {
				continue
			}
			var seq uint64
			_, err := fmt.Sscanf(filepath.Base(match), e.sstablePrefix+"-%d.sst", &seq)
			if err == nil && seq >= maxSeq {
				maxSeq = seq + 1
			}
		}
	}
	// Use maxSeq for output, and update nextSeq if needed
	if maxSeq >= e.nextSeq {
		e.nextSeq = maxSeq + 1
	}
	outputPath := filepath.Join(e.sstableDir, fmt.Sprintf("%s-%d.sst", e.sstablePrefix, maxSeq))
	tempPath := outputPath + ".tmp"
	e.seqMu.Unlock()

	// Load all input readers
	readers := make([]*sstable.Reader, 0, len(inputPaths))
	for _, path := range inputPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read SSTable %s: %w", path, err)
		}

		reader, err := sstable.NewReader(data)
		if err != nil {
			return "", fmt.Errorf("failed to create reader for %s: %w", path, err)
		}

		readers = append(readers, reader)
	}

	// Create output file with temp name
	outputFile, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	var finalErr error
	defer func() {
		outputFile.Close()
		// Clean up temp file if compaction fails
		if finalErr != nil {
			os.Remove(tempPath)
		}
	}()

	// Create writer
	writer := sstable.NewWriter(outputFile)

	// Write header
	if err := writer.WriteHeader(); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	// Stream merge and deduplicate rows
	if err := e.streamMergeAndDeduplicate(readers, writer); err != nil {
		finalErr = fmt.Errorf("failed to merge rows: %w", err)
		return "", finalErr
	}

	// Write index and footer
	if err := writer.Close(); err != nil {
		finalErr = fmt.Errorf("failed to close writer: %w", err)
		return "", finalErr
	}

	// Close file before renaming
	if err := outputFile.Close(); err != nil {
		finalErr = fmt.Errorf("failed to close output file: %w", err)
		return "", finalErr
	}

	// Sync directory to ensure file is written
	dir, _ := filepath.Split(tempPath)
	dirFile, err := os.Open(dir)
	if err == nil {
		dirFile.Sync()
		dirFile.Close()
	}

	// Atomically swap: rename temp to final, then delete old files
	// This ensures the new file is visible before old files are removed
	if err := os.Rename(tempPath, outputPath); err != nil {
		return "", fmt.Errorf("failed to rename temp to final: %w", err)
	}

	// Delete old files after successful rename
	for _, path := range inputPaths {
		if err := os.Remove(path); err != nil {
			// Log error but continue - we can clean up later
			_ = err
		}
	}

	return outputPath, nil
}

// streamMergeAndDeduplicate performs a stream merge of rows from multiple readers.
// It processes rows in sorted order (by row key) and deduplicates on the fly.
// This is more memory-efficient than loading all rows into memory.
func (e *Executor) streamMergeAndDeduplicate(readers []*sstable.Reader, writer *sstable.Writer) error {
	// Collect all row keys from all readers
	allRowKeys := make(map[sstable.RowKey]bool)
	for _, reader := range readers {
		rowKeys := reader.GetAllRowKeys()
		for _, id := range rowKeys {
			allRowKeys[id] = true
		}
	}

	// Convert to sorted slice
	sortedRowKeys := make([]sstable.RowKey, 0, len(allRowKeys))
	for id := range allRowKeys {
		sortedRowKeys = append(sortedRowKeys, id)
	}
	sort.Slice(sortedRowKeys, func(i, j int) bool {
		return sortedRowKeys[i] < sortedRowKeys[j]
	})

	// For each row key, get rows from all readers and deduplicate
	for _, rowKey := range sortedRowKeys {
		// Collect all rows for this row key from all readers
		allRows := make([]*sstable.Row, 0)

		// Read from all readers (newer readers first for LSM-tree semantics)
		for i := len(readers) - 1; i >= 0; i-- {
			rows, err := readers[i].Get(rowKey)
			if err != nil {
				return fmt.Errorf("failed to get rows for row key %s: %w", rowKey, err)
			}
			allRows = append(allRows, rows...)
		}

		if len(allRows) == 0 {
			continue
		}

		// Deduplicate: keep only the newest row
		bestRow := e.selectBestRow(allRows)

		// Write the best row
		if err := writer.WriteRow(bestRow); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

// selectBestRow selects the best row from a list of rows for the same row
// key, preferring the newer cell timestamp. Ties (two writes landed in the
// same millisecond) fall back to preferring the larger encoded body, since a
// cell with more or longer property values is more likely the later write in
// append-and-extend update patterns.
func (e *Executor) selectBestRow(rows []*sstable.Row) *sstable.Row {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) == 1 {
		return rows[0]
	}

	bestRow := rows[0]
	for i := 1; i < len(rows); i++ {
		if rows[i].Timestamp > bestRow.Timestamp {
			bestRow = rows[i]
		} else if rows[i].Timestamp == bestRow.Timestamp && len(rows[i].Data) > len(bestRow.Data) {
			bestRow = rows[i]
		}
	}

	return bestRow
}

// GetOutputPath returns the next output path for a compacted SSTable.
func (e *Executor) GetOutputPath() string {
	e.seqMu.Lock()
	defer e.seqMu.Unlock()

	path := filepath.Join(e.sstableDir, fmt.Sprintf("%s-%d.sst", e.sstablePrefix, e.nextSeq))
	e.nextSeq++
	return path
}

