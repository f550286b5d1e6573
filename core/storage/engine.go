package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/latticeforge/byteentity/core/codec"
	"github.com/latticeforge/byteentity/core/config"
	"github.com/latticeforge/byteentity/core/observability"
	"github.com/latticeforge/byteentity/core/storage/compaction"
	"github.com/latticeforge/byteentity/core/storage/memtable"
	"github.com/latticeforge/byteentity/core/storage/sstable"
	"github.com/latticeforge/byteentity/core/storage/wal"
)

// EngineConfig holds configuration for the storage engine.
// This wires together WAL, memtable, and compaction configuration.
type EngineConfig struct {
	// WAL configuration
	WALDir      string
	WALMaxFileMB int
	WALFsync    bool

	// Memtable configuration
	MemtableMaxMB int64

	// SSTable directory
	SSTableDir string

	// Compaction configuration
	CompactionMaxConcurrent int

	// Logger and Metrics are optional; when nil, the engine runs with no
	// observability overhead.
	Logger  *observability.Logger
	Metrics *observability.MetricsRegistry
}

// NewEngineConfigFromConfig creates an EngineConfig from the global config.
func NewEngineConfigFromConfig(cfg config.StorageConfig, dataDir string) EngineConfig {
	return EngineConfig{
		WALDir:            dataDir + "/wal",
		WALMaxFileMB:      cfg.WAL.MaxFileMB,
		WALFsync:          cfg.WAL.Fsync,
		MemtableMaxMB:     cfg.Memtable.MaxMB,
		SSTableDir:        dataDir + "/sstables",
		CompactionMaxConcurrent: cfg.Compaction.MaxConcurrent,
	}
}

// WALConfig creates a WAL config from engine config.
func (e EngineConfig) WALConfig() wal.Config {
	return wal.Config{
		Dir:         e.WALDir,
		MaxFileSize: int64(e.WALMaxFileMB) * 1024 * 1024,
		FilePrefix:  "wal",
		Fsync:       e.WALFsync,
	}
}

// MemtableConfig creates a memtable config from engine config.
func (e EngineConfig) MemtableConfig() int64 {
	return e.MemtableMaxMB * 1024 * 1024 // Convert MB to bytes
}

// CompactionConfig creates a compaction config from engine config.
func (e EngineConfig) CompactionConfig() compaction.Config {
	return compaction.Config{
		PlannerConfig: compaction.PlannerConfig{
			SSTableDir:    e.SSTableDir,
			SSTablePrefix: "sstable",
			MinSize:       1 * 1024 * 1024, // 1MB
			MaxAge:        1 * time.Hour,
		},
		ExecutorConfig: compaction.ExecutorConfig{
			SSTableDir: e.SSTableDir,
		},
		CheckInterval: 30 * time.Second,
		MaxConcurrent: e.CompactionMaxConcurrent,
		MaxIOPS:       1000,
		MaxBandwidth:  100 * 1024 * 1024, // 100MB/s
		Logger:        e.Logger,
		Metrics:       e.Metrics,
	}
}

// Engine is the write path for a single node: cells produced by the
// codec's ElementAssembler are appended to the WAL for durability, then
// buffered in a Memtable for immediate visibility, and flushed to an
// SSTable once the Memtable crosses its size threshold.
type Engine struct {
	cfg      EngineConfig
	wal      *wal.WAL
	memtable *memtable.Memtable
	executor *compaction.Executor
	compactionMgr *compaction.Manager

	logger  *observability.Logger
	metrics *observability.MetricsRegistry

	sstMu   sync.RWMutex
	sstReaders []*sstable.Reader // newest SSTable first
}

// logf is a nil-safe wrapper so Engine works with no logger configured.
func (e *Engine) logf(level func(msg string, fields ...observability.Fields), msg string, fields observability.Fields) {
	if e.logger == nil {
		return
	}
	level(msg, fields)
}

// logErr is a nil-safe wrapper around Logger.Error.
func (e *Engine) logErr(msg string, err error, fields observability.Fields) {
	if e.logger == nil {
		return
	}
	e.logger.Error(msg, err, fields)
}

func (e *Engine) putsCounter() *observability.Counter {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.Counter("byteentity_puts_total", nil)
}

func (e *Engine) flushesCounter() *observability.Counter {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.Counter("byteentity_flushes_total", nil)
}

func (e *Engine) memtableBytesGauge() *observability.Gauge {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.Gauge("byteentity_memtable_bytes", nil)
}

// putErrorsCounter returns a per-group, per-error-kind counter for a failed
// Put, so a dashboard can break write failures down by the codec error that
// caused them without grepping logs.
func (e *Engine) putErrorsCounter(cell codec.Cell, err error) *observability.Counter {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.CellErrorCounter("byteentity_put_errors_total", cell, err)
}

// Open starts (or recovers) an Engine from the given configuration.
// Recovery replays the WAL into the memtable so writes acknowledged
// before a crash are not lost.
func Open(cfg EngineConfig) (*Engine, error) {
	w, err := wal.New(cfg.WALConfig())
	if err != nil {
		return nil, fmt.Errorf("storage: open WAL: %w", err)
	}

	mt := memtable.New(cfg.MemtableConfig())

	var replayedCount int
	if err := w.Replay(func(cell codec.Cell) error {
		mt.Put(cell)
		replayedCount++
		return nil
	}); err != nil {
		return nil, fmt.Errorf("storage: replay WAL: %w", err)
	}
	if cfg.Logger != nil && replayedCount > 0 {
		cfg.Logger.Info("recovered WAL entries", observability.Fields{"count": replayedCount})
	}

	if err := os.MkdirAll(cfg.SSTableDir, 0755); err != nil {
		return nil, fmt.Errorf("storage: create SSTable dir: %w", err)
	}
	executor, err := compaction.NewExecutor(compaction.DefaultExecutorConfig(cfg.SSTableDir))
	if err != nil {
		return nil, fmt.Errorf("storage: init compaction executor: %w", err)
	}

	compactionMgr, err := compaction.NewManagerWithExecutor(cfg.CompactionConfig(), executor)
	if err != nil {
		return nil, fmt.Errorf("storage: init compaction manager: %w", err)
	}
	if err := compactionMgr.Start(); err != nil {
		return nil, fmt.Errorf("storage: start compaction manager: %w", err)
	}

	e := &Engine{
		cfg: cfg, wal: w, memtable: mt, executor: executor, compactionMgr: compactionMgr,
		logger: cfg.Logger, metrics: cfg.Metrics,
	}
	if err := e.loadExistingSSTables(); err != nil {
		return nil, fmt.Errorf("storage: load SSTables: %w", err)
	}
	return e, nil
}

// loadExistingSSTables opens every SSTable file already on disk so reopening
// an Engine after a Flush (or a prior process's clean shutdown) does not lose
// access to previously flushed data.
func (e *Engine) loadExistingSSTables() error {
	matches, err := filepath.Glob(filepath.Join(e.cfg.SSTableDir, "sstable-*.sst"))
	if err != nil {
		return err
	}
	// Order by sequence number: as strings, sstable-10.sst sorts before
	// sstable-2.sst.
	seq := func(path string) uint64 {
		var n uint64
		fmt.Sscanf(filepath.Base(path), "sstable-%d.sst", &n)
		return n
	}
	sort.Slice(matches, func(i, j int) bool { return seq(matches[i]) < seq(matches[j]) })

	readers := make([]*sstable.Reader, 0, len(matches))
	for _, path := range matches {
		r, err := openSSTableReader(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		readers = append(readers, r)
	}
	// Newest last on disk (sequence numbers increase); keep newest-first.
	e.sstMu.Lock()
	for i := len(readers) - 1; i >= 0; i-- {
		e.sstReaders = append(e.sstReaders, readers[i])
	}
	e.sstMu.Unlock()
	return nil
}

func openSSTableReader(path string) (*sstable.Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return sstable.NewReader(data)
}

// Put durably appends cell to the WAL, then makes it visible in the
// memtable. It triggers an SSTable flush if the memtable has grown past
// its configured threshold.
func (e *Engine) Put(cell codec.Cell) error {
	if err := e.wal.Append(cell); err != nil {
		wrapped := fmt.Errorf("storage: append WAL entry: %w", err)
		e.logErr("failed to append cell to WAL", wrapped, observability.Fields{"group": string(cell.Family)})
		if c := e.putErrorsCounter(cell, wrapped); c != nil {
			c.Inc()
		}
		return wrapped
	}
	e.memtable.Put(cell)

	if c := e.putsCounter(); c != nil {
		c.Inc()
	}
	if g := e.memtableBytesGauge(); g != nil {
		g.Set(float64(e.memtable.Size()))
	}

	if e.memtable.ShouldFlush() {
		if _, err := e.Flush(); err != nil {
			return fmt.Errorf("storage: flush after write: %w", err)
		}
	}
	return nil
}

// Get returns the cells stored under rowKey in the newest place that holds
// any: the memtable's unflushed copy first, then on-disk SSTables (newest
// first). Cells for rowKey in older SSTables are not merged into the result.
func (e *Engine) Get(rowKey []byte) ([]codec.Cell, error) {
	if cells := e.memtable.Get(memtable.RowKey(rowKey)); len(cells) > 0 {
		return cells, nil
	}

	e.sstMu.RLock()
	defer e.sstMu.RUnlock()
	for _, r := range e.sstReaders {
		cells, err := r.GetCells(rowKey)
		if err != nil {
			return nil, fmt.Errorf("storage: read SSTable: %w", err)
		}
		if len(cells) == 0 {
			continue
		}
		return cells, nil
	}
	return nil, nil
}

// Flush writes the current memtable out as a new SSTable file and resets
// the memtable, returning the path of the SSTable it wrote (or "" if the
// memtable was empty).
func (e *Engine) Flush() (string, error) {
	data := e.memtable.GetAllData()
	if len(data) == 0 {
		return "", nil
	}

	path := e.executor.GetOutputPath()
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("storage: create SSTable file: %w", err)
	}
	defer f.Close()

	writer := sstable.NewWriter(f)
	if err := writer.WriteHeader(); err != nil {
		return "", fmt.Errorf("storage: write SSTable header: %w", err)
	}

	keys := make([]memtable.RowKey, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sortRowKeys(keys)

	for _, k := range keys {
		for _, cell := range data[k] {
			if err := writer.WriteCell(cell); err != nil {
				return "", fmt.Errorf("storage: write row: %w", err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("storage: close SSTable writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: close SSTable file: %w", err)
	}

	reader, err := openSSTableReader(path)
	if err != nil {
		return "", fmt.Errorf("storage: reopen flushed SSTable: %w", err)
	}
	e.sstMu.Lock()
	e.sstReaders = append([]*sstable.Reader{reader}, e.sstReaders...)
	e.sstMu.Unlock()

	e.memtable.Reset()

	if c := e.flushesCounter(); c != nil {
		c.Inc()
	}
	if g := e.memtableBytesGauge(); g != nil {
		g.Set(0)
	}
	e.logf(e.logger.Info, "flushed memtable to SSTable", observability.Fields{
		"path": path,
		"rows": writer.RowCount(),
	})

	return path, nil
}

func sortRowKeys(keys []memtable.RowKey) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

// Close stops the compaction manager and closes the underlying WAL.
func (e *Engine) Close() error {
	if err := e.compactionMgr.Stop(); err != nil {
		return fmt.Errorf("storage: stop compaction manager: %w", err)
	}
	return e.wal.Close()
}

