package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/latticeforge/byteentity/core/codec"
	"github.com/latticeforge/byteentity/core/config"
	"github.com/latticeforge/byteentity/core/entity"
	"github.com/latticeforge/byteentity/core/observability"
	"github.com/latticeforge/byteentity/core/schema"
	"github.com/latticeforge/byteentity/core/storage"
	"github.com/latticeforge/byteentity/core/storage/pebblestore"
)

var (
	configPath = flag.String("config", getEnv("BYTEENTITY_CONFIG", "configs/byteentity.yaml"), "Path to configuration file")
)

// backend is the subset of storage.Engine and pebblestore.Store this
// daemon needs: a place to Put codec.Cells, and Close on shutdown.
type backend interface {
	Put(cell codec.Cell) error
	Close() error
}

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.LoggerConfig{
		MinLevel: parseLogLevel(cfg.Observability.LogLevel),
	})
	logger.Info("Starting byteentity node", observability.Fields{
		"node_id":     cfg.Node.ID,
		"data_dir":    cfg.Node.DataDir,
		"backend":     cfg.Storage.Backend,
		"config_path": *configPath,
	})

	var metrics *observability.MetricsRegistry
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetricsRegistry()
	}

	var tracer *observability.Tracer
	if cfg.Observability.TracingEnabled {
		tracer = observability.NewTracer()
	}

	reg, err := schema.LoadFile(cfg.Schema.Path)
	if err != nil {
		log.Fatalf("Failed to load schema: %v", err)
	}

	dataDir := cfg.Node.DataDir
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	var store backend
	var engine *storage.Engine
	switch cfg.Storage.Backend {
	case "pebble":
		store, err = pebblestore.Open(pebblestore.Config{Path: dataDir + "/pebble"})
		if err != nil {
			log.Fatalf("Failed to open pebble store: %v", err)
		}
	default:
		engineCfg := storage.NewEngineConfigFromConfig(cfg.Storage, dataDir)
		engineCfg.Logger = logger
		engineCfg.Metrics = metrics
		engine, err = storage.Open(engineCfg)
		if err != nil {
			log.Fatalf("Failed to open storage engine: %v", err)
		}
		store = engine
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing storage backend", err)
		}
	}()

	assembler := codec.NewElementAssembler(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ingest(ctx, os.Stdin, assembler, store, logger, metrics, tracer); err != nil && err != io.EOF {
			logger.Error("ingest loop terminated with an error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
		cancel()
		<-done
	case <-done:
	}

	if engine != nil {
		if path, err := engine.Flush(); err != nil {
			logger.Error("final flush failed", err)
		} else if path != "" {
			logger.Info("final flush complete", observability.Fields{"path": path})
		}
	}

	logger.Info("byteentity node stopped")
}

// ingestRecord is the wire shape accepted on stdin: one JSON object per
// line describing either an Entity (Destination == "") or an Edge.
type ingestRecord struct {
	Group       string
	Vertex      string
	Source      string
	Destination string
	Directed    bool
	Properties  map[string]interface{}
}

// parseIngestRecord decodes one JSON line with json.Number enabled so
// integer-typed schema properties (e.g. int64) survive the round trip
// instead of arriving as float64, which the codec's serialisers reject.
func parseIngestRecord(line string) (ingestRecord, error) {
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return ingestRecord{}, err
	}

	rec := ingestRecord{Properties: make(map[string]interface{})}
	rec.Group, _ = raw["group"].(string)
	rec.Vertex, _ = raw["vertex"].(string)
	rec.Source, _ = raw["source"].(string)
	rec.Destination, _ = raw["destination"].(string)
	rec.Directed, _ = raw["directed"].(bool)

	if props, ok := raw["properties"].(map[string]interface{}); ok {
		for k, v := range props {
			rec.Properties[k] = normaliseJSONValue(v)
		}
	}
	return rec, nil
}

// normaliseJSONValue converts a json.Number into an int64 when it holds an
// integer literal, or a float64 otherwise, matching the Go types the
// schema's built-in serialisers expect.
func normaliseJSONValue(v interface{}) interface{} {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := num.Int64(); err == nil {
		return i
	}
	f, _ := num.Float64()
	return f
}

// ingest reads newline-delimited JSON element records from r, encodes each
// into cells via assembler, and writes them to store until ctx is
// cancelled or r is exhausted. When tracer is non-nil, each record is
// wrapped in its own span.
func ingest(ctx context.Context, r io.Reader, assembler *codec.ElementAssembler, store backend, logger *observability.Logger, metrics *observability.MetricsRegistry, tracer *observability.Tracer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := ingestLine(ctx, line, assembler, store, logger, metrics, tracer); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func ingestLine(ctx context.Context, line string, assembler *codec.ElementAssembler, store backend, logger *observability.Logger, metrics *observability.MetricsRegistry, tracer *observability.Tracer) error {
	var span *observability.Span
	if tracer != nil {
		_, span = tracer.StartSpan(ctx, "ingest.record")
		defer span.Finish()
	}
	if metrics != nil {
		metrics.Counter("byteentity_ingest_records_total", nil).Inc()
	}

	rec, err := parseIngestRecord(line)
	if err != nil {
		logger.Warn("skipping malformed ingest record", observability.Fields{"error": err.Error()})
		return nil
	}

	el, err := rec.toElement()
	if err != nil {
		logger.Warn("skipping invalid ingest record", observability.Fields{"error": err.Error()})
		return nil
	}

	cells, err := assembler.Encode(el)
	if err != nil {
		logger.Warn("skipping element that failed to encode", observability.Fields{"error": err.Error()})
		return nil
	}

	for _, cell := range cells {
		if span != nil {
			span.SetCellTags(cell)
		}
		if metrics != nil {
			metrics.CellCounter("byteentity_ingest_cells_total", cell).Inc()
		}
		if err := store.Put(cell); err != nil {
			if metrics != nil {
				metrics.CellErrorCounter("byteentity_ingest_cell_errors_total", cell, err).Inc()
			}
			return fmt.Errorf("put cell: %w", err)
		}
	}
	return nil
}

func (rec ingestRecord) toElement() (entity.Element, error) {
	props := entity.NewProperties()
	for k, v := range rec.Properties {
		props.Set(k, v)
	}
	group := entity.Group(rec.Group)

	if rec.Destination != "" {
		if rec.Source == "" {
			return nil, fmt.Errorf("edge record missing source")
		}
		return entity.NewEdge(group, rec.Source, rec.Destination, rec.Directed, props), nil
	}
	if rec.Vertex == "" {
		return nil, fmt.Errorf("entity record missing vertex")
	}
	return entity.NewEntity(group, rec.Vertex, props), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return observability.LogLevelDebug
	case "INFO":
		return observability.LogLevelInfo
	case "WARN":
		return observability.LogLevelWarn
	case "ERROR":
		return observability.LogLevelError
	default:
		return observability.LogLevelInfo
	}
}
