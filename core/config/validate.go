package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Validate performs strict validation on the configuration.
// Returns an error if any validation fails.
func (c *Config) Validate() error {
	if err := c.validateNode(); err != nil {
		return fmt.Errorf("node config: %w", err)
	}

	if err := c.validateStorage(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.validateSchema(); err != nil {
		return fmt.Errorf("schema config: %w", err)
	}

	if err := c.validateObservability(); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}

	return nil
}

// validateNode validates NodeConfig.
// Validates:
// - node.id not empty
// - ports in valid range (1-65535)
// - ports are different
// - data_dir exists or can be created
func (c *Config) validateNode() error {
	if c.Node.ID == "" {
		return fmt.Errorf("id is required")
	}

	if c.Node.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}

	if c.Node.GRPCPort <= 0 || c.Node.GRPCPort > 65535 {
		return fmt.Errorf("grpc_port must be between 1 and 65535, got %d", c.Node.GRPCPort)
	}

	if c.Node.HTTPPort <= 0 || c.Node.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535, got %d", c.Node.HTTPPort)
	}

	if c.Node.GRPCPort == c.Node.HTTPPort {
		return fmt.Errorf("grpc_port and http_port must be different")
	}

	if c.Node.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	absDataDir, err := filepath.Abs(c.Node.DataDir)
	if err != nil {
		return fmt.Errorf("invalid data_dir path: %w", err)
	}

	if info, err := os.Stat(absDataDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access data_dir: %w", err)
		}
		if err := os.MkdirAll(absDataDir, 0755); err != nil {
			return fmt.Errorf("cannot create data_dir: %w", err)
		}
	} else if !info.IsDir() {
		return fmt.Errorf("data_dir is not a directory: %s", absDataDir)
	}

	return nil
}

// validateStorage validates StorageConfig.
// Validates:
// - WAL + memtable sizes > 0
// - SSTable block size > 0
// - Compaction parameters are sane
func (c *Config) validateStorage() error {
	if c.Storage.Backend != "lsm" && c.Storage.Backend != "pebble" {
		return fmt.Errorf("backend must be 'lsm' or 'pebble', got %q", c.Storage.Backend)
	}

	if c.Storage.WAL.MaxFileMB < 1 {
		return fmt.Errorf("wal.max_file_mb must be at least 1, got %d", c.Storage.WAL.MaxFileMB)
	}

	if c.Storage.WAL.MaxFileMB > 10240 { // 10GB max
		return fmt.Errorf("wal.max_file_mb should not exceed 10240 (10GB), got %d", c.Storage.WAL.MaxFileMB)
	}

	if c.Storage.Memtable.MaxMB < 1 {
		return fmt.Errorf("memtable.max_mb must be at least 1, got %d", c.Storage.Memtable.MaxMB)
	}

	if c.Storage.Memtable.MaxMB > 10240 { // 10GB max
		return fmt.Errorf("memtable.max_mb should not exceed 10240 (10GB), got %d", c.Storage.Memtable.MaxMB)
	}

	if c.Storage.SSTable.BlockSizeKB < 1 {
		return fmt.Errorf("sstable.block_size_kb must be at least 1, got %d", c.Storage.SSTable.BlockSizeKB)
	}

	if c.Storage.SSTable.BlockSizeKB > 1024 { // 1MB max
		return fmt.Errorf("sstable.block_size_kb should not exceed 1024 (1MB), got %d", c.Storage.SSTable.BlockSizeKB)
	}

	if c.Storage.Compaction.MaxConcurrent < 1 {
		return fmt.Errorf("compaction.max_concurrent must be at least 1, got %d", c.Storage.Compaction.MaxConcurrent)
	}

	if c.Storage.Compaction.MaxConcurrent > 10 {
		return fmt.Errorf("compaction.max_concurrent should not exceed 10, got %d", c.Storage.Compaction.MaxConcurrent)
	}

	if c.Storage.Compaction.SizeTierThreshold < 2 {
		return fmt.Errorf("compaction.size_tier_threshold must be at least 2, got %d", c.Storage.Compaction.SizeTierThreshold)
	}

	return nil
}

// validateSchema validates SchemaConfig.
func (c *Config) validateSchema() error {
	if c.Schema.Path == "" {
		return fmt.Errorf("schema.path is required")
	}
	return nil
}

// validateObservability validates ObservabilityConfig.
func (c *Config) validateObservability() error {
	validLogLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}

	if !validLogLevels[c.Observability.LogLevel] {
		return fmt.Errorf("observability.log_level must be DEBUG, INFO, WARN, or ERROR, got '%s'",
			c.Observability.LogLevel)
	}

	return nil
}
