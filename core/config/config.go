package config

// Config is the root configuration struct for the byte-entity store.
// It matches the structure of configs/byteentity.yaml exactly.
type Config struct {
	Node          NodeConfig          `yaml:"node"`
	Storage       StorageConfig       `yaml:"storage"`
	Schema        SchemaConfig        `yaml:"schema"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// NodeConfig holds node-specific configuration.
type NodeConfig struct {
	ID            string `yaml:"id"`
	ListenAddress string `yaml:"listen_address"`
	GRPCPort      int    `yaml:"grpc_port"`
	HTTPPort      int    `yaml:"http_port"`
	DataDir       string `yaml:"data_dir"`
}

// StorageConfig holds storage layer configuration.
type StorageConfig struct {
	// Backend selects the persistence engine: "lsm" (default) drives the
	// WAL/memtable/SSTable pipeline in core/storage; "pebble" drives
	// core/storage/pebblestore instead.
	Backend    string           `yaml:"backend"`
	WAL        WALConfig        `yaml:"wal"`
	Memtable   MemtableConfig   `yaml:"memtable"`
	SSTable    SSTableConfig    `yaml:"sstable"`
	Compaction CompactionConfig `yaml:"compaction"`
}

// WALConfig holds WAL-specific configuration.
type WALConfig struct {
	MaxFileMB int  `yaml:"max_file_mb"`
	Fsync     bool `yaml:"fsync"`
}

// MemtableConfig holds memtable configuration.
type MemtableConfig struct {
	MaxMB int64 `yaml:"max_mb"`
}

// SSTableConfig holds SSTable configuration.
type SSTableConfig struct {
	BlockSizeKB int `yaml:"block_size_kb"`
}

// CompactionConfig holds compaction configuration.
type CompactionConfig struct {
	MaxConcurrent     int `yaml:"max_concurrent"`
	SizeTierThreshold int `yaml:"size_tier_threshold"`
}

// SchemaConfig points at the property-type registry the codec consumes.
type SchemaConfig struct {
	// Path is the filesystem path to the schema YAML document loaded by
	// core/schema.LoadFile.
	Path string `yaml:"path"`
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
}

// DefaultConfig returns a default configuration for the byte-entity store.
// Values match the defaults used throughout the codebase.
func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{
			ID:            "node-1",
			ListenAddress: "0.0.0.0",
			GRPCPort:      7000,
			HTTPPort:      7001,
			DataDir:       "/var/lib/byteentity",
		},
		Storage: StorageConfig{
			Backend: "lsm",
			WAL: WALConfig{
				MaxFileMB: 128,
				Fsync:     true,
			},
			Memtable: MemtableConfig{
				MaxMB: 256,
			},
			SSTable: SSTableConfig{
				BlockSizeKB: 64,
			},
			Compaction: CompactionConfig{
				MaxConcurrent:     2,
				SizeTierThreshold: 4,
			},
		},
		Schema: SchemaConfig{
			Path: "schema.yaml",
		},
		Observability: ObservabilityConfig{
			LogLevel:       "INFO",
			MetricsEnabled: true,
			TracingEnabled: false,
		},
	}
}

// Validate and all validation methods are implemented in validate.go
