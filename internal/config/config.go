package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	Storage  StorageConfig
	Index    IndexConfig
	Search   SearchConfig
	Display  DisplayConfig
	Log      LogConfig
	Snapshot SnapshotConfig
}

type StorageConfig struct {
	// DSN is passed to the sqlite driver.
	DSN string
}

type IndexConfig struct {
	Dir             string
	Compression     string
	MinRecall       float64
	RecallSample    int
	BuildRowsPerSec int
}

type SearchConfig struct {
	DefaultNN int
	MaxNN     int
}

type DisplayConfig struct {
	Precision int
}

type LogConfig struct {
	Level string
}

type SnapshotConfig struct {
	Minio MinioConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Secure    bool
}

// Enabled reports whether remote snapshots are configured.
func (m MinioConfig) Enabled() bool { return m.Endpoint != "" && m.Bucket != "" }

func defaults() Config {
	return Config{
		Storage: StorageConfig{DSN: "file:myvector.db?_pragma=busy_timeout(5000)"},
		Index: IndexConfig{
			Dir:          defaultIndexDir(),
			Compression:  "zstd",
			MinRecall:    0,
			RecallSample: 100,
		},
		Search:  SearchConfig{DefaultNN: 10, MaxNN: 1000},
		Display: DisplayConfig{Precision: 7},
		Log:     LogConfig{Level: "info"},
		Snapshot: SnapshotConfig{Minio: MinioConfig{
			Prefix: "myvector",
			Secure: true,
		}},
	}
}

func defaultIndexDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "myvector-indexes"
		}
	}
	return filepath.Join(dir, "myvector", "indexes")
}

// DefaultPath returns $XDG_CONFIG_HOME/myvector/config.json.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "myvector", "config.json")
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() Config { return defaults() }

// Load builds the configuration from defaults, then the JSON file at path
// (DefaultPath when empty; a missing file is not an error), then MYVECTOR_*
// environment variables.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	b, err := newFileBackend(path)
	if err != nil {
		return Config{}, err
	}
	return loadWith(b)
}

func loadWith(b backend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if c.Index.MinRecall < 0 || c.Index.MinRecall > 1 {
		return fmt.Errorf("index.min_recall must be within [0,1], got %v", c.Index.MinRecall)
	}
	switch strings.ToLower(c.Index.Compression) {
	case "", "none", "lz4", "zstd":
	default:
		return fmt.Errorf("index.compression must be none, lz4 or zstd, got %q", c.Index.Compression)
	}
	if c.Search.DefaultNN <= 0 || c.Search.MaxNN < c.Search.DefaultNN {
		return fmt.Errorf("search.default_nn must be positive and not above search.max_nn (%d, %d)", c.Search.DefaultNN, c.Search.MaxNN)
	}
	if c.Index.RecallSample < 0 || c.Index.BuildRowsPerSec < 0 {
		return fmt.Errorf("index.recall_sample and index.build_rows_per_sec must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
