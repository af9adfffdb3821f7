// Package config loads the dupfinder configuration file.
//
// The file is YAML. Missing keys keep their defaults, and command-line flags
// override the loaded values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iobis/dupfinder/cell"
	"github.com/iobis/dupfinder/occurrence"
	"gopkg.in/yaml.v3"
)

// Config is the complete CLI configuration.
type Config struct {
	Input     InputConfig     `yaml:"input"`
	Storage   StorageConfig   `yaml:"storage"`
	Run       RunConfig       `yaml:"run"`
	Shortlist ShortlistConfig `yaml:"shortlist"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InputConfig selects where occurrences are read from.
type InputConfig struct {
	// Path is a local file, or a blob name when Blob is set.
	Path          string             `yaml:"path"`
	Blob          bool               `yaml:"blob"`
	Columns       occurrence.Columns `yaml:"columns"`
	Comma         string             `yaml:"comma"`
	SkipMalformed bool               `yaml:"skip_malformed"`
	// Postgres reads from a table instead of a file when DSN is set.
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig configures the Postgres occurrence source.
type PostgresConfig struct {
	DSN    string `yaml:"dsn"`
	Schema string `yaml:"schema"`
	Table  string `yaml:"table"`
}

// StorageConfig selects the blob store holding runs.
type StorageConfig struct {
	Backend  string `yaml:"backend"` // local, s3 or minio
	Path     string `yaml:"path"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	UseSSL   bool   `yaml:"use_ssl"`
}

// RunConfig holds the similarity settings.
type RunConfig struct {
	Dir         string `yaml:"dir"`
	Precision   int    `yaml:"precision"`
	Metric      string `yaml:"metric"`
	Workers     int    `yaml:"workers"`
	ChunkSize   int    `yaml:"chunk_size"`
	BatchSize   int    `yaml:"batch_size"`
	Compression string `yaml:"compression"`
}

// ShortlistConfig holds the ranking settings.
type ShortlistConfig struct {
	Threshold         float64 `yaml:"threshold"`
	LookupConcurrency int     `yaml:"lookup_concurrency"`
	Limit             int     `yaml:"limit"`
}

// MetadataConfig selects the dataset metadata source.
type MetadataConfig struct {
	Source    string        `yaml:"source"` // none, json, sqlite, dynamo or http
	Path      string        `yaml:"path"`
	Table     string        `yaml:"table"`
	URL       string        `yaml:"url"`
	RateLimit float64       `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Columns: occurrence.DefaultColumns(),
			Postgres: PostgresConfig{
				Table: "occurrence",
			},
		},
		Storage: StorageConfig{
			Backend: "local",
			Path:    ".dupfinder",
			UseSSL:  true,
		},
		Run: RunConfig{
			Dir:         "run",
			Precision:   cell.DefaultPrecision,
			Metric:      "cosine",
			Workers:     6,
			ChunkSize:   64,
			BatchSize:   4096,
			Compression: "zstd",
		},
		Shortlist: ShortlistConfig{
			Threshold:         0.85,
			LookupConcurrency: 4,
		},
		Metadata: MetadataConfig{
			Source:    "none",
			Table:     "dataset",
			URL:       "https://api.obis.org/v3",
			RateLimit: 5,
			Burst:     1,
			Timeout:   30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case "local":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the local backend"))
		}
	case "s3", "minio":
		if c.Storage.Bucket == "" {
			errs = append(errs, fmt.Errorf("storage.bucket is required for the %s backend", c.Storage.Backend))
		}
		if c.Storage.Backend == "minio" && c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("storage.endpoint is required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be local, s3 or minio, got %q", c.Storage.Backend))
	}

	if len([]rune(c.Input.Comma)) > 1 {
		errs = append(errs, fmt.Errorf("input.comma must be a single character, got %q", c.Input.Comma))
	}

	if c.Run.Precision < 1 || c.Run.Precision > cell.MaxPrecision {
		errs = append(errs, fmt.Errorf("run.precision must be between 1 and %d, got %d", cell.MaxPrecision, c.Run.Precision))
	}
	if c.Run.Workers < 1 {
		errs = append(errs, fmt.Errorf("run.workers must be >= 1, got %d", c.Run.Workers))
	}
	if c.Run.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("run.chunk_size must be >= 1, got %d", c.Run.ChunkSize))
	}
	if c.Run.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("run.batch_size must be >= 1, got %d", c.Run.BatchSize))
	}

	if c.Shortlist.Threshold < 0 || c.Shortlist.Threshold > 1 {
		errs = append(errs, fmt.Errorf("shortlist.threshold must be between 0 and 1, got %v", c.Shortlist.Threshold))
	}
	if c.Shortlist.LookupConcurrency < 1 {
		errs = append(errs, fmt.Errorf("shortlist.lookup_concurrency must be >= 1, got %d", c.Shortlist.LookupConcurrency))
	}
	if c.Shortlist.Limit < 0 {
		errs = append(errs, fmt.Errorf("shortlist.limit must be >= 0, got %d", c.Shortlist.Limit))
	}

	switch c.Metadata.Source {
	case "none", "http":
	case "json", "sqlite":
		if c.Metadata.Path == "" {
			errs = append(errs, fmt.Errorf("metadata.path is required for the %s source", c.Metadata.Source))
		}
	case "dynamo":
		if c.Metadata.Table == "" {
			errs = append(errs, errors.New("metadata.table is required for the dynamo source"))
		}
	default:
		errs = append(errs, fmt.Errorf("metadata.source must be none, json, sqlite, dynamo or http, got %q", c.Metadata.Source))
	}
	if c.Metadata.Timeout < 0 {
		errs = append(errs, fmt.Errorf("metadata.timeout must be >= 0, got %s", c.Metadata.Timeout))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}
