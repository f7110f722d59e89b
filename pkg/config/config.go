// Package config holds the zfits configuration.
//
// The configuration is organized into sections:
//   - Logging: level and encoding of the zap logger
//   - Reader: default table and merge sequence-key fields
//   - Writer: row compression of written containers
//   - Trigger: optional patch-permutation layout file
//   - Observability: metrics endpoint and tracing
//
// Example usage:
//
//	cfg, err := config.Load("zfits.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	comp, err := cfg.Writer.CompressionConfig()
package config

import (
	"github.com/ajitpratap0/zfits/pkg/compression"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/logger"
	"github.com/ajitpratap0/zfits/pkg/trigger"
)

// Config is the root configuration.
type Config struct {
	Logging       logger.Config       `mapstructure:"logging" yaml:"logging"`
	Reader        ReaderConfig        `mapstructure:"reader" yaml:"reader"`
	Writer        WriterConfig        `mapstructure:"writer" yaml:"writer"`
	Trigger       TriggerConfig       `mapstructure:"trigger" yaml:"trigger"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ReaderConfig controls how tables are read and merged.
type ReaderConfig struct {
	// Table is the extension read when none is given
	Table string `mapstructure:"table" yaml:"table"`
	// KeyFields are tried in order to find a row's merge sequence key
	KeyFields []string `mapstructure:"key_fields" yaml:"key_fields"`
}

// WriterConfig controls written containers.
type WriterConfig struct {
	// Compression is the row compression algorithm (none, gzip, snappy, lz4, zstd, s2)
	Compression string `mapstructure:"compression" yaml:"compression"`
	// Level is fastest, default, better or best
	Level string `mapstructure:"level" yaml:"level"`
}

// TriggerConfig selects the trigger patch layout.
type TriggerConfig struct {
	// Layout is a YAML file with output/input permutations; empty uses the built-in layout
	Layout string `mapstructure:"layout" yaml:"layout"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// EnableMetrics serves Prometheus metrics on MetricsAddr
	EnableMetrics bool   `mapstructure:"enable_metrics" yaml:"enable_metrics"`
	MetricsAddr   string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	// EnableTracing exports spans to stdout
	EnableTracing     bool    `mapstructure:"enable_tracing" yaml:"enable_tracing"`
	ServiceName       string  `mapstructure:"service_name" yaml:"service_name"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Logging: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
		Reader: ReaderConfig{
			Table:     "Events",
			KeyFields: []string{"event_id", "eventNumber"},
		},
		Writer: WriterConfig{
			Compression: string(compression.Zstd),
			Level:       compression.Default.String(),
		},
		Observability: ObservabilityConfig{
			MetricsAddr:       ":9090",
			ServiceName:       "zfits",
			TracingSampleRate: 1.0,
		},
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Reader.Table == "" {
		return errors.New(errors.ErrorTypeConfig, "reader.table is required")
	}
	if len(c.Reader.KeyFields) == 0 {
		return errors.New(errors.ErrorTypeConfig, "reader.key_fields must name at least one field")
	}
	if _, err := c.Writer.CompressionConfig(); err != nil {
		return err
	}
	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "observability.tracing_sample_rate %v is outside [0, 1]", r)
	}
	if c.Observability.EnableMetrics && c.Observability.MetricsAddr == "" {
		return errors.New(errors.ErrorTypeConfig, "observability.metrics_addr is required when metrics are enabled")
	}
	return nil
}

// CompressionConfig parses the writer settings.
func (w WriterConfig) CompressionConfig() (*compression.Config, error) {
	alg, err := compression.ParseAlgorithm(w.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid writer.compression")
	}
	level, err := compression.ParseLevel(w.Level)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid writer.level")
	}
	return &compression.Config{Algorithm: alg, Level: level}, nil
}

// Transform builds the trigger transform, loading the layout file if one
// is configured.
func (t TriggerConfig) Transform() (*trigger.Transform, error) {
	if t.Layout == "" {
		return trigger.Default(), nil
	}
	l, err := trigger.LoadLayout(t.Layout)
	if err != nil {
		return nil, err
	}
	return trigger.New(l)
}
