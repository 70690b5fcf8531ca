// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/eventflow/lib/decompress"
)

// Environment selects which override section applies.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the full eventflow configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Reader     ReaderConfig     `yaml:"reader"`
	Receiver   ReceiverConfig   `yaml:"receiver"`
	Writer     WriterConfig     `yaml:"writer"`
	Collateral CollateralConfig `yaml:"collateral"`

	// Environment-specific overrides.
	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides replaces base values for one environment. Within a present
// section, non-zero fields override; boolean fields override only when
// the key is set.
type Overrides struct {
	Reader     *ReaderOverrides  `yaml:"reader,omitempty"`
	Receiver   *ReceiverConfig   `yaml:"receiver,omitempty"`
	Writer     *WriterConfig     `yaml:"writer,omitempty"`
	Collateral *CollateralConfig `yaml:"collateral,omitempty"`
}

// ReaderOverrides is the reader section of an environment override.
// AutoConstruct is a pointer so an absent key leaves the base value.
type ReaderOverrides struct {
	Sources        []string `yaml:"sources"`
	MaxEvents      int      `yaml:"max_events"`
	PrefixWidth    int      `yaml:"prefix_width"`
	DedupCacheSize int      `yaml:"dedup_cache_size"`
	AutoConstruct  *bool    `yaml:"auto_construct"`
}

// ReaderConfig configures bucket reading.
type ReaderConfig struct {
	// Sources is the ordered source list: file paths, or "@net" for
	// one inbound connection on the receiver address.
	Sources []string `yaml:"sources"`

	// MaxEvents caps the events read. Zero means no cap.
	MaxEvents int `yaml:"max_events"`

	// PrefixWidth is the frame length width in bytes, 4 or 8. Writers
	// use the same value.
	PrefixWidth int `yaml:"prefix_width"`

	// DedupCacheSize is the number of decoded buckets kept by content
	// hash. Zero disables the cache.
	DedupCacheSize int `yaml:"dedup_cache_size"`

	// AutoConstruct builds decompressors on first use. When false,
	// every decompressor is constructed at startup.
	AutoConstruct bool `yaml:"auto_construct"`
}

// ReceiverConfig configures the network receiver.
type ReceiverConfig struct {
	Address       string        `yaml:"address"`
	InitialBuffer int           `yaml:"initial_buffer"`
	MaxSize       int           `yaml:"max_size"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

// WriterConfig configures bucket packing.
type WriterConfig struct {
	// Algorithm is a compression name: none, lz4, zstd, gzip, s2,
	// brotli.
	Algorithm string `yaml:"algorithm"`

	// EventsPerBucket is the batch size when packing.
	EventsPerBucket int `yaml:"events_per_bucket"`
}

// CollateralConfig configures the simulated collateral resource used
// by the run command.
type CollateralConfig struct {
	Latency      time.Duration `yaml:"latency"`
	ResultBuffer int           `yaml:"result_buffer"`
}

// Default returns a Config with development defaults.
func Default() *Config {
	return &Config{
		Environment: Development,
		Reader: ReaderConfig{
			PrefixWidth:    4,
			DedupCacheSize: 64,
			AutoConstruct:  true,
		},
		Receiver: ReceiverConfig{
			Address:       "127.0.0.1:7400",
			InitialBuffer: 64 << 10,
		},
		Writer: WriterConfig{
			Algorithm:       "zstd",
			EventsPerBucket: 1000,
		},
		Collateral: CollateralConfig{
			Latency:      10 * time.Millisecond,
			ResultBuffer: 16,
		},
	}
}

// Load reads the file named by EVENTFLOW_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv("EVENTFLOW_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("EVENTFLOW_CONFIG environment variable not set; " +
			"set it to the path of your eventflow.yaml, or use --config")
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults, applies the matching
// environment section, and expands variables. It does not validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data, os.Getenv)
}

// Parse decodes YAML over the defaults, applies overrides, and expands
// variables with environ.
func Parse(data []byte, environ func(string) string) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables(environ)
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			disabled := false
			overrides = &Overrides{Reader: &ReaderOverrides{AutoConstruct: &disabled}}
		}
	}
	if overrides == nil {
		return
	}

	if reader := overrides.Reader; reader != nil {
		if len(reader.Sources) > 0 {
			c.Reader.Sources = reader.Sources
		}
		overrideInt(&c.Reader.MaxEvents, reader.MaxEvents)
		overrideInt(&c.Reader.PrefixWidth, reader.PrefixWidth)
		overrideInt(&c.Reader.DedupCacheSize, reader.DedupCacheSize)
		if reader.AutoConstruct != nil {
			c.Reader.AutoConstruct = *reader.AutoConstruct
		}
	}
	if receiver := overrides.Receiver; receiver != nil {
		if receiver.Address != "" {
			c.Receiver.Address = receiver.Address
		}
		overrideInt(&c.Receiver.InitialBuffer, receiver.InitialBuffer)
		overrideInt(&c.Receiver.MaxSize, receiver.MaxSize)
		if receiver.IdleTimeout != 0 {
			c.Receiver.IdleTimeout = receiver.IdleTimeout
		}
	}
	if writer := overrides.Writer; writer != nil {
		if writer.Algorithm != "" {
			c.Writer.Algorithm = writer.Algorithm
		}
		overrideInt(&c.Writer.EventsPerBucket, writer.EventsPerBucket)
	}
	if collateral := overrides.Collateral; collateral != nil {
		if collateral.Latency != 0 {
			c.Collateral.Latency = collateral.Latency
		}
		overrideInt(&c.Collateral.ResultBuffer, collateral.ResultBuffer)
	}
}

func overrideInt(target *int, value int) {
	if value != 0 {
		*target = value
	}
}

// variablePattern matches ${NAME} and ${NAME:-default}.
var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

func (c *Config) expandVariables(environ func(string) string) {
	for i, source := range c.Reader.Sources {
		c.Reader.Sources[i] = expand(source, environ)
	}
	c.Receiver.Address = expand(c.Receiver.Address, environ)
}

// expand replaces variable references with environ values, falling
// back to the inline default, then to the empty string.
func expand(input string, environ func(string) string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := variablePattern.FindStringSubmatch(match)
		if value := environ(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every unusable value at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.Reader.PrefixWidth != 4 && c.Reader.PrefixWidth != 8 {
		errs = append(errs, fmt.Errorf("reader.prefix_width must be 4 or 8, got %d", c.Reader.PrefixWidth))
	}
	if c.Reader.MaxEvents < 0 {
		errs = append(errs, fmt.Errorf("reader.max_events must not be negative"))
	}
	if c.Reader.DedupCacheSize < 0 {
		errs = append(errs, fmt.Errorf("reader.dedup_cache_size must not be negative"))
	}
	if c.Receiver.Address == "" {
		errs = append(errs, fmt.Errorf("receiver.address is required"))
	}
	if c.Receiver.InitialBuffer < 0 || c.Receiver.MaxSize < 0 || c.Receiver.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("receiver sizes and timeouts must not be negative"))
	}
	if _, err := decompress.ParseCode(c.Writer.Algorithm); err != nil {
		errs = append(errs, fmt.Errorf("writer.algorithm: %w", err))
	}
	if c.Writer.EventsPerBucket <= 0 {
		errs = append(errs, fmt.Errorf("writer.events_per_bucket must be positive, got %d", c.Writer.EventsPerBucket))
	}
	if c.Collateral.Latency < 0 {
		errs = append(errs, fmt.Errorf("collateral.latency must not be negative"))
	}
	if c.Collateral.ResultBuffer < 0 {
		errs = append(errs, fmt.Errorf("collateral.result_buffer must not be negative"))
	}

	return errors.Join(errs...)
}
