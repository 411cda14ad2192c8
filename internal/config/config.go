// =============================================================================
// SIRENE Loader - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the loader configuration.
// Settings come from four layers, each overriding the previous one:
//
//   1. Built-in defaults (applyDefaults)
//   2. The YAML configuration file (config.yaml by default, optional)
//   3. Environment variables (SPLASHES_*), optionally seeded from a .env file
//   4. Command line flags (applied by the cmd package)
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix shared by every environment variable read here.
const EnvPrefix = "SPLASHES_"

// Deletion policies for rows classified as deletions (VMAJ = E).
const (
	// DeletionsCount only increments the deletions counter and leaves the
	// stored document untouched.
	DeletionsCount = "count"

	// DeletionsDelete removes the document from the index.
	DeletionsDelete = "delete"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the global application configuration.
type Config struct {
	// Elasticsearch holds the document store connection settings.
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`

	// Logging controls verbosity and output format.
	Logging LoggingConfig `yaml:"logging"`

	// Loader holds the defaults for the load and update commands.
	Loader LoaderConfig `yaml:"loader"`
}

// ElasticsearchConfig holds the document store settings.
type ElasticsearchConfig struct {
	// URL is the Elasticsearch endpoint.
	// Default: "http://localhost:9200"
	URL string `yaml:"url"`

	// Index is the name of the index holding company documents.
	// Default: "sirene"
	Index string `yaml:"index"`

	// MaxRetries is the number of retries on 429/502/503/504 responses.
	// Default: 5
	MaxRetries int `yaml:"max_retries"`

	// Bulk switches persistence to the bulk indexer.
	// Writes become asynchronous and are flushed by size or interval.
	Bulk bool `yaml:"bulk"`

	// FlushBytes is the bulk indexer flush threshold in bytes.
	// Default: 5000000
	FlushBytes int `yaml:"flush_bytes"`

	// FlushInterval is the periodic bulk flush interval.
	// Default: 30s
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	// Default: "warn" (progress and summaries need --verbose)
	Level string `yaml:"level"`

	// Format is the log format: text or json.
	// Default: "text"
	Format string `yaml:"format"`

	// Verbose lowers the level to info when it is set higher.
	Verbose bool `yaml:"verbose"`
}

// LoaderConfig holds the processing defaults.
type LoaderConfig struct {
	// Workers is the number of concurrent persist workers.
	// Default: 1 (strictly sequential)
	Workers int `yaml:"workers"`

	// Progress logs a line every N rows. 0 disables progress lines.
	Progress int `yaml:"progress"`

	// Lines caps the number of rows read per file. 0 means no cap.
	Lines int `yaml:"lines"`

	// Deletions selects the deletion policy: "count" or "delete".
	// Default: "count"
	Deletions string `yaml:"deletions"`
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// Load reads the configuration file at path, applies environment overrides
// and defaults, then validates the result.
//
// A missing file is not an error when optional is true: the loader runs fine
// on defaults and environment variables alone.
func Load(path string, optional bool) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case optional && errors.Is(err, fs.ErrNotExist):
			// Defaults only.
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration holding only the built-in defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyEnv overrides configuration values from SPLASHES_* variables.
// lookup is os.LookupEnv outside of tests.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "ELASTICSEARCH"); ok && v != "" {
		cfg.Elasticsearch.URL = v
	}
	if v, ok := lookup(EnvPrefix + "INDEX"); ok && v != "" {
		cfg.Elasticsearch.Index = v
	}
	if v, ok := lookup(EnvPrefix + "VERBOSE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid value for %sVERBOSE=%q: %w", EnvPrefix, v, err)
		}
		cfg.Logging.Verbose = b
	}
	if v, ok := lookup(EnvPrefix + "LOG_FORMAT"); ok && v != "" {
		cfg.Logging.Format = v
	}
	if v, ok := lookup(EnvPrefix + "WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid value for %sWORKERS=%q: %w", EnvPrefix, v, err)
		}
		cfg.Loader.Workers = n
	}
	return nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Elasticsearch.URL == "" {
		cfg.Elasticsearch.URL = "http://localhost:9200"
	}
	if cfg.Elasticsearch.Index == "" {
		cfg.Elasticsearch.Index = "sirene"
	}
	if cfg.Elasticsearch.MaxRetries == 0 {
		cfg.Elasticsearch.MaxRetries = 5
	}
	if cfg.Elasticsearch.FlushBytes == 0 {
		cfg.Elasticsearch.FlushBytes = 5e+6
	}
	if cfg.Elasticsearch.FlushInterval == 0 {
		cfg.Elasticsearch.FlushInterval = 30 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Loader.Workers == 0 {
		cfg.Loader.Workers = 1
	}
	if cfg.Loader.Deletions == "" {
		cfg.Loader.Deletions = DeletionsCount
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for values the loader cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Elasticsearch.URL) == "" {
		return errors.New("elasticsearch.url is required")
	}
	if strings.TrimSpace(c.Elasticsearch.Index) == "" {
		return errors.New("elasticsearch.index is required")
	}
	if c.Elasticsearch.MaxRetries < 0 {
		return fmt.Errorf("elasticsearch.max_retries must be >= 0, got %d", c.Elasticsearch.MaxRetries)
	}
	if c.Loader.Workers < 1 {
		return fmt.Errorf("loader.workers must be >= 1, got %d", c.Loader.Workers)
	}
	if c.Loader.Progress < 0 || c.Loader.Lines < 0 {
		return errors.New("loader.progress and loader.lines must be >= 0")
	}
	switch c.Loader.Deletions {
	case DeletionsCount, DeletionsDelete:
	default:
		return fmt.Errorf("loader.deletions must be %q or %q, got %q", DeletionsCount, DeletionsDelete, c.Loader.Deletions)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// EffectiveLevel returns the log level after applying the verbose switch.
func (c *Config) EffectiveLevel() string {
	if !c.Logging.Verbose {
		return c.Logging.Level
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return "debug"
	default:
		return "info"
	}
}

// Settings returns the effective configuration as ordered key/value pairs,
// as printed by the info command.
func (c *Config) Settings() [][2]string {
	return [][2]string{
		{"elasticsearch", c.Elasticsearch.URL},
		{"index", c.Elasticsearch.Index},
		{"max_retries", strconv.Itoa(c.Elasticsearch.MaxRetries)},
		{"bulk", strconv.FormatBool(c.Elasticsearch.Bulk)},
		{"verbose", strconv.FormatBool(c.Logging.Verbose)},
		{"log_level", c.EffectiveLevel()},
		{"log_format", c.Logging.Format},
		{"workers", strconv.Itoa(c.Loader.Workers)},
		{"progress", strconv.Itoa(c.Loader.Progress)},
		{"lines", strconv.Itoa(c.Loader.Lines)},
		{"deletions", c.Loader.Deletions},
	}
}
