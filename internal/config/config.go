package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Search backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config represents the smartsearch configuration.
type Config struct {
	Search  SearchConfig  `yaml:"search"`
	Dataset DatasetConfig `yaml:"dataset"`
	Log     LogConfig     `yaml:"log"`
}

// SearchConfig holds widget timing and backend settings.
type SearchConfig struct {
	DebounceMs        int    `yaml:"debounce_ms"`         // Quiet period before filtering
	LatencyMs         int    `yaml:"latency_ms"`          // Simulated filter latency (0 = none)
	Backend           string `yaml:"backend"`             // memory or sqlite
	IndexPath         string `yaml:"index_path"`          // SQLite file for the sqlite backend (empty = in memory)
	ClearShortQueries bool   `yaml:"clear_short_queries"` // Drop results when the query gets too short
	MaxVisible        int    `yaml:"max_visible"`         // Max dropdown rows shown at once
}

// DatasetConfig holds dataset settings.
type DatasetConfig struct {
	Path string `yaml:"path"` // YAML dataset file (empty = embedded)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // Log file path (overrides default)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			DebounceMs:        300,
			LatencyMs:         500,
			Backend:           BackendMemory,
			IndexPath:         "",
			ClearShortQueries: false,
			MaxVisible:        8,
		},
		Dataset: DatasetConfig{
			Path: "", // Embedded dataset
		},
		Log: LogConfig{
			Level: "info",
			File:  "", // Use default from paths
		},
	}
}

// Debounce returns the quiet period as a duration.
func (s SearchConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

// Latency returns the simulated latency as a duration.
func (s SearchConfig) Latency() time.Duration {
	return time.Duration(s.LatencyMs) * time.Millisecond
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFromFile(DefaultPaths().ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadFileOnly loads configuration from the specified file without
// environment overrides. Use it when the result is written back to disk.
func LoadFileOnly(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func readFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveToFile(DefaultPaths().ConfigFile())
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get retrieves a configuration value by dot-separated key.
// For example: "search.debounce_ms" or "log.level"
func (c *Config) Get(key string) (string, error) {
	section, field, err := splitKey(key)
	if err != nil {
		return "", err
	}

	switch section {
	case "search":
		return c.getSearchField(field)
	case "dataset":
		return c.getDatasetField(field)
	case "log":
		return c.getLogField(field)
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

// Set sets a configuration value by dot-separated key.
func (c *Config) Set(key, value string) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}

	switch section {
	case "search":
		return c.setSearchField(field, value)
	case "dataset":
		return c.setDatasetField(field, value)
	case "log":
		return c.setLogField(field, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func splitKey(key string) (string, string, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", "", errors.New("key must be in format 'section.key'")
	}
	return parts[0], parts[1], nil
}

func (c *Config) getSearchField(field string) (string, error) {
	switch field {
	case "debounce_ms":
		return strconv.Itoa(c.Search.DebounceMs), nil
	case "latency_ms":
		return strconv.Itoa(c.Search.LatencyMs), nil
	case "backend":
		return c.Search.Backend, nil
	case "index_path":
		return c.Search.IndexPath, nil
	case "clear_short_queries":
		return strconv.FormatBool(c.Search.ClearShortQueries), nil
	case "max_visible":
		return strconv.Itoa(c.Search.MaxVisible), nil
	default:
		return "", fmt.Errorf("unknown field: search.%s", field)
	}
}

func (c *Config) setSearchField(field, value string) error {
	switch field {
	case "debounce_ms":
		v, err := parseNonNegative(field, value)
		if err != nil {
			return err
		}
		c.Search.DebounceMs = v
	case "latency_ms":
		v, err := parseNonNegative(field, value)
		if err != nil {
			return err
		}
		c.Search.LatencyMs = v
	case "backend":
		if !isValidBackend(value) {
			return fmt.Errorf("invalid backend: %s (must be memory or sqlite)", value)
		}
		c.Search.Backend = value
	case "index_path":
		c.Search.IndexPath = value
	case "clear_short_queries":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for clear_short_queries: %w", err)
		}
		c.Search.ClearShortQueries = v
	case "max_visible":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_visible: %w", err)
		}
		if v < 1 {
			return errors.New("invalid max_visible: must be at least 1")
		}
		c.Search.MaxVisible = v
	default:
		return fmt.Errorf("unknown field: search.%s", field)
	}
	return nil
}

func parseNonNegative(field, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", field, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must be non-negative", field)
	}
	return v, nil
}

func (c *Config) getDatasetField(field string) (string, error) {
	switch field {
	case "path":
		return c.Dataset.Path, nil
	default:
		return "", fmt.Errorf("unknown field: dataset.%s", field)
	}
}

func (c *Config) setDatasetField(field, value string) error {
	switch field {
	case "path":
		c.Dataset.Path = value
	default:
		return fmt.Errorf("unknown field: dataset.%s", field)
	}
	return nil
}

func (c *Config) getLogField(field string) (string, error) {
	switch field {
	case "level":
		return c.Log.Level, nil
	case "file":
		return c.Log.File, nil
	default:
		return "", fmt.Errorf("unknown field: log.%s", field)
	}
}

func (c *Config) setLogField(field, value string) error {
	switch field {
	case "level":
		if !isValidLogLevel(value) {
			return fmt.Errorf("invalid level: %s (must be debug, info, warn, or error)", value)
		}
		c.Log.Level = value
	case "file":
		c.Log.File = value
	default:
		return fmt.Errorf("unknown field: log.%s", field)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.Search.DebounceMs < 0 {
		return errors.New("search.debounce_ms must be >= 0")
	}

	if c.Search.LatencyMs < 0 {
		return errors.New("search.latency_ms must be >= 0")
	}

	if !isValidBackend(c.Search.Backend) {
		return fmt.Errorf("search.backend must be memory or sqlite (got: %s)", c.Search.Backend)
	}

	if c.Search.MaxVisible < 1 {
		return errors.New("search.max_visible must be >= 1")
	}

	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn, or error (got: %s)", c.Log.Level)
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidBackend(backend string) bool {
	switch backend {
	case BackendMemory, BackendSQLite:
		return true
	default:
		return false
	}
}

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SMARTSEARCH_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Log.Level = v
		}
	}
	// SMARTSEARCH_DEBUG wins over any configured level.
	if v := os.Getenv("SMARTSEARCH_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Log.Level = "debug"
		}
	}
	if v := os.Getenv("SMARTSEARCH_DATASET"); v != "" {
		c.Dataset.Path = v
	}
	if v := os.Getenv("SMARTSEARCH_BACKEND"); v != "" {
		if isValidBackend(v) {
			c.Search.Backend = v
		}
	}
}

// ListKeys returns user-facing configuration keys.
func ListKeys() []string {
	return []string{
		"search.debounce_ms",
		"search.latency_ms",
		"search.backend",
		"search.index_path",
		"search.clear_short_queries",
		"search.max_visible",
		"dataset.path",
		"log.level",
		"log.file",
	}
}
