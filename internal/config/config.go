// Package config loads the codemend configuration from .codemend/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Dir is the per-workspace directory holding config, logs and the database.
const Dir = ".codemend"

// Config holds all codemend configuration.
type Config struct {
	Repair  RepairConfig  `yaml:"repair"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Watch   WatchConfig   `yaml:"watch"`
	CLI     CLIConfig     `yaml:"cli"`
}

// RepairConfig configures the correction pipeline.
type RepairConfig struct {
	Language     string `yaml:"language"`
	IndentUnit   string `yaml:"indent_unit"`
	HistoryLimit int    `yaml:"history_limit"`
	Contextual   bool   `yaml:"contextual"`
	Parser       string `yaml:"parser"` // tree-sitter, builtin
}

// StoreConfig configures the SQLite correction log.
type StoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// WatchConfig configures `mend watch`.
type WatchConfig struct {
	Debounce   string   `yaml:"debounce"`
	Extensions []string `yaml:"extensions"`
}

// CLIConfig configures batch runs.
type CLIConfig struct {
	Workers        int    `yaml:"workers"`
	PerFileTimeout string `yaml:"per_file_timeout"`
}

// ValidParsers lists the parser names accepted in repair.parser.
var ValidParsers = []string{"tree-sitter", "builtin"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Repair: RepairConfig{
			Language:     "python",
			IndentUnit:   "    ",
			HistoryLimit: 100,
			Contextual:   true,
			Parser:       "tree-sitter",
		},
		Store: StoreConfig{
			Enabled:      true,
			DatabasePath: filepath.Join(Dir, "corrections.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Watch: WatchConfig{
			Debounce:   "300ms",
			Extensions: []string{".py"},
		},
		CLI: CLIConfig{
			Workers:        4,
			PerFileTimeout: "30s",
		},
	}
}

// DefaultPath returns the config file location for a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, Dir, "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if p := os.Getenv("CODEMEND_PARSER"); p != "" {
		c.Repair.Parser = p
	}
	if path := os.Getenv("CODEMEND_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if lvl := os.Getenv("CODEMEND_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
	if v := os.Getenv("CODEMEND_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Repair.HistoryLimit = n
		}
	}
}

// GetDebounce returns the watch debounce interval as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d < 0 {
		return 300 * time.Millisecond
	}
	return d
}

// GetPerFileTimeout returns the batch per-file timeout as a duration.
func (c *Config) GetPerFileTimeout() time.Duration {
	d, err := time.ParseDuration(c.CLI.PerFileTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetWorkers returns the batch worker count, at least one.
func (c *Config) GetWorkers() int {
	if c.CLI.Workers < 1 {
		return 1
	}
	return c.CLI.Workers
}

// WatchesFile reports whether path has one of the watched extensions.
func (c *Config) WatchesFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Watch.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validParser := false
	for _, p := range ValidParsers {
		if c.Repair.Parser == p {
			validParser = true
			break
		}
	}
	if !validParser {
		return fmt.Errorf("invalid parser: %s (valid: %v)", c.Repair.Parser, ValidParsers)
	}
	if c.Repair.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative: %d", c.Repair.HistoryLimit)
	}
	if strings.Trim(c.Repair.IndentUnit, " \t") != "" {
		return fmt.Errorf("indent_unit must be whitespace: %q", c.Repair.IndentUnit)
	}
	if c.Store.Enabled && c.Store.DatabasePath == "" {
		return fmt.Errorf("store enabled but database_path is empty")
	}
	return nil
}
