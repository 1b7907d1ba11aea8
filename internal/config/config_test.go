package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Repair.Language != "python" {
		t.Errorf("expected Language=python, got %s", cfg.Repair.Language)
	}
	if cfg.Repair.HistoryLimit != 100 {
		t.Errorf("expected HistoryLimit=100, got %d", cfg.Repair.HistoryLimit)
	}
	if cfg.Repair.IndentUnit != "    " {
		t.Errorf("expected four-space indent unit, got %q", cfg.Repair.IndentUnit)
	}
	if !cfg.Repair.Contextual {
		t.Error("expected contextual repair enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("CODEMEND_PARSER", "")
	t.Setenv("CODEMEND_DB", "")

	tmpDir := t.TempDir()
	path := DefaultPath(tmpDir)

	cfg := DefaultConfig()
	cfg.Repair.Parser = "builtin"
	cfg.Store.DatabasePath = "custom.db"
	cfg.Watch.Extensions = []string{".py", ".pyi"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Repair.Parser != "builtin" {
		t.Errorf("expected Parser=builtin, got %s", loaded.Repair.Parser)
	}
	if loaded.Store.DatabasePath != "custom.db" {
		t.Errorf("expected DatabasePath=custom.db, got %s", loaded.Store.DatabasePath)
	}
	if len(loaded.Watch.Extensions) != 2 {
		t.Errorf("expected 2 extensions, got %v", loaded.Watch.Extensions)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("CODEMEND_HISTORY_LIMIT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Repair.HistoryLimit != 100 {
		t.Errorf("expected defaults, got HistoryLimit=%d", cfg.Repair.HistoryLimit)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("cli:\n  workers: 8\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CLI.Workers != 8 {
		t.Errorf("expected Workers=8, got %d", cfg.CLI.Workers)
	}
	if cfg.Repair.Language != "python" {
		t.Errorf("expected default language to survive, got %q", cfg.Repair.Language)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("repair: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GetDebounce() != 300*time.Millisecond {
		t.Errorf("GetDebounce = %v", cfg.GetDebounce())
	}
	if cfg.GetPerFileTimeout() != 30*time.Second {
		t.Errorf("GetPerFileTimeout = %v", cfg.GetPerFileTimeout())
	}

	cfg.Watch.Debounce = "soon"
	cfg.CLI.PerFileTimeout = "-1s"
	cfg.CLI.Workers = 0
	if cfg.GetDebounce() != 300*time.Millisecond {
		t.Error("GetDebounce should fall back on parse error")
	}
	if cfg.GetPerFileTimeout() != 30*time.Second {
		t.Error("GetPerFileTimeout should fall back on non-positive duration")
	}
	if cfg.GetWorkers() != 1 {
		t.Errorf("GetWorkers = %d, want 1", cfg.GetWorkers())
	}

	if !cfg.WatchesFile("pkg/Mod.PY") {
		t.Error("WatchesFile should match extensions case-insensitively")
	}
	if cfg.WatchesFile("README.md") {
		t.Error("WatchesFile matched an unwatched extension")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"builtin", func(c *Config) { c.Repair.Parser = "builtin" }, false},
		{"unknown parser", func(c *Config) { c.Repair.Parser = "javac" }, true},
		{"negative history", func(c *Config) { c.Repair.HistoryLimit = -1 }, true},
		{"non-blank indent", func(c *Config) { c.Repair.IndentUnit = "--" }, true},
		{"tab indent", func(c *Config) { c.Repair.IndentUnit = "\t" }, false},
		{"store without path", func(c *Config) { c.Store.DatabasePath = "" }, true},
		{"disabled store without path", func(c *Config) {
			c.Store.Enabled = false
			c.Store.DatabasePath = ""
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	c := LoggingConfig{}
	if c.IsCategoryEnabled("repair") {
		t.Error("categories must be disabled without debug_mode")
	}

	c.DebugMode = true
	if !c.IsCategoryEnabled("repair") {
		t.Error("all categories enabled when no filter is set")
	}

	c.Categories = map[string]bool{"repair": false}
	if c.IsCategoryEnabled("repair") {
		t.Error("explicitly disabled category reported enabled")
	}
	if !c.IsCategoryEnabled("store") {
		t.Error("unlisted category should default to enabled")
	}
}
