package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Hotkeys.Correct != "ctrl+shift+c" {
		t.Errorf("expected correct combo ctrl+shift+c, got %s", cfg.Hotkeys.Correct)
	}
	if cfg.Hotkeys.Undo != "ctrl+shift+z" {
		t.Errorf("expected undo combo ctrl+shift+z, got %s", cfg.Hotkeys.Undo)
	}
	if cfg.Corrector.TimeoutSec != 6 {
		t.Errorf("expected corrector timeout 6s, got %d", cfg.Corrector.TimeoutSec)
	}
	if cfg.Fallback.CopySettleMs != 100 {
		t.Errorf("expected copy settle 100ms, got %d", cfg.Fallback.CopySettleMs)
	}
	if cfg.Fallback.PasteSettleMs != 50 {
		t.Errorf("expected paste settle 50ms, got %d", cfg.Fallback.PasteSettleMs)
	}
	if cfg.Undo.Depth != 10 {
		t.Errorf("expected undo depth 10, got %d", cfg.Undo.Depth)
	}
	if !strings.Contains(cfg.LogPath(), "snapfix") {
		t.Errorf("log path should contain snapfix: %s", cfg.LogPath())
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath returned empty string")
	}
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
}

func TestSnapfixDirEnvOverride(t *testing.T) {
	t.Setenv("SNAPFIX_DATA_DIR", "/custom/data")
	if dir := SnapfixDir(); dir != "/custom/data" {
		t.Errorf("expected /custom/data, got %s", dir)
	}
}

func TestLoadNonexistent(t *testing.T) {
	// Load from nonexistent path should return default config
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.Undo.Depth != 10 {
		t.Errorf("expected default undo depth 10, got %d", cfg.Undo.Depth)
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
version = 1

[hotkeys]
correct = "ctrl+alt+g"
undo = "ctrl+alt+u"

[corrector]
timeout_sec = 10

[fallback]
copy_settle_ms = 250

[undo]
depth = 5
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Hotkeys.Correct != "ctrl+alt+g" {
		t.Errorf("expected ctrl+alt+g, got %s", cfg.Hotkeys.Correct)
	}
	if cfg.Corrector.TimeoutSec != 10 {
		t.Errorf("expected timeout 10, got %d", cfg.Corrector.TimeoutSec)
	}
	if cfg.CorrectorTimeout() != 10*time.Second {
		t.Errorf("expected 10s duration, got %v", cfg.CorrectorTimeout())
	}
	if cfg.CopySettle() != 250*time.Millisecond {
		t.Errorf("expected 250ms copy settle, got %v", cfg.CopySettle())
	}
	if cfg.Undo.Depth != 5 {
		t.Errorf("expected undo depth 5, got %d", cfg.Undo.Depth)
	}
	// Unset sections keep defaults
	if cfg.Fallback.PasteSettleMs != 50 {
		t.Errorf("expected default paste settle 50, got %d", cfg.Fallback.PasteSettleMs)
	}
}

func TestAPIKeyEnvOverride(t *testing.T) {
	t.Setenv("SNAPFIX_API_KEY", "env-key")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	content := `
[corrector]
api_key = "file-key"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Corrector.APIKey != "env-key" {
		t.Errorf("env var should win over file key, got %s", cfg.Corrector.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bare key combo", func(c *Config) { c.Hotkeys.Correct = "c" }, "hotkeys.correct"},
		{"empty combo", func(c *Config) { c.Hotkeys.Undo = "" }, "hotkeys.undo"},
		{"identical combos", func(c *Config) { c.Hotkeys.Undo = c.Hotkeys.Correct }, "hotkeys.undo"},
		{"bad endpoint", func(c *Config) { c.Corrector.Endpoints = []string{"not a url"} }, "corrector.endpoints[0]"},
		{"zero timeout", func(c *Config) { c.Corrector.TimeoutSec = 0 }, "corrector.timeout_sec"},
		{"negative settle", func(c *Config) { c.Fallback.CopySettleMs = -1 }, "fallback.copy_settle_ms"},
		{"huge settle", func(c *Config) { c.Fallback.PasteSettleMs = 10000 }, "fallback.paste_settle_ms"},
		{"zero undo depth", func(c *Config) { c.Undo.Depth = 0 }, "undo.depth"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad permissions", func(c *Config) { c.IPC.Permissions = "rw-" }, "ipc.permissions"},
		{"bad version", func(c *Config) { c.Version = 99 }, "version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error mentioning %s, got: %v", tt.field, err)
			}
		})
	}
}

func TestLoadOrCreateWritesDefault(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	cfg, created, err := LoadOrCreate(configPath)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if !created {
		t.Error("expected created=true for missing file")
	}
	if cfg == nil {
		t.Fatal("LoadOrCreate returned nil config")
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("config file should exist: %v", err)
	}

	// Second call loads the existing file
	_, created, err = LoadOrCreate(configPath)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if created {
		t.Error("expected created=false for existing file")
	}
}

func TestLoaderRejectsInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	content := `
[undo]
depth = 0
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(configPath)
	defer loader.Close()
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected validation error from loader")
	}
}

func TestLoaderHotReload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[undo]\ndepth = 10\n"), 0600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(configPath)
	defer loader.Close()
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan *Config, 1)
	loader.OnChange(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})
	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(configPath, []byte("[undo]\ndepth = 20\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		if cfg.Undo.Depth != 20 {
			t.Errorf("expected reloaded depth 20, got %d", cfg.Undo.Depth)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Corrector.Endpoints = []string{"https://example.com/v1"}

	clone := cfg.Clone()
	clone.Corrector.Endpoints[0] = "https://other.example.com/v1"
	clone.Undo.Depth = 42

	if cfg.Corrector.Endpoints[0] != "https://example.com/v1" {
		t.Error("clone should not share endpoint slice")
	}
	if cfg.Undo.Depth == 42 {
		t.Error("clone should not share scalar fields")
	}
}
