// Package config handles configuration loading, validation, and management for snapfixd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Hotkeys configuration for the global shortcuts.
	Hotkeys HotkeysConfig `toml:"hotkeys" json:"hotkeys" yaml:"hotkeys"`

	// Corrector configuration for the correction service.
	Corrector CorrectorConfig `toml:"corrector" json:"corrector" yaml:"corrector"`

	// Fallback configuration for the clipboard copy/paste path.
	Fallback FallbackConfig `toml:"fallback" json:"fallback" yaml:"fallback"`

	// Undo configuration for the correction history.
	Undo UndoConfig `toml:"undo" json:"undo" yaml:"undo"`

	// Notifications configuration for desktop toasts.
	Notifications NotificationsConfig `toml:"notifications" json:"notifications" yaml:"notifications"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// IPC configuration for the control socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// HotkeysConfig holds the global shortcut bindings.
type HotkeysConfig struct {
	// Correct is the combo that corrects the current selection.
	Correct string `toml:"correct" json:"correct" yaml:"correct"`

	// Undo is the combo that reverts the most recent correction.
	Undo string `toml:"undo" json:"undo" yaml:"undo"`
}

// CorrectorConfig holds correction service configuration.
type CorrectorConfig struct {
	// APIKey authenticates against the correction service.
	// Prefer setting SNAPFIX_API_KEY instead of writing the key to disk.
	APIKey string `toml:"api_key" json:"api_key" yaml:"api_key"`

	// Endpoints is the ordered endpoint fallback list. Empty uses the
	// built-in defaults.
	Endpoints []string `toml:"endpoints" json:"endpoints" yaml:"endpoints"`

	// TimeoutSec is the per-endpoint deadline in seconds.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`

	// Prompt overrides the instruction sent ahead of the selected text.
	Prompt string `toml:"prompt" json:"prompt" yaml:"prompt"`
}

// FallbackConfig holds clipboard fallback timing configuration.
type FallbackConfig struct {
	// CopySettleMs is how long to wait after a synthetic copy before
	// reading the clipboard.
	CopySettleMs int `toml:"copy_settle_ms" json:"copy_settle_ms" yaml:"copy_settle_ms"`

	// PasteSettleMs is how long to wait after writing the clipboard
	// before sending the synthetic paste.
	PasteSettleMs int `toml:"paste_settle_ms" json:"paste_settle_ms" yaml:"paste_settle_ms"`
}

// UndoConfig holds correction history configuration.
type UndoConfig struct {
	// Depth is how many corrections are kept for undo.
	Depth int `toml:"depth" json:"depth" yaml:"depth"`
}

// NotificationsConfig holds desktop notification configuration.
type NotificationsConfig struct {
	// Enabled determines whether outcome toasts are shown.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or a file path.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// IPCConfig holds control socket configuration.
type IPCConfig struct {
	// Enabled determines whether the IPC server is started.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// SocketPath is the path to the Unix socket (or named pipe on Windows).
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`

	// Permissions is the Unix socket permissions (e.g., "0600").
	Permissions string `toml:"permissions" json:"permissions" yaml:"permissions"`

	// MaxConnections is the maximum concurrent connections.
	MaxConnections int `toml:"max_connections" json:"max_connections" yaml:"max_connections"`

	// TimeoutSec is the per-connection timeout.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := SnapfixDir()

	return &Config{
		Version: Version,
		Hotkeys: HotkeysConfig{
			Correct: "ctrl+shift+c",
			Undo:    "ctrl+shift+z",
		},
		Corrector: CorrectorConfig{
			APIKey:     "",
			Endpoints:  []string{},
			TimeoutSec: 6,
			Prompt:     "",
		},
		Fallback: FallbackConfig{
			CopySettleMs:  100,
			PasteSettleMs: 50,
		},
		Undo: UndoConfig{
			Depth: 10,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "file",
			FilePath:   filepath.Join(dir, "snapfixd.log"),
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
		IPC: IPCConfig{
			Enabled:        true,
			SocketPath:     defaultSocketPath(),
			Permissions:    "0600",
			MaxConnections: 10,
			TimeoutSec:     30,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(SnapfixDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates all necessary directories for the daemon.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		SnapfixDir(),
		filepath.Dir(c.Logging.FilePath),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// SnapfixDir returns the base snapfix directory.
// Uses platform-specific paths or SNAPFIX_DATA_DIR environment override.
func SnapfixDir() string {
	if envDir := os.Getenv("SNAPFIX_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with SNAPFIX_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// API key from env takes precedence over the config file so the
	// secret never has to live on disk.
	if v := os.Getenv("SNAPFIX_API_KEY"); v != "" {
		c.Corrector.APIKey = v
	}

	// Logging overrides
	if v := os.Getenv("SNAPFIX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SNAPFIX_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	// IPC overrides
	if v := os.Getenv("SNAPFIX_SOCKET_PATH"); v != "" {
		c.IPC.SocketPath = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := *c
	clone.Corrector.Endpoints = append([]string{}, c.Corrector.Endpoints...)

	return &clone
}

// CorrectorTimeout returns the per-endpoint deadline as a duration.
func (c *Config) CorrectorTimeout() time.Duration {
	return time.Duration(c.Corrector.TimeoutSec) * time.Second
}

// CopySettle returns the copy settle delay as a duration.
func (c *Config) CopySettle() time.Duration {
	return time.Duration(c.Fallback.CopySettleMs) * time.Millisecond
}

// PasteSettle returns the paste settle delay as a duration.
func (c *Config) PasteSettle() time.Duration {
	return time.Duration(c.Fallback.PasteSettleMs) * time.Millisecond
}

// LogPath returns the log file path.
func (c *Config) LogPath() string {
	return c.Logging.FilePath
}
