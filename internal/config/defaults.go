// Package config handles configuration loading and validation for snapfixd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/snapfix/
//   - Linux:   ~/.local/share/snapfix/
//   - Windows: %APPDATA%\snapfix\
//
// Falls back to ~/.snapfix if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDataDir()
	case "linux":
		return linuxDataDir()
	case "windows":
		return windowsDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformLogDir returns the platform-specific log directory.
//
// Platform paths:
//   - macOS:   ~/Library/Logs/snapfix/
//   - Linux:   ~/.local/share/snapfix/logs/
//   - Windows: %LOCALAPPDATA%\snapfix\logs\
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSLogDir()
	case "linux":
		return filepath.Join(linuxDataDir(), "logs")
	case "windows":
		return windowsLogDir()
	default:
		return filepath.Join(fallbackDataDir(), "logs")
	}
}

// PlatformRuntimeDir returns the platform-specific runtime directory for sockets.
//
// Platform paths:
//   - macOS:   /tmp/snapfix-$UID/
//   - Linux:   $XDG_RUNTIME_DIR/snapfix/ or /tmp/snapfix-$UID/
//   - Windows: (uses named pipes, not applicable)
func PlatformRuntimeDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join("/tmp", "snapfix-"+getUserID())
	case "linux":
		return linuxRuntimeDir()
	case "windows":
		return "" // Windows uses named pipes
	default:
		return filepath.Join("/tmp", "snapfix-"+getUserID())
	}
}

// macOS-specific paths

func macOSDataDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, "Library", "Application Support", "snapfix")
}

func macOSLogDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, "Library", "Logs", "snapfix")
}

// Linux-specific paths following XDG Base Directory Specification

func linuxDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "snapfix")
	}
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".local", "share", "snapfix")
}

func linuxRuntimeDir() string {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "snapfix")
	}
	return filepath.Join("/tmp", "snapfix-"+getUserID())
}

// Windows-specific paths

func windowsDataDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "snapfix")
	}
	return fallbackDataDir()
}

func windowsLogDir() string {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		return filepath.Join(localAppData, "snapfix", "logs")
	}
	return filepath.Join(fallbackDataDir(), "logs")
}

func fallbackDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".snapfix"
	}
	return filepath.Join(home, ".snapfix")
}

func getUserID() string {
	return fmt.Sprintf("%d", os.Getuid())
}

func defaultSocketPath() string {
	switch runtime.GOOS {
	case "windows":
		return `\\.\pipe\snapfix`
	default:
		return filepath.Join(PlatformRuntimeDir(), "snapfixd.sock")
	}
}

// FindConfigFile looks for a config file in the standard locations and
// returns the first one that exists, or "" if none do.
func FindConfigFile() string {
	candidates := []string{
		ConfigPath(),
		filepath.Join(".", "snapfix.toml"),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
