// Package config handles configuration loading and validation for snapfixd.
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	// Validate version
	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if hotkeyErrs := validateHotkeys(&c.Hotkeys); len(hotkeyErrs) > 0 {
		errs = append(errs, hotkeyErrs...)
	}

	if correctorErrs := validateCorrector(&c.Corrector); len(correctorErrs) > 0 {
		errs = append(errs, correctorErrs...)
	}

	if fallbackErrs := validateFallback(&c.Fallback); len(fallbackErrs) > 0 {
		errs = append(errs, fallbackErrs...)
	}

	if undoErrs := validateUndo(&c.Undo); len(undoErrs) > 0 {
		errs = append(errs, undoErrs...)
	}

	if loggingErrs := validateLogging(&c.Logging); len(loggingErrs) > 0 {
		errs = append(errs, loggingErrs...)
	}

	if ipcErrs := validateIPC(&c.IPC); len(ipcErrs) > 0 {
		errs = append(errs, ipcErrs...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// comboPattern is a structural check only; full parsing happens at
// registration time where platform modifier names are known.
var comboPattern = regexp.MustCompile(`^[a-zA-Z0-9]+(\+[a-zA-Z0-9]+)+$`)

func validateHotkeys(h *HotkeysConfig) ValidationErrors {
	var errs ValidationErrors

	if !comboPattern.MatchString(strings.TrimSpace(h.Correct)) {
		errs = append(errs, ValidationError{
			Field:   "hotkeys.correct",
			Message: fmt.Sprintf("invalid combo %q (expected modifier+key like ctrl+shift+c)", h.Correct),
		})
	}

	if !comboPattern.MatchString(strings.TrimSpace(h.Undo)) {
		errs = append(errs, ValidationError{
			Field:   "hotkeys.undo",
			Message: fmt.Sprintf("invalid combo %q (expected modifier+key like ctrl+shift+z)", h.Undo),
		})
	}

	if strings.EqualFold(strings.TrimSpace(h.Correct), strings.TrimSpace(h.Undo)) {
		errs = append(errs, ValidationError{
			Field:   "hotkeys.undo",
			Message: "correct and undo combos must differ",
		})
	}

	return errs
}

func validateCorrector(c *CorrectorConfig) ValidationErrors {
	var errs ValidationErrors

	for i, endpoint := range c.Endpoints {
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("corrector.endpoints[%d]", i),
				Message: fmt.Sprintf("invalid endpoint URL: %s", endpoint),
			})
		}
	}

	if c.TimeoutSec < 1 || c.TimeoutSec > 120 {
		errs = append(errs, ValidationError{
			Field:   "corrector.timeout_sec",
			Message: "timeout must be between 1 and 120 seconds",
		})
	}

	return errs
}

func validateFallback(f *FallbackConfig) ValidationErrors {
	var errs ValidationErrors

	if f.CopySettleMs < 0 || f.CopySettleMs > 5000 {
		errs = append(errs, ValidationError{
			Field:   "fallback.copy_settle_ms",
			Message: "copy settle must be between 0 and 5000 ms",
		})
	}

	if f.PasteSettleMs < 0 || f.PasteSettleMs > 5000 {
		errs = append(errs, ValidationError{
			Field:   "fallback.paste_settle_ms",
			Message: "paste settle must be between 0 and 5000 ms",
		})
	}

	return errs
}

func validateUndo(u *UndoConfig) ValidationErrors {
	var errs ValidationErrors

	if u.Depth < 1 || u.Depth > 100 {
		errs = append(errs, ValidationError{
			Field:   "undo.depth",
			Message: "undo depth must be between 1 and 100",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "file":
		// Valid outputs
		if l.Output == "file" && l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file'",
			})
		}
	default:
		// Assume it's a file path
		if l.Output == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "log output is required",
			})
		}
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateIPC(i *IPCConfig) ValidationErrors {
	var errs ValidationErrors

	if !i.Enabled {
		return errs
	}

	if i.SocketPath == "" {
		errs = append(errs, ValidationError{
			Field:   "ipc.socket_path",
			Message: "socket path is required when IPC is enabled",
		})
	}

	// Validate permissions format (Unix only)
	if i.Permissions != "" {
		if matched, _ := regexp.MatchString(`^0[0-7]{3}$`, i.Permissions); !matched {
			errs = append(errs, ValidationError{
				Field:   "ipc.permissions",
				Message: fmt.Sprintf("invalid permissions format: %s (expected octal like 0600)", i.Permissions),
			})
		}
	}

	if i.MaxConnections < 1 {
		errs = append(errs, ValidationError{
			Field:   "ipc.max_connections",
			Message: "max connections must be at least 1",
		})
	}

	if i.TimeoutSec < 1 {
		errs = append(errs, ValidationError{
			Field:   "ipc.timeout_sec",
			Message: "timeout must be at least 1 second",
		})
	}

	return errs
}
