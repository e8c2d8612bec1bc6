// Package bridge reads and replaces the text selection of whatever
// application currently has focus.
//
// One Bridge variant exists per OS family, selected once at startup:
//
//   - darwin: Accessibility (AX) queries through System Events, gated by
//     the user-grantable Accessibility permission
//   - windows: UI Automation TextPattern, available by default
//   - linux: no native automation path; clipboard fallback only
//   - anything else: unsupported
//
// Each operation runs an ordered list of named strategies. A strategy that
// yields nothing usable is a soft failure and the next one runs; context
// cancellation stops the chain. The final strategy for both reading and
// writing is always the clipboard fallback.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Capability describes what this platform can do, decided once at startup
// and fixed for the process lifetime. Permission state inside
// CapabilityNative is re-checked per invocation: the user can grant or
// revoke it while we run.
type Capability int

const (
	// CapabilityNative means an OS accessibility API is available.
	CapabilityNative Capability = iota

	// CapabilityFallbackOnly means only the clipboard fallback works.
	CapabilityFallbackOnly

	// CapabilityUnsupported means no strategy can reach foreign text.
	CapabilityUnsupported
)

// String returns the capability name for logs and status replies.
func (c Capability) String() string {
	switch c {
	case CapabilityNative:
		return "native"
	case CapabilityFallbackOnly:
		return "fallback-only"
	default:
		return "unsupported"
	}
}

// Bridge is the per-OS text access surface. Selected once at process
// start; every method is safe to call on any platform.
type Bridge interface {
	// Capability reports the platform's fixed capability.
	Capability() Capability

	// HasAccessPermission reports whether the process currently holds the
	// accessibility permission. Bounded, never panics; an undeterminable
	// state reads as false.
	HasAccessPermission(ctx context.Context) bool

	// RequestPermission performs one or more harmless automation calls
	// purely to provoke the OS permission dialog.
	RequestPermission(ctx context.Context) error

	// GetSelectedText returns the foreground application's current
	// selection, or "" when none is found. It never fails: internal
	// errors reduce to "".
	GetSelectedText(ctx context.Context) string

	// ReplaceSelectedText writes text over the current selection.
	// applied=false means no method could confirm the replacement; err,
	// when non-nil, classifies why (fallback.ErrPermissionDenied,
	// fallback.ErrToolUnavailable, or an unknown automation failure).
	ReplaceSelectedText(ctx context.Context, text string) (applied bool, err error)

	// OpenAccessibilitySettings opens the OS privacy pane where the
	// permission is granted. Best effort; unsupported platforms return nil.
	OpenAccessibilitySettings(ctx context.Context) error
}

// Per-call timeout guards. Native automation calls can hang when the
// target application is wedged, so each one carries its own deadline
// independent of the invocation's outer context.
const (
	permissionCheckTimeout = 2 * time.Second
	nativeCallTimeout      = 3 * time.Second
)

// readStrategy produces selection text. Empty text with nil error is a
// soft failure: the next strategy runs.
type readStrategy struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// writeStrategy applies replacement text. A nil error confirms the
// strategy's own notion of success.
type writeStrategy struct {
	name string
	run  func(ctx context.Context, text string) error
}

// chain is the shared strategy runner embedded by each platform bridge.
type chain struct {
	log    *slog.Logger
	reads  []readStrategy
	writes []writeStrategy
}

// getSelectedText runs the read strategies in order and returns the first
// usable (non-blank) result, or "".
func (c *chain) getSelectedText(ctx context.Context) string {
	for _, s := range c.reads {
		text, err := s.run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ""
			}
			c.log.Debug("read strategy failed", "strategy", s.name, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			c.log.Debug("read strategy succeeded", "strategy", s.name, "chars", len(text))
			return text
		}
	}
	return ""
}

// replaceSelectedText runs the write strategies in order. The first nil
// error confirms application; otherwise the last error classifies the
// failure for the caller.
func (c *chain) replaceSelectedText(ctx context.Context, text string) (bool, error) {
	var lastErr error
	for _, s := range c.writes {
		err := s.run(ctx, text)
		if err == nil {
			c.log.Debug("write strategy succeeded", "strategy", s.name)
			return true, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.log.Debug("write strategy failed", "strategy", s.name, "error", err)
	}
	return false, lastErr
}

// boundedCtx derives a context with the given guard timeout.
func boundedCtx(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// errNoSelection is returned by native read strategies when the focused
// element exposes no selection range. The element's full value is never
// substituted: returning it would silently replace far more than the user
// selected.
var errNoSelection = errors.New("bridge: focused element has no selection range")
