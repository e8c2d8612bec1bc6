// Package fallback implements selection access via the system clipboard and
// synthetic copy/paste key events.
//
// This is the lowest-common-denominator path used when native accessibility
// access is unavailable or fails. Both operations borrow the clipboard: the
// read path snapshots and restores the user's clipboard content, the write
// path intentionally leaves the new text on the clipboard so the user can
// paste manually when injection cannot be confirmed.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hrithikthakur/snapfix/internal/clipboard"
)

// Error taxonomy. Callers match with errors.Is.
var (
	// ErrPermissionDenied means the OS rejected the synthetic keystroke
	// because the process lacks the accessibility permission. The caller
	// should trigger the permission request flow.
	ErrPermissionDenied = errors.New("fallback: synthetic keystroke rejected, accessibility permission missing")

	// ErrToolUnavailable means the key-injection helper for this platform
	// is not installed. Not retryable; the user must paste manually.
	ErrToolUnavailable = errors.New("fallback: no key injection tool available")
)

// KeyInjector issues synthetic copy/paste key combinations to the
// foreground application. One implementation per OS family.
type KeyInjector interface {
	// SendCopy issues the OS copy combination (Cmd+C / Ctrl+C).
	SendCopy() error

	// SendPaste issues the OS paste combination (Cmd+V / Ctrl+V).
	SendPaste() error

	// Available reports whether injection can work on this system,
	// with a human-readable reason when it cannot.
	Available() (bool, string)
}

// DefaultCopySettle is how long the target application gets to service a
// synthetic copy before the clipboard is read. Empirical, same value the
// shipping builds used.
const DefaultCopySettle = 100 * time.Millisecond

// DefaultPasteSettle is the wait between writing the clipboard and issuing
// the paste keystroke.
const DefaultPasteSettle = 50 * time.Millisecond

// Config holds the orchestrator timing knobs.
type Config struct {
	CopySettle  time.Duration
	PasteSettle time.Duration
}

// Orchestrator sequences clipboard writes, key injection and settle delays
// for the two fallback operations.
type Orchestrator struct {
	clip        clipboard.Accessor
	injector    KeyInjector
	copySettle  time.Duration
	pasteSettle time.Duration
}

// New creates an orchestrator over the given clipboard and injector.
func New(clip clipboard.Accessor, injector KeyInjector, cfg Config) *Orchestrator {
	if cfg.CopySettle <= 0 {
		cfg.CopySettle = DefaultCopySettle
	}
	if cfg.PasteSettle <= 0 {
		cfg.PasteSettle = DefaultPasteSettle
	}
	return &Orchestrator{
		clip:        clip,
		injector:    injector,
		copySettle:  cfg.CopySettle,
		pasteSettle: cfg.PasteSettle,
	}
}

// ReadViaCopy captures the current selection by issuing a synthetic copy
// and reading the clipboard after a settle delay. The user's prior
// clipboard content is restored before returning, whatever happens.
//
// An empty result means no selection (or the target application ignored
// the copy); it is not an error.
func (o *Orchestrator) ReadViaCopy(ctx context.Context) (string, error) {
	if ok, reason := o.injector.Available(); !ok {
		return "", fmt.Errorf("%w: %s", ErrToolUnavailable, reason)
	}

	snap := clipboard.Take(o.clip)
	defer snap.Restore(o.clip)

	// Clearing first lets us distinguish "nothing selected" from stale
	// content left by the previous clipboard owner.
	if err := o.clip.WriteText(""); err != nil {
		return "", fmt.Errorf("fallback: clear clipboard: %w", err)
	}

	if err := o.injector.SendCopy(); err != nil {
		return "", err
	}

	if err := sleepCtx(ctx, o.copySettle); err != nil {
		return "", err
	}

	text, err := o.clip.ReadText()
	if err != nil {
		return "", fmt.Errorf("fallback: read clipboard after copy: %w", err)
	}
	return text, nil
}

// WriteViaPaste puts text on the clipboard and issues a synthetic paste.
// A nil return means the keystroke was accepted by the OS, not that the
// target application applied it. The text stays on the clipboard.
func (o *Orchestrator) WriteViaPaste(ctx context.Context, text string) error {
	if err := o.clip.WriteText(text); err != nil {
		return fmt.Errorf("fallback: write clipboard: %w", err)
	}

	if ok, reason := o.injector.Available(); !ok {
		// The text is on the clipboard; the caller surfaces the
		// paste-manually outcome.
		return fmt.Errorf("%w: %s", ErrToolUnavailable, reason)
	}

	if err := sleepCtx(ctx, o.pasteSettle); err != nil {
		return err
	}

	return o.injector.SendPaste()
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
