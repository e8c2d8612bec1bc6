//go:build darwin

package bridge

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/hrithikthakur/snapfix/internal/fallback"
)

// Accessibility queries go through System Events, which requires the
// process (or its terminal, during development) to be listed under
// Privacy & Security → Accessibility.
const (
	// Harmless automation call. Succeeds only when the Accessibility
	// permission is granted, and doubles as the call that makes macOS
	// show the grant dialog the first time.
	probeScript = `tell application "System Events" to get name of first process`

	// Reads the focused element's selected text. The explicit range
	// check keeps an element's whole value from standing in for a
	// missing selection.
	readScript = `tell application "System Events"
	set frontProc to first application process whose frontmost is true
	set focusedEl to value of attribute "AXFocusedUIElement" of frontProc
	set selRange to value of attribute "AXSelectedTextRange" of focusedEl
	if selRange is missing value then error "no selection range" number -25300
	return value of attribute "AXSelectedText" of focusedEl
end tell`

	// Replaces the selected text in place. Atomic from the target
	// application's point of view, no clipboard involved.
	writeScript = `on run argv
	tell application "System Events"
		set frontProc to first application process whose frontmost is true
		set focusedEl to value of attribute "AXFocusedUIElement" of frontProc
		set value of attribute "AXSelectedText" of focusedEl to (item 1 of argv)
	end tell
end run`

	accessibilityPane = "x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility"
)

type darwinBridge struct {
	chain
	orch *fallback.Orchestrator
}

// New returns the macOS bridge: native AX first, clipboard fallback second.
func New(orch *fallback.Orchestrator, log *slog.Logger) Bridge {
	b := &darwinBridge{
		chain: chain{log: log.With("bridge", "darwin")},
		orch:  orch,
	}
	b.reads = []readStrategy{
		{name: "ax-selected-text", run: b.readAX},
		{name: "clipboard-copy", run: orch.ReadViaCopy},
	}
	b.writes = []writeStrategy{
		{name: "ax-replace", run: b.writeAX},
		{name: "clipboard-paste", run: orch.WriteViaPaste},
	}
	return b
}

func (b *darwinBridge) Capability() Capability {
	return CapabilityNative
}

func (b *darwinBridge) HasAccessPermission(ctx context.Context) bool {
	ctx, cancel := boundedCtx(ctx, permissionCheckTimeout)
	defer cancel()

	_, err := runOsascript(ctx, probeScript)
	return err == nil
}

// RequestPermission issues the probe call without looking at the result:
// the first failing automation call is what makes macOS register the app
// in the Accessibility list and show the grant dialog.
func (b *darwinBridge) RequestPermission(ctx context.Context) error {
	ctx, cancel := boundedCtx(ctx, permissionCheckTimeout)
	defer cancel()

	if _, err := runOsascript(ctx, probeScript); err != nil {
		return fmt.Errorf("bridge: permission probe: %w", err)
	}
	return nil
}

func (b *darwinBridge) GetSelectedText(ctx context.Context) string {
	return b.getSelectedText(ctx)
}

func (b *darwinBridge) ReplaceSelectedText(ctx context.Context, text string) (bool, error) {
	return b.replaceSelectedText(ctx, text)
}

func (b *darwinBridge) OpenAccessibilitySettings(ctx context.Context) error {
	return exec.CommandContext(ctx, "open", accessibilityPane).Run()
}

func (b *darwinBridge) readAX(ctx context.Context) (string, error) {
	ctx, cancel := boundedCtx(ctx, nativeCallTimeout)
	defer cancel()

	out, err := runOsascript(ctx, readScript)
	if err != nil {
		if strings.Contains(err.Error(), "no selection range") {
			return "", errNoSelection
		}
		return "", err
	}
	return out, nil
}

func (b *darwinBridge) writeAX(ctx context.Context, text string) error {
	ctx, cancel := boundedCtx(ctx, nativeCallTimeout)
	defer cancel()

	// The replacement travels as an osascript argument, never spliced
	// into the script source.
	out, err := exec.CommandContext(ctx, "osascript", "-e", writeScript, text).CombinedOutput()
	if err != nil {
		return fmt.Errorf("bridge: ax replace: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// runOsascript executes a script and returns trimmed stdout. Stderr is
// kept separate: osascript reports AX errors there, but it also emits
// warnings on successful runs, and those must never leak into a result
// that gets written back as the selection.
func runOsascript(ctx context.Context, script string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("osascript: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
