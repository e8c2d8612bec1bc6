//go:build windows

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/hrithikthakur/snapfix/internal/fallback"
)

// UI Automation is reached through short PowerShell programs against the
// UIAutomationClient assembly, the Go port of the original helper exe.
// Exit code 3 means "cannot serve this element" and triggers the
// clipboard fallback; any other failure is an automation error.
const (
	uiaProbeScript = `Add-Type -AssemblyName UIAutomationClient
if ([System.Windows.Automation.AutomationElement]::RootElement -eq $null) { exit 1 }`

	uiaReadScript = `Add-Type -AssemblyName UIAutomationClient,UIAutomationTypes
$el = [System.Windows.Automation.AutomationElement]::FocusedElement
if ($el -eq $null) { exit 3 }
$tp = $null
if (-not $el.TryGetCurrentPattern([System.Windows.Automation.TextPattern]::Pattern, [ref]$tp)) { exit 3 }
$sel = $tp.GetSelection()
if ($sel -eq $null -or $sel.Length -eq 0) { exit 3 }
[Console]::Out.Write($sel[0].GetText(-1))`

	// Replacement only proceeds when the selection can be located
	// unambiguously inside the element's value; otherwise exit 3 hands
	// the job to the clipboard fallback. The new text arrives through
	// the environment to avoid any quoting of user content.
	uiaWriteScript = `Add-Type -AssemblyName UIAutomationClient,UIAutomationTypes
$new = $env:SNAPFIX_REPLACEMENT
$el = [System.Windows.Automation.AutomationElement]::FocusedElement
if ($el -eq $null) { exit 3 }
$tp = $null
if (-not $el.TryGetCurrentPattern([System.Windows.Automation.TextPattern]::Pattern, [ref]$tp)) { exit 3 }
$sel = $tp.GetSelection()
if ($sel -eq $null -or $sel.Length -eq 0) { exit 3 }
$selText = $sel[0].GetText(-1)
$vp = $null
if (-not $el.TryGetCurrentPattern([System.Windows.Automation.ValuePattern]::Pattern, [ref]$vp)) { exit 3 }
if ($vp.Current.IsReadOnly) { exit 3 }
$value = $vp.Current.Value
$idx = $value.IndexOf($selText)
if ($selText.Length -eq 0 -or $idx -lt 0 -or $idx -ne $value.LastIndexOf($selText)) { exit 3 }
$vp.SetValue($value.Substring(0, $idx) + $new + $value.Substring($idx + $selText.Length))`
)

var (
	user32             = windows.NewLazySystemDLL("user32.dll")
	procGetForeground  = user32.NewProc("GetForegroundWindow")
	procGetWindowTextW = user32.NewProc("GetWindowTextW")
)

type windowsBridge struct {
	chain
	orch *fallback.Orchestrator
}

// New returns the Windows bridge: UI Automation first, clipboard fallback
// second. UIA needs no user-grantable permission.
func New(orch *fallback.Orchestrator, log *slog.Logger) Bridge {
	b := &windowsBridge{
		chain: chain{log: log.With("bridge", "windows")},
		orch:  orch,
	}
	b.reads = []readStrategy{
		{name: "uia-text-pattern", run: b.readUIA},
		{name: "clipboard-copy", run: orch.ReadViaCopy},
	}
	b.writes = []writeStrategy{
		{name: "uia-value-splice", run: b.writeUIA},
		{name: "clipboard-paste", run: orch.WriteViaPaste},
	}
	return b
}

func (b *windowsBridge) Capability() Capability {
	return CapabilityNative
}

// HasAccessPermission checks that the UIA root element is reachable.
// There is no grant dialog on Windows, so this effectively always holds.
func (b *windowsBridge) HasAccessPermission(ctx context.Context) bool {
	ctx, cancel := boundedCtx(ctx, permissionCheckTimeout)
	defer cancel()

	_, err := runPowershell(ctx, uiaProbeScript, nil)
	return err == nil
}

func (b *windowsBridge) RequestPermission(ctx context.Context) error {
	// Nothing to request; the probe keeps the contract uniform.
	ctx, cancel := boundedCtx(ctx, permissionCheckTimeout)
	defer cancel()
	_, err := runPowershell(ctx, uiaProbeScript, nil)
	return err
}

func (b *windowsBridge) GetSelectedText(ctx context.Context) string {
	if title := foregroundWindowTitle(); title != "" {
		b.log.Debug("reading selection", "foreground_window", title)
	}
	return b.getSelectedText(ctx)
}

func (b *windowsBridge) ReplaceSelectedText(ctx context.Context, text string) (bool, error) {
	return b.replaceSelectedText(ctx, text)
}

func (b *windowsBridge) OpenAccessibilitySettings(ctx context.Context) error {
	// Nearest equivalent pane; UIA itself is not permission-gated.
	return exec.CommandContext(ctx, "cmd", "/c", "start", "ms-settings:easeofaccess").Run()
}

func (b *windowsBridge) readUIA(ctx context.Context) (string, error) {
	ctx, cancel := boundedCtx(ctx, nativeCallTimeout)
	defer cancel()

	out, err := runPowershell(ctx, uiaReadScript, nil)
	if err != nil {
		if exitCode(err) == 3 {
			return "", errNoSelection
		}
		return "", err
	}
	return out, nil
}

func (b *windowsBridge) writeUIA(ctx context.Context, text string) error {
	ctx, cancel := boundedCtx(ctx, nativeCallTimeout)
	defer cancel()

	env := []string{"SNAPFIX_REPLACEMENT=" + text}
	if _, err := runPowershell(ctx, uiaWriteScript, env); err != nil {
		if exitCode(err) == 3 {
			return errNoSelection
		}
		return err
	}
	return nil
}

// runPowershell executes an inline script and returns raw stdout.
func runPowershell(ctx context.Context, script string, extraEnv []string) (string, error) {
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	if len(extraEnv) > 0 {
		cmd.Env = append(cmd.Environ(), extraEnv...)
	}
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("powershell: %w", err)
	}
	return string(out), nil
}

// exitCode digs the process exit code out of an exec error, or -1.
func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// foregroundWindowTitle returns the focused window's title for logging.
func foregroundWindowTitle() string {
	hwnd, _, _ := procGetForeground.Call()
	if hwnd == 0 {
		return ""
	}
	buf := make([]uint16, 256)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return strings.TrimSpace(windows.UTF16ToString(buf[:n]))
}
