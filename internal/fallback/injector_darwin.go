//go:build darwin

package fallback

import (
	"fmt"
	"os/exec"
	"strings"
)

// darwinInjector sends keystrokes through System Events via osascript.
// osascript ships with macOS, so Available is always true; what can fail
// is the Accessibility permission, reported per keystroke.
type darwinInjector struct{}

// NewInjector returns the macOS key injector.
func NewInjector() KeyInjector {
	return darwinInjector{}
}

func (darwinInjector) Available() (bool, string) {
	return true, ""
}

func (darwinInjector) SendCopy() error {
	return runKeystroke("c")
}

func (darwinInjector) SendPaste() error {
	return runKeystroke("v")
}

func runKeystroke(key string) error {
	script := fmt.Sprintf(`tell application "System Events" to keystroke "%s" using command down`, key)
	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err == nil {
		return nil
	}
	// Error -25211: the process is not allowed assistive access.
	msg := strings.TrimSpace(string(out))
	if strings.Contains(msg, "assistive access") || strings.Contains(msg, "-25211") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
	}
	return fmt.Errorf("fallback: osascript keystroke %q: %v: %s", key, err, msg)
}
