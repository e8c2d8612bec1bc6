//go:build linux

package fallback

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/micmonay/keybd_event"
)

// linuxInjector prefers xdotool when installed and falls back to uinput
// via keybd_event. Neither is guaranteed to be present: desktop Linux has
// no built-in injection path, so absence is reported as ErrToolUnavailable
// and the caller tells the user to paste manually.
type linuxInjector struct {
	xdotool string // path to xdotool, empty when not installed
	uinput  bool   // /dev/uinput is writable by this process
}

// NewInjector probes the available injection tools once.
func NewInjector() KeyInjector {
	inj := &linuxInjector{}
	if path, err := exec.LookPath("xdotool"); err == nil {
		inj.xdotool = path
	}
	if f, err := os.OpenFile("/dev/uinput", os.O_WRONLY, 0); err == nil {
		f.Close()
		inj.uinput = true
	}
	return inj
}

func (l *linuxInjector) Available() (bool, string) {
	if l.xdotool != "" || l.uinput {
		return true, ""
	}
	return false, "install xdotool, or grant access to /dev/uinput"
}

func (l *linuxInjector) SendCopy() error {
	return l.send("ctrl+c", keybd_event.VK_C)
}

func (l *linuxInjector) SendPaste() error {
	return l.send("ctrl+v", keybd_event.VK_V)
}

func (l *linuxInjector) send(combo string, vk int) error {
	if l.xdotool != "" {
		out, err := exec.Command(l.xdotool, "key", "--clearmodifiers", combo).CombinedOutput()
		if err != nil {
			return fmt.Errorf("fallback: xdotool key %s: %v: %s", combo, err, out)
		}
		return nil
	}
	if !l.uinput {
		return fmt.Errorf("%w: install xdotool, or grant access to /dev/uinput", ErrToolUnavailable)
	}

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		// uinput open succeeded at probe time but bonding failed now;
		// most likely a permission change.
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	kb.HasCTRL(true)
	kb.SetKeys(vk)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("fallback: uinput send %s: %w", combo, err)
	}
	return nil
}
