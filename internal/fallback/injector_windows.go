//go:build windows

package fallback

import (
	"fmt"

	"github.com/micmonay/keybd_event"
)

// windowsInjector sends Ctrl+C / Ctrl+V through the keybd_event SendInput
// wrapper. Injection needs no special permission on Windows.
type windowsInjector struct{}

// NewInjector returns the Windows key injector.
func NewInjector() KeyInjector {
	return windowsInjector{}
}

func (windowsInjector) Available() (bool, string) {
	return true, ""
}

func (windowsInjector) SendCopy() error {
	return sendCtrlKey(keybd_event.VK_C)
}

func (windowsInjector) SendPaste() error {
	return sendCtrlKey(keybd_event.VK_V)
}

func sendCtrlKey(vk int) error {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("fallback: key bonding: %w", err)
	}
	kb.HasCTRL(true)
	kb.SetKeys(vk)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("fallback: send input: %w", err)
	}
	return nil
}
