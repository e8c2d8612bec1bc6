//go:build linux

package hotkeys

import "golang.design/x/hotkey"

// X11 names modifiers by position: Mod1 is where alt lands on stock
// layouts, Mod4 is super.
var modMap = map[string]hotkey.Modifier{
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
	"shift":   hotkey.ModShift,
	"alt":     hotkey.Mod1,
	"super":   hotkey.Mod4,
	"meta":    hotkey.Mod4,
}
