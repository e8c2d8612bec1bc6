package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/getlantern/systray"

	"github.com/hrithikthakur/snapfix/internal/bridge"
)

// runTray runs the daemon under a system tray icon. systray.Run owns the
// main thread (required on macOS); the daemon starts from its ready
// callback and the process exits when the menu or a signal says so.
func runTray(d *Daemon) {
	systray.Run(
		func() { trayReady(d) },
		func() { d.Stop() },
	)
}

func trayReady(d *Daemon) {
	systray.SetTitle("snapfix")
	systray.SetTooltip("snapfix - hotkey text correction")

	if err := d.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		systray.Quit()
		return
	}

	cfg := d.config()
	mCorrect := systray.AddMenuItem(
		fmt.Sprintf("Correct Selection (%s)", cfg.Hotkeys.Correct),
		"Correct the currently selected text")
	mUndo := systray.AddMenuItem(
		fmt.Sprintf("Undo Last Correction (%s)", cfg.Hotkeys.Undo),
		"Revert the most recent correction")

	var mSettings *systray.MenuItem
	if d.currentBridge().Capability() == bridge.CapabilityNative {
		systray.AddSeparator()
		mSettings = systray.AddMenuItem("Open Accessibility Settings",
			"Grant the permission snapfix needs to read selections")
	}

	systray.AddSeparator()
	systray.AddMenuItem("Quit snapfix", "Stop the daemon")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	settingsCh := make(chan struct{})
	if mSettings != nil {
		go func() {
			for range mSettings.ClickedCh {
				settingsCh <- struct{}{}
			}
		}()
	}

	go func() {
		defer d.crash.RecoverGoroutine()
		for {
			select {
			case <-mCorrect.ClickedCh:
				go func() {
					defer d.crash.RecoverGoroutine()
					d.correctCycle(context.Background())
				}()

			case <-mUndo.ClickedCh:
				go func() {
					defer d.crash.RecoverGoroutine()
					d.undoCycle(context.Background())
				}()

			case <-settingsCh:
				d.currentBridge().OpenAccessibilitySettings(context.Background())

			case <-sigChan:
				systray.Quit()
				return

			case <-d.ShutdownRequested():
				systray.Quit()
				return
			}
		}
	}()
}
