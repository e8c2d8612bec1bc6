//go:build linux

package bridge

import (
	"context"
	"log/slog"

	"github.com/hrithikthakur/snapfix/internal/fallback"
)

// Linux has no portable accessibility write path, so the bridge is
// fallback-only: reads and writes both go through the clipboard
// orchestrator, whose injector has already probed for xdotool/uinput.
type linuxBridge struct {
	chain
	orch *fallback.Orchestrator
}

// New returns the Linux bridge.
func New(orch *fallback.Orchestrator, log *slog.Logger) Bridge {
	b := &linuxBridge{
		chain: chain{log: log.With("bridge", "linux")},
		orch:  orch,
	}
	b.reads = []readStrategy{
		{name: "clipboard-copy", run: orch.ReadViaCopy},
	}
	b.writes = []writeStrategy{
		{name: "clipboard-paste", run: orch.WriteViaPaste},
	}
	return b
}

func (b *linuxBridge) Capability() Capability {
	return CapabilityFallbackOnly
}

// HasAccessPermission is true on Linux: there is no permission gate, only
// optional tooling, and missing tooling is reported per operation.
func (b *linuxBridge) HasAccessPermission(ctx context.Context) bool {
	return true
}

func (b *linuxBridge) RequestPermission(ctx context.Context) error {
	return nil
}

func (b *linuxBridge) GetSelectedText(ctx context.Context) string {
	return b.getSelectedText(ctx)
}

func (b *linuxBridge) ReplaceSelectedText(ctx context.Context, text string) (bool, error) {
	return b.replaceSelectedText(ctx, text)
}

func (b *linuxBridge) OpenAccessibilitySettings(ctx context.Context) error {
	// No accessibility pane to open; the remediation is installing a
	// tool, which the notifier message explains.
	return nil
}
