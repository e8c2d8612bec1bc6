//go:build !darwin && !linux && !windows

package bridge

import (
	"context"
	"log/slog"

	"github.com/hrithikthakur/snapfix/internal/fallback"
)

// stubBridge is used on platforms with neither automation nor injection.
type stubBridge struct{}

// New returns a bridge that can do nothing on this platform.
func New(orch *fallback.Orchestrator, log *slog.Logger) Bridge {
	return stubBridge{}
}

func (stubBridge) Capability() Capability {
	return CapabilityUnsupported
}

func (stubBridge) HasAccessPermission(ctx context.Context) bool {
	return false
}

func (stubBridge) RequestPermission(ctx context.Context) error {
	return nil
}

func (stubBridge) GetSelectedText(ctx context.Context) string {
	return ""
}

func (stubBridge) ReplaceSelectedText(ctx context.Context, text string) (bool, error) {
	return false, fallback.ErrToolUnavailable
}

func (stubBridge) OpenAccessibilitySettings(ctx context.Context) error {
	return nil
}
