//go:build darwin || windows

package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// desktopNotifier delivers through the OS notification center via beeep.
type desktopNotifier struct {
	log *slog.Logger
}

// NewDesktop returns the platform notifier.
func NewDesktop(log *slog.Logger) Notifier {
	return &desktopNotifier{log: log}
}

func (n *desktopNotifier) Notify(title, body string) {
	if err := beeep.Notify(title, body, ""); err != nil {
		n.log.Warn("notification failed", "error", err)
	}
}
