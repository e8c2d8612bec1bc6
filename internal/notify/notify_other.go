//go:build !darwin && !linux && !windows

package notify

import "log/slog"

// NewDesktop falls back to logging on platforms without a notification
// surface.
func NewDesktop(log *slog.Logger) Notifier {
	return logNotifier{log: log}
}

type logNotifier struct {
	log *slog.Logger
}

func (n logNotifier) Notify(title, body string) {
	n.log.Info("notification", "title", title, "body", body)
}
