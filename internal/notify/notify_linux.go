//go:build linux

package notify

import (
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// dbusNotifier speaks org.freedesktop.Notifications directly over the
// session bus. Notifications expire on their own after expireMillis.
type dbusNotifier struct {
	log *slog.Logger
}

const (
	notifyObject  = "org.freedesktop.Notifications"
	notifyPath    = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod  = "org.freedesktop.Notifications.Notify"
	expireMillis  = int32(4000)
	notifyAppName = "snapfix"
)

// NewDesktop returns the Linux notifier.
func NewDesktop(log *slog.Logger) Notifier {
	return &dbusNotifier{log: log}
}

func (n *dbusNotifier) Notify(title, body string) {
	conn, err := dbus.SessionBus()
	if err != nil {
		n.log.Warn("notification failed: no session bus", "error", err)
		return
	}

	obj := conn.Object(notifyObject, notifyPath)
	call := obj.Call(notifyMethod, 0,
		notifyAppName,             // app_name
		uint32(0),                 // replaces_id
		"",                        // app_icon
		title,                     // summary
		body,                      // body
		[]string{},                // actions
		map[string]dbus.Variant{}, // hints
		expireMillis,              // expire_timeout
	)
	if call.Err != nil {
		n.log.Warn("notification failed", "error", call.Err)
	}
}
