// Package notify shows transient desktop notifications for cycle outcomes.
package notify

// Notifier delivers a short, auto-dismissing status message to the user.
// Delivery is best effort; implementations never block the caller on user
// interaction.
type Notifier interface {
	Notify(title, body string)
}

// Nop is a Notifier that discards everything. Used headless and in tests.
type Nop struct{}

func (Nop) Notify(title, body string) {}

// Recorder captures notifications for assertions in tests.
type Recorder struct {
	Titles []string
	Bodies []string
}

func (r *Recorder) Notify(title, body string) {
	r.Titles = append(r.Titles, title)
	r.Bodies = append(r.Bodies, body)
}
