// Package clipboard wraps system clipboard access behind a small interface.
//
// The clipboard is shared with every other application on the system, so it
// is treated as volatile: content captured in a Snapshot may no longer be
// on the clipboard by the time Restore runs, and Restore simply writes the
// captured text back regardless.
package clipboard

import (
	"github.com/atotto/clipboard"
)

// Accessor is the platform-neutral clipboard interface. The production
// implementation talks to the real system clipboard; tests substitute an
// in-memory one.
type Accessor interface {
	// ReadText returns the current text clipboard content.
	ReadText() (string, error)

	// WriteText replaces the clipboard content with text.
	WriteText(text string) error
}

// System returns an Accessor backed by the OS clipboard.
func System() Accessor {
	return systemAccessor{}
}

type systemAccessor struct{}

func (systemAccessor) ReadText() (string, error) {
	return clipboard.ReadAll()
}

func (systemAccessor) WriteText(text string) error {
	return clipboard.WriteAll(text)
}

// Snapshot captures the clipboard's text content at a point in time so a
// borrowing operation can put it back afterwards.
type Snapshot struct {
	text string
	ok   bool
}

// Take reads the current clipboard content into a Snapshot. A failed read
// yields an empty snapshot whose Restore is a no-op, so callers never lose
// the ability to proceed just because the clipboard was unreadable.
func Take(a Accessor) Snapshot {
	text, err := a.ReadText()
	if err != nil {
		return Snapshot{}
	}
	return Snapshot{text: text, ok: true}
}

// Restore writes the captured content back to the clipboard.
func (s Snapshot) Restore(a Accessor) error {
	if !s.ok {
		return nil
	}
	return a.WriteText(s.text)
}

// Text returns the captured content and whether the capture succeeded.
func (s Snapshot) Text() (string, bool) {
	return s.text, s.ok
}
