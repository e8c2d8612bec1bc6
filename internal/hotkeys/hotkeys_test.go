package hotkeys

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	registerErr  error
	registered   atomic.Bool
	unregistered atomic.Bool
	keyCh        chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{keyCh: make(chan struct{}, 4)}
}

func (f *fakeBackend) Register() error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered.Store(true)
	return nil
}

func (f *fakeBackend) Unregister() error {
	f.unregistered.Store(true)
	return nil
}

func (f *fakeBackend) Keydown() <-chan struct{} { return f.keyCh }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCombo(t *testing.T) {
	tests := []struct {
		combo   string
		mods    int
		wantErr bool
	}{
		{"ctrl+shift+c", 2, false},
		{"ctrl+shift+z", 2, false},
		{"CTRL+SHIFT+C", 2, false},
		{" ctrl+c ", 1, false},
		{"shift+9", 1, false},
		{"ctrl+ctrl+c", 1, false}, // duplicate modifier deduped
		{"c", 0, true},            // no modifier
		{"", 0, true},
		{"bogus+c", 0, true},
		{"ctrl+escape", 0, true}, // unknown key
	}
	for _, tt := range tests {
		t.Run(tt.combo, func(t *testing.T) {
			mods, _, err := ParseCombo(tt.combo)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Len(t, mods, tt.mods)
		})
	}
}

func TestManagerDispatchesActions(t *testing.T) {
	correct := newFakeBackend()
	undo := newFakeBackend()
	backends := map[string]*fakeBackend{
		"ctrl+shift+c": correct,
		"ctrl+shift+z": undo,
	}
	m := newManagerWithFactory(discardLogger(), func(combo string) (Backend, error) {
		return backends[combo], nil
	})

	var correctCount, undoCount atomic.Int32
	fired := make(chan struct{}, 8)
	err := m.Start(context.Background(), []Binding{
		{Combo: "ctrl+shift+c", Action: func() { correctCount.Add(1); fired <- struct{}{} }},
		{Combo: "ctrl+shift+z", Action: func() { undoCount.Add(1); fired <- struct{}{} }},
	})
	require.NoError(t, err)
	defer m.Stop()

	correct.keyCh <- struct{}{}
	correct.keyCh <- struct{}{}
	undo.keyCh <- struct{}{}
	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("action did not fire")
		}
	}
	assert.Equal(t, int32(2), correctCount.Load())
	assert.Equal(t, int32(1), undoCount.Load())
}

func TestManagerRegisterConflictUnwinds(t *testing.T) {
	first := newFakeBackend()
	second := newFakeBackend()
	second.registerErr = errors.New("already grabbed")
	backends := []*fakeBackend{first, second}
	i := 0
	m := newManagerWithFactory(discardLogger(), func(string) (Backend, error) {
		b := backends[i]
		i++
		return b, nil
	})

	err := m.Start(context.Background(), []Binding{
		{Combo: "ctrl+shift+c", Action: func() {}},
		{Combo: "ctrl+shift+z", Action: func() {}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.True(t, first.unregistered.Load(), "first binding should be rolled back")
}

func TestManagerStartFactoryError(t *testing.T) {
	m := newManagerWithFactory(discardLogger(), func(combo string) (Backend, error) {
		return nil, ErrInvalid
	})
	err := m.Start(context.Background(), []Binding{{Combo: "nope", Action: func() {}}})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestManagerStopUnregisters(t *testing.T) {
	b := newFakeBackend()
	m := newManagerWithFactory(discardLogger(), func(string) (Backend, error) { return b, nil })
	require.NoError(t, m.Start(context.Background(), []Binding{
		{Combo: "ctrl+shift+c", Action: func() {}},
	}))
	m.Stop()
	assert.True(t, b.unregistered.Load())
}

func TestManagerClosedChannelStopsListener(t *testing.T) {
	b := newFakeBackend()
	m := newManagerWithFactory(discardLogger(), func(string) (Backend, error) { return b, nil })
	require.NoError(t, m.Start(context.Background(), []Binding{
		{Combo: "ctrl+shift+c", Action: func() {}},
	}))
	close(b.keyCh)
	done := make(chan struct{})
	go func() { m.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after keydown channel closed")
	}
}
