// Package hotkeys registers the global shortcuts that trigger correction
// and undo, wrapping golang.design/x/hotkey behind a backend interface so
// unit tests never touch real OS hotkey registration.
package hotkeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.design/x/hotkey"
)

// ErrConflict is returned when the key combination is already registered
// by another application.
var ErrConflict = errors.New("hotkeys: key combination already registered by another application")

// ErrInvalid is returned when a combo string cannot be parsed.
var ErrInvalid = errors.New("hotkeys: invalid key combination")

// Backend abstracts one registered hotkey.
type Backend interface {
	Register() error
	Unregister() error
	Keydown() <-chan struct{}
}

// BackendFactory builds a backend for a combo string.
type BackendFactory func(combo string) (Backend, error)

// Binding ties a combo string to the action it fires.
type Binding struct {
	Combo  string
	Action func()
}

// Manager owns the registered hotkeys and their listener goroutines.
type Manager struct {
	mu      sync.Mutex
	factory BackendFactory
	log     *slog.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager using the real hotkey backend.
func NewManager(log *slog.Logger) *Manager {
	return &Manager{factory: newRealBackend, log: log}
}

// newManagerWithFactory wires in a custom backend factory (tests only).
func newManagerWithFactory(log *slog.Logger, f BackendFactory) *Manager {
	return &Manager{factory: f, log: log}
}

// Start registers every binding and listens until ctx is cancelled.
// Registration failures unwind already-registered bindings and return
// the error; a running manager must be Stopped before Start runs again.
func (m *Manager) Start(ctx context.Context, bindings []Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	listenCtx, cancel := context.WithCancel(ctx)

	var registered []Backend
	fail := func(err error) error {
		for _, b := range registered {
			_ = b.Unregister()
		}
		cancel()
		return err
	}

	for _, binding := range bindings {
		b, err := m.factory(binding.Combo)
		if err != nil {
			return fail(err)
		}
		if err := b.Register(); err != nil {
			return fail(fmt.Errorf("%w: %s", ErrConflict, binding.Combo))
		}
		registered = append(registered, b)
		m.log.Info("hotkey registered", "combo", binding.Combo)

		m.wg.Add(1)
		go m.listen(listenCtx, b, binding)
	}

	m.cancel = cancel
	return nil
}

func (m *Manager) listen(ctx context.Context, b Backend, binding Binding) {
	defer m.wg.Done()
	defer func() {
		_ = b.Unregister()
		m.log.Info("hotkey unregistered", "combo", binding.Combo)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-b.Keydown():
			if !ok {
				return
			}
			m.log.Debug("hotkey triggered", "combo", binding.Combo)
			binding.Action()
		}
	}
}

// Stop unregisters everything and waits for the listeners to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// ParseCombo splits a combo like "ctrl+shift+c" into modifiers and key.
// At least one modifier is required: a bare key is almost certainly a
// misconfiguration that would shadow normal typing.
func ParseCombo(combo string) ([]hotkey.Modifier, hotkey.Key, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")
	if len(parts) < 2 {
		return nil, 0, fmt.Errorf("%w: %q (need modifier+key)", ErrInvalid, combo)
	}
	keyPart := parts[len(parts)-1]
	modParts := parts[:len(parts)-1]

	key, ok := keyMap[keyPart]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown key %q", ErrInvalid, keyPart)
	}

	var mods []hotkey.Modifier
	seen := map[string]bool{}
	for _, p := range modParts {
		if seen[p] {
			continue
		}
		seen[p] = true
		mod, ok := modMap[p]
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown modifier %q", ErrInvalid, p)
		}
		mods = append(mods, mod)
	}
	return mods, key, nil
}

// realBackend wraps one golang.design/x/hotkey registration. The hotkey
// object is created in Register so no OS goroutines spawn at construction.
type realBackend struct {
	mods      []hotkey.Modifier
	key       hotkey.Key
	hk        *hotkey.Hotkey
	keyCh     chan struct{}
	closeOnce sync.Once
}

func newRealBackend(combo string) (Backend, error) {
	mods, key, err := ParseCombo(combo)
	if err != nil {
		return nil, err
	}
	return &realBackend{mods: mods, key: key}, nil
}

func (r *realBackend) Register() error {
	r.hk = hotkey.New(r.mods, r.key)
	if err := r.hk.Register(); err != nil {
		_ = r.hk.Unregister()
		r.hk = nil
		return ErrConflict
	}
	// Relay with a small buffer; rapid repeat presses beyond it drop.
	r.keyCh = make(chan struct{}, 4)
	src := r.hk.Keydown()
	go func() {
		for range src {
			select {
			case r.keyCh <- struct{}{}:
			default:
			}
		}
		r.closeOnce.Do(func() { close(r.keyCh) })
	}()
	return nil
}

func (r *realBackend) Unregister() error {
	if r.hk == nil {
		return nil
	}
	return r.hk.Unregister()
}

func (r *realBackend) Keydown() <-chan struct{} {
	return r.keyCh
}

// keyMap covers the keys a correction shortcut realistically uses.
var keyMap = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"space":  hotkey.KeySpace,
	"return": hotkey.KeyReturn, "enter": hotkey.KeyReturn,
	"tab": hotkey.KeyTab,
}
