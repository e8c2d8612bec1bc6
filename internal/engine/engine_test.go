package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrithikthakur/snapfix/internal/bridge"
	"github.com/hrithikthakur/snapfix/internal/corrector"
	"github.com/hrithikthakur/snapfix/internal/fallback"
	"github.com/hrithikthakur/snapfix/internal/notify"
	"github.com/hrithikthakur/snapfix/internal/undo"
)

// ── fakes ──

type fakeBridge struct {
	capability         bridge.Capability
	permission         bool
	selection          string
	replaceOK          bool
	replaceErr         error
	replaced           []string
	permissionRequests int
	settingsOpened     int
	reads              int
}

func (f *fakeBridge) Capability() bridge.Capability { return f.capability }

func (f *fakeBridge) HasAccessPermission(ctx context.Context) bool { return f.permission }

func (f *fakeBridge) RequestPermission(ctx context.Context) error {
	f.permissionRequests++
	return nil
}

func (f *fakeBridge) GetSelectedText(ctx context.Context) string {
	f.reads++
	return f.selection
}

func (f *fakeBridge) ReplaceSelectedText(ctx context.Context, text string) (bool, error) {
	f.replaced = append(f.replaced, text)
	return f.replaceOK, f.replaceErr
}

func (f *fakeBridge) OpenAccessibilitySettings(ctx context.Context) error {
	f.settingsOpened++
	return nil
}

type fakeCorrector struct {
	result  string
	err     error
	calls   int
	started chan struct{} // closed on first call, when non-nil
	release chan struct{} // blocks Correct until closed, when non-nil
}

func (f *fakeCorrector) Correct(ctx context.Context, text string) (string, error) {
	f.calls++
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

type fakeClip struct {
	content string
	writes  []string
}

func (f *fakeClip) ReadText() (string, error) { return f.content, nil }

func (f *fakeClip) WriteText(text string) error {
	f.content = text
	f.writes = append(f.writes, text)
	return nil
}

type fixture struct {
	bridge    *fakeBridge
	corrector *fakeCorrector
	clip      *fakeClip
	ledger    *undo.Ledger
	notes     *notify.Recorder
	engine    *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bridge:    &fakeBridge{capability: bridge.CapabilityNative, permission: true, replaceOK: true},
		corrector: &fakeCorrector{},
		clip:      &fakeClip{},
		ledger:    undo.NewLedger(10),
		notes:     &notify.Recorder{},
	}
	f.engine = New(Deps{
		Bridge:               f.bridge,
		Corrector:            f.corrector,
		Clipboard:            f.clip,
		Ledger:               f.ledger,
		Notifier:             f.notes,
		Logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		OpenSettingsOnDenied: true,
	})
	return f
}

// ── correction scenarios ──

func TestCorrectHappyPath(t *testing.T) {
	f := newFixture(t)
	f.bridge.selection = "Helo wrold"
	f.corrector.result = "Hello world"

	res := f.engine.Correct(context.Background())

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	require.Len(t, f.bridge.replaced, 1)
	assert.Equal(t, "Hello world", f.bridge.replaced[0])

	require.Equal(t, 1, f.ledger.Len())
	rec, _ := f.ledger.PopLatest()
	assert.Equal(t, "Helo wrold", rec.Original)
	assert.Equal(t, "Hello world", rec.Corrected)

	require.NotEmpty(t, f.notes.Bodies)
	assert.Equal(t, "Text corrected", f.notes.Bodies[0])
}

func TestCorrectNoSelection(t *testing.T) {
	f := newFixture(t)
	f.bridge.selection = ""
	f.clip.content = "" // clipboard last resort also empty

	res := f.engine.Correct(context.Background())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ReasonNoSelection, res.Reason)
	assert.Zero(t, f.corrector.calls, "no corrector call without usable text")
	assert.Empty(t, f.bridge.replaced)
}

func TestCorrectWhitespaceSelectionIsNoSelection(t *testing.T) {
	f := newFixture(t)
	f.bridge.selection = "   \n\t"

	res := f.engine.Correct(context.Background())

	assert.Equal(t, ReasonNoSelection, res.Reason)
	assert.Zero(t, f.corrector.calls)
}

func TestCorrectClipboardLastResort(t *testing.T) {
	f := newFixture(t)
	f.bridge.selection = ""
	f.clip.content = "copied earlier"
	f.corrector.result = "Copied earlier."

	res := f.engine.Correct(context.Background())

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "copied earlier", res.Original)
}

func TestCorrectNoChangesNeeded(t *testing.T) {
	f := newFixture(t)
	f.bridge.selection = "Fine as is"
	f.corrector.result = "Fine as is"

	res := f.engine.Correct(context.Background())

	assert.Equal(t, OutcomeNoChanges, res.Outcome)
	assert.Empty(t, f.bridge.replaced, "writer must not run for unchanged text")
	assert.Zero(t, f.ledger.Len(), "nothing to undo")
	require.NotEmpty(t, f.notes.Bodies)
	assert.Equal(t, "No changes needed", f.notes.Bodies[0])
}

func TestCorrectPermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.bridge.permission = false
	f.bridge.selection = "irrelevant"

	res := f.engine.Correct(context.Background())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ReasonPermissionDenied, res.Reason)
	assert.Zero(t, f.bridge.reads, "no read attempted without permission")
	assert.Zero(t, f.corrector.calls)
	assert.Equal(t, 1, f.bridge.permissionRequests, "request flow triggered")
	assert.Equal(t, 1, f.bridge.settingsOpened, "remediation offered")
}

func TestCorrectFallbackOnlySkipsPermissionGate(t *testing.T) {
	f := newFixture(t)
	f.bridge.capability = bridge.CapabilityFallbackOnly
	f.bridge.permission = false
	f.bridge.selection = "text"
	f.corrector.result = "Text"

	res := f.engine.Correct(context.Background())
	assert.Equal(t, OutcomeSuccess, res.Outcome)
}

func TestCorrectUnsupportedPlatform(t *testing.T) {
	f := newFixture(t)
	f.bridge.capability = bridge.CapabilityUnsupported

	res := f.engine.Correct(context.Background())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ReasonToolUnavailable, res.Reason)
}

func TestCorrectCorrectorErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason FailReason
	}{
		{"timeout", &corrector.Error{Kind: corrector.KindTimeout, Err: errors.New("deadline")}, ReasonCorrectionTimeout},
		{"network", &corrector.Error{Kind: corrector.KindNetwork, Err: errors.New("refused")}, ReasonCorrectionNetwork},
		{"server", &corrector.Error{Kind: corrector.KindServer, Err: errors.New("502")}, ReasonCorrectionServer},
		{"auth", &corrector.Error{Kind: corrector.KindAuth, Err: errors.New("no key")}, ReasonCorrectionAuth},
		{"malformed", &corrector.Error{Kind: corrector.KindMalformed, Err: errors.New("shape")}, ReasonCorrectionMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.bridge.selection = "text"
			f.corrector.err = tc.err

			res := f.engine.Correct(context.Background())

			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.Equal(t, tc.reason, res.Reason)
			assert.Empty(t, f.bridge.replaced, "no write after corrector failure")
			assert.Zero(t, f.ledger.Len())
		})
	}
}

func TestCorrectPartialLeavesTextOnClipboard(t *testing.T) {
	f := newFixture(t)
	f.bridge.selection = "Helo"
	f.bridge.replaceOK = false
	f.bridge.replaceErr = fallback.ErrToolUnavailable
	f.corrector.result = "Hello"

	res := f.engine.Correct(context.Background())

	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, ReasonToolUnavailable, res.Reason)
	assert.Equal(t, "Hello", f.clip.content, "corrected text available for manual paste")
	assert.Zero(t, f.ledger.Len(), "unconfirmed write is not undoable")
}

func TestCorrectPartialPermissionDeniedTriggersRequest(t *testing.T) {
	f := newFixture(t)
	f.bridge.selection = "Helo"
	f.bridge.replaceOK = false
	f.bridge.replaceErr = fallback.ErrPermissionDenied
	f.corrector.result = "Hello"

	res := f.engine.Correct(context.Background())

	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, ReasonPermissionDenied, res.Reason)
	assert.Equal(t, 1, f.bridge.permissionRequests)
}

// ── concurrency ──

func TestSecondTriggerRejectedWhileInFlight(t *testing.T) {
	f := newFixture(t)
	f.bridge.selection = "text"
	f.corrector.result = "Text"
	f.corrector.started = make(chan struct{})
	f.corrector.release = make(chan struct{})
	started := f.corrector.started
	release := f.corrector.release

	first := make(chan Result, 1)
	go func() { first <- f.engine.Correct(context.Background()) }()

	<-started
	assert.True(t, f.engine.Busy())

	second := f.engine.Correct(context.Background())
	assert.Equal(t, OutcomeFailed, second.Outcome)
	assert.Equal(t, ReasonBusy, second.Reason)

	close(release)
	res := <-first
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Len(t, f.bridge.replaced, 1, "only the first cycle wrote")
	assert.False(t, f.engine.Busy())
}

// ── reconfiguration ──

func TestReconfigureKeepsUndoHistory(t *testing.T) {
	f := newFixture(t)
	f.bridge.selection = "Helo"
	f.corrector.result = "Hello"
	res := f.engine.Correct(context.Background())
	require.Equal(t, OutcomeSuccess, res.Outcome)
	require.Equal(t, 1, f.engine.UndoDepth())

	// Swap every collaborator, as a config reload does. A nil ledger
	// means keep the current one.
	newBridge := &fakeBridge{capability: bridge.CapabilityNative, permission: true, replaceOK: true}
	f.engine.Reconfigure(Deps{
		Bridge:    newBridge,
		Corrector: &fakeCorrector{result: "unused"},
		Clipboard: &fakeClip{},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	assert.Equal(t, 1, f.engine.UndoDepth(), "undo history survives reload")

	res = f.engine.Undo(context.Background())
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	require.Len(t, newBridge.replaced, 1, "undo runs against the new collaborators")
	assert.Equal(t, "Helo", newBridge.replaced[0])
}

func TestReconfigureDoesNotResetBusyGate(t *testing.T) {
	f := newFixture(t)
	f.bridge.selection = "text"
	f.corrector.result = "Text"
	f.corrector.started = make(chan struct{})
	f.corrector.release = make(chan struct{})
	started := f.corrector.started
	release := f.corrector.release

	first := make(chan Result, 1)
	go func() { first <- f.engine.Correct(context.Background()) }()
	<-started

	newCorrector := &fakeCorrector{result: "Other"}
	f.engine.Reconfigure(Deps{
		Bridge:    &fakeBridge{capability: bridge.CapabilityNative, permission: true, replaceOK: true},
		Corrector: newCorrector,
		Clipboard: &fakeClip{},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	// At most one cycle at a time, even right after a reload.
	second := f.engine.Correct(context.Background())
	assert.Equal(t, OutcomeFailed, second.Outcome)
	assert.Equal(t, ReasonBusy, second.Reason)
	assert.Zero(t, newCorrector.calls)

	close(release)
	res := <-first
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Len(t, f.bridge.replaced, 1, "in-flight cycle finished on its original collaborators")
	assert.False(t, f.engine.Busy())
}

// ── undo ──

func TestUndoAppliesOriginal(t *testing.T) {
	f := newFixture(t)
	f.ledger.Push(undo.Record{Original: "before", Corrected: "after"})

	res := f.engine.Undo(context.Background())

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	require.Len(t, f.bridge.replaced, 1)
	assert.Equal(t, "before", f.bridge.replaced[0])
	assert.Zero(t, f.ledger.Len())
}

func TestUndoEmptyLedger(t *testing.T) {
	f := newFixture(t)

	res := f.engine.Undo(context.Background())

	assert.Equal(t, OutcomeNothingToUndo, res.Outcome)
	assert.Empty(t, f.bridge.replaced, "writer never invoked on empty ledger")
	require.NotEmpty(t, f.notes.Bodies)
	assert.Equal(t, "Nothing to undo", f.notes.Bodies[0])
}

func TestUndoTransactionalOnFailure(t *testing.T) {
	f := newFixture(t)
	f.bridge.replaceOK = false
	f.bridge.replaceErr = errors.New("target gone")
	f.ledger.Push(undo.Record{Original: "before", Corrected: "after"})

	res := f.engine.Undo(context.Background())

	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, 1, f.ledger.Len(), "record re-pushed so undo can be retried")
	assert.Equal(t, "before", f.clip.content, "original text left for manual paste")

	// Retry after the target recovers.
	f.bridge.replaceOK = true
	f.bridge.replaceErr = nil
	res = f.engine.Undo(context.Background())
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Zero(t, f.ledger.Len())
}

// ── status ──

func TestLastResult(t *testing.T) {
	f := newFixture(t)
	_, ok := f.engine.LastResult()
	assert.False(t, ok)

	f.bridge.selection = "text"
	f.corrector.result = "Text"
	f.engine.Correct(context.Background())

	last, ok := f.engine.LastResult()
	require.True(t, ok)
	assert.Equal(t, OutcomeSuccess, last.Outcome)
	assert.Equal(t, 1, f.engine.UndoDepth())
}
