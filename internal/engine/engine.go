// Package engine runs correction cycles: permission check, selection
// read, external correction, write-back, undo bookkeeping.
//
// At most one cycle is in flight at a time. A trigger arriving while one
// runs is rejected immediately; a stale duplicate of an in-flight cycle
// is never useful, and overlapping cycles would race on the clipboard.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hrithikthakur/snapfix/internal/bridge"
	"github.com/hrithikthakur/snapfix/internal/clipboard"
	"github.com/hrithikthakur/snapfix/internal/corrector"
	"github.com/hrithikthakur/snapfix/internal/fallback"
	"github.com/hrithikthakur/snapfix/internal/notify"
	"github.com/hrithikthakur/snapfix/internal/undo"
)

// Deps are the engine's collaborators. All are required except Notifier
// and Logger, which default to no-ops.
type Deps struct {
	Bridge    bridge.Bridge
	Corrector corrector.Corrector
	Clipboard clipboard.Accessor
	Ledger    *undo.Ledger
	Notifier  notify.Notifier
	Logger    *slog.Logger

	// OpenSettingsOnDenied opens the OS accessibility pane when a cycle
	// fails on a missing permission, as the one-click remediation path.
	OpenSettingsOnDenied bool
}

// Engine sequences correction cycles over its collaborators. The
// collaborators can be swapped with Reconfigure; each cycle works on
// the set it saw at its start.
type Engine struct {
	inFlight atomic.Bool

	mu   sync.Mutex
	deps Deps
	last *Result
}

// New wires an engine from its dependencies.
func New(d Deps) *Engine {
	if d.Ledger == nil {
		d.Ledger = undo.NewLedger(undo.DefaultCapacity)
	}
	return &Engine{deps: normalize(d)}
}

// Reconfigure swaps the engine's collaborators in place, typically on a
// config reload. The busy gate, last result and undo ledger survive: a
// cycle already in flight finishes on the collaborators it started
// with, and a nil Ledger keeps the current one so undo history is never
// dropped by a reload.
func (e *Engine) Reconfigure(d Deps) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d.Ledger == nil {
		d.Ledger = e.deps.Ledger
	}
	e.deps = normalize(d)
}

// normalize fills the optional collaborators with no-ops.
func normalize(d Deps) Deps {
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// snapshot returns the current collaborator set.
func (e *Engine) snapshot() Deps {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deps
}

// Busy reports whether a cycle is currently in flight.
func (e *Engine) Busy() bool {
	return e.inFlight.Load()
}

// LastResult returns the most recent terminal result, if any.
func (e *Engine) LastResult() (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return Result{}, false
	}
	return *e.last, true
}

// UndoDepth returns the number of corrections currently undoable.
func (e *Engine) UndoDepth() int {
	return e.snapshot().Ledger.Len()
}

// Correct runs one full correction cycle and returns its terminal result.
func (e *Engine) Correct(ctx context.Context) Result {
	d := e.snapshot()
	if !e.inFlight.CompareAndSwap(false, true) {
		d.Logger.Debug("trigger ignored, cycle already in flight")
		return Result{Outcome: OutcomeFailed, Reason: ReasonBusy}
	}
	defer e.inFlight.Store(false)

	cycleID := uuid.NewString()[:8]
	log := d.Logger.With("cycle_id", cycleID)
	res := runCorrection(ctx, d, log, cycleID)

	e.finish(d, log, res)
	return res
}

func runCorrection(ctx context.Context, d Deps, log *slog.Logger, cycleID string) Result {
	fail := func(reason FailReason) Result {
		return Result{Outcome: OutcomeFailed, Reason: reason, CycleID: cycleID}
	}

	// CheckingPermission. Only the native-capability platform gates on a
	// user-grantable permission; fallback-only platforms proceed.
	log.Debug("state", "state", StateCheckingPermission)
	switch d.Bridge.Capability() {
	case bridge.CapabilityUnsupported:
		return fail(ReasonToolUnavailable)
	case bridge.CapabilityNative:
		if !d.Bridge.HasAccessPermission(ctx) {
			log.Warn("accessibility permission missing")
			if err := d.Bridge.RequestPermission(ctx); err != nil {
				log.Debug("permission request", "error", err)
			}
			if d.OpenSettingsOnDenied {
				if err := d.Bridge.OpenAccessibilitySettings(ctx); err != nil {
					log.Debug("open settings", "error", err)
				}
			}
			return fail(ReasonPermissionDenied)
		}
	}

	// ReadingSelection, with the general clipboard as last resort: the
	// user may have copied text instead of keeping a live selection.
	log.Debug("state", "state", StateReadingSelection)
	original := d.Bridge.GetSelectedText(ctx)
	if strings.TrimSpace(original) == "" {
		if text, err := d.Clipboard.ReadText(); err == nil {
			original = text
		}
	}
	if strings.TrimSpace(original) == "" {
		return fail(ReasonNoSelection)
	}

	// Correcting. No application state has been modified yet, so any
	// corrector failure stops the cycle cleanly.
	log.Debug("state", "state", StateCorrecting, "chars", len(original))
	corrected, err := d.Corrector.Correct(ctx, original)
	if err != nil {
		log.Warn("correction failed", "error", err)
		return fail(correctionReason(err))
	}

	if corrected == original {
		log.Info("no changes needed")
		return Result{Outcome: OutcomeNoChanges, CycleID: cycleID, Original: original, Corrected: corrected}
	}

	// WritingBack.
	log.Debug("state", "state", StateWritingBack)
	applied, werr := d.Bridge.ReplaceSelectedText(ctx, corrected)
	if !applied {
		// The corrected text must survive on the clipboard so the user
		// can paste it by hand.
		if cerr := d.Clipboard.WriteText(corrected); cerr != nil {
			log.Warn("could not leave corrected text on clipboard", "error", cerr)
		}
		reason := writeBackReason(werr)
		if reason == ReasonPermissionDenied {
			if err := d.Bridge.RequestPermission(ctx); err != nil {
				log.Debug("permission request", "error", err)
			}
		}
		log.Warn("write-back unconfirmed", "reason", reason, "error", werr)
		return Result{Outcome: OutcomePartial, Reason: reason, CycleID: cycleID,
			Original: original, Corrected: corrected}
	}

	// RecordingUndo.
	log.Debug("state", "state", StateRecordingUndo)
	d.Ledger.Push(undo.Record{
		Original:  original,
		Corrected: corrected,
		Timestamp: time.Now(),
	})

	log.Info("correction applied", "original_chars", len(original), "corrected_chars", len(corrected))
	return Result{Outcome: OutcomeSuccess, CycleID: cycleID, Original: original, Corrected: corrected}
}

// Undo reverts the most recent correction. The pop is transactional: when
// the reverse write cannot be confirmed, the record is re-pushed so the
// undo can be retried.
func (e *Engine) Undo(ctx context.Context) Result {
	d := e.snapshot()
	if !e.inFlight.CompareAndSwap(false, true) {
		d.Logger.Debug("undo ignored, cycle already in flight")
		return Result{Outcome: OutcomeFailed, Reason: ReasonBusy}
	}
	defer e.inFlight.Store(false)

	cycleID := uuid.NewString()[:8]
	log := d.Logger.With("cycle_id", cycleID, "op", "undo")

	rec, ok := d.Ledger.PopLatest()
	if !ok {
		res := Result{Outcome: OutcomeNothingToUndo, CycleID: cycleID}
		e.finish(d, log, res)
		return res
	}

	applied, werr := d.Bridge.ReplaceSelectedText(ctx, rec.Original)
	if !applied {
		d.Ledger.Push(rec)
		if cerr := d.Clipboard.WriteText(rec.Original); cerr != nil {
			log.Warn("could not leave original text on clipboard", "error", cerr)
		}
		res := Result{Outcome: OutcomePartial, Reason: writeBackReason(werr), CycleID: cycleID,
			Original: rec.Original, Corrected: rec.Corrected}
		e.finish(d, log, res)
		return res
	}

	res := Result{Outcome: OutcomeSuccess, CycleID: cycleID,
		Original: rec.Original, Corrected: rec.Corrected}
	e.finish(d, log, res)
	return res
}

// finish records the terminal result, logs it and notifies the user.
func (e *Engine) finish(d Deps, log *slog.Logger, res Result) {
	e.mu.Lock()
	e.last = &res
	e.mu.Unlock()

	state := StateDone
	if res.Outcome == OutcomeFailed {
		state = StateFailed
	}
	log.Info("cycle finished", "state", state, "outcome", res.Outcome, "reason", res.Reason)

	switch res.Outcome {
	case OutcomeSuccess:
		d.Notifier.Notify("snapfix", "Text corrected")
	case OutcomeNoChanges:
		d.Notifier.Notify("snapfix", "No changes needed")
	case OutcomePartial:
		d.Notifier.Notify("snapfix", res.Reason.Message())
	case OutcomeNothingToUndo:
		d.Notifier.Notify("snapfix", "Nothing to undo")
	case OutcomeFailed:
		if res.Reason != ReasonBusy {
			d.Notifier.Notify("snapfix", res.Reason.Message())
		}
	}
}

// correctionReason maps corrector error kinds onto cycle fail reasons.
func correctionReason(err error) FailReason {
	switch corrector.KindOf(err) {
	case corrector.KindTimeout:
		return ReasonCorrectionTimeout
	case corrector.KindNetwork:
		return ReasonCorrectionNetwork
	case corrector.KindServer:
		return ReasonCorrectionServer
	case corrector.KindAuth:
		return ReasonCorrectionAuth
	case corrector.KindMalformed:
		return ReasonCorrectionMalformed
	default:
		return ReasonCorrectionNetwork
	}
}

// writeBackReason classifies an unconfirmed write.
func writeBackReason(err error) FailReason {
	switch {
	case errors.Is(err, fallback.ErrPermissionDenied):
		return ReasonPermissionDenied
	case errors.Is(err, fallback.ErrToolUnavailable):
		return ReasonToolUnavailable
	default:
		return ReasonWriteBackUnconfirmed
	}
}
