package engine

// State is a correction cycle's position in the sequence
// Idle → CheckingPermission → ReadingSelection → Correcting → WritingBack
// → RecordingUndo → Done, with Failed reachable from any of them.
type State int

const (
	StateIdle State = iota
	StateCheckingPermission
	StateReadingSelection
	StateCorrecting
	StateWritingBack
	StateRecordingUndo
	StateDone
	StateFailed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingPermission:
		return "checking-permission"
	case StateReadingSelection:
		return "reading-selection"
	case StateCorrecting:
		return "correcting"
	case StateWritingBack:
		return "writing-back"
	case StateRecordingUndo:
		return "recording-undo"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is a cycle's terminal, user-facing result.
type Outcome int

const (
	// OutcomeSuccess means the replacement was confirmed applied.
	OutcomeSuccess Outcome = iota

	// OutcomeNoChanges means the corrector returned the input unchanged;
	// nothing was written and nothing can be undone.
	OutcomeNoChanges

	// OutcomePartial means no method confirmed the replacement, but the
	// corrected text is on the clipboard for manual pasting.
	OutcomePartial

	// OutcomeFailed means the cycle stopped before any write.
	OutcomeFailed

	// OutcomeNothingToUndo means undo was triggered on an empty ledger.
	OutcomeNothingToUndo
)

// String returns the outcome name for logs and status replies.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoChanges:
		return "no-changes"
	case OutcomePartial:
		return "partial"
	case OutcomeFailed:
		return "failed"
	case OutcomeNothingToUndo:
		return "nothing-to-undo"
	default:
		return "unknown"
	}
}

// FailReason classifies why a cycle failed or could not confirm its write.
type FailReason int

const (
	ReasonNone FailReason = iota
	ReasonBusy
	ReasonPermissionDenied
	ReasonNoSelection
	ReasonCorrectionTimeout
	ReasonCorrectionNetwork
	ReasonCorrectionServer
	ReasonCorrectionAuth
	ReasonCorrectionMalformed
	ReasonWriteBackUnconfirmed
	ReasonToolUnavailable
	ReasonUnknownAutomation
)

// String returns the reason name for logs and status replies.
func (r FailReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonBusy:
		return "busy"
	case ReasonPermissionDenied:
		return "permission-denied"
	case ReasonNoSelection:
		return "no-selection"
	case ReasonCorrectionTimeout:
		return "correction-timeout"
	case ReasonCorrectionNetwork:
		return "correction-network-error"
	case ReasonCorrectionServer:
		return "correction-server-error"
	case ReasonCorrectionAuth:
		return "correction-auth-error"
	case ReasonCorrectionMalformed:
		return "correction-malformed-response"
	case ReasonWriteBackUnconfirmed:
		return "write-back-unconfirmed"
	case ReasonToolUnavailable:
		return "automation-tool-unavailable"
	case ReasonUnknownAutomation:
		return "unknown-automation-failure"
	default:
		return "unknown"
	}
}

// Message returns the short user-displayable text for this reason.
func (r FailReason) Message() string {
	switch r {
	case ReasonPermissionDenied:
		return "Accessibility permission needed. Grant it in system settings"
	case ReasonNoSelection:
		return "No text selected"
	case ReasonCorrectionTimeout:
		return "Correction timed out"
	case ReasonCorrectionNetwork:
		return "Network error while correcting"
	case ReasonCorrectionServer:
		return "Correction service error"
	case ReasonCorrectionAuth:
		return "API key missing or invalid"
	case ReasonCorrectionMalformed:
		return "Correction service returned an unexpected response"
	case ReasonWriteBackUnconfirmed:
		return "Corrected text copied. Paste manually"
	case ReasonToolUnavailable:
		return "No paste tool installed. Corrected text copied, paste manually"
	case ReasonUnknownAutomation:
		return "Could not write the correction back"
	default:
		return "Correction failed"
	}
}

// Result is what one trigger produced.
type Result struct {
	Outcome   Outcome
	Reason    FailReason
	CycleID   string
	Original  string
	Corrected string
}
