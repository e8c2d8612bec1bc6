// Package ipc provides the daemon handler implementation.
//
// The handler translates IPC messages into correction engine calls and
// broadcasts correction lifecycle events to subscribed clients.
package ipc

import (
	"context"
	"sync"
	"time"
)

// OutcomeInfo is the engine-side result of a correction or undo.
type OutcomeInfo struct {
	Outcome string
	Reason  string
	CycleID string
	Message string
}

// StatusSnapshot is the engine-side view of daemon state.
type StatusSnapshot struct {
	Capability        string
	PermissionGranted bool
	Busy              bool
	UndoDepth         int
	LastOutcome       string
	LastReason        string
	HotkeyCorrect     string
	HotkeyUndo        string
}

// Controller is what the daemon handler needs from the daemon. The
// daemon binary implements it on top of the correction engine.
type Controller interface {
	// Snapshot reports current daemon state.
	Snapshot() StatusSnapshot

	// Correct runs a correction cycle, as the hotkey would.
	Correct(ctx context.Context) OutcomeInfo

	// Undo reverts the most recent correction.
	Undo(ctx context.Context) OutcomeInfo

	// Metrics reports counter and timing values by metric name.
	Metrics() map[string]interface{}

	// MetricsText reports the same values in Prometheus text format.
	MetricsText() string

	// ReloadConfig re-reads the configuration file.
	ReloadConfig() error

	// RequestShutdown asks the daemon to exit after the ack is sent.
	RequestShutdown()
}

// DaemonHandler implements the Handler interface for the snapfixd daemon
type DaemonHandler struct {
	mu         sync.RWMutex
	version    string
	startedAt  time.Time
	controller Controller

	// Event broadcaster (for sending events to clients)
	broadcaster func(*Event)
}

// NewDaemonHandler creates a new daemon handler
func NewDaemonHandler(version string, controller Controller) *DaemonHandler {
	return &DaemonHandler{
		version:    version,
		startedAt:  time.Now(),
		controller: controller,
	}
}

// SetBroadcaster sets the function used to broadcast events
func (h *DaemonHandler) SetBroadcaster(broadcaster func(*Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcaster = broadcaster
}

// broadcast sends an event if a broadcaster is configured
func (h *DaemonHandler) broadcast(event *Event) {
	h.mu.RLock()
	broadcaster := h.broadcaster
	h.mu.RUnlock()
	if broadcaster != nil {
		broadcaster(event)
	}
}

// HandleMessage processes an IPC message
func (h *DaemonHandler) HandleMessage(ctx context.Context, client *Client, msg *Message) (*Message, error) {
	switch msg.Header.Type {
	case MsgStatusRequest:
		return h.handleStatus(msg)

	case MsgMetricsRequest:
		return h.handleMetrics(msg)

	case MsgCorrect:
		return h.handleCorrect(ctx, msg)

	case MsgUndo:
		return h.handleUndo(ctx, msg)

	case MsgReloadConfig:
		return h.handleReloadConfig(msg)

	case MsgShutdown:
		return h.handleShutdown(msg)

	default:
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "unknown message type"), nil
	}
}

func (h *DaemonHandler) handleStatus(msg *Message) (*Message, error) {
	snap := h.controller.Snapshot()

	resp := &StatusResponse{
		Version:           h.version,
		Uptime:            time.Since(h.startedAt),
		StartedAt:         h.startedAt,
		Capability:        snap.Capability,
		PermissionGranted: snap.PermissionGranted,
		Busy:              snap.Busy,
		UndoDepth:         snap.UndoDepth,
		LastOutcome:       snap.LastOutcome,
		LastReason:        snap.LastReason,
		HotkeyCorrect:     snap.HotkeyCorrect,
		HotkeyUndo:        snap.HotkeyUndo,
	}

	return NewResponse(MsgStatusResponse, msg.Header.RequestID, resp)
}

func (h *DaemonHandler) handleMetrics(msg *Message) (*Message, error) {
	var req MetricsRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid metrics request"), nil
		}
	}

	resp := &MetricsResponse{}
	if req.Format == "prometheus" {
		resp.Prometheus = h.controller.MetricsText()
	} else {
		resp.Metrics = h.controller.Metrics()
	}

	return NewResponse(MsgMetricsResponse, msg.Header.RequestID, resp)
}

func (h *DaemonHandler) handleCorrect(ctx context.Context, msg *Message) (*Message, error) {
	var req CorrectRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid correct request"), nil
		}
	}

	h.broadcast(&Event{
		Type:      EventCorrectionStarted,
		Timestamp: time.Now(),
	})

	info := h.controller.Correct(ctx)

	h.broadcast(&Event{
		Type:      EventCorrectionFinished,
		Timestamp: time.Now(),
		CycleID:   info.CycleID,
		Outcome:   info.Outcome,
		Reason:    info.Reason,
	})

	resp := &CorrectResponse{
		Outcome: info.Outcome,
		Reason:  info.Reason,
		CycleID: info.CycleID,
		Message: info.Message,
	}

	return NewResponse(MsgCorrectResp, msg.Header.RequestID, resp)
}

func (h *DaemonHandler) handleUndo(ctx context.Context, msg *Message) (*Message, error) {
	info := h.controller.Undo(ctx)

	h.broadcast(&Event{
		Type:      EventUndoFinished,
		Timestamp: time.Now(),
		CycleID:   info.CycleID,
		Outcome:   info.Outcome,
		Reason:    info.Reason,
	})

	resp := &UndoResponse{
		Outcome: info.Outcome,
		Reason:  info.Reason,
		Message: info.Message,
	}

	return NewResponse(MsgUndoResp, msg.Header.RequestID, resp)
}

func (h *DaemonHandler) handleReloadConfig(msg *Message) (*Message, error) {
	resp := &ReloadConfigResponse{Success: true}
	if err := h.controller.ReloadConfig(); err != nil {
		resp.Success = false
		resp.Error = err.Error()
	} else {
		h.broadcast(&Event{
			Type:      EventConfigChanged,
			Timestamp: time.Now(),
		})
	}

	return NewResponse(MsgReloadConfigResp, msg.Header.RequestID, resp)
}

func (h *DaemonHandler) handleShutdown(msg *Message) (*Message, error) {
	h.broadcast(&Event{
		Type:      EventDaemonShutdown,
		Timestamp: time.Now(),
	})

	h.controller.RequestShutdown()

	return NewMessage(MsgShutdown, msg.Header.RequestID, nil), nil
}
