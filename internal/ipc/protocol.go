// Package ipc provides inter-process communication between the snapfixd
// daemon and client applications (CLI, tray, third-party tools).
//
// The protocol is designed for:
// - Request/response pattern for commands
// - Event streaming for correction outcomes
// - Simple length-prefixed framing with JSON payloads
// - Protocol versioning for compatibility
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Protocol version for compatibility checking
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x53464950 // "SFIP" - Snapfix IPC
)

// MessageType identifies the type of IPC message
type MessageType uint16

const (
	// Control messages (0x00xx)
	MsgPing         MessageType = 0x0001
	MsgPong         MessageType = 0x0002
	MsgHandshake    MessageType = 0x0003
	MsgHandshakeAck MessageType = 0x0004
	MsgError        MessageType = 0x0005
	MsgShutdown     MessageType = 0x0006
	MsgAuthenticate MessageType = 0x0007
	MsgAuthResponse MessageType = 0x0008

	// Status messages (0x01xx)
	MsgStatusRequest   MessageType = 0x0100
	MsgStatusResponse  MessageType = 0x0101
	MsgMetricsRequest  MessageType = 0x0102
	MsgMetricsResponse MessageType = 0x0103

	// Correction operations (0x02xx)
	MsgCorrect     MessageType = 0x0200
	MsgCorrectResp MessageType = 0x0201
	MsgUndo        MessageType = 0x0202
	MsgUndoResp    MessageType = 0x0203

	// Configuration (0x04xx)
	MsgReloadConfig     MessageType = 0x0400
	MsgReloadConfigResp MessageType = 0x0401

	// Event streaming (0x05xx)
	MsgSubscribe       MessageType = 0x0500
	MsgSubscribeResp   MessageType = 0x0501
	MsgUnsubscribe     MessageType = 0x0502
	MsgUnsubscribeResp MessageType = 0x0503
	MsgEvent           MessageType = 0x0504
)

// EventType identifies the type of streamed event
type EventType uint16

const (
	EventCorrectionStarted  EventType = 0x0001
	EventCorrectionFinished EventType = 0x0002
	EventUndoFinished       EventType = 0x0003
	EventError              EventType = 0x0004
	EventDaemonShutdown     EventType = 0x0005
	EventConfigChanged      EventType = 0x0006
)

// PermissionLevel defines client access levels
type PermissionLevel uint8

const (
	PermReadOnly    PermissionLevel = 0x01
	PermReadWrite   PermissionLevel = 0x02
	PermFullControl PermissionLevel = 0x03
)

// Header is the fixed-size message header (16 bytes)
type Header struct {
	Magic     uint32      // Protocol magic number
	Version   uint8       // Protocol version
	Flags     uint8       // Message flags
	Type      MessageType // Message type
	RequestID uint32      // Request ID for correlation
	Length    uint32      // Payload length (not including header)
}

// HeaderSize is the size of the header in bytes
const HeaderSize = 16

// Header flags
const (
	FlagJSON        uint8 = 0x04
	FlagStreamStart uint8 = 0x08
	FlagStreamEnd   uint8 = 0x10
)

// Message wraps a header and payload
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Flags:     FlagJSON,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Write writes the header to a writer
func (h *Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads a header from a reader
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}

	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("invalid magic number: %x", h.Magic)
	}

	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}

	return h, nil
}

// Write writes the message to a writer
func (m *Message) Write(w io.Writer) error {
	if err := m.Header.Write(w); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		_, err := w.Write(m.Payload)
		return err
	}
	return nil
}

// ReadMessage reads a complete message from a reader
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		// Payloads never carry more than a status blob or a short error;
		// anything beyond 1MB is a framing bug.
		if h.Length > 1024*1024 {
			return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
		}
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Request/Response payloads

// HandshakeRequest is sent by the client to initiate connection
type HandshakeRequest struct {
	ClientVersion   string `json:"client_version"`
	ClientName      string `json:"client_name"`
	ProtocolVersion uint8  `json:"protocol_version"`
}

// HandshakeResponse is sent by the server to acknowledge connection
type HandshakeResponse struct {
	ServerVersion   string          `json:"server_version"`
	ProtocolVersion uint8           `json:"protocol_version"`
	ClientID        string          `json:"client_id"`
	Permission      PermissionLevel `json:"permission"`
}

// AuthRequest is sent to authenticate a client
type AuthRequest struct {
	Method string `json:"method"` // "pid", "none"
	PID    int    `json:"pid,omitempty"`
}

// AuthResponse acknowledges authentication
type AuthResponse struct {
	Success    bool            `json:"success"`
	Permission PermissionLevel `json:"permission"`
	Error      string          `json:"error,omitempty"`
}

// ErrorResponse is sent when an operation fails
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error codes
const (
	ErrUnknown          = 1
	ErrInvalidRequest   = 2
	ErrNotFound         = 3
	ErrPermissionDenied = 4
	ErrInternalError    = 5
	ErrBusy             = 6
)

// StatusRequest requests daemon status
type StatusRequest struct{}

// StatusResponse contains daemon status. It deliberately carries no
// selection or correction text, only state.
type StatusResponse struct {
	Version   string        `json:"version"`
	Uptime    time.Duration `json:"uptime"`
	StartedAt time.Time     `json:"started_at"`

	// Capability reports the selection access tier for this platform:
	// "native", "fallback-only", or "unsupported".
	Capability string `json:"capability"`

	// PermissionGranted reports whether the accessibility permission
	// is currently held (always true on fallback-only platforms).
	PermissionGranted bool `json:"permission_granted"`

	// Busy reports whether a correction cycle is in flight.
	Busy bool `json:"busy"`

	// UndoDepth is the number of corrections available to undo.
	UndoDepth int `json:"undo_depth"`

	// LastOutcome and LastReason describe the most recent cycle.
	LastOutcome string `json:"last_outcome,omitempty"`
	LastReason  string `json:"last_reason,omitempty"`

	// Registered hotkey combos.
	HotkeyCorrect string `json:"hotkey_correct,omitempty"`
	HotkeyUndo    string `json:"hotkey_undo,omitempty"`
}

// MetricsRequest requests the daemon's metrics. Format selects the
// representation: empty for the snapshot map, "prometheus" for the
// text exposition.
type MetricsRequest struct {
	Format string `json:"format,omitempty"`
}

// MetricsResponse carries counter, gauge and histogram values keyed by
// metric name, or the Prometheus text exposition when that format was
// requested. Counts and durations only, never user text.
type MetricsResponse struct {
	Metrics    map[string]interface{} `json:"metrics,omitempty"`
	Prometheus string                 `json:"prometheus,omitempty"`
}

// CorrectRequest triggers a correction cycle, exactly as the hotkey would.
type CorrectRequest struct{}

// CorrectResponse reports the outcome of a triggered correction.
type CorrectResponse struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	CycleID string `json:"cycle_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// UndoRequest reverts the most recent correction.
type UndoRequest struct{}

// UndoResponse reports the outcome of an undo.
type UndoResponse struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// ReloadConfigResponse acknowledges a config reload.
type ReloadConfigResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SubscribeRequest requests event subscription
type SubscribeRequest struct {
	Events []EventType `json:"events"` // Empty means all events
}

// SubscribeResponse acknowledges subscription
type SubscribeResponse struct {
	Success        bool   `json:"success"`
	SubscriptionID string `json:"subscription_id"`
}

// UnsubscribeRequest requests event unsubscription
type UnsubscribeRequest struct {
	SubscriptionID string `json:"subscription_id"`
}

// Event is a streamed event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	CycleID   string    `json:"cycle_id,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Encode encodes a payload to JSON bytes
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode decodes JSON bytes to a payload
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewErrorMessage creates an error message
func NewErrorMessage(requestID uint32, code int, message string) *Message {
	payload, _ := Encode(&ErrorResponse{
		Code:    code,
		Message: message,
	})
	return NewMessage(MsgError, requestID, payload)
}

// NewResponse creates a response message
func NewResponse(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(msgType, requestID, payload), nil
}
