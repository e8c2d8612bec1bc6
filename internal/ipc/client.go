// Package ipc provides client implementation for daemon-client communication.
//
// The client supports:
// - Request/response pattern with timeouts
// - Event streaming for real-time updates
// - Thread-safe operations
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Common errors
var (
	ErrNotConnected     = errors.New("not connected to daemon")
	ErrConnectionLost   = errors.New("connection to daemon lost")
	ErrTimeout          = errors.New("request timeout")
	ErrDaemonNotRunning = errors.New("daemon is not running")
)

// IPCClient is the client for communicating with the snapfixd daemon
type IPCClient struct {
	mu         sync.RWMutex
	conn       net.Conn
	socketPath string
	clientID   string
	version    string
	permission PermissionLevel

	// Connection state
	connected atomic.Bool

	// Request handling
	pending   map[uint32]chan *Message
	pendingMu sync.Mutex
	nextReqID atomic.Uint32

	// Event handling
	eventChan chan *Event

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Configuration
	config ClientConfig
}

// ClientConfig configures the IPC client
type ClientConfig struct {
	SocketPath     string
	ClientName     string
	ClientVersion  string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig(socketPath string) ClientConfig {
	return ClientConfig{
		SocketPath:     socketPath,
		ClientName:     "snapfixctl",
		ClientVersion:  "1.0.0",
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// NewClient creates a new IPC client
func NewClient(cfg ClientConfig) *IPCClient {
	ctx, cancel := context.WithCancel(context.Background())

	return &IPCClient{
		socketPath: cfg.SocketPath,
		pending:    make(map[uint32]chan *Message),
		eventChan:  make(chan *Event, 100),
		ctx:        ctx,
		cancel:     cancel,
		config:     cfg,
	}
}

// Connect establishes a connection to the daemon and performs the
// handshake and authenticate exchange.
func (c *IPCClient) Connect() error {
	if c.connected.Load() {
		return nil
	}

	// Determine connection type based on platform
	var conn net.Conn
	var err error

	if runtime.GOOS == "windows" {
		conn, err = c.connectWindows()
	} else {
		conn, err = c.connectUnix()
	}

	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	c.mu.Lock()
	if c.connected.Load() {
		// A concurrent Connect won the race.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.connected.Store(true)
	c.mu.Unlock()

	// The handshake below and the read loop both take c.mu, so the
	// lock must be released before either runs.
	c.wg.Add(1)
	go c.readLoop()

	if err := c.handshake(); err != nil {
		c.close()
		return fmt.Errorf("handshake: %w", err)
	}

	if err := c.authenticate(); err != nil {
		c.close()
		return fmt.Errorf("authenticate: %w", err)
	}

	return nil
}

// connectUnix establishes a Unix socket connection
func (c *IPCClient) connectUnix() (net.Conn, error) {
	dialer := net.Dialer{
		Timeout: c.config.ConnectTimeout,
	}

	conn, err := dialer.Dial("unix", c.socketPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDaemonNotRunning
		}
		return nil, err
	}

	return conn, nil
}

// Close closes the connection to the daemon
func (c *IPCClient) Close() error {
	c.cancel()
	c.close()

	// Wait for reader to finish
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}

	close(c.eventChan)
	return nil
}

// close closes the connection without signaling shutdown
func (c *IPCClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected.Store(false)

	// Cancel all pending requests
	c.pendingMu.Lock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = make(map[uint32]chan *Message)
	c.pendingMu.Unlock()
}

// IsConnected returns whether the client is connected
func (c *IPCClient) IsConnected() bool {
	return c.connected.Load()
}

// ClientID returns the ID assigned by the server
func (c *IPCClient) ClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

// Events returns the event channel for streaming events
func (c *IPCClient) Events() <-chan *Event {
	return c.eventChan
}

// handshake performs the initial handshake with the server
func (c *IPCClient) handshake() error {
	req := &HandshakeRequest{
		ClientVersion:   c.config.ClientVersion,
		ClientName:      c.config.ClientName,
		ProtocolVersion: ProtocolVersion,
	}

	resp, err := c.request(MsgHandshake, req)
	if err != nil {
		return err
	}

	if resp.Header.Type != MsgHandshakeAck {
		return fmt.Errorf("unexpected response type: %d", resp.Header.Type)
	}

	var ack HandshakeResponse
	if err := Decode(resp.Payload, &ack); err != nil {
		return err
	}

	c.mu.Lock()
	c.clientID = ack.ClientID
	c.version = ack.ServerVersion
	c.permission = ack.Permission
	c.mu.Unlock()

	return nil
}

// authenticate authenticates with the server
func (c *IPCClient) authenticate() error {
	req := &AuthRequest{
		Method: "pid",
		PID:    os.Getpid(),
	}

	resp, err := c.request(MsgAuthenticate, req)
	if err != nil {
		return err
	}

	if resp.Header.Type != MsgAuthResponse {
		return fmt.Errorf("unexpected response type: %d", resp.Header.Type)
	}

	var authResp AuthResponse
	if err := Decode(resp.Payload, &authResp); err != nil {
		return err
	}

	if !authResp.Success {
		return fmt.Errorf("authentication failed: %s", authResp.Error)
	}

	c.mu.Lock()
	c.permission = authResp.Permission
	c.mu.Unlock()
	return nil
}

// request sends a request and waits for a response
func (c *IPCClient) request(msgType MessageType, payload any) (*Message, error) {
	return c.requestWithTimeout(msgType, payload, c.config.RequestTimeout)
}

// requestWithTimeout sends a request with a custom timeout
func (c *IPCClient) requestWithTimeout(msgType MessageType, payload any, timeout time.Duration) (*Message, error) {
	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	// Encode payload
	data, err := Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	// Create message
	reqID := c.nextReqID.Add(1)
	msg := NewMessage(msgType, reqID, data)

	// Create response channel
	respChan := make(chan *Message, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	// Send message
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return nil, ErrNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := msg.Write(conn); err != nil {
		c.close()
		return nil, fmt.Errorf("write message: %w", err)
	}

	// Wait for response
	select {
	case resp, ok := <-respChan:
		if !ok {
			return nil, ErrConnectionLost
		}
		return resp, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

// readLoop reads messages from the connection
func (c *IPCClient) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		// Read message
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		msg, err := ReadMessage(conn)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}

			// Handle timeout (send ping)
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.sendPing()
				continue
			}

			c.close()
			return
		}

		// Handle message
		c.handleMessage(msg)
	}
}

// handleMessage processes an incoming message
func (c *IPCClient) handleMessage(msg *Message) {
	switch msg.Header.Type {
	case MsgPing:
		// Respond to server keepalive
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			pong := NewMessage(MsgPong, msg.Header.RequestID, nil)
			pong.Write(conn)
		}

	case MsgEvent:
		// Dispatch event
		var event Event
		if err := Decode(msg.Payload, &event); err == nil {
			select {
			case c.eventChan <- &event:
			default:
				// Channel full, drop event
			}
		}

	default:
		// Response to a request
		c.pendingMu.Lock()
		if ch, ok := c.pending[msg.Header.RequestID]; ok {
			select {
			case ch <- msg:
			default:
			}
		}
		c.pendingMu.Unlock()
	}
}

// sendPing sends a ping to keep connection alive
func (c *IPCClient) sendPing() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn != nil {
		msg := NewMessage(MsgPing, c.nextReqID.Add(1), nil)
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		msg.Write(conn)
	}
}

// High-level API methods

// decodeOrError decodes a response payload, surfacing server-side errors.
func decodeOrError(resp *Message, v any) error {
	if resp.Header.Type == MsgError {
		var errResp ErrorResponse
		Decode(resp.Payload, &errResp)
		return fmt.Errorf("%s", errResp.Message)
	}
	return Decode(resp.Payload, v)
}

// Status requests the daemon status
func (c *IPCClient) Status() (*StatusResponse, error) {
	resp, err := c.request(MsgStatusRequest, &StatusRequest{})
	if err != nil {
		return nil, err
	}

	var status StatusResponse
	if err := decodeOrError(resp, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// Metrics requests the daemon's metrics. With format "prometheus" the
// response carries the text exposition instead of the snapshot map.
func (c *IPCClient) Metrics(format string) (*MetricsResponse, error) {
	resp, err := c.request(MsgMetricsRequest, &MetricsRequest{Format: format})
	if err != nil {
		return nil, err
	}

	var metrics MetricsResponse
	if err := decodeOrError(resp, &metrics); err != nil {
		return nil, err
	}

	return &metrics, nil
}

// Ping checks if the daemon is responsive
func (c *IPCClient) Ping() error {
	resp, err := c.requestWithTimeout(MsgPing, nil, 5*time.Second)
	if err != nil {
		return err
	}

	if resp.Header.Type != MsgPong {
		return fmt.Errorf("unexpected response: %d", resp.Header.Type)
	}

	return nil
}

// Correct asks the daemon to run a correction cycle on the current
// selection, exactly as if the hotkey had been pressed. The cycle can
// take as long as the upstream model does, so the timeout is generous.
func (c *IPCClient) Correct() (*CorrectResponse, error) {
	resp, err := c.requestWithTimeout(MsgCorrect, &CorrectRequest{}, time.Minute)
	if err != nil {
		return nil, err
	}

	var result CorrectResponse
	if err := decodeOrError(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Undo asks the daemon to revert the most recent correction.
func (c *IPCClient) Undo() (*UndoResponse, error) {
	resp, err := c.requestWithTimeout(MsgUndo, &UndoRequest{}, time.Minute)
	if err != nil {
		return nil, err
	}

	var result UndoResponse
	if err := decodeOrError(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// ReloadConfig asks the daemon to reload its configuration file.
func (c *IPCClient) ReloadConfig() error {
	resp, err := c.request(MsgReloadConfig, struct{}{})
	if err != nil {
		return err
	}

	var result ReloadConfigResponse
	if err := decodeOrError(resp, &result); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("reload config failed: %s", result.Error)
	}

	return nil
}

// Shutdown asks the daemon to exit.
func (c *IPCClient) Shutdown() error {
	_, err := c.requestWithTimeout(MsgShutdown, struct{}{}, 5*time.Second)
	// The daemon may close the connection before the ack arrives.
	if err != nil && !errors.Is(err, ErrConnectionLost) && !errors.Is(err, ErrTimeout) {
		return err
	}
	return nil
}

// Subscribe subscribes to events
func (c *IPCClient) Subscribe(events []EventType) error {
	req := &SubscribeRequest{
		Events: events,
	}

	resp, err := c.request(MsgSubscribe, req)
	if err != nil {
		return err
	}

	var result SubscribeResponse
	if err := decodeOrError(resp, &result); err != nil {
		return err
	}

	if !result.Success {
		return errors.New("subscription failed")
	}

	return nil
}

// Unsubscribe unsubscribes from events
func (c *IPCClient) Unsubscribe() error {
	req := &UnsubscribeRequest{}

	resp, err := c.request(MsgUnsubscribe, req)
	if err != nil {
		return err
	}

	if resp.Header.Type != MsgUnsubscribeResp {
		return fmt.Errorf("unexpected response: %d", resp.Header.Type)
	}

	return nil
}
