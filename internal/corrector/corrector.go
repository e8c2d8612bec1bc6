// Package corrector calls the external text-correction service.
//
// The service is an ordered list of Gemini-style generateContent endpoints.
// Endpoints are tried in order with a hard per-attempt timeout; the first
// success wins and exhausting the list fails with the last error. Errors
// carry a coarse Kind so callers match on category, never on message text.
package corrector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Corrector is the external collaborator contract: corrected text or a
// typed error. Implementations must honor ctx cancellation.
type Corrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

// ErrorKind is the coarse failure category reported to the engine.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTimeout
	KindNetwork
	KindServer
	KindAuth
	KindMalformed
)

// String returns the kind name for logs.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindAuth:
		return "auth"
	case KindMalformed:
		return "malformed-response"
	default:
		return "unknown"
	}
}

// Error is a correction failure with its category and originating endpoint.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("corrector: %s (%s): %v", e.Kind, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("corrector: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// DefaultTimeout is the hard per-endpoint deadline for one correction call.
const DefaultTimeout = 6 * time.Second

// DefaultEndpoints is the ordered model fallback list.
var DefaultEndpoints = []string{
	"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
	"https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent",
}

// defaultPrompt asks for the corrected text and nothing else, so the
// response can be written back verbatim.
const defaultPrompt = "Correct the spelling, grammar and punctuation of the following text. " +
	"Preserve the original meaning, tone, formatting and language. " +
	"Reply with only the corrected text, no explanations:\n\n"

// Config configures the HTTP corrector client.
type Config struct {
	// APIKey authenticates against the correction service.
	APIKey string

	// Endpoints is the ordered fallback list. Empty means DefaultEndpoints.
	Endpoints []string

	// Timeout is the per-endpoint deadline. Zero means DefaultTimeout.
	Timeout time.Duration

	// Prompt overrides the instruction prefixed to the user's text.
	Prompt string
}

// Client is the production Corrector.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a corrector client. httpClient may be nil, in which case a
// plain http.Client is used; per-attempt deadlines come from Config.Timeout.
func New(cfg Config, httpClient *http.Client) *Client {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = DefaultEndpoints
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Request/response shapes for the generateContent wire format.

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Correct tries each configured endpoint in order and returns the first
// corrected text. The API key is checked before any network I/O.
func (c *Client) Correct(ctx context.Context, text string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", &Error{Kind: KindAuth, Err: errors.New("no API key configured")}
	}

	var lastErr error
	for _, endpoint := range c.cfg.Endpoints {
		corrected, err := c.tryEndpoint(ctx, endpoint, text)
		if err == nil {
			return corrected, nil
		}
		lastErr = err

		// A cancelled parent context stops the fallback chain; a
		// per-attempt deadline does not.
		if ctx.Err() != nil {
			return "", lastErr
		}
	}
	return "", lastErr
}

func (c *Client) tryEndpoint(ctx context.Context, endpoint, text string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: c.cfg.Prompt + text}}}},
	})
	if err != nil {
		return "", &Error{Kind: KindUnknown, Endpoint: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindUnknown, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{Kind: KindTimeout, Endpoint: endpoint, Err: err}
		}
		return "", &Error{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &Error{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &Error{Kind: KindAuth, Endpoint: endpoint,
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return "", &Error{Kind: KindServer, Endpoint: endpoint,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 200))}
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &Error{Kind: KindMalformed, Endpoint: endpoint, Err: err}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Kind: KindMalformed, Endpoint: endpoint,
			Err: errors.New("response has no candidate text")}
	}

	corrected := parsed.Candidates[0].Content.Parts[0].Text
	// Models often append a trailing newline that was not in the input.
	return strings.TrimSuffix(corrected, "\n"), nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
