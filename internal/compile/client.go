package compile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the hosted Compact playground service
const DefaultEndpoint = "https://compact-playground.onrender.com"

const (
	maxErrorBody    = 64 << 10
	maxResponseBody = 8 << 20
)

// Client calls the remote Compact compilation service.
//
// A Client performs exactly one attempt per call, retries are left to the caller.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the service at endpoint, e.g. "https://compact-playground.onrender.com".
// An empty endpoint selects [DefaultEndpoint].
func NewClient(endpoint string, opts ...Option) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the base URL requests are sent to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Compile submits source and returns the outcome.
//
// Compile never returns a Go error: every failure to obtain a compiler verdict is
// reported as a [TransportError].
func (c *Client) Compile(ctx context.Context, source string) Outcome {
	start := time.Now()
	out, err := c.compile(ctx, source)
	if err != nil {
		slog.Debug("compile transport error", "endpoint", c.endpoint, "error", err, "duration", time.Since(start))
		return TransportError{Message: err.Error()}
	}
	slog.Debug("compile finished", "endpoint", c.endpoint, "outcome", fmt.Sprintf("%T", out), "duration", time.Since(start))
	return out
}

func (c *Client) compile(ctx context.Context, source string) (Outcome, error) {
	bodyJSON, err := json.Marshal(NewRequest(source))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/compile", bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return TransportError{
			Message:    fmt.Sprintf("Server error: %d - %s", resp.StatusCode, text),
			StatusCode: resp.StatusCode,
		}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read compile response: %w", err)
	}
	// Unmarshal rejects trailing data after the object.
	var raw *response
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode compile response: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode compile response: empty result")
	}
	return raw.outcome(), nil
}
