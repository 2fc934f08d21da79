// Package transport is the HTTP collaborator that delivers push requests to
// the backend. One Send is one POST: no retries, no buffering — delivery
// policy lives in the sink, and the sink's policy is lossy.
package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/lostinspiration/loki-sink/internal/payload"
)

// TargetName identifies this package's log records. The sink drops records
// whose target contains it, so that diagnostics emitted from inside a send
// cannot re-enter the logging path and recurse.
const TargetName = "loki-sink/internal/transport"

const defaultTimeout = 10 * time.Second

// APIError represents a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithCompression enables or disables gzip-encoding the request body.
// Default: enabled.
func WithCompression(on bool) Option {
	return func(c *Client) { c.gzip = on }
}

// Client POSTs push requests to a fixed URL as JSON, gzip-encoded unless
// disabled.
type Client struct {
	url    string
	client *http.Client
	gzip   bool
}

// New creates a Client targeting the given push URL.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
		gzip:   true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send marshals req and issues exactly one POST. Non-2xx responses return
// *APIError. The caller owns what happens to the batch afterwards.
func (c *Client) Send(req payload.PushRequest) error {
	body, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("transport: marshal: %w", err)
	}

	var buf bytes.Buffer
	if c.gzip {
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return fmt.Errorf("transport: compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("transport: compress: %w", err)
		}
	} else {
		buf.Write(body)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.url, &buf)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.gzip {
		httpReq.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{StatusCode: resp.StatusCode, Body: string(snippet)}
}
