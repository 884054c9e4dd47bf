package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gaspardpetit/wsbridge/internal/logx"
)

// DefaultTimeout bounds a whole webhook round trip.
const DefaultTimeout = 30 * time.Second

// ErrNotOpen is returned by Post when the client has not been opened or was
// already closed.
var ErrNotOpen = errors.New("webhook client is not open")

// StatusError reports a webhook response with a failing HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned HTTP %d", e.StatusCode)
}

// Preview returns the body truncated to at most n characters.
func (e *StatusError) Preview(n int) string {
	r := []rune(e.Body)
	if len(r) <= n {
		return e.Body
	}
	return string(r[:n])
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTransport sets the round tripper used once the client is opened.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// Client posts tool calls to a fixed webhook URL. It only works between Open
// and Close.
type Client struct {
	url       string
	timeout   time.Duration
	transport http.RoundTripper

	mu   sync.RWMutex
	http *http.Client
}

// New returns a closed client for url.
func New(url string, opts ...Option) *Client {
	c := &Client{url: url, timeout: DefaultTimeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

// URL returns the webhook endpoint.
func (c *Client) URL() string { return c.url }

// Open acquires the underlying HTTP client. Opening an open client is a no-op.
func (c *Client) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		return nil
	}
	rt := c.transport
	if rt == nil {
		rt = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	c.http = &http.Client{
		Timeout:   c.timeout,
		Transport: rt,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return nil
}

// Close releases the HTTP client and its idle connections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		return nil
	}
	c.http.CloseIdleConnections()
	c.http = nil
	return nil
}

// Post sends payload as a JSON body. It returns a JSON response as
// json.RawMessage, or the body text when the response is not JSON. Any
// status outside 2xx yields a *StatusError; redirects are not followed.
func (c *Client) Post(ctx context.Context, payload any) (any, error) {
	c.mu.RLock()
	hc := c.http
	c.mu.RUnlock()
	if hc == nil {
		return nil, ErrNotOpen
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain")
	req.Header.Set("X-Request-ID", reqID)

	logx.Log.Debug().Str("request_id", reqID).Str("url", c.url).Int("bytes", len(body)).Msg("posting to webhook")
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}
	logx.Log.Debug().Str("request_id", reqID).Str("status", resp.Status).Int("bytes", len(data)).Msg("webhook response")
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return decodeBody(data), nil
}

// decodeBody keeps a JSON body undecoded so Format can render it in source
// order; anything else is returned as text.
func decodeBody(data []byte) any {
	if !json.Valid(data) {
		return string(data)
	}
	return json.RawMessage(bytes.TrimSpace(data))
}
