package bridge

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gaspardpetit/wsbridge/internal/dispatch"
	"github.com/gaspardpetit/wsbridge/internal/logx"
	"github.com/gaspardpetit/wsbridge/internal/secret"
	"github.com/gaspardpetit/wsbridge/internal/session"
	"github.com/gaspardpetit/wsbridge/internal/tool"
	"github.com/gaspardpetit/wsbridge/internal/webhook"
)

var (
	// ErrMissingEndpoint is returned by New when no WebSocket URL is configured.
	ErrMissingEndpoint = errors.New("endpoint URL is required")
	// ErrMissingWebhook is returned by New when no webhook URL is configured.
	ErrMissingWebhook = errors.New("webhook URL is required")
)

// Options configures a Bridge.
type Options struct {
	EndpointURL    string
	WebhookURL     string
	Tool           tool.Descriptor
	ReconnectDelay time.Duration
	ReconnectMax   time.Duration
	WebhookTimeout time.Duration
	PingInterval   time.Duration
	PingTimeout    time.Duration
	ServerInfo     mcp.Implementation
	// Header is sent with the WebSocket handshake.
	Header http.Header
}

// Bridge connects the MCP session to the webhook.
type Bridge struct {
	endpoint string
	tool     tool.Descriptor
	webhook  *webhook.Client
	loop     *session.Loop
}

// Status is reported by the status server.
type Status struct {
	Tool     string         `json:"tool"`
	Endpoint string         `json:"endpoint"`
	Webhook  string         `json:"webhook"`
	Session  session.Status `json:"session"`
}

// New validates opts and wires the bridge. No connection is made until Run.
func New(opts Options) (*Bridge, error) {
	if strings.TrimSpace(opts.EndpointURL) == "" {
		return nil, ErrMissingEndpoint
	}
	if strings.TrimSpace(opts.WebhookURL) == "" {
		return nil, ErrMissingWebhook
	}
	if opts.Tool.Name() == "" {
		return nil, tool.ErrEmptyName
	}

	b := &Bridge{
		endpoint: opts.EndpointURL,
		tool:     opts.Tool,
		webhook:  webhook.New(opts.WebhookURL, webhook.WithTimeout(opts.WebhookTimeout)),
	}
	d := dispatch.New(dispatch.Options{
		Tool:       opts.Tool,
		Webhook:    b.webhook,
		ServerInfo: opts.ServerInfo,
		OnShutdown: b.Stop,
	})
	var dialOpts *websocket.DialOptions
	if len(opts.Header) > 0 {
		dialOpts = &websocket.DialOptions{HTTPHeader: opts.Header}
	}
	b.loop = session.New(session.Config{
		URL:          opts.EndpointURL,
		BaseDelay:    opts.ReconnectDelay,
		MaxDelay:     opts.ReconnectMax,
		PingInterval: opts.PingInterval,
		PingTimeout:  opts.PingTimeout,
		DialOptions:  dialOpts,
	}, d)
	return b, nil
}

// Run holds the webhook client open and keeps the session alive until Stop is
// called (nil) or ctx ends (ctx.Err()). The client is released on every path.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.webhook.Open(); err != nil {
		return err
	}
	defer func() {
		if err := b.webhook.Close(); err != nil {
			logx.Log.Warn().Err(err).Msg("close webhook client")
		}
	}()
	logx.Log.Info().
		Str("tool", b.tool.Name()).
		Str("endpoint", secret.MaskURL(b.endpoint)).
		Str("webhook", secret.MaskURL(b.webhook.URL())).
		Msg("bridge starting")
	return b.loop.Run(ctx)
}

// Stop asks Run to return. It may be called any number of times.
func (b *Bridge) Stop() {
	b.loop.Stop()
}

// Connected reports whether the MCP session is currently established.
func (b *Bridge) Connected() bool { return b.loop.Connected() }

// Status returns a snapshot for diagnostics.
func (b *Bridge) Status() Status {
	return Status{
		Tool:     b.tool.Name(),
		Endpoint: secret.MaskURL(b.endpoint),
		Webhook:  secret.MaskURL(b.webhook.URL()),
		Session:  b.loop.Status(),
	}
}
