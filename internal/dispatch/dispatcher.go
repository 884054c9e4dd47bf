package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gaspardpetit/wsbridge/internal/logx"
	"github.com/gaspardpetit/wsbridge/internal/metrics"
	"github.com/gaspardpetit/wsbridge/internal/rpc"
	"github.com/gaspardpetit/wsbridge/internal/tool"
	"github.com/gaspardpetit/wsbridge/internal/webhook"
)

// DefaultProtocolVersion is answered to initialize requests that do not name one.
const DefaultProtocolVersion = "2024-11-05"

// PreviewLimit bounds the webhook body echoed in HTTP status errors.
const PreviewLimit = 2000

// Sender writes one outbound frame to the peer.
type Sender interface {
	Send(ctx context.Context, v any) error
}

// Poster performs the webhook round trip for a tool call.
type Poster interface {
	Post(ctx context.Context, payload any) (any, error)
}

// Options configures a Dispatcher.
type Options struct {
	Tool       tool.Descriptor
	Webhook    Poster
	ServerInfo mcp.Implementation
	// OnShutdown is invoked after the reply to a shutdown request was sent.
	OnShutdown func()
}

// Dispatcher routes inbound JSON-RPC messages to their handlers. Messages are
// handled one at a time by the caller, so replies leave in request order.
type Dispatcher struct {
	tool       tool.Descriptor
	webhook    Poster
	serverInfo mcp.Implementation
	onShutdown func()
}

// New constructs a Dispatcher.
func New(opts Options) *Dispatcher {
	info := opts.ServerInfo
	if info.Name == "" {
		info.Name = opts.Tool.Name() + "-bridge"
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return &Dispatcher{tool: opts.Tool, webhook: opts.Webhook, serverInfo: info, onShutdown: opts.OnShutdown}
}

// Dispatch handles msg and writes at most one reply to out. The returned error
// is a send failure or a cancellation; protocol problems are answered to the
// peer instead.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *rpc.Message, out Sender) error {
	method := rpc.ParseMethod(msg.Method)
	metrics.RecordRPC(method.String())
	logx.Log.Debug().Str("method", msg.Method).RawJSON("id", idForLog(msg.ID)).Msg("received")

	switch method {
	case rpc.MethodInitialize:
		return out.Send(ctx, rpc.NewResult(msg.ID, d.initialize(msg)))
	case rpc.MethodInitialized:
		logx.Log.Info().Msg("agent reports initialized")
		return nil
	case rpc.MethodToolsList:
		return out.Send(ctx, rpc.NewResult(msg.ID, map[string]any{"tools": []mcp.Tool{d.tool.Tool()}}))
	case rpc.MethodToolsCall:
		resp, err := d.callTool(ctx, msg)
		if err != nil {
			return err
		}
		return out.Send(ctx, resp)
	case rpc.MethodPing:
		return out.Send(ctx, rpc.NewResult(msg.ID, nil))
	case rpc.MethodShutdown:
		logx.Log.Info().Msg("received shutdown request")
		err := out.Send(ctx, rpc.NewResult(msg.ID, nil))
		if d.onShutdown != nil {
			d.onShutdown()
		}
		return err
	case rpc.MethodUnknown:
		logx.Log.Warn().Str("method", msg.Method).Msg("unhandled MCP method")
		if !msg.HasID() {
			return nil
		}
		text := fmt.Sprintf("Method '%s' not implemented by %s bridge", msg.Method, d.tool.Name())
		return out.Send(ctx, rpc.NewError(msg.ID, rpc.CodeMethodNotFound, text))
	}
	return nil
}

type initializeResult struct {
	ProtocolVersion json.RawMessage    `json:"protocolVersion"`
	Capabilities    capabilities       `json:"capabilities"`
	ServerInfo      mcp.Implementation `json:"serverInfo"`
}

type capabilities struct {
	Tools toolCapabilities `json:"tools"`
}

type toolCapabilities struct {
	Call struct{} `json:"call"`
}

func (d *Dispatcher) initialize(msg *rpc.Message) initializeResult {
	version := json.RawMessage(`"` + DefaultProtocolVersion + `"`)
	if raw, ok := msg.ParamsObject()["protocolVersion"]; ok {
		version = raw
	}
	return initializeResult{ProtocolVersion: version, ServerInfo: d.serverInfo}
}

func idForLog(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// callTool validates and forwards a tools/call request. It only fails when
// ctx ended during the webhook call, in which case nothing is sent back.
func (d *Dispatcher) callTool(ctx context.Context, msg *rpc.Message) (rpc.Response, error) {
	call, rerr := parseToolCall(msg, d.tool.Name())
	if rerr != nil {
		metrics.RecordToolCall("invalid_params")
		logx.Log.Warn().Str("tool", call.Name).Str("reason", rerr.Message).Msg("rejected tool call")
		return rpc.NewError(msg.ID, rerr.Code, rerr.Message), nil
	}

	payload := call.webhookPayload()
	if b, err := json.Marshal(payload); err == nil {
		logx.Log.Info().RawJSON("payload", b).Msg("forwarding request to webhook")
	}

	start := time.Now()
	res, err := d.webhook.Post(ctx, payload)
	metrics.ObserveWebhook(err == nil, time.Since(start))
	if err != nil && ctx.Err() != nil {
		return rpc.Response{}, ctx.Err()
	}
	if err != nil {
		var se *webhook.StatusError
		if errors.As(err, &se) {
			metrics.RecordToolCall("webhook_status")
			preview := se.Preview(PreviewLimit)
			logx.Log.Error().Int("status", se.StatusCode).Str("body", preview).Msg("webhook HTTP error")
			return rpc.NewError(msg.ID, rpc.CodeWebhookStatus, fmt.Sprintf("Webhook returned HTTP %d: %s", se.StatusCode, preview)), nil
		}
		metrics.RecordToolCall("webhook_error")
		logx.Log.Error().Err(err).Msg("webhook call failed")
		return rpc.NewError(msg.ID, rpc.CodeWebhookFailure, fmt.Sprintf("Webhook error: %v", err)), nil
	}

	metrics.RecordToolCall("success")
	result := callResult{
		Content: []mcp.Content{mcp.NewTextContent(webhook.Format(res))},
		IsError: false,
	}
	if call.hasCallID() {
		result.CallID = call.CallID
	}
	logx.Log.Info().Str("tool", call.Name).Msg("returning tool result")
	return rpc.NewResult(msg.ID, result), nil
}

type callResult struct {
	Content []mcp.Content   `json:"content"`
	IsError bool            `json:"isError"`
	CallID  json.RawMessage `json:"callId,omitempty"`
}
