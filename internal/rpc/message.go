package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Version is stamped on every outbound frame.
const Version = mcp.JSONRPC_VERSION

// Error codes sent back to the peer.
const (
	CodeMethodNotFound = mcp.METHOD_NOT_FOUND
	CodeInvalidParams  = mcp.INVALID_PARAMS
	// CodeWebhookFailure covers network errors, timeouts and a closed client.
	CodeWebhookFailure = -32001
	// CodeWebhookStatus is used when the webhook answers with an HTTP error.
	CodeWebhookStatus = -32010
)

// ErrNotObject is returned by Decode when the frame is valid JSON but not an object.
var ErrNotObject = errors.New("rpc: message is not a JSON object")

// Message is an inbound JSON-RPC request or notification.
type Message struct {
	// Method is empty when the frame carries no method or a non-string one.
	Method string
	// ID is the raw id exactly as received; nil when absent.
	ID json.RawMessage
	// Params is the raw params member; nil when absent.
	Params json.RawMessage
	// Raw is the original frame text.
	Raw []byte
}

// Decode parses a frame into a Message. Any JSON value other than an
// object is rejected.
func Decode(data []byte) (*Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotObject
		}
		return nil, fmt.Errorf("rpc: decode: %w", err)
	}
	if fields == nil {
		return nil, ErrNotObject
	}
	m := &Message{Raw: data}
	if raw, ok := fields["method"]; ok {
		_ = json.Unmarshal(raw, &m.Method)
	}
	if raw, ok := fields["id"]; ok {
		m.ID = raw
	}
	if raw, ok := fields["params"]; ok && !isNull(raw) {
		m.Params = raw
	}
	return m, nil
}

// HasID reports whether the message carries a non-null id.
func (m *Message) HasID() bool {
	return len(m.ID) > 0 && !isNull(m.ID)
}

// ParamsObject returns the params as an object. Missing, null or non-object
// params yield an empty map.
func (m *Message) ParamsObject() map[string]json.RawMessage {
	var out map[string]json.RawMessage
	if len(m.Params) > 0 {
		_ = json.Unmarshal(m.Params, &out)
	}
	if out == nil {
		out = map[string]json.RawMessage{}
	}
	return out
}

// Response is an outbound JSON-RPC result or error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// NewResult builds a success response echoing id.
func NewResult(id json.RawMessage, result any) Response {
	if result == nil {
		result = struct{}{}
	}
	return Response{JSONRPC: Version, ID: echo(id), Result: result}
}

// NewError builds an error response echoing id.
func NewError(id json.RawMessage, code int, message string) Response {
	return Response{JSONRPC: Version, ID: echo(id), Error: &Error{Code: code, Message: message}}
}

func echo(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
