package dispatch

import (
	"encoding/json"
	"strings"

	"github.com/gaspardpetit/wsbridge/internal/rpc"
)

// toolCall is a validated tools/call request.
type toolCall struct {
	Name      string
	Action    string
	Payload   json.RawMessage
	Arguments json.RawMessage
	CallID    json.RawMessage
}

// webhookPayload is the body posted to the webhook.
type webhookPayload struct {
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	CallID    json.RawMessage `json:"call_id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

func (c toolCall) webhookPayload() webhookPayload {
	return webhookPayload{
		Action:    c.Action,
		Payload:   c.Payload,
		CallID:    c.CallID,
		Tool:      c.Name,
		Arguments: c.Arguments,
	}
}

// hasCallID reports whether the caller supplied a meaningful callId.
func (c toolCall) hasCallID() bool {
	if len(c.CallID) == 0 {
		return false
	}
	var v any
	if json.Unmarshal(c.CallID, &v) != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// parseToolCall validates tools/call params in order: tool name, arguments
// object, non-blank action. A non-object payload is dropped.
func parseToolCall(msg *rpc.Message, toolName string) (toolCall, *rpc.Error) {
	params := msg.ParamsObject()
	call := toolCall{Name: nameOf(params["name"])}
	if raw, ok := params["callId"]; ok && !isNull(raw) {
		call.CallID = raw
	}

	if call.Name != toolName {
		return call, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "Unsupported tool '" + displayName(params["name"]) + "'"}
	}

	var args map[string]json.RawMessage
	if raw, ok := params["arguments"]; ok {
		if err := json.Unmarshal(raw, &args); err != nil {
			args = nil
		}
		call.Arguments = raw
	}
	if args == nil {
		return call, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "Tool arguments must be an object"}
	}

	var action string
	if raw, ok := args["action"]; ok {
		_ = json.Unmarshal(raw, &action)
	}
	if strings.TrimSpace(action) == "" {
		return call, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "Tool arguments must include non-empty 'action'"}
	}
	call.Action = action

	if raw, ok := args["payload"]; ok {
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) == nil && obj != nil {
			call.Payload = raw
		}
	}
	return call, nil
}

// nameOf renders the params.name member for comparison and error text.
func nameOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// displayName renders params.name for error text; a missing or null name
// reads "None".
func displayName(raw json.RawMessage) string {
	if len(raw) == 0 || isNull(raw) {
		return "None"
	}
	return nameOf(raw)
}
