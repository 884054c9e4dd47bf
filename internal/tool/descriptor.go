package tool

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrEmptyName is returned when a descriptor is built without a tool name.
var ErrEmptyName = errors.New("tool name must not be empty")

// inputSchema is the fixed argument schema of the forwarded tool.
var inputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"action": {
			"type": "string",
			"description": "Short action identifier understood by the workflow (e.g. 'send_email')."
		},
		"payload": {
			"type": "object",
			"description": "Details needed by the workflow to execute the action."
		}
	},
	"required": ["action"],
	"additionalProperties": true
}`)

// Descriptor describes the single tool the bridge offers. It is immutable
// once built.
type Descriptor struct {
	name        string
	description string
}

// New builds a descriptor. Surrounding whitespace in the name is removed.
func New(name, description string) (Descriptor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Descriptor{}, ErrEmptyName
	}
	return Descriptor{name: name, description: description}, nil
}

// Name returns the tool name peers must use in tools/call.
func (d Descriptor) Name() string { return d.name }

// Description returns the human readable description.
func (d Descriptor) Description() string { return d.description }

// Tool returns the MCP tool definition advertised by tools/list.
func (d Descriptor) Tool() mcp.Tool {
	return mcp.NewToolWithRawSchema(d.name, d.description, inputSchema)
}
