package rpc

import "github.com/mark3labs/mcp-go/mcp"

// Method is the closed set of methods the bridge understands.
type Method int

const (
	MethodUnknown Method = iota
	MethodInitialize
	MethodInitialized
	MethodToolsList
	MethodToolsCall
	MethodPing
	MethodShutdown
)

var methodNames = map[string]Method{
	string(mcp.MethodInitialize): MethodInitialize,
	"notifications/initialized":  MethodInitialized,
	string(mcp.MethodToolsList):  MethodToolsList,
	string(mcp.MethodToolsCall):  MethodToolsCall,
	string(mcp.MethodPing):       MethodPing,
	"shutdown":                   MethodShutdown,
}

// ParseMethod maps a wire method name to a Method. Unrecognized names map to
// MethodUnknown.
func ParseMethod(name string) Method {
	if m, ok := methodNames[name]; ok {
		return m
	}
	return MethodUnknown
}

func (m Method) String() string {
	for name, v := range methodNames {
		if v == m {
			return name
		}
	}
	return "unknown"
}
