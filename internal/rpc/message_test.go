package rpc

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		method  string
		id      string
		hasID   bool
		wantErr error
	}{
		{name: "request", in: `{"jsonrpc":"2.0","id":7,"method":"ping"}`, method: "ping", id: "7", hasID: true},
		{name: "string id", in: `{"id":"abc","method":"tools/list"}`, method: "tools/list", id: `"abc"`, hasID: true},
		{name: "null id", in: `{"id":null,"method":"foo"}`, method: "foo", id: "null"},
		{name: "notification", in: `{"method":"notifications/initialized"}`, method: "notifications/initialized"},
		{name: "numeric method", in: `{"id":1,"method":5}`, id: "1", hasID: true},
		{name: "array", in: `[1,2]`, wantErr: ErrNotObject},
		{name: "string", in: `"hello"`, wantErr: ErrNotObject},
		{name: "null", in: `null`, wantErr: ErrNotObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode([]byte(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if m.Method != tt.method {
				t.Fatalf("method %q want %q", m.Method, tt.method)
			}
			if string(m.ID) != tt.id {
				t.Fatalf("id %s want %s", m.ID, tt.id)
			}
			if m.HasID() != tt.hasID {
				t.Fatalf("HasID %v want %v", m.HasID(), tt.hasID)
			}
		})
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	if err == nil || errors.Is(err, ErrNotObject) {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestParamsObject(t *testing.T) {
	m, _ := Decode([]byte(`{"id":1,"method":"x","params":[1]}`))
	if p := m.ParamsObject(); len(p) != 0 {
		t.Fatalf("expected empty params, got %v", p)
	}
	m, _ = Decode([]byte(`{"id":1,"method":"x","params":{"a":1}}`))
	if p := m.ParamsObject(); string(p["a"]) != "1" {
		t.Fatalf("unexpected params %v", p)
	}
}

func TestResponsesEchoID(t *testing.T) {
	b, _ := json.Marshal(NewResult(json.RawMessage(`"req-1"`), nil))
	if string(b) != `{"jsonrpc":"2.0","id":"req-1","result":{}}` {
		t.Fatalf("unexpected result frame %s", b)
	}
	b, _ = json.Marshal(NewError(nil, CodeMethodNotFound, "nope"))
	if string(b) != `{"jsonrpc":"2.0","id":null,"error":{"code":-32601,"message":"nope"}}` {
		t.Fatalf("unexpected error frame %s", b)
	}
}

func TestParseMethod(t *testing.T) {
	tests := map[string]Method{
		"initialize":                MethodInitialize,
		"notifications/initialized": MethodInitialized,
		"tools/list":                MethodToolsList,
		"tools/call":                MethodToolsCall,
		"ping":                      MethodPing,
		"shutdown":                  MethodShutdown,
		"resources/list":            MethodUnknown,
		"":                          MethodUnknown,
	}
	for name, want := range tests {
		got := ParseMethod(name)
		if got != want {
			t.Errorf("ParseMethod(%q) = %v want %v", name, got, want)
		}
		if want != MethodUnknown && got.String() != name {
			t.Errorf("String() = %q want %q", got.String(), name)
		}
	}
}
