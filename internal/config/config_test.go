package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name        string
		goos        string
		home        string
		programData string
		want        string
	}{
		{name: "linux", goos: "linux", home: "/home/user", want: "/etc/wsbridge/wsbridge.yaml"},
		{name: "darwin", goos: "darwin", home: "/Users/test", want: "/Users/test/Library/Application Support/wsbridge/wsbridge.yaml"},
		{name: "windows", goos: "windows", programData: "C:\\ProgramData\\", want: "C:/ProgramData/wsbridge/wsbridge.yaml"},
		{name: "windows default ProgramData", goos: "windows", want: "C:/ProgramData/wsbridge/wsbridge.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.ReplaceAll(ResolveConfigPath(tt.goos, tt.home, tt.programData, "wsbridge.yaml"), "\\", "/")
			if got != tt.want {
				t.Errorf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestBindFlagsDefaults(t *testing.T) {
	for _, k := range []string{"MCP_ENDPOINT_URL", "WEBHOOK_URL", "MCP_TOOL_NAME", "MCP_TOOL_DESCRIPTION",
		"MCP_RECONNECT_DELAY", "MCP_RECONNECT_MAX", "WEBHOOK_TIMEOUT", "STATUS_PORT", "STATUS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	var c BridgeConfig
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlagSet(set)
	if err := set.Parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.EndpointURL != DefaultEndpointURL || c.WebhookURL != DefaultWebhookURL || c.ToolName != DefaultToolName {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c.ReconnectDelay.Duration() != 5*time.Second || c.ReconnectMax.Duration() != time.Minute {
		t.Fatalf("unexpected reconnect defaults %v %v", c.ReconnectDelay, c.ReconnectMax)
	}
	if c.WebhookTimeout.Duration() != 30*time.Second {
		t.Fatalf("unexpected webhook timeout %v", c.WebhookTimeout)
	}
	if c.StatusAddr != "" {
		t.Fatalf("status server should be disabled, got %q", c.StatusAddr)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestBindFlagsEnvAndFlags(t *testing.T) {
	t.Setenv("MCP_ENDPOINT_URL", "wss://api.example.com/mcp/?token=abc")
	t.Setenv("MCP_TOOL_NAME", "gmail_action")
	t.Setenv("MCP_RECONNECT_DELAY", "2.5")
	t.Setenv("MCP_RECONNECT_MAX", "not-a-number")
	t.Setenv("STATUS_PORT", "9090")

	var c BridgeConfig
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlagSet(set)
	if err := set.Parse([]string{"--webhook-url", "https://n8n.local/webhook/gmail", "--webhook-timeout", "0.5"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.EndpointURL != "wss://api.example.com/mcp/?token=abc" || c.ToolName != "gmail_action" {
		t.Fatalf("env not applied: %+v", c)
	}
	if c.ReconnectDelay.Duration() != 2500*time.Millisecond {
		t.Fatalf("reconnect delay %v", c.ReconnectDelay.Duration())
	}
	if c.ReconnectMax != 60 {
		t.Fatalf("invalid env should keep default, got %v", c.ReconnectMax)
	}
	if c.WebhookURL != "https://n8n.local/webhook/gmail" || c.WebhookTimeout.Duration() != 500*time.Millisecond {
		t.Fatalf("flags not applied: %+v", c)
	}
	if c.StatusAddr != ":9090" {
		t.Fatalf("status addr %q", c.StatusAddr)
	}
}

func TestLoadFile(t *testing.T) {
	c := BridgeConfig{EndpointURL: "ws://keep", ToolName: "keep", ReconnectDelay: 5}
	path := filepath.Join(t.TempDir(), "wsbridge.yaml")
	data := "webhook_url: http://hook.local/mcp\ntool_name: calendar_action\nreconnect_max: 120\nstatus_port: \"9100\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.EndpointURL != "ws://keep" || c.ToolName != "calendar_action" || c.WebhookURL != "http://hook.local/mcp" {
		t.Fatalf("unexpected config %+v", c)
	}
	if c.ReconnectMax.Duration() != 2*time.Minute || c.ReconnectDelay != 5 {
		t.Fatalf("unexpected delays %v %v", c.ReconnectDelay, c.ReconnectMax)
	}
	if c.StatusAddr != ":9100" {
		t.Fatalf("status addr %q", c.StatusAddr)
	}
}

func TestLoadFileMissingIsIgnored(t *testing.T) {
	c := BridgeConfig{ToolName: "keep"}
	if err := c.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
	if c.ToolName != "keep" {
		t.Fatalf("config changed: %+v", c)
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("tool_name: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	var c BridgeConfig
	if err := c.LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() BridgeConfig {
		return BridgeConfig{
			EndpointURL:    "wss://api.example.com/mcp/",
			WebhookURL:     "https://n8n.local/webhook/mcp",
			ToolName:       "webhook_action",
			ReconnectDelay: 5,
			ReconnectMax:   60,
			WebhookTimeout: 30,
		}
	}
	tests := []struct {
		name   string
		mutate func(*BridgeConfig)
		want   error
	}{
		{"valid", func(*BridgeConfig) {}, nil},
		{"no endpoint", func(c *BridgeConfig) { c.EndpointURL = " " }, ErrMissingEndpoint},
		{"no webhook", func(c *BridgeConfig) { c.WebhookURL = "" }, ErrMissingWebhook},
		{"no tool", func(c *BridgeConfig) { c.ToolName = "" }, ErrMissingTool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	bad := []func(*BridgeConfig){
		func(c *BridgeConfig) { c.EndpointURL = "ftp://host/mcp" },
		func(c *BridgeConfig) { c.WebhookURL = "ws://hook" },
		func(c *BridgeConfig) { c.ReconnectDelay = 0 },
		func(c *BridgeConfig) { c.WebhookTimeout = -1 },
	}
	for i, mutate := range bad {
		c := valid()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestOrigins(t *testing.T) {
	c := BridgeConfig{AllowedOrigins: " https://a.example , ,https://b.example"}
	want := []string{"https://a.example", "https://b.example"}
	if got := c.Origins(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got := (&BridgeConfig{}).Origins(); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
