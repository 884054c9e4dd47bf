package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultEndpointURL     = "ws://localhost:8080/mcp"
	DefaultWebhookURL      = "http://localhost:5678/webhook/mcp"
	DefaultToolName        = "webhook_action"
	DefaultToolDescription = "Forward commands to the workflow webhook."
)

var (
	ErrMissingEndpoint = errors.New("MCP_ENDPOINT_URL is required")
	ErrMissingWebhook  = errors.New("WEBHOOK_URL is required")
	ErrMissingTool     = errors.New("MCP_TOOL_NAME is required")
)

// BridgeConfig holds configuration for the wsbridge binary.
type BridgeConfig struct {
	EndpointURL     string  `yaml:"endpoint_url"`
	WebhookURL      string  `yaml:"webhook_url"`
	ToolName        string  `yaml:"tool_name"`
	ToolDescription string  `yaml:"tool_description"`
	ReconnectDelay  Seconds `yaml:"reconnect_delay"`
	ReconnectMax    Seconds `yaml:"reconnect_max"`
	WebhookTimeout  Seconds `yaml:"webhook_timeout"`
	LogLevel        string  `yaml:"log_level"`
	StatusAddr      string  `yaml:"status_port"`
	AllowedOrigins  string  `yaml:"status_allowed_origins"`
	ConfigFile      string  `yaml:"-"`
}

// BindFlags populates the struct with defaults from environment variables and
// binds command line flags so main can call flag.Parse().
func (c *BridgeConfig) BindFlags() {
	c.BindFlagSet(flag.CommandLine)
}

// BindFlagSet is BindFlags against an explicit flag set.
func (c *BridgeConfig) BindFlagSet(set *flag.FlagSet) {
	c.ConfigFile = GetEnv("CONFIG_FILE", DefaultConfigPath("wsbridge.yaml"))
	c.LogLevel = GetEnv("LOG_LEVEL", "info")

	c.EndpointURL = GetEnv("MCP_ENDPOINT_URL", DefaultEndpointURL)
	c.WebhookURL = GetEnv("WEBHOOK_URL", DefaultWebhookURL)
	c.ToolName = GetEnv("MCP_TOOL_NAME", DefaultToolName)
	c.ToolDescription = GetEnv("MCP_TOOL_DESCRIPTION", DefaultToolDescription)
	c.ReconnectDelay = envSeconds("MCP_RECONNECT_DELAY", 5)
	c.ReconnectMax = envSeconds("MCP_RECONNECT_MAX", 60)
	c.WebhookTimeout = envSeconds("WEBHOOK_TIMEOUT", 30)
	c.StatusAddr = normalizeAddr(GetEnv("STATUS_PORT", ""))
	c.AllowedOrigins = GetEnv("STATUS_ALLOWED_ORIGINS", "")

	set.StringVar(&c.ConfigFile, "config", c.ConfigFile, "bridge config file path")
	set.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	set.StringVar(&c.EndpointURL, "endpoint-url", c.EndpointURL, "MCP WebSocket endpoint (e.g. wss://api.example.com/mcp/?token=...)")
	set.StringVar(&c.WebhookURL, "webhook-url", c.WebhookURL, "workflow webhook receiving tool calls")
	set.StringVar(&c.ToolName, "tool-name", c.ToolName, "name of the single tool advertised to the agent")
	set.StringVar(&c.ToolDescription, "tool-description", c.ToolDescription, "description of the advertised tool")
	set.Var(&c.ReconnectDelay, "reconnect-delay", "initial reconnect delay in seconds")
	set.Var(&c.ReconnectMax, "reconnect-max", "maximum reconnect delay in seconds")
	set.Var(&c.WebhookTimeout, "webhook-timeout", "webhook request timeout in seconds")
	set.StringVar(&c.StatusAddr, "status-port", c.StatusAddr, "status/metrics listen address or port (disabled when empty; e.g. 127.0.0.1:9090 or 9090)")
	set.StringVar(&c.AllowedOrigins, "status-allowed-origins", c.AllowedOrigins, "comma separated origins allowed to call the status server")
}

// LoadFile populates the config from a YAML file. Fields already set remain unless
// overwritten by corresponding entries in the file. A missing file is not an error.
func (c *BridgeConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	c.StatusAddr = normalizeAddr(c.StatusAddr)
	return nil
}

// Validate rejects configurations the bridge cannot start with.
func (c *BridgeConfig) Validate() error {
	if strings.TrimSpace(c.EndpointURL) == "" {
		return ErrMissingEndpoint
	}
	if strings.TrimSpace(c.WebhookURL) == "" {
		return ErrMissingWebhook
	}
	if strings.TrimSpace(c.ToolName) == "" {
		return ErrMissingTool
	}
	u, err := url.Parse(c.EndpointURL)
	if err != nil {
		return fmt.Errorf("endpoint url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("endpoint url: unsupported scheme %q", u.Scheme)
	}
	w, err := url.Parse(c.WebhookURL)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	if w.Scheme != "http" && w.Scheme != "https" {
		return fmt.Errorf("webhook url: unsupported scheme %q", w.Scheme)
	}
	if c.ReconnectDelay <= 0 || c.ReconnectMax <= 0 {
		return errors.New("reconnect delays must be positive")
	}
	if c.WebhookTimeout <= 0 {
		return errors.New("webhook timeout must be positive")
	}
	return nil
}

// Origins splits AllowedOrigins into a list, dropping blanks.
func (c *BridgeConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func normalizeAddr(addr string) string {
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}
