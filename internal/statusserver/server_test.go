package statusserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gaspardpetit/wsbridge/internal/metrics"
)

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReadiness(t *testing.T) {
	ready := false
	h := New(Options{Ready: func() bool { return ready }})

	if rr := get(t, h, "/healthz", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
	if rr := get(t, h, "/readyz", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz while disconnected: %d", rr.Code)
	}
	ready = true
	if rr := get(t, h, "/readyz", nil); rr.Code != http.StatusOK {
		t.Fatalf("readyz while connected: %d", rr.Code)
	}
}

func TestStatusAndVersion(t *testing.T) {
	h := New(Options{
		Status:   func() any { return map[string]any{"tool": "gmail_action", "connected": true} },
		Version:  "1.2.3",
		BuildSHA: "abc123",
	})

	rr := get(t, h, "/status", nil)
	var status struct {
		Bridge  map[string]any `json:"bridge"`
		Process ProcessInfo    `json:"process"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("status body: %v", err)
	}
	if status.Bridge["tool"] != "gmail_action" || status.Bridge["connected"] != true {
		t.Fatalf("unexpected status %v", status.Bridge)
	}
	if status.Process.PID != int32(os.Getpid()) {
		t.Fatalf("unexpected pid %d", status.Process.PID)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}

	rr = get(t, h, "/version", nil)
	var version map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &version); err != nil {
		t.Fatalf("version body: %v", err)
	}
	if version["version"] != "1.2.3" || version["build_sha"] != "abc123" {
		t.Fatalf("unexpected version %v", version)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	metrics.RecordToolCall("success")

	rr := get(t, New(Options{Gatherer: reg}), "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "wsbridge_tool_calls_total") {
		t.Fatalf("tool call counter missing from output")
	}
}

func TestCORS(t *testing.T) {
	h := New(Options{AllowedOrigins: []string{"https://dash.example"}})
	rr := get(t, h, "/healthz", http.Header{"Origin": {"https://dash.example"}})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example" {
		t.Fatalf("allowed origin header %q", got)
	}
	rr = get(t, h, "/healthz", http.Header{"Origin": {"https://evil.example"}})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	rr = get(t, New(Options{}), "/healthz", http.Header{"Origin": {"https://dash.example"}})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("cors enabled without origins: %q", got)
	}
}

func TestServeUntilContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	addr, err := ServeUntilContext(ctx, "127.0.0.1:0", New(Options{}))
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "ok") {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := http.Get("http://" + addr + "/healthz"); err != nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("server still serving after cancel")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
