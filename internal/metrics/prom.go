package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wsbridge_build_info",
			Help: "Build information",
		},
		[]string{"date", "sha", "version"},
	)

	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsbridge_connect_attempts_total",
			Help: "WebSocket connection attempts",
		},
		[]string{"outcome"},
	)

	connected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wsbridge_connected",
			Help: "1 while a session is established",
		},
	)

	backoffSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wsbridge_backoff_seconds",
			Help: "Current reconnect backoff",
		},
	)

	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsbridge_frames_received_total",
			Help: "Inbound frames by message type",
		},
		[]string{"type"},
	)

	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsbridge_frames_dropped_total",
			Help: "Inbound frames discarded before dispatch",
		},
		[]string{"reason"},
	)

	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsbridge_rpc_requests_total",
			Help: "Dispatched JSON-RPC messages by method",
		},
		[]string{"method"},
	)

	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsbridge_tool_calls_total",
			Help: "tools/call outcomes",
		},
		[]string{"outcome"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wsbridge_webhook_duration_seconds",
			Help:    "Webhook round trip duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, connectAttempts, connected, backoffSeconds, framesReceived, framesDropped, rpcRequests, toolCalls, webhookDuration)
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// RecordConnect counts a connection attempt.
func RecordConnect(success bool) {
	connectAttempts.WithLabelValues(outcome(success)).Inc()
}

// SetConnected flips the connected gauge.
func SetConnected(up bool) {
	if up {
		connected.Set(1)
		return
	}
	connected.Set(0)
}

// SetBackoff records the delay before the next reconnect attempt.
func SetBackoff(d time.Duration) {
	backoffSeconds.Set(d.Seconds())
}

// RecordFrame counts an inbound frame of the given websocket message type.
func RecordFrame(kind string) {
	framesReceived.WithLabelValues(kind).Inc()
}

// RecordDroppedFrame counts a discarded frame.
func RecordDroppedFrame(reason string) {
	framesDropped.WithLabelValues(reason).Inc()
}

// RecordRPC counts a dispatched message.
func RecordRPC(method string) {
	rpcRequests.WithLabelValues(method).Inc()
}

// RecordToolCall counts a tools/call outcome such as "success",
// "invalid_params", "webhook_status" or "webhook_error".
func RecordToolCall(result string) {
	toolCalls.WithLabelValues(result).Inc()
}

// ObserveWebhook records the duration of a webhook call.
func ObserveWebhook(success bool, d time.Duration) {
	webhookDuration.WithLabelValues(outcome(success)).Observe(d.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
