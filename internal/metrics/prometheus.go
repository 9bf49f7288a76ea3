package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/audiolibrelab/voxstream/internal/audio"
)

// Metrics contains all Prometheus metrics for the voxstream endpoint.
// It implements audio.Observer.
type Metrics struct {
	// Capture metrics
	ChunksCaptured prometheus.Counter
	BytesCaptured  prometheus.Counter

	// Playback metrics
	BytesPlayed    prometheus.Counter
	RingLevelGauge prometheus.Gauge
	StreamingState prometheus.Gauge

	Drops        *prometheus.CounterVec
	DeviceErrors *prometheus.CounterVec

	// Session and transport metrics
	SessionsStarted prometheus.Counter
	ActiveSessions  prometheus.Gauge
	FramesSent      prometheus.Counter
	FramesReceived  *prometheus.CounterVec
	ControlMessages *prometheus.CounterVec
	Reconnects      prometheus.Counter

	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec
}

var _ audio.Observer = (*Metrics)(nil)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChunksCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "voxstream_capture_chunks_total",
			Help: "Total number of chunks read from the capture device",
		}),
		BytesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "voxstream_capture_bytes_total",
			Help: "Total number of PCM bytes read from the capture device",
		}),

		BytesPlayed: f.NewCounter(prometheus.CounterOpts{
			Name: "voxstream_playback_bytes_total",
			Help: "Total number of PCM bytes written to the playback device",
		}),
		RingLevelGauge: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxstream_ring_buffered_bytes",
			Help: "Bytes waiting in the streaming ring",
		}),
		StreamingState: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxstream_streaming_state",
			Help: "Streaming playback state (0=idle, 1=active, 2=draining)",
		}),

		Drops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxstream_dropped_bytes_total",
			Help: "Audio bytes dropped, by reason",
		}, []string{"reason"}),
		DeviceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxstream_device_errors_total",
			Help: "Sample device failures, by operation",
		}, []string{"op"}),

		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "voxstream_sessions_started_total",
			Help: "Total number of conversation sessions started",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxstream_active_sessions",
			Help: "Current number of conversation sessions",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "voxstream_frames_sent_total",
			Help: "Total number of audio frames sent to the server",
		}),
		FramesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxstream_frames_received_total",
			Help: "Frames received from the server, by kind",
		}, []string{"kind"}),
		ControlMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxstream_control_messages_total",
			Help: "Control messages received from the server, by type",
		}, []string{"type"}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "voxstream_transport_reconnects_total",
			Help: "Total number of transport reconnect attempts",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxstream_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
	}
}

// ChunkCaptured implements audio.Observer.
func (m *Metrics) ChunkCaptured(bytes int) {
	m.ChunksCaptured.Inc()
	m.BytesCaptured.Add(float64(bytes))
}

// Dropped implements audio.Observer.
func (m *Metrics) Dropped(reason string, bytes int) {
	m.Drops.WithLabelValues(reason).Add(float64(bytes))
}

// Played implements audio.Observer.
func (m *Metrics) Played(bytes int) {
	m.BytesPlayed.Add(float64(bytes))
}

// DeviceError implements audio.Observer.
func (m *Metrics) DeviceError(op string) {
	m.DeviceErrors.WithLabelValues(op).Inc()
}

// StateChanged implements audio.Observer.
func (m *Metrics) StateChanged(state audio.StreamingState) {
	m.StreamingState.Set(float64(state))
}

// RingLevel implements audio.Observer.
func (m *Metrics) RingLevel(bytes int) {
	m.RingLevelGauge.Set(float64(bytes))
}

// RecordSessionStarted increments the session counters
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionEnded decrements the active session gauge
func (m *Metrics) RecordSessionEnded() {
	m.ActiveSessions.Dec()
}

// RecordFrameSent increments the sent frames counter
func (m *Metrics) RecordFrameSent() {
	m.FramesSent.Inc()
}

// RecordFrameReceived counts an inbound frame of the given kind ("audio" or "control")
func (m *Metrics) RecordFrameReceived(kind string) {
	m.FramesReceived.WithLabelValues(kind).Inc()
}

// RecordControl counts a control message by type
func (m *Metrics) RecordControl(msgType string) {
	m.ControlMessages.WithLabelValues(msgType).Inc()
}

// RecordReconnect increments the reconnect counter
func (m *Metrics) RecordReconnect() {
	m.Reconnects.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
}
