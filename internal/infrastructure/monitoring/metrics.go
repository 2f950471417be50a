package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Session metrics
	SessionPhase    prometheus.Gauge
	SessionBegins   *prometheus.CounterVec
	SessionFailures *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Host control-plane metrics
	HostCalls    *prometheus.CounterVec
	HostDuration *prometheus.HistogramVec

	// Event bus metrics
	EventsPosted  *prometheus.CounterVec
	EventsDropped prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	SessionsStarted int64   `json:"sessions_started"`
	SessionsFailed  int64   `json:"sessions_failed"`
	EventsDropped   int64   `json:"events_dropped"`
	WSConnections   int64   `json:"ws_connections"`
	AvgRequestSecs  float64 `json:"avg_request_seconds"`
	UptimeSeconds   float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector registered with the default
// Prometheus registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector registered with reg
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moonlit_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moonlit_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moonlit_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moonlit_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Session metrics
		SessionPhase: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "moonlit_session_phase",
				Help: "Current session phase (0=none 1=connecting 2=streaming 3=disconnecting)",
			},
		),
		SessionBegins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moonlit_session_begins_total",
				Help: "Total number of session begin requests",
			},
			[]string{"result"},
		),
		SessionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moonlit_session_failures_total",
				Help: "Total number of session failures by kind",
			},
			[]string{"kind"},
		),
		SessionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "moonlit_session_duration_seconds",
				Help:    "Wall time from begin to return to idle",
				Buckets: []float64{.1, 1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
			},
		),

		// Host metrics
		HostCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moonlit_host_calls_total",
				Help: "Total number of host control requests",
			},
			[]string{"method", "status"},
		),
		HostDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moonlit_host_call_duration_seconds",
				Help:    "Host control request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),

		// Event metrics
		EventsPosted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moonlit_events_posted_total",
				Help: "Total number of events posted to the bus",
			},
			[]string{"kind"},
		),
		EventsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "moonlit_events_dropped_total",
				Help: "Total number of events dropped because the bus was full",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "moonlit_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moonlit_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "moonlit_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	return m
}

// Run updates the uptime gauge until stop is closed
func (m *Metrics) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		}
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SetSessionPhase records the current session phase ordinal
func (m *Metrics) SetSessionPhase(phase int) {
	m.SessionPhase.Set(float64(phase))
}

// RecordSessionBegin records the outcome of a begin request
func (m *Metrics) RecordSessionBegin(result string) {
	m.SessionBegins.WithLabelValues(result).Inc()
	if result == "accepted" {
		m.mu.Lock()
		m.snapshot.SessionsStarted++
		m.mu.Unlock()
	}
}

// RecordSessionFailure records a classified session failure
func (m *Metrics) RecordSessionFailure(kind string) {
	m.SessionFailures.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.SessionsFailed++
	m.mu.Unlock()
}

// ObserveSessionDuration records how long a session lived
func (m *Metrics) ObserveSessionDuration(d time.Duration) {
	m.SessionDuration.Observe(d.Seconds())
}

// RecordHostCall records a host control request
func (m *Metrics) RecordHostCall(method, status string, duration time.Duration) {
	m.HostCalls.WithLabelValues(method, status).Inc()
	m.HostDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordEventPosted records an event accepted by the bus
func (m *Metrics) RecordEventPosted(kind string) {
	m.EventsPosted.WithLabelValues(kind).Inc()
}

// IncEventsDropped records an event the bus could not accept
func (m *Metrics) IncEventsDropped() {
	m.EventsDropped.Inc()
	m.mu.Lock()
	m.snapshot.EventsDropped++
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.WSConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.WSConnections--
	m.mu.Unlock()
}

// Snapshot returns the current values for the JSON API
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	if s.TotalRequests > 0 {
		s.AvgRequestSecs = s.totalDuration / float64(s.TotalRequests)
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
