package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry event names recorded through Record.
const (
	EventLoad             = "load"
	EventHandoff          = "handoff"
	EventRestoreReload    = "restore_reload"
	EventRestoreLoad      = "restore_load"
	EventSave             = "save"
	EventCleanup          = "cleanup"
	EventSweepScheduled   = "sweep_scheduled"
	EventSweepFailed      = "sweep_failed"
	EventDownloadAccepted = "download_accepted"
	EventDownloadDropped  = "download_dropped"
	EventRequestBlocked   = "request_blocked"
	EventBlockingEnabled  = "blocking_enabled"
	EventBlockingDisabled = "blocking_disabled"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Browsing metrics
	Events       *prometheus.CounterVec
	PageLoads    *prometheus.CounterVec
	LoadDuration prometheus.Histogram
	TabsActive   prometheus.Gauge
	TabOps       *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	mu     sync.RWMutex
	counts map[string]int64
}

// NewMetrics creates a metrics collector backed by its own registry so that
// several collectors can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		counts:   make(map[string]int64),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghostview_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ghostview_http_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghostview_events_total",
				Help: "Browsing lifecycle events by name",
			},
			[]string{"event"},
		),
		PageLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghostview_page_loads_total",
				Help: "Engine page loads by outcome",
			},
			[]string{"outcome"},
		),
		LoadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ghostview_page_load_duration_seconds",
				Help:    "Engine page load duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		TabsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ghostview_tabs_active",
				Help: "Number of open tabs",
			},
		),
		TabOps: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ghostview_tab_operation_duration_seconds",
				Help:    "Tab operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"operation", "outcome"},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ghostview_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghostview_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}
}

// Record counts a telemetry event.
func (m *Metrics) Record(event string) {
	m.Events.WithLabelValues(event).Inc()

	m.mu.Lock()
	m.counts[event]++
	m.mu.Unlock()
}

// Count returns how many times an event was recorded.
func (m *Metrics) Count(event string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[event]
}

// Snapshot returns a copy of all event counts.
func (m *Metrics) Snapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}

// RecordHTTPRequest records an API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPageLoad records a finished engine load
func (m *Metrics) RecordPageLoad(outcome string, duration time.Duration) {
	m.PageLoads.WithLabelValues(outcome).Inc()
	m.LoadDuration.Observe(duration.Seconds())
}

// SetTabsActive sets the number of open tabs
func (m *Metrics) SetTabsActive(count int) {
	m.TabsActive.Set(float64(count))
}

// RecordTabOperation records an API operation on a tab
func (m *Metrics) RecordTabOperation(operation, outcome string, duration time.Duration) {
	m.TabOps.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
