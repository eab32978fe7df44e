package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the playback service.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	triggersTotal         prometheus.Counter
	triggersRejectedTotal prometheus.Counter
	videoSwapsTotal       prometheus.Counter
	crossfadesTotal       prometheus.Counter
	degradedTotal         *prometheus.CounterVec
	activeSessions        prometheus.Gauge
	tickInterval          prometheus.Gauge
}

// New creates and registers Prometheus metrics for the playback service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blink_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blink_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	triggersTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blink_triggers_total",
		Help: "Total number of triggers handled",
	})
	triggersRejectedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blink_triggers_rejected_total",
		Help: "Total number of triggers rejected for an invalid audio action",
	})
	videoSwapsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blink_video_swaps_total",
		Help: "Total number of completed video surface swaps",
	})
	crossfadesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blink_crossfades_total",
		Help: "Total number of audio crossfades issued",
	})
	degradedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blink_degraded_total",
		Help: "Total number of triggers where a modality was skipped",
	}, []string{"modality"})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "blink_active_sessions",
		Help: "Number of live playback sessions",
	})
	tickInterval := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "blink_tick_interval_seconds",
		Help: "Most recently reported smoothed render-loop interval",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		triggersTotal,
		triggersRejectedTotal,
		videoSwapsTotal,
		crossfadesTotal,
		degradedTotal,
		activeSessions,
		tickInterval,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
		triggersTotal:         triggersTotal,
		triggersRejectedTotal: triggersRejectedTotal,
		videoSwapsTotal:       videoSwapsTotal,
		crossfadesTotal:       crossfadesTotal,
		degradedTotal:         degradedTotal,
		activeSessions:        activeSessions,
		tickInterval:          tickInterval,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncTriggers increments the handled triggers counter.
func (m *Metrics) IncTriggers() {
	m.triggersTotal.Inc()
}

// IncTriggersRejected increments the rejected triggers counter.
func (m *Metrics) IncTriggersRejected() {
	m.triggersRejectedTotal.Inc()
}

// IncVideoSwaps increments the completed video swaps counter.
func (m *Metrics) IncVideoSwaps() {
	m.videoSwapsTotal.Inc()
}

// IncCrossfades increments the crossfades counter.
func (m *Metrics) IncCrossfades() {
	m.crossfadesTotal.Inc()
}

// IncDegraded increments the degraded counter for modality ("audio" or "video").
func (m *Metrics) IncDegraded(modality string) {
	m.degradedTotal.WithLabelValues(modality).Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// SetTickInterval records the latest smoothed render-loop interval.
func (m *Metrics) SetTickInterval(d time.Duration) {
	m.tickInterval.Set(d.Seconds())
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
