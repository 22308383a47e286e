package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for fetch counters.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics groups the service's Prometheus collectors. All methods are safe
// on a nil receiver so callers can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fetchDropped  prometheus.Counter
	summaries     prometheus.Gauge
	cbState       *prometheus.GaugeVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_fetch_total",
			Help: "Upstream forecast requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forecast_fetch_duration_seconds",
			Help:    "Upstream forecast request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		fetchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_fetch_dropped_total",
			Help: "Fetch requests dropped because another fetch was in flight.",
		}),
		summaries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forecast_day_summaries",
			Help: "Number of daily summaries in the current view state.",
		}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "forecast_cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
	}

	m.registry.MustRegister(
		m.fetchTotal,
		m.fetchDuration,
		m.fetchDropped,
		m.summaries,
		m.cbState,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FetchObserved(endpoint string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.fetchTotal.WithLabelValues(endpoint, outcome).Inc()
	m.fetchDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *Metrics) FetchDropped() {
	if m == nil {
		return
	}
	m.fetchDropped.Inc()
}

func (m *Metrics) SetSummaryCount(n int) {
	if m == nil {
		return
	}
	m.summaries.Set(float64(n))
}

func (m *Metrics) SetCircuitBreakerState(target string, state float64) {
	if m == nil {
		return
	}
	m.cbState.WithLabelValues(target).Set(state)
}
