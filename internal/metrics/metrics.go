// Package metrics owns the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of one server instance. Each instance has its
// own registry so tests can build routers in parallel.
type Metrics struct {
	registry *prometheus.Registry

	InFlight        prometheus.Gauge
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AuthEvents      *prometheus.CounterVec
	RateLimited     prometheus.Counter
	RefreshTokens   *prometheus.GaugeVec
}

// New creates and registers all collectors, including Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Authentication events by kind and outcome.",
		}, []string{"event", "outcome"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		RefreshTokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "refresh_tokens",
			Help: "Stored refresh tokens by state.",
		}, []string{"state"}),
	}

	m.registry.MustRegister(
		m.InFlight,
		m.Requests,
		m.RequestDuration,
		m.AuthEvents,
		m.RateLimited,
		m.RefreshTokens,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAuth records an authentication event. It matches the observer
// signature accepted by auth.WithObserver.
func (m *Metrics) ObserveAuth(event, outcome string) {
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

// SetRefreshTokens publishes the latest refresh token counts.
func (m *Metrics) SetRefreshTokens(active, expired, revoked int64) {
	m.RefreshTokens.WithLabelValues("active").Set(float64(active))
	m.RefreshTokens.WithLabelValues("expired").Set(float64(expired))
	m.RefreshTokens.WithLabelValues("revoked").Set(float64(revoked))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
