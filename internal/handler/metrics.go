package handler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the orchestrator pipeline.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	notificationsQueued *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
	enrichmentLatency   *prometheus.HistogramVec
}

// NewMetrics creates the orchestrator's Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		notificationsQueued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_queued_total",
				Help: "Total number of notifications successfully enriched and published",
			},
			[]string{"channel"},
		),
		notificationsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_failed_total",
				Help: "Total number of notifications that ended in a failed state",
			},
			[]string{"channel", "error_code"},
		),
		enrichmentLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notification_enrichment_latency_seconds",
				Help:    "Time from creation to queued",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"channel"},
		),
	}
}

// RecordRequest records HTTP request metrics.
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordQueued records a notification that reached status=queued.
func (m *Metrics) RecordQueued(channel string, latency time.Duration) {
	m.notificationsQueued.WithLabelValues(channel).Inc()
	m.enrichmentLatency.WithLabelValues(channel).Observe(latency.Seconds())
}

// RecordFailed records a notification that ended in status=failed.
func (m *Metrics) RecordFailed(channel, errorCode string) {
	m.notificationsFailed.WithLabelValues(channel, errorCode).Inc()
}

// MetricsHandler exposes the Prometheus scrape endpoint.
type MetricsHandler struct {
	metrics *Metrics
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(metrics *Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Handler returns the Prometheus HTTP handler.
func (h *MetricsHandler) Handler() http.Handler {
	return promhttp.Handler()
}
