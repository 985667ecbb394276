package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the hub.
type Metrics struct {
	// Refresh loop metrics
	RefreshCycles    *prometheus.CounterVec
	RefreshDuration  *prometheus.HistogramVec
	Notifications    *prometheus.CounterVec

	// Snapshot gauges
	SnapshotClicks   prometheus.Gauge
	SnapshotRevenue  prometheus.Gauge

	// Link registry metrics
	LinkOperations   *prometheus.CounterVec
	ActiveLinks      prometheus.Gauge

	// HTTP metrics
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec

	// System metrics
	DBConnections    *prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitHits    *prometheus.CounterVec
}

var (
	// DefaultMetrics is the global metrics instance
	DefaultMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		// Refresh loop metrics
		RefreshCycles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_cycles_total",
				Help:      "Snapshot refresh cycles by outcome",
			},
			[]string{"status"},
		),
		RefreshDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_duration_seconds",
				Help:      "Snapshot refresh duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"status"},
		),
		Notifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "change_notifications_total",
				Help:      "Change notifications received by stream",
			},
			[]string{"stream"},
		),

		// Snapshot gauges
		SnapshotClicks: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_total_clicks",
				Help:      "Total clicks in the current snapshot",
			},
		),
		SnapshotRevenue: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_total_revenue_dollars",
				Help:      "Total revenue in the current snapshot",
			},
		),

		// Link registry metrics
		LinkOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "link_operations_total",
				Help:      "Link registry operations by type and outcome",
			},
			[]string{"operation", "status"},
		),
		ActiveLinks: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_links",
				Help:      "Number of active affiliate links",
			},
		),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by path, method and status",
			},
			[]string{"path", "method", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"path", "method"},
		),

		// System metrics
		DBConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"state"}, // idle, in_use, total
		),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint", "ip"},
		),
	}

	DefaultMetrics = m
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRefresh records one refresh cycle.
func (m *Metrics) RecordRefresh(status string, took time.Duration) {
	m.RefreshCycles.WithLabelValues(status).Inc()
	m.RefreshDuration.WithLabelValues(status).Observe(took.Seconds())
}

// RecordNotification records a received change notification.
func (m *Metrics) RecordNotification(stream string) {
	m.Notifications.WithLabelValues(stream).Inc()
}

// SetSnapshotTotals updates the current-snapshot gauges.
func (m *Metrics) SetSnapshotTotals(clicks int64, revenue float64) {
	m.SnapshotClicks.Set(float64(clicks))
	m.SnapshotRevenue.Set(revenue)
}

// RecordLinkOperation records a link registry operation.
func (m *Metrics) RecordLinkOperation(operation, status string) {
	m.LinkOperations.WithLabelValues(operation, status).Inc()
}

// SetActiveLinks updates the active link count.
func (m *Metrics) SetActiveLinks(n int) {
	m.ActiveLinks.Set(float64(n))
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(path, method string, status int, took time.Duration) {
	m.HTTPRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(path, method).Observe(took.Seconds())
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint, ip string) {
	m.RateLimitHits.WithLabelValues(endpoint, ip).Inc()
}
