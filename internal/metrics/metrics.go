// Package metrics exposes Prometheus instruments for the attendance service.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "attendance"

// Scan outcomes.
const (
	ScanAccepted       = "accepted"
	ScanWindowClosed   = "window_closed"
	ScanInvalidCode    = "invalid_code"
	ScanAlreadyChecked = "already_checked_in"
	ScanStorageFailure = "storage_failure"
)

// Metrics holds all application metrics.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ScansTotal            *prometheus.CounterVec
	TokensGeneratedTotal  prometheus.Counter
	ReportDeliveriesTotal *prometheus.CounterVec
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers all metrics with a custom registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "endpoint"},
		),
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "QR scan attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokensGeneratedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_generated_total",
				Help:      "Admission tokens created",
			},
		),
		ReportDeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_deliveries_total",
				Help:      "Daily report deliveries by status",
			},
			[]string{"status"},
		),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// RecordScan counts a scan attempt by outcome.
func (m *Metrics) RecordScan(outcome string) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(outcome).Inc()
}

// RecordTokensGenerated adds n newly created admission tokens.
func (m *Metrics) RecordTokensGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensGeneratedTotal.Add(float64(n))
}

// RecordDelivery counts a report delivery by status.
func (m *Metrics) RecordDelivery(status string) {
	if m == nil {
		return
	}
	m.ReportDeliveriesTotal.WithLabelValues(status).Inc()
}

// ShouldSkipEndpoint reports whether a path is excluded from HTTP metrics.
func ShouldSkipEndpoint(path string) bool {
	return path == "/metrics" || path == "/health"
}
