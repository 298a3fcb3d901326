// Package metrics provides Prometheus metrics for protocol operations, the
// event stream, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the Prometheus collectors for the protocol.
type Metrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	retriesTotal      *prometheus.CounterVec
	eventsTotal       *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	authFailuresTotal   *prometheus.CounterVec
	rateLimitedTotal    prometheus.Counter
}

// New creates the protocol metrics and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthstamp_operations_total",
			Help: "Total number of protocol operations by outcome",
		},
		[]string{"operation", "outcome"}, // outcome: ok or an error kind
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "truthstamp_operation_duration_seconds",
			Help:    "Time taken by protocol operations, including retries",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"operation"},
	)

	m.retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthstamp_operation_retries_total",
			Help: "Total number of transaction retries after transient store errors",
		},
		[]string{"operation"},
	)

	m.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthstamp_events_total",
			Help: "Total number of committed protocol events",
		},
		[]string{"kind"},
	)

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthstamp_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "truthstamp_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthstamp_http_auth_failures_total",
			Help: "Total number of rejected request signatures",
		},
		[]string{"reason"}, // reason: missing, signature, replay
	)

	m.rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "truthstamp_http_rate_limited_total",
			Help: "Total number of requests rejected by the per-address rate limiter",
		},
	)
}

// RecordOperation records one protocol operation with its outcome label and
// total duration.
func (m *Metrics) RecordOperation(operation, outcome string, d time.Duration) {
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordRetry records a transaction retry.
func (m *Metrics) RecordRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

// RecordEvent records a committed event.
func (m *Metrics) RecordEvent(kind string) {
	m.eventsTotal.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordAuthFailure records a rejected request signature.
func (m *Metrics) RecordAuthFailure(reason string) {
	m.authFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordRateLimited records a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited() {
	m.rateLimitedTotal.Inc()
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.retriesTotal.Describe(ch)
	m.eventsTotal.Describe(ch)
	m.httpRequestsTotal.Describe(ch)
	m.httpRequestDuration.Describe(ch)
	m.authFailuresTotal.Describe(ch)
	m.rateLimitedTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.retriesTotal.Collect(ch)
	m.eventsTotal.Collect(ch)
	m.httpRequestsTotal.Collect(ch)
	m.httpRequestDuration.Collect(ch)
	m.authFailuresTotal.Collect(ch)
	m.rateLimitedTotal.Collect(ch)
}
