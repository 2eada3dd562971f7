package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the user service.
// A nil *Metrics records nothing.
type Metrics struct {
	// Protocol request metrics
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter

	// Database operation metrics
	dbOperationsTotal   *prometheus.CounterVec
	dbOperationDuration *prometheus.HistogramVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usersvc_requests_total",
				Help: "Total number of protocol requests",
			},
			[]string{"route", "status_code"},
		),

		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usersvc_request_duration_seconds",
				Help:    "Protocol request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		connectionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "usersvc_connections_active",
				Help: "Number of connections currently being served",
			},
		),

		connectionsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "usersvc_connections_total",
				Help: "Total number of accepted connections",
			},
		),

		dbOperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usersvc_db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		dbOperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usersvc_db_operation_duration_seconds",
				Help:    "Database operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		healthChecksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usersvc_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}
}

// RecordRequest records a served request
func (m *Metrics) RecordRequest(route Route, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route.String(), strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(route.String()).Observe(duration.Seconds())
}

// RecordDBOperation records a database operation
func (m *Metrics) RecordDBOperation(operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbOperationsTotal.WithLabelValues(operation, statusLabel(success)).Inc()
	m.dbOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ConnectionOpened marks a connection as in service.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

// ConnectionClosed marks a connection as finished.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	if m == nil {
		return
	}
	m.healthChecksTotal.WithLabelValues(statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}
