package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "The total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "The HTTP request latencies in seconds",
		},
		[]string{"method", "endpoint"},
	)

	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_operations_total",
			Help: "Engine operations by outcome (success or error code)",
		},
		[]string{"operation", "outcome"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenancy_operation_duration_seconds",
			Help:    "Engine operation latency including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	txConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_tx_conflicts_total",
			Help: "Optimistic commits rejected because a read document changed",
		},
		[]string{"operation"},
	)

	txRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_tx_retries_total",
			Help: "Transaction attempts re-run after a conflict",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration)
	prometheus.MustRegister(operationsTotal, operationDuration, txConflicts, txRetries)
}

// RequestsTotal returns the requests total metric for middleware use
func RequestsTotal() *prometheus.CounterVec {
	return requestsTotal
}

// RequestDuration returns the request duration metric for middleware use
func RequestDuration() *prometheus.HistogramVec {
	return requestDuration
}

// EngineMetrics implements ports.OperationMetrics on the default Prometheus registry.
type EngineMetrics struct{}

func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{}
}

func (EngineMetrics) ObserveOperation(op operation.Name, outcome string, d time.Duration) {
	operationsTotal.WithLabelValues(string(op), outcome).Inc()
	operationDuration.WithLabelValues(string(op)).Observe(d.Seconds())
}

func (EngineMetrics) IncTxConflict(op operation.Name) {
	txConflicts.WithLabelValues(string(op)).Inc()
}

func (EngineMetrics) IncTxRetry(op operation.Name) {
	txRetries.WithLabelValues(string(op)).Inc()
}
