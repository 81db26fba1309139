package metrics

import (
	"time"

	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics records timings and outcomes of ledger operations.
type OperationMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	retries  *prometheus.CounterVec
}

// NewOperationMetrics registers the operation metrics on the provided registerer.
func NewOperationMetrics(reg prometheus.Registerer) *OperationMetrics {
	if reg == nil {
		return &OperationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "labstock",
		Name:      "operation_duration_seconds",
		Help:      "Duration of ledger operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labstock",
		Name:      "operation_success_total",
		Help:      "Committed ledger operations.",
	}, []string{"op"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labstock",
		Name:      "operation_failure_total",
		Help:      "Failed ledger operations by error code.",
	}, []string{"op", "code"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labstock",
		Name:      "operation_busy_retries_total",
		Help:      "Operations re-run after the store reported busy.",
	}, []string{"op"})
	reg.MustRegister(duration, success, failure, retries)
	return &OperationMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		retries:  retries,
	}
}

// Observe records the outcome of one operation that started at started.
func (m *OperationMetrics) Observe(op string, started time.Time, err error) {
	if m == nil || m.duration == nil {
		return
	}
	op = normalizeLabel(op)
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err == nil {
		m.success.WithLabelValues(op).Inc()
		return
	}
	m.failure.WithLabelValues(op, string(pkgerrors.CodeOf(err))).Inc()
}

// IncBusyRetry counts one retry of op.
func (m *OperationMetrics) IncBusyRetry(op string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
