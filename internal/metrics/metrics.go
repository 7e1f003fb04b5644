// Package metrics - Prometheus-метрики DAO-операций.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы операции (label outcome).
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// DAO собирает счётчики и длительности операций.
// Нулевой указатель допустим: все методы становятся no-op.
type DAO struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New создаёт метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *DAO {
	m := &DAO{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mflix",
			Subsystem: "dao",
			Name:      "operations_total",
			Help:      "DAO operations by outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mflix",
			Subsystem: "dao",
			Name:      "operation_duration_seconds",
			Help:      "DAO operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(m.ops, m.duration)

	return m
}

// Observe фиксирует исход и длительность операции op, начатой в start.
func (m *DAO) Observe(op, outcome string, start time.Time) {
	if m == nil {
		return
	}

	m.ops.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
