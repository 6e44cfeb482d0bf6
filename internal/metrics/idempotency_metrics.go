package metrics

import "github.com/prometheus/client_golang/prometheus"

// Результаты cleanup-цикла idempotency ключей.
const (
	CleanupResultOK    = "ok"
	CleanupResultError = "error"
)

// IdempotencyMetrics содержит метрики воркера очистки idempotency ключей.
type IdempotencyMetrics struct {
	cleanupRuns  *prometheus.CounterVec
	deletedTotal prometheus.Counter
	lastDeleted  prometheus.Gauge
}

// NewIdempotencyMetrics создаёт метрики очистки на default-регистраторе.
func NewIdempotencyMetrics() *IdempotencyMetrics {
	return newIdempotencyMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newIdempotencyMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &IdempotencyMetrics{
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "vinyl_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result",
		}, []string{"result"}),
		deletedTotal: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vinyl_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "vinyl_idempotency_cleanup_last_deleted",
			Help: "Number of deleted records during the last cleanup run",
		}),
	}
}

// RecordCleanupRun учитывает завершённый cleanup-цикл.
func (m *IdempotencyMetrics) RecordCleanupRun(result string) {
	m.cleanupRuns.WithLabelValues(result).Inc()
}

// RecordDeleted учитывает удалённые записи.
func (m *IdempotencyMetrics) RecordDeleted(count int) {
	if count <= 0 {
		return
	}
	m.deletedTotal.Add(float64(count))
}

// SetLastDeleted публикует размер последнего удаления.
func (m *IdempotencyMetrics) SetLastDeleted(count int) {
	m.lastDeleted.Set(float64(count))
}
