package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины отказа в создании заказа (label `reason`).
const (
	RejectReasonInsufficientStock = "insufficient_stock"
	RejectReasonRecordNotFound    = "record_not_found"
	RejectReasonInvalidRequest    = "invalid_request"
)

// OrderMetrics содержит метрики координатора заказов.
type OrderMetrics struct {
	ordersCreated      prometheus.Counter
	ordersRejected     *prometheus.CounterVec
	persistFailures    prometheus.Counter
	compensations      prometheus.Counter
	compensationFailed prometheus.Counter
	createDuration     prometheus.Histogram
}

// NewOrderMetrics создаёт метрики координатора на default-регистраторе.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vinyl_orders_created_total",
			Help: "Total number of orders committed successfully",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "vinyl_orders_rejected_total",
			Help: "Total number of order requests rejected, by reason",
		}, []string{"reason"}),
		persistFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vinyl_order_persist_failures_total",
			Help: "Total number of order persistence failures after a successful reservation",
		}),
		compensations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vinyl_order_compensations_total",
			Help: "Total number of successful stock releases after a failed persistence",
		}),
		compensationFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vinyl_order_compensation_failed_total",
			Help: "Total number of failed compensations (stock undercount incidents)",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "vinyl_order_create_duration_seconds",
			Help:    "Duration of order creation requests in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordOrderCreated увеличивает счётчик успешных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderRejected увеличивает счётчик бизнес-отказов с причиной.
func (m *OrderMetrics) RecordOrderRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordPersistFailure увеличивает счётчик провалов сохранения заказа.
func (m *OrderMetrics) RecordPersistFailure() {
	m.persistFailures.Inc()
}

// RecordCompensation увеличивает счётчик успешных компенсаций.
func (m *OrderMetrics) RecordCompensation() {
	m.compensations.Inc()
}

// RecordCompensationFailed увеличивает счётчик инцидентов stock undercount.
func (m *OrderMetrics) RecordCompensationFailed() {
	m.compensationFailed.Inc()
}

// RecordCreateDuration записывает длительность обработки запроса.
func (m *OrderMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}
