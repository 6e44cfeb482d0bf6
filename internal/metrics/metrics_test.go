package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOrderMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newOrderMetricsWithRegisterer(registry)

	m.RecordOrderCreated()
	m.RecordOrderCreated()
	m.RecordOrderRejected(RejectReasonInsufficientStock)
	m.RecordPersistFailure()
	m.RecordCompensation()
	m.RecordCompensationFailed()
	m.RecordCreateDuration(50 * time.Millisecond)

	if got := testutil.ToFloat64(m.ordersCreated); got != 2 {
		t.Fatalf("orders created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ordersRejected.WithLabelValues(RejectReasonInsufficientStock)); got != 1 {
		t.Fatalf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.compensationFailed); got != 1 {
		t.Fatalf("compensation failed = %v, want 1", got)
	}
}

func TestCacheMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newCacheMetricsWithRegisterer(registry)

	m.RecordHit()
	m.RecordMiss()
	m.RecordMiss()
	m.RecordInvalidation()

	if got := testutil.ToFloat64(m.hits); got != 1 {
		t.Fatalf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.misses); got != 2 {
		t.Fatalf("misses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.invalidations); got != 1 {
		t.Fatalf("invalidations = %v, want 1", got)
	}
}

// Повторная регистрация на том же регистраторе должна вернуть существующие
// collector'ы, а не паниковать.
func TestMetrics_ReRegister(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := newOrderMetricsWithRegisterer(registry)
	second := newOrderMetricsWithRegisterer(registry)

	first.RecordOrderCreated()
	second.RecordOrderCreated()

	if got := testutil.ToFloat64(first.ordersCreated); got != 2 {
		t.Fatalf("shared counter = %v, want 2", got)
	}
}
