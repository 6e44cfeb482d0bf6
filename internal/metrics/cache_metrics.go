package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics содержит метрики read-кэша каталога.
type CacheMetrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	invalidations prometheus.Counter
}

// NewCacheMetrics создаёт метрики кэша на default-регистраторе.
func NewCacheMetrics() *CacheMetrics {
	return newCacheMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCacheMetricsWithRegisterer(registerer prometheus.Registerer) *CacheMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CacheMetrics{
		hits: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vinyl_catalog_cache_hits_total",
			Help: "Total number of catalog list cache hits",
		}),
		misses: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vinyl_catalog_cache_misses_total",
			Help: "Total number of catalog list cache misses",
		}),
		invalidations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vinyl_catalog_cache_invalidations_total",
			Help: "Total number of coarse cache invalidations triggered by catalog mutations",
		}),
	}
}

// RecordHit увеличивает счётчик попаданий.
func (m *CacheMetrics) RecordHit() {
	m.hits.Inc()
}

// RecordMiss увеличивает счётчик промахов.
func (m *CacheMetrics) RecordMiss() {
	m.misses.Inc()
}

// RecordInvalidation увеличивает счётчик инвалидаций.
func (m *CacheMetrics) RecordInvalidation() {
	m.invalidations.Inc()
}
