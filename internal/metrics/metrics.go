// Package metrics registers the Prometheus collectors named in spec
// §6.2: provider latency histograms, cache hit/miss counters, indexing
// throughput, and batch-size distribution. Grounded on the
// collector-registration shape used across the pack wherever
// prometheus/client_golang appears (counter/histogram vecs registered
// once at construction, methods just Observe/Inc).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector this binary exposes on /metrics.
type Registry struct {
	EmbeddingLatency   *prometheus.HistogramVec
	VectorStoreLatency *prometheus.HistogramVec
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	IndexingThroughput prometheus.Gauge
	BatchSize          prometheus.Histogram
}

// New creates and registers every collector against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer)
// keeps test instances isolated.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		EmbeddingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sourcelens",
			Subsystem: "embedding",
			Name:      "latency_seconds",
			Help:      "Embedding provider call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "success"}),
		VectorStoreLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sourcelens",
			Subsystem: "vectorstore",
			Name:      "latency_seconds",
			Help:      "Vector store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "success"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcelens",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache lookups that found a value.",
		}, []string{"namespace"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcelens",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that found nothing.",
		}, []string{"namespace"}),
		IndexingThroughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sourcelens",
			Subsystem: "indexing",
			Name:      "chunks_per_second",
			Help:      "Most recent indexing run's chunk throughput.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sourcelens",
			Subsystem: "indexing",
			Name:      "batch_size",
			Help:      "Number of chunks embedded per batch.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}

	reg.MustRegister(
		m.EmbeddingLatency,
		m.VectorStoreLatency,
		m.CacheHits,
		m.CacheMisses,
		m.IndexingThroughput,
		m.BatchSize,
	)
	return m
}

func successLabel(err error) string {
	if err != nil {
		return "false"
	}
	return "true"
}

// ObserveEmbedding records one embedding-provider call.
func (m *Registry) ObserveEmbedding(provider string, seconds float64, err error) {
	m.EmbeddingLatency.WithLabelValues(provider, successLabel(err)).Observe(seconds)
}

// ObserveVectorStore records one vector-store backend call.
func (m *Registry) ObserveVectorStore(provider string, seconds float64, err error) {
	m.VectorStoreLatency.WithLabelValues(provider, successLabel(err)).Observe(seconds)
}

// ObserveCache records a cache lookup outcome for a namespace.
func (m *Registry) ObserveCache(namespace string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(namespace).Inc()
	} else {
		m.CacheMisses.WithLabelValues(namespace).Inc()
	}
}
