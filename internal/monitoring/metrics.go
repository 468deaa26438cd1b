package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	FetchesTotal     prometheus.Counter
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	RetriesTotal     prometheus.Counter
	BlockedTotal     prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	SnapshotsTotal   *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
}

// NewMetrics registers all collectors against reg. Tests pass a fresh
// prometheus.NewRegistry so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_fetches_total",
			Help: "The total number of network fetch attempts",
		}),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_cache_hits_total",
			Help: "The total number of page cache hits",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_cache_misses_total",
			Help: "The total number of page cache misses",
		}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_fetch_retries_total",
			Help: "The total number of fetch retries",
		}),
		BlockedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_blocked_total",
			Help: "The total number of fetches refused by the target site",
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'fetch_failed', 'snapshot_save_failed'
		SnapshotsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_snapshots_total",
			Help: "Price snapshots by outcome",
		}, []string{"outcome"}), // 'accepted', 'rejected'
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricewatch_batch_duration_seconds",
			Help:    "Wall-clock duration of batch runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

func (m *Metrics) IncFetches()     { m.FetchesTotal.Inc() }
func (m *Metrics) IncCacheHits()   { m.CacheHitsTotal.Inc() }
func (m *Metrics) IncCacheMisses() { m.CacheMissesTotal.Inc() }
func (m *Metrics) IncRetries()     { m.RetriesTotal.Inc() }
func (m *Metrics) IncBlocked()     { m.BlockedTotal.Inc() }

func (m *Metrics) IncErrorsTotal(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) IncSnapshots(outcome string) {
	m.SnapshotsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveBatchSeconds(seconds float64) {
	m.BatchDuration.Observe(seconds)
}
