package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Persistence-layer metrics for production monitoring
var (
	// Cache engine metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rei_cache_hits_total",
			Help: "Total number of cache reads served from the cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rei_cache_misses_total",
			Help: "Total number of cache reads that found no live entry",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rei_cache_evictions_total",
			Help: "Total number of entries evicted to stay under the byte quota",
		},
	)

	CacheExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rei_cache_expired_total",
			Help: "Total number of entries removed because their TTL passed",
		},
	)

	CacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rei_cache_bytes",
			Help: "Current total payload bytes tracked by the cache index",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rei_cache_entries",
			Help: "Current number of entries in the cache index",
		},
	)

	// Cloud sync metrics
	SyncAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rei_sync_attempts_total",
			Help: "Total number of sync cycles by outcome",
		},
		[]string{"outcome"}, // outcome: success/error/skipped
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rei_sync_duration_seconds",
			Help:    "Duration of a full push-pull-merge sync cycle",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)

	RecordsPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rei_sync_records_pushed_total",
			Help: "Total number of local records uploaded to the cloud store",
		},
	)

	RecordsPulled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rei_sync_records_pulled_total",
			Help: "Total number of records adopted or refreshed from the cloud store",
		},
	)

	PushFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rei_sync_push_failures_total",
			Help: "Total number of per-record upload failures left for the next cycle",
		},
	)
)
