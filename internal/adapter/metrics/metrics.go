package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServiceMetrics holds all Prometheus metrics for the logging service.
type ServiceMetrics struct {
	EntriesTotal      *prometheus.CounterVec
	IngestBatchSize   prometheus.Histogram
	QueryDuration     prometheus.Histogram
	Subscribers       prometheus.Gauge
	AlertsTriggered   prometheus.Counter
	EntriesSwept      prometheus.Counter
	APIKeyCacheHits   prometheus.Counter
	APIKeyCacheMisses prometheus.Counter
}

// NewServiceMetrics initializes and registers the Prometheus metrics.
func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		EntriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loghub",
			Subsystem: "ingest",
			Name:      "entries_total",
			Help:      "Total number of ingested entries by status.",
		}, []string{"status"}), // status: accepted, error_auth, error_validation, error_store, error_rate
		IngestBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loghub",
			Subsystem: "ingest",
			Name:      "batch_size",
			Help:      "Distribution of ingested batch sizes.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loghub",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Time taken to serve a log query.",
			Buckets:   prometheus.DefBuckets,
		}),
		Subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "loghub",
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Number of live stream subscribers currently registered.",
		}),
		AlertsTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "loghub",
			Subsystem: "alerts",
			Name:      "triggered_total",
			Help:      "Total number of alert events emitted.",
		}),
		EntriesSwept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "loghub",
			Subsystem: "retention",
			Name:      "entries_swept_total",
			Help:      "Total number of entries removed by the retention sweeper.",
		}),
		APIKeyCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "loghub",
			Subsystem: "auth",
			Name:      "api_key_cache_hits_total",
			Help:      "Total number of API key cache hits.",
		}),
		APIKeyCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "loghub",
			Subsystem: "auth",
			Name:      "api_key_cache_misses_total",
			Help:      "Total number of API key cache misses.",
		}),
	}
}
