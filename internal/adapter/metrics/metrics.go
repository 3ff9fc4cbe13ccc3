package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// QuarryMetrics holds all Prometheus metrics for the harvesting core.
type QuarryMetrics struct {
	HarvestAttemptsTotal *prometheus.CounterVec
	HarvestBytesTotal    prometheus.Counter
	ChunkedHarvestsTotal prometheus.Counter
	ActiveSessions       prometheus.Gauge
	EntriesParsedTotal   prometheus.Counter
	SearchDuration       prometheus.Histogram
	SearchesTruncated    prometheus.Counter
}

// NewQuarryMetrics initializes and registers the Prometheus metrics.
func NewQuarryMetrics() *QuarryMetrics {
	return &QuarryMetrics{
		HarvestAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logquarry",
			Subsystem: "harvest",
			Name:      "attempts_total",
			Help:      "Total number of harvest attempts by terminal status.",
		}, []string{"status"}), // status: success, unreachable, no_files, transfer_error
		HarvestBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logquarry",
			Subsystem: "harvest",
			Name:      "bytes_total",
			Help:      "Total number of bytes copied from remote shares.",
		}),
		ChunkedHarvestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logquarry",
			Subsystem: "harvest",
			Name:      "chunked_total",
			Help:      "Number of harvests that used parallel chunked transfer.",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "logquarry",
			Subsystem: "session",
			Name:      "active_gauge",
			Help:      "Number of currently open log sessions.",
		}),
		EntriesParsedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logquarry",
			Subsystem: "parse",
			Name:      "entries_total",
			Help:      "Total number of log entries assembled by the stream parser.",
		}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logquarry",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Wall time of completed search passes.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		SearchesTruncated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logquarry",
			Subsystem: "search",
			Name:      "truncated_total",
			Help:      "Number of searches that hit the per-session result cap.",
		}),
	}
}
