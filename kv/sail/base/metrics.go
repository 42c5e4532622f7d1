package base

import "github.com/prometheus/client_golang/prometheus"

var (
	mergeCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinyrdf",
			Subsystem: "branch",
			Name:      "merged_total",
			Help:      "Counter of sinks merged into a branch.",
		})

	conflictCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinyrdf",
			Subsystem: "branch",
			Name:      "conflicts_total",
			Help:      "Counter of serializable sinks rejected by a conflicting commit.",
		})

	foldCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinyrdf",
			Subsystem: "branch",
			Name:      "folded_total",
			Help:      "Counter of deltas folded into their predecessor.",
		})

	flushCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinyrdf",
			Subsystem: "branch",
			Name:      "flush_total",
			Help:      "Counter of branch flushes into the backing source.",
		}, []string{"result"})

	flushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinyrdf",
			Subsystem: "branch",
			Name:      "flush_duration_seconds",
			Help:      "Bucketed histogram of time (s) spent flushing a branch.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		})

	openDatasetGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tinyrdf",
			Subsystem: "branch",
			Name:      "open_datasets",
			Help:      "Number of branch datasets not yet closed.",
		})
)

func init() {
	prometheus.MustRegister(mergeCounter)
	prometheus.MustRegister(conflictCounter)
	prometheus.MustRegister(foldCounter)
	prometheus.MustRegister(flushCounter)
	prometheus.MustRegister(flushDuration)
	prometheus.MustRegister(openDatasetGauge)
}
