package repository

import "github.com/prometheus/client_golang/prometheus"

var (
	commitCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinyrdf",
			Subsystem: "repository",
			Name:      "commits_total",
			Help:      "Counter of transaction commits by result.",
		}, []string{"result"})

	rollbackCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinyrdf",
			Subsystem: "repository",
			Name:      "rollbacks_total",
			Help:      "Counter of rolled back transactions.",
		})

	openConnectionGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tinyrdf",
			Subsystem: "repository",
			Name:      "open_connections",
			Help:      "Number of open connections.",
		})
)

func init() {
	prometheus.MustRegister(commitCounter)
	prometheus.MustRegister(rollbackCounter)
	prometheus.MustRegister(openConnectionGauge)
}
