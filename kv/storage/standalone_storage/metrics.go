package standalone_storage

import "github.com/prometheus/client_golang/prometheus"

var (
	sizeGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tinyrdf",
			Subsystem: "badger",
			Name:      "size_bytes",
			Help:      "Size of the badger LSM tree and value log files.",
		}, []string{"type"})

	tableGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tinyrdf",
			Subsystem: "badger",
			Name:      "tables",
			Help:      "Number of badger tables per LSM level.",
		}, []string{"level"})
)

func init() {
	prometheus.MustRegister(sizeGauge)
	prometheus.MustRegister(tableGauge)
}
