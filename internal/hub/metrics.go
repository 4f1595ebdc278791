package hub

import "github.com/prometheus/client_golang/prometheus"

var downloadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "routerd",
		Subsystem: "hub",
		Name:      "downloads_total",
		Help:      "Hub file fetches by outcome (cached, downloaded, error)",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(downloadsTotal)
}
