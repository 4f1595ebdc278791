package tokenizer

import "github.com/prometheus/client_golang/prometheus"

var attemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "routerd",
		Subsystem: "tokenizer",
		Name:      "attempts_total",
		Help:      "Tokenizer resolution attempts by strategy and outcome",
	},
	[]string{"strategy", "outcome"},
)

func init() {
	prometheus.MustRegister(attemptsTotal)
}
