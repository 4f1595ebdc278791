package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"

	"routerd/internal/config"
)

var limitGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "routerd",
		Name:      "limit",
		Help:      "Effective serving limits after bootstrap",
	},
	[]string{"name"},
)

func init() {
	prometheus.MustRegister(limitGauge)
}

// publishLimits exports the effective limits of cfg. Unset optionals are skipped.
func publishLimits(cfg config.ServingConfig) {
	set := func(name string, v int) { limitGauge.WithLabelValues(name).Set(float64(v)) }
	opt := func(name string, o config.OptionalInt) {
		if v, ok := o.Get(); ok {
			set(name, v)
		}
	}
	set("max_concurrent_requests", cfg.MaxConcurrentRequests)
	set("max_best_of", cfg.MaxBestOf)
	set("max_stop_sequences", cfg.MaxStopSequences)
	set("max_top_n_tokens", cfg.MaxTopNTokens)
	opt("max_input_tokens", cfg.MaxInputTokens)
	opt("max_total_tokens", cfg.MaxTotalTokens)
	set("max_batch_prefill_tokens", cfg.MaxBatchPrefillTokens)
	opt("max_batch_total_tokens", cfg.MaxBatchTotalTokens)
	opt("max_batch_size", cfg.MaxBatchSize)
	set("max_waiting_tokens", cfg.MaxWaitingTokens)
	set("max_client_batch_size", cfg.MaxClientBatchSize)
	set("payload_limit", cfg.PayloadLimit)
}
