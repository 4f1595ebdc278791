package bootstrap

import (
	"routerd/internal/backend"
	"routerd/internal/config"
)

// Chunking is the prefill chunking support declared by the backend.
type Chunking int

const (
	// ChunkingUnknown is used before the backend has reported anything.
	ChunkingUnknown Chunking = iota
	ChunkingUnsupported
	ChunkingSupported
)

// ChunkingFrom maps a reported capability to a Chunking value.
func ChunkingFrom(supported bool) Chunking {
	if supported {
		return ChunkingSupported
	}
	return ChunkingUnsupported
}

// Limits are the fields the validator checks. Unset optionals are unknown.
type Limits struct {
	ValidationWorkers     int
	MaxBatchSize          config.OptionalInt
	MaxInputTokens        config.OptionalInt
	MaxTotalTokens        config.OptionalInt
	MaxBatchPrefillTokens int
	MaxBatchTotalTokens   config.OptionalInt
	Chunking              Chunking
}

// LimitsFrom extracts the validated fields of cfg.
func LimitsFrom(cfg config.ServingConfig, chunking Chunking) Limits {
	return Limits{
		ValidationWorkers:     cfg.ValidationWorkers,
		MaxBatchSize:          cfg.MaxBatchSize,
		MaxInputTokens:        cfg.MaxInputTokens,
		MaxTotalTokens:        cfg.MaxTotalTokens,
		MaxBatchPrefillTokens: cfg.MaxBatchPrefillTokens,
		MaxBatchTotalTokens:   cfg.MaxBatchTotalTokens,
		Chunking:              chunking,
	}
}

// Apply writes the token limits back into cfg.
func (l Limits) Apply(cfg *config.ServingConfig) {
	cfg.MaxInputTokens = l.MaxInputTokens
	cfg.MaxTotalTokens = l.MaxTotalTokens
	cfg.MaxBatchTotalTokens = l.MaxBatchTotalTokens
}

// Backend returns the limits in the form passed to backend.Variant.Connect.
func (l Limits) Backend(cfg config.ServingConfig) backend.Limits {
	bl := backend.LimitsFrom(cfg)
	bl.MaxInputTokens = l.MaxInputTokens
	bl.MaxTotalTokens = l.MaxTotalTokens
	bl.MaxBatchPrefillTokens = l.MaxBatchPrefillTokens
	bl.MaxBatchTotalTokens = l.MaxBatchTotalTokens
	bl.MaxBatchSize = l.MaxBatchSize
	return bl
}

// Validate checks l and reports the first failing rule as an
// ArgumentValidation error. Rules involving unknown values are skipped.
func Validate(l Limits) error {
	if l.ValidationWorkers <= 0 {
		return validationErrorf("`validation_workers` must be > 0")
	}
	if n, ok := l.MaxBatchSize.Get(); ok && n <= 0 {
		return validationErrorf("`max_batch_size` must be > 0")
	}
	input, inputKnown := l.MaxInputTokens.Get()
	total, totalKnown := l.MaxTotalTokens.Get()
	if inputKnown && totalKnown && input >= total {
		return validationErrorf("`max_input_tokens` must be < `max_total_tokens`")
	}
	// Chunked prefill splits long prompts, and with unknown support the
	// check waits for the second pass.
	if inputKnown && l.Chunking == ChunkingUnsupported && input > l.MaxBatchPrefillTokens {
		return validationErrorf("`max_batch_prefill_tokens` must be >= `max_input_tokens`. Given: %d and %d", l.MaxBatchPrefillTokens, input)
	}
	if batchTotal, ok := l.MaxBatchTotalTokens.Get(); ok {
		if l.MaxBatchPrefillTokens > batchTotal {
			return validationErrorf("`max_batch_prefill_tokens` must be <= `max_batch_total_tokens`. Given: %d and %d", l.MaxBatchPrefillTokens, batchTotal)
		}
		if totalKnown && total > batchTotal {
			return validationErrorf("`max_total_tokens` must be <= `max_batch_total_tokens`. Given: %d and %d", total, batchTotal)
		}
	}
	return nil
}
