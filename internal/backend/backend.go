package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"routerd/internal/config"
	"routerd/internal/events"
	"routerd/internal/tokenizer"
)

var (
	// ErrUnknownVariant is returned by New for unsupported backend names.
	ErrUnknownVariant = errors.New("unknown backend")
	// ErrFastTokenizerRequired is returned when a variant needs a fast tokenizer and got none.
	ErrFastTokenizerRequired = errors.New("backend requires a fast tokenizer")
	// ErrWorkerExited is returned when a worker process dies during startup.
	ErrWorkerExited = errors.New("worker exited")
)

// Limits are the batching limits requested by the operator.
type Limits struct {
	MaxInputTokens        config.OptionalInt `json:"max_input_tokens"`
	MaxTotalTokens        config.OptionalInt `json:"max_total_tokens"`
	MaxBatchPrefillTokens int                `json:"max_batch_prefill_tokens"`
	MaxBatchTotalTokens   config.OptionalInt `json:"max_batch_total_tokens"`
	MaxBatchSize          config.OptionalInt `json:"max_batch_size"`
	MaxWaitingTokens      int                `json:"max_waiting_tokens"`
	WaitingServedRatio    float64            `json:"waiting_served_ratio"`
}

// LimitsFrom extracts the batching limits of cfg.
func LimitsFrom(cfg config.ServingConfig) Limits {
	return Limits{
		MaxInputTokens:        cfg.MaxInputTokens,
		MaxTotalTokens:        cfg.MaxTotalTokens,
		MaxBatchPrefillTokens: cfg.MaxBatchPrefillTokens,
		MaxBatchTotalTokens:   cfg.MaxBatchTotalTokens,
		MaxBatchSize:          cfg.MaxBatchSize,
		MaxWaitingTokens:      cfg.MaxWaitingTokens,
		WaitingServedRatio:    cfg.WaitingServedRatio,
	}
}

// Capacity is what a backend reports once it is online.
type Capacity struct {
	MaxInputTokens      int  `json:"max_input_tokens"`
	MaxTotalTokens      int  `json:"max_total_tokens"`
	MaxBatchTotalTokens int  `json:"max_batch_total_tokens"`
	SupportsChunking    bool `json:"supports_chunking"`
}

// Request is passed to Connect.
type Request struct {
	Limits                Limits
	ModelID               string
	MaxConcurrentRequests int
	// Tokenizer is set for variants that require a fast tokenizer.
	Tokenizer *tokenizer.Fast
}

// Handle is a connected backend.
type Handle interface {
	Name() string
	Health(ctx context.Context) error
	Close() error
}

// StaticDefaults fill unset input/total limits of static variants.
type StaticDefaults struct {
	MaxInputTokens int
	MaxTotalTokens int
}

// Capabilities describe how bootstrap must drive a variant.
type Capabilities struct {
	// DynamicCapacity variants report authoritative limits from Connect.
	DynamicCapacity bool
	// RequiresFastTokenizer variants must receive Request.Tokenizer.
	RequiresFastTokenizer bool
	StaticDefaults        *StaticDefaults
}

// Variant is a backend kind.
type Variant interface {
	Name() string
	Capabilities() Capabilities
	// Preflight checks local preconditions without any network or process I/O.
	Preflight() error
	Connect(ctx context.Context, req Request) (Handle, Capacity, error)
}

// Settings configure the variants.
type Settings struct {
	ShardUDSPath   string
	ExecutorWorker string
	Logger         zerolog.Logger
	Publisher      events.Publisher
}

// New returns the variant called name.
func New(name string, s Settings) (Variant, error) {
	switch name {
	case "sharded", "":
		return NewSharded(s.ShardUDSPath, s.Logger), nil
	case "executor":
		return NewExecutor(ExecutorConfig{Worker: s.ExecutorWorker, Logger: s.Logger, Publisher: s.Publisher}), nil
	default:
		return nil, fmt.Errorf("%w %q (expected sharded|executor)", ErrUnknownVariant, name)
	}
}
