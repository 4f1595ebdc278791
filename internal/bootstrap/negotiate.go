package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"routerd/internal/backend"
	"routerd/internal/config"
)

// Negotiate connects variant and merges the capacity it reports into limits.
// Unset input/total limits are filled from the capacity and reported values
// supersede supplied ones. The caller validates the merged limits again.
// Connection failures are not retried here.
func Negotiate(ctx context.Context, variant backend.Variant, req backend.Request, limits Limits, log zerolog.Logger) (backend.Handle, backend.Capacity, Limits, error) {
	h, c, err := variant.Connect(ctx, req)
	if err != nil {
		return nil, backend.Capacity{}, limits, newError(BackendConnection, err)
	}
	return h, c, merge(limits, c, log), nil
}

func merge(l Limits, c backend.Capacity, log zerolog.Logger) Limits {
	l.MaxInputTokens = adopt(log, "max_input_tokens", "Maximum input tokens defaulted to %d", l.MaxInputTokens, c.MaxInputTokens)
	l.MaxTotalTokens = adopt(log, "max_total_tokens", "Maximum total tokens defaulted to %d", l.MaxTotalTokens, c.MaxTotalTokens)
	if c.MaxBatchTotalTokens > 0 {
		if v, ok := l.MaxBatchTotalTokens.Get(); ok && v != c.MaxBatchTotalTokens {
			log.Warn().Int("requested", v).Int("reported", c.MaxBatchTotalTokens).Msg("`max_batch_total_tokens` superseded by the backend")
		}
		log.Info().Msgf("Setting max batch total tokens to %d", c.MaxBatchTotalTokens)
		l.MaxBatchTotalTokens = config.Some(c.MaxBatchTotalTokens)
	}
	l.Chunking = ChunkingFrom(c.SupportsChunking)
	return l
}

// adopt returns the reported value, logging when it fills an unset limit
// and warning when it replaces a different supplied one.
func adopt(log zerolog.Logger, field, defaulted string, requested config.OptionalInt, reported int) config.OptionalInt {
	if reported <= 0 {
		return requested
	}
	v, ok := requested.Get()
	switch {
	case !ok:
		log.Info().Msg(fmt.Sprintf(defaulted, reported))
	case v != reported:
		log.Warn().Int("requested", v).Int("reported", reported).Msgf("`%s` superseded by the backend", field)
	}
	return config.Some(reported)
}
