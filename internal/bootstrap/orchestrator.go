package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"routerd/internal/backend"
	"routerd/internal/config"
	"routerd/internal/events"
	"routerd/internal/tokenizer"
)

// Resolver resolves a tokenizer identifier.
type Resolver interface {
	Resolve(ctx context.Context, identifier, revision string) (tokenizer.Result, error)
}

// Server runs until ctx is cancelled or it fails. tok is nil when the
// backend did not need a tokenizer.
type Server interface {
	Run(ctx context.Context, h backend.Handle, cfg config.ServingConfig, tok *tokenizer.Result) error
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Serving   config.ServingConfig
	Variant   backend.Variant
	Resolver  Resolver
	Server    Server
	Logger    zerolog.Logger
	Publisher events.Publisher
}

// Outcome is a connected backend ready to be served.
type Outcome struct {
	Handle    backend.Handle
	Capacity  backend.Capacity
	Config    config.ServingConfig
	Tokenizer *tokenizer.Result
}

// Orchestrator sequences bootstrap. Cheap checks run before any I/O.
type Orchestrator struct {
	cfg    Config
	log    zerolog.Logger
	pub    events.Publisher
	tracer trace.Tracer
}

// New returns an Orchestrator for cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		log:    cfg.Logger,
		pub:    events.OrNoop(cfg.Publisher),
		tracer: otel.Tracer("routerd/internal/bootstrap"),
	}
}

// Run bootstraps the backend and blocks in the server until it returns.
// The backend handle is closed afterwards.
func (o *Orchestrator) Run(ctx context.Context) error {
	out, err := o.Bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Handle.Close(); err != nil {
			o.log.Warn().Err(err).Msg("closing backend")
		}
	}()
	if o.cfg.Server == nil {
		return &Error{Kind: ServerFailure, Msg: "no server configured"}
	}
	return o.stage(ctx, "serve", nil, func(ctx context.Context) error {
		if err := o.cfg.Server.Run(ctx, out.Handle, out.Config, out.Tokenizer); err != nil {
			return newError(ServerFailure, err)
		}
		return nil
	})
}

// Bootstrap validates, negotiates, resolves the tokenizer when required and
// connects the backend. On error nothing is left running.
func (o *Orchestrator) Bootstrap(ctx context.Context) (*Outcome, error) {
	if o.cfg.Variant == nil {
		return nil, &Error{Kind: ArgumentValidation, Msg: "no backend configured"}
	}
	cfg := o.cfg.Serving
	variant := o.cfg.Variant
	caps := variant.Capabilities()

	chunking := ChunkingUnknown
	if !caps.DynamicCapacity {
		chunking = ChunkingUnsupported
		o.applyStaticDefaults(&cfg, caps.StaticDefaults)
	}
	limits := LimitsFrom(cfg, chunking)

	if err := o.stage(ctx, "validate", nil, func(context.Context) error { return Validate(limits) }); err != nil {
		return nil, err
	}
	if err := o.stage(ctx, "preflight", map[string]any{"backend": variant.Name()}, func(context.Context) error {
		if err := variant.Preflight(); err != nil {
			return &Error{Kind: ArgumentValidation, Msg: err.Error(), Err: err}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	out := &Outcome{}
	if caps.DynamicCapacity {
		err := o.stage(ctx, "negotiate", map[string]any{"backend": variant.Name()}, func(ctx context.Context) error {
			h, c, merged, err := Negotiate(ctx, variant, o.request(cfg, limits, nil), limits, o.log)
			if err != nil {
				return err
			}
			out.Handle, out.Capacity, limits = h, c, merged
			return nil
		})
		if err != nil {
			return nil, err
		}
		if err := o.stage(ctx, "validate_final", nil, func(context.Context) error { return Validate(limits) }); err != nil {
			o.closeQuietly(out.Handle)
			return nil, err
		}
	}
	limits.Apply(&cfg)

	if caps.RequiresFastTokenizer {
		err := o.stage(ctx, "tokenizer", map[string]any{"identifier": cfg.TokenizerName}, func(ctx context.Context) error {
			res, err := o.resolveFast(ctx, cfg)
			if err != nil {
				return err
			}
			out.Tokenizer = res
			return nil
		})
		if err != nil {
			o.closeQuietly(out.Handle)
			return nil, err
		}
	}

	if out.Handle == nil {
		err := o.stage(ctx, "connect", map[string]any{"backend": variant.Name()}, func(ctx context.Context) error {
			var fast *tokenizer.Fast
			if out.Tokenizer != nil {
				fast, _ = out.Tokenizer.Tokenizer.(*tokenizer.Fast)
			}
			h, c, err := variant.Connect(ctx, o.request(cfg, limits, fast))
			if err != nil {
				return newError(BackendConnection, err)
			}
			out.Handle, out.Capacity = h, c
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	out.Config = cfg
	publishLimits(cfg)
	o.log.Info().
		Str("backend", variant.Name()).
		Str("max_input_tokens", cfg.MaxInputTokens.String()).
		Str("max_total_tokens", cfg.MaxTotalTokens.String()).
		Str("max_batch_total_tokens", cfg.MaxBatchTotalTokens.String()).
		Int("max_batch_prefill_tokens", cfg.MaxBatchPrefillTokens).
		Bool("supports_chunking", out.Capacity.SupportsChunking).
		Msg("bootstrap complete")
	return out, nil
}

// applyStaticDefaults fills unset input/total limits for variants that
// cannot report their capacity.
func (o *Orchestrator) applyStaticDefaults(cfg *config.ServingConfig, d *backend.StaticDefaults) {
	if d == nil {
		return
	}
	if !cfg.MaxInputTokens.IsSet() {
		cfg.MaxInputTokens = config.Some(d.MaxInputTokens)
		o.log.Info().Msgf("Maximum input tokens defaulted to %d", d.MaxInputTokens)
	}
	if !cfg.MaxTotalTokens.IsSet() {
		cfg.MaxTotalTokens = config.Some(d.MaxTotalTokens)
		o.log.Info().Msgf("Maximum total tokens defaulted to %d", d.MaxTotalTokens)
	}
}

// resolveFast resolves the tokenizer and rejects anything but a fast one.
func (o *Orchestrator) resolveFast(ctx context.Context, cfg config.ServingConfig) (*tokenizer.Result, error) {
	if o.cfg.Resolver == nil {
		return nil, &Error{Kind: ResourceResolution, Msg: "no tokenizer resolver configured"}
	}
	res, err := o.cfg.Resolver.Resolve(ctx, cfg.TokenizerName, cfg.Revision)
	if err != nil {
		return nil, newError(ResourceResolution, err)
	}
	if _, ok := res.Tokenizer.(*tokenizer.Fast); !ok {
		return nil, &Error{Kind: ResourceResolution, Msg: "failed to retrieve a fast tokenizer", Err: errors.New(tokenizerName(res))}
	}
	return &res, nil
}

func tokenizerName(res tokenizer.Result) string {
	if res.Tokenizer == nil {
		return "none"
	}
	return res.Tokenizer.String()
}

func (o *Orchestrator) request(cfg config.ServingConfig, l Limits, fast *tokenizer.Fast) backend.Request {
	return backend.Request{
		Limits:                l.Backend(cfg),
		ModelID:               cfg.ModelIdentifier(),
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		Tokenizer:             fast,
	}
}

func (o *Orchestrator) closeQuietly(h backend.Handle) {
	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		o.log.Debug().Err(err).Msg("closing backend after failed bootstrap")
	}
}

// stage runs fn inside a span named bootstrap.<name> after publishing the
// stage event.
func (o *Orchestrator) stage(ctx context.Context, name string, fields map[string]any, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "bootstrap."+name)
	defer span.End()
	o.pub.Publish(events.Event{Name: name, Stage: "bootstrap", Fields: fields})
	start := time.Now()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.Debug().Str("stage", name).Dur("elapsed", time.Since(start)).Err(err).Msg("bootstrap stage failed")
		return err
	}
	o.log.Debug().Str("stage", name).Dur("elapsed", time.Since(start)).Msg("bootstrap stage done")
	return nil
}
