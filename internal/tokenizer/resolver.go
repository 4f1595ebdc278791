package tokenizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"routerd/internal/hub"
)

// ErrUnresolved is returned when no strategy produced a tokenizer.
var ErrUnresolved = errors.New("no tokenizer could be resolved")

// Locator maps an identifier to a hub.Location.
type Locator interface {
	Locate(identifier, revision string) hub.Location
}

// Result is a resolved tokenizer with the metadata gathered on the way.
type Result struct {
	Tokenizer Resolved
	Metadata  Metadata
	Strategy  string
}

// Config configures a Resolver.
type Config struct {
	Locator             Locator
	Converter           Converter
	OutputDir           string
	TokenizerConfigPath string
	// Strategies overrides DefaultStrategies(Converter, Logger).
	Strategies []Strategy
	// OnTransition observes state changes.
	OnTransition func(State)
	Logger       zerolog.Logger
}

// Resolver runs the resolution state machine. It is not safe for concurrent use.
type Resolver struct {
	cfg   Config
	state State
}

// New applies defaults to cfg and returns a Resolver.
func New(cfg Config) *Resolver {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "out"
	}
	if cfg.Strategies == nil {
		cfg.Strategies = DefaultStrategies(cfg.Converter, cfg.Logger)
	}
	return &Resolver{cfg: cfg}
}

// State returns the current state.
func (r *Resolver) State() State { return r.state }

func (r *Resolver) transition(s State) {
	r.state = s
	r.cfg.Logger.Debug().Str("state", s.String()).Msg("tokenizer resolution")
	if r.cfg.OnTransition != nil {
		r.cfg.OnTransition(s)
	}
}

// Resolve locates identifier@revision and returns the first tokenizer the
// strategy chain produces. Strategies run strictly in order.
func (r *Resolver) Resolve(ctx context.Context, identifier, revision string) (Result, error) {
	r.transition(StateInit)
	if r.cfg.Locator == nil {
		r.transition(StateFailed)
		return Result{}, errors.New("tokenizer resolver has no locator")
	}
	loc := r.cfg.Locator.Locate(identifier, revision)
	r.cfg.Logger.Debug().Str("kind", loc.Kind().String()).Str("identifier", identifier).Msg("tokenizer located")
	r.transition(StateLocated)

	meta := FetchMetadata(ctx, loc, r.cfg.TokenizerConfigPath, r.cfg.Logger)
	r.transition(StateMetadataFetched)

	req := Request{
		Identifier: identifier,
		Revision:   revision,
		Location:   loc,
		Metadata:   meta,
		OutputDir:  r.cfg.OutputDir,
	}
	for _, s := range r.cfg.Strategies {
		if err := ctx.Err(); err != nil {
			r.transition(StateFailed)
			return Result{}, err
		}
		res, ok := s.Attempt(ctx, req)
		if !ok || res == nil {
			attemptsTotal.WithLabelValues(s.Name(), "miss").Inc()
			continue
		}
		attemptsTotal.WithLabelValues(s.Name(), "hit").Inc()
		if _, external := res.(*External); external {
			r.transition(StateExternalSelected)
		} else {
			r.transition(StateFastLoaded)
		}
		r.cfg.Logger.Info().Str("strategy", s.Name()).Str("tokenizer", res.String()).Msg("tokenizer resolved")
		return Result{Tokenizer: res, Metadata: meta, Strategy: s.Name()}, nil
	}
	r.transition(StateFailed)
	return Result{}, fmt.Errorf("%w: %q", ErrUnresolved, identifier)
}
