package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"routerd/internal/backend"
	"routerd/internal/config"
	"routerd/internal/tokenizer"
	"routerd/pkg/types"
)

// Server serves the router API and the metrics endpoint.
type Server struct {
	opts Options
}

// NewServer applies defaults to opts.
func NewServer(opts Options) *Server {
	return &Server{opts: opts.withDefaults()}
}

// Run serves until ctx is done, then shuts both listeners down gracefully
// and returns nil. A listener failure stops the other one and is returned.
func (s *Server) Run(ctx context.Context, h backend.Handle, cfg config.ServingConfig, tok *tokenizer.Result) error {
	log := s.opts.Logger
	api := &http.Server{
		Addr:              net.JoinHostPort(cfg.Hostname, strconv.Itoa(cfg.Port)),
		Handler:           NewMux(h, cfg, tok, s.opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metrics := &http.Server{
		Addr:              net.JoinHostPort(cfg.Hostname, strconv.Itoa(cfg.PrometheusPort)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{api, metrics} {
		srv := srv
		g.Go(func() error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info().Str("addr", ln.Addr().String()).Msg("listening")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		var firstErr error
		for _, srv := range []*http.Server{api, metrics} {
			if err := srv.Shutdown(sctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if firstErr != nil {
			log.Warn().Err(firstErr).Msg("graceful shutdown error")
		}
		return nil
	})
	return g.Wait()
}

type routes struct {
	handle backend.Handle
	cfg    config.ServingConfig
	tok    *tokenizer.Result
	opts   Options
}

// NewMux builds the API router for a connected backend. tok may be nil.
func NewMux(h backend.Handle, cfg config.ServingConfig, tok *tokenizer.Result, opts Options) http.Handler {
	opts = opts.withDefaults()
	rt := &routes{handle: h, cfg: cfg, tok: tok, opts: opts}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument(h.Name()))
	r.Use(requestLogger(opts.Logger, opts.RequestLogLevel))
	if c := corsHandler(cfg.CORSAllowOrigin); c != nil {
		r.Use(c)
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", rt.health)
	MountSwagger(r)

	r.Group(func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(bearerAuth(cfg.APIKey, h.Name()))
		}
		r.Get("/info", rt.info)
		r.Post("/tokenize", rt.tokenize)
	})
	return r
}

// bearerAuth rejects requests without "Authorization: Bearer <key>".
func bearerAuth(key, backendName string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				reject(w, backendName, rejectAuth, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// health godoc
// @Summary      Backend health
// @Tags         router
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /health [get]
func (rt *routes) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), rt.opts.HealthTimeout)
	defer cancel()
	if err := rt.handle.Health(ctx); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok", Backend: rt.handle.Name()})
}

// info godoc
// @Summary      Router information
// @Tags         router
// @Produce      json
// @Success      200  {object}  types.Info
// @Failure      401  {object}  types.ErrorResponse
// @Router       /info [get]
func (rt *routes) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildInfo(rt.cfg, rt.handle, rt.tok, rt.opts.Version))
}

func buildInfo(cfg config.ServingConfig, h backend.Handle, tok *tokenizer.Result, version string) types.Info {
	kind := "none"
	if tok != nil {
		switch tok.Tokenizer.(type) {
		case *tokenizer.Fast:
			kind = "fast"
		case *tokenizer.External:
			kind = "external"
		}
	}
	return types.Info{
		ModelID:               cfg.ModelIdentifier(),
		Revision:              cfg.Revision,
		Backend:               h.Name(),
		Tokenizer:             kind,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		MaxBestOf:             cfg.MaxBestOf,
		MaxStopSequences:      cfg.MaxStopSequences,
		MaxTopNTokens:         cfg.MaxTopNTokens,
		MaxInputTokens:        cfg.MaxInputTokens.Or(0),
		MaxTotalTokens:        cfg.MaxTotalTokens.Or(0),
		MaxBatchPrefillTokens: cfg.MaxBatchPrefillTokens,
		MaxBatchTotalTokens:   cfg.MaxBatchTotalTokens.Or(0),
		MaxWaitingTokens:      cfg.MaxWaitingTokens,
		WaitingServedRatio:    cfg.WaitingServedRatio,
		MaxClientBatchSize:    cfg.MaxClientBatchSize,
		ValidationWorkers:     cfg.ValidationWorkers,
		GrammarSupport:        !cfg.DisableGrammarSupport,
		Version:               version,
	}
}

// tokenize godoc
// @Summary      Tokenize inputs with the fast tokenizer
// @Tags         router
// @Accept       json
// @Produce      json
// @Param        request  body      types.TokenizeRequest  true  "Inputs"
// @Success      200      {object}  types.TokenizeResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      413      {object}  types.ErrorResponse
// @Failure      422      {object}  types.ErrorResponse
// @Failure      501      {object}  types.ErrorResponse
// @Router       /tokenize [post]
func (rt *routes) tokenize(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(rt.cfg.PayloadLimit))
	var req types.TokenizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reject(w, rt.handle.Name(), rejectPayload, http.StatusRequestEntityTooLarge, "payload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var inputs []string
	switch {
	case req.Inputs != "" && len(req.Batch) > 0:
		writeJSONError(w, http.StatusBadRequest, "set either inputs or batch, not both")
		return
	case req.Inputs != "":
		inputs = []string{req.Inputs}
	case len(req.Batch) > 0:
		if len(req.Batch) > rt.cfg.MaxClientBatchSize {
			reject(w, rt.handle.Name(), rejectBatch, http.StatusUnprocessableEntity, "batch size "+strconv.Itoa(len(req.Batch))+" exceeds max_client_batch_size "+strconv.Itoa(rt.cfg.MaxClientBatchSize))
			return
		}
		inputs = req.Batch
	default:
		writeJSONError(w, http.StatusBadRequest, "inputs is required")
		return
	}

	fast := rt.fastTokenizer()
	if fast == nil {
		writeJSONError(w, http.StatusNotImplemented, "no fast tokenizer loaded")
		return
	}
	special := req.AddSpecialTokens == nil || *req.AddSpecialTokens
	resp := types.TokenizeResponse{IDs: make([][]uint32, 0, len(inputs))}
	for _, in := range inputs {
		ids, err := fast.Encode(in, special)
		if err != nil {
			if errors.Is(err, tokenizer.ErrEncoderUnavailable) {
				writeJSONError(w, http.StatusNotImplemented, err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.IDs = append(resp.IDs, ids)
	}
	tokenizedInputsTotal.WithLabelValues(rt.handle.Name()).Add(float64(len(inputs)))
	writeJSON(w, http.StatusOK, resp)
}

func (rt *routes) fastTokenizer() *tokenizer.Fast {
	if rt.tok == nil {
		return nil
	}
	f, ok := rt.tok.Tokenizer.(*tokenizer.Fast)
	if !ok || f.Encoder == nil {
		return nil
	}
	return f
}
