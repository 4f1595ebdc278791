package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Options configure the HTTP layer.
type Options struct {
	// Version is reported by /info and the API schema.
	Version string
	Logger  zerolog.Logger
	// RequestLogLevel is the default per-request log level.
	RequestLogLevel LogLevel
	// ShutdownTimeout bounds graceful shutdown once the run context is done.
	ShutdownTimeout time.Duration
	// HealthTimeout bounds a single backend health probe.
	HealthTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Version == "" {
		o.Version = "dev"
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 5 * time.Second
	}
	if o.HealthTimeout <= 0 {
		o.HealthTimeout = 5 * time.Second
	}
	return o
}

// corsHandler returns the CORS middleware for origins, or nil when CORS is
// not configured.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return nil
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})
}
