package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

// ParseLevel maps a level name to a LogLevel. Unknown names map to info.
func ParseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug", "trace":
		return LevelDebug
	default:
		return LevelInfo
	}
}

func requestLogLevel(r *http.Request, def LogLevel) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return ParseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return ParseLevel(v)
	}
	return def
}

// requestLogger logs one line per request at the request's log level.
func requestLogger(log zerolog.Logger, def LogLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lvl := requestLogLevel(r, def)
			if lvl == LevelOff {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			var ev *zerolog.Event
			switch {
			case status >= 500:
				ev = log.Error()
			case lvl >= LevelDebug:
				ev = log.Debug()
			case lvl >= LevelInfo:
				ev = log.Info()
			default:
				return
			}
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				ev = ev.Str("request_id", rid)
			}
			path := routePattern(r)
			if path == "" {
				path = r.URL.Path
			}
			ev.Str("method", r.Method).
				Str("path", path).
				Int("status", status).
				Dur("dur", time.Since(start)).
				Msg("request")
		})
	}
}
