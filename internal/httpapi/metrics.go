package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Every API series carries the backend variant the router is fronting.
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "routerd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Router API requests by backend, route and status code",
		},
		[]string{"backend", "route", "code"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "routerd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Router API request latency",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"backend", "route"},
	)

	inflightRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "routerd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Router API requests currently being served",
		},
		[]string{"backend"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "routerd",
			Subsystem: "http",
			Name:      "rejections_total",
			Help:      "Requests refused by auth, payload or client batch limits",
		},
		[]string{"backend", "reason"},
	)

	tokenizedInputsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "routerd",
			Subsystem: "tokenize",
			Name:      "inputs_total",
			Help:      "Inputs encoded by /tokenize",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, inflightRequests, rejectionsTotal, tokenizedInputsTotal)
}

// Rejection reasons.
const (
	rejectAuth    = "auth"
	rejectPayload = "payload"
	rejectBatch   = "batch"
)

// unmatchedRoute labels requests chi could not route, keeping path
// cardinality bounded.
const unmatchedRoute = "unmatched"

// instrument records request count, latency and concurrency for the API
// served in front of backendName.
func instrument(backendName string) func(http.Handler) http.Handler {
	inflight := inflightRequests.WithLabelValues(backendName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inflight.Inc()
			defer inflight.Dec()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := routePattern(r)
			if route == "" {
				route = unmatchedRoute
			}
			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			requestsTotal.WithLabelValues(backendName, route, strconv.Itoa(code)).Inc()
			requestDuration.WithLabelValues(backendName, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern returns the chi pattern matched for r, or "" when nothing
// matched. chi fills it while routing, so call it after next has run.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// reject counts a refused request and writes the error body.
func reject(w http.ResponseWriter, backendName, reason string, status int, msg string) {
	rejectionsTotal.WithLabelValues(backendName, reason).Inc()
	writeJSONError(w, status, msg)
}
