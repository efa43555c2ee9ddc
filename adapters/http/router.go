package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/kvorm/adapters/metrics"
)

// RouterConfig carries the optional surfaces wired into the router.
type RouterConfig struct {
	// Metrics enables request instrumentation when set.
	Metrics *metrics.Collector
	// MetricsHandler is mounted at MetricsPath when set, typically
	// promhttp.Handler().
	MetricsHandler http.Handler
	MetricsPath    string
	// AuthEnabled guards the /api routes with a bearer token check against
	// AuthTokenHash.
	AuthEnabled   bool
	AuthTokenHash string
	Version       VersionInfo
	// RequestTimeout bounds each request. Zero means 60 seconds.
	RequestTimeout time.Duration
}

// NewRouter creates the HTTP router with the default configuration: no
// metrics endpoint and no authentication.
func NewRouter(docs *DocumentHandler, health *HealthHandler, logger zerolog.Logger) chi.Router {
	return NewRouterWithConfig(docs, health, logger, RouterConfig{})
}

// NewRouterWithConfig creates the HTTP router and wires the document API,
// health checks and any configured extras behind the standard middleware
// stack.
func NewRouterWithConfig(docs *DocumentHandler, health *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r.Use(middleware.Timeout(timeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	r.Get("/", Root)
	r.Get("/health", health.Readiness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Get("/version", NewVersionHandler(cfg.Version))

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	r.Route("/api/{collection}", func(api chi.Router) {
		if cfg.AuthEnabled {
			api.Use(NewAuthMiddleware(cfg.AuthTokenHash, cfg.Metrics, logger))
		}
		api.Post("/", docs.Create)
		api.Get("/", docs.List)
		api.Post("/query", docs.Query)
		api.Get("/count", docs.Count)
		api.Get("/{id}", docs.Get)
		api.Put("/{id}", docs.Update)
		api.Delete("/{id}", docs.Delete)
	})

	return r
}

// NewLoggingMiddleware logs requests at debug level. Health and metrics
// probes are skipped to keep the log readable.
func NewLoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipInstrumentation(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// NewMetricsMiddleware records request counts, latencies and the in-flight
// gauge. Health and metrics probes are excluded so scrapes do not drown the
// series.
func NewMetricsMiddleware(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipInstrumentation(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			collector.RequestsInFlight.Inc()
			defer collector.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := routePattern(r)
			status := statusLabel(ww.Status())
			collector.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			collector.RequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern prefers chi's matched pattern so the path label stays bounded
// no matter how many collections and ids pass through.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return metrics.NormalizePath(r.URL.Path)
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func skipInstrumentation(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics"
}
