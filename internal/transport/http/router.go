package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scholar/internal/platform/metrics"
	"scholar/internal/platform/middleware"
	"scholar/pkg/platform/middleware/metadata"
	"scholar/pkg/platform/middleware/requesttime"
)

// RouterConfig carries the cross-cutting pieces of the router.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	RateLimit      func(http.Handler) http.Handler
	AllowedOrigins []string
	// TrustedProxies may set the client IP through forwarding headers.
	TrustedProxies metadata.TrustedProxies
	// MetricsHandler serves /metrics; nil uses the default registry.
	MetricsHandler http.Handler
}

// NewRouter wires middleware, the API and the metrics endpoint.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.RateLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata(cfg.TrustedProxies))
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	h.Register(r, limit)
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	return r
}
