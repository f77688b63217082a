package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"scholar/internal/ratelimit/metrics"
	"scholar/internal/ratelimit/models"
	"scholar/pkg/platform/circuit"
	"scholar/pkg/platform/httputil"
	"scholar/pkg/requestcontext"
)

const (
	DefaultMax    = 5
	DefaultWindow = 15 * time.Minute
)

// Store counts requests in fixed windows.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

type Middleware struct {
	store    Store
	fallback Store
	breaker  *circuit.Breaker
	max      int
	window   time.Duration
	disabled bool
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Option func(*Middleware)

// WithDisabled turns limiting off.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithLimit sets the request count and window. Zero values keep the
// defaults.
func WithLimit(maxRequests int, window time.Duration) Option {
	return func(m *Middleware) {
		if maxRequests > 0 {
			m.max = maxRequests
		}
		if window > 0 {
			m.window = window
		}
	}
}

// WithFallback serves checks from a local store while the primary store is
// failing.
func WithFallback(s Store) Option {
	return func(m *Middleware) {
		m.fallback = s
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Middleware{
		store: store,
		breaker: circuit.New("ratelimit",
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(3),
			circuit.WithCooldown(30*time.Second),
		),
		max:    DefaultMax,
		window: DefaultWindow,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		result, degraded, err := m.check(ctx, models.KeyForIP(ip))
		if err != nil {
			// Fail open: a broken counter must not take ingress down.
			m.logger.ErrorContext(ctx, "failed to check rate limit", "error", err, "client_ip", ip)
			next.ServeHTTP(w, r)
			return
		}
		m.metrics.ObserveDecision(result.Allowed)

		addHeaders(w, result)
		if degraded {
			w.Header().Set("X-RateLimit-Status", "degraded")
		}
		if !result.Allowed {
			m.logger.WarnContext(ctx, "rate limit exceeded", "client_ip", ip, "limit", result.Limit)
			writeExceeded(w, result, m.now())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) check(ctx context.Context, key string) (*models.Result, bool, error) {
	if m.fallback != nil && !m.breaker.Allow() {
		m.metrics.IncrementDegraded()
		res, err := m.fallback.Allow(ctx, key, m.max, m.window)
		return res, true, err
	}

	res, err := m.store.Allow(ctx, key, m.max, m.window)
	if err == nil {
		if _, change := m.breaker.RecordSuccess(); change.Closed {
			m.logger.InfoContext(ctx, "rate limit store recovered")
		}
		return res, false, nil
	}

	m.metrics.IncrementStoreFailures()
	if _, change := m.breaker.RecordFailure(); change.Opened {
		m.logger.WarnContext(ctx, "rate limit store circuit opened", "error", err)
	}
	if m.fallback == nil {
		return nil, false, err
	}
	m.metrics.IncrementDegraded()
	res, ferr := m.fallback.Allow(ctx, key, m.max, m.window)
	return res, true, ferr
}

func addHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeExceeded(w http.ResponseWriter, result *models.Result, now time.Time) {
	retry := result.RetryAfter(now)
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many submissions from this IP address. Please try again later.",
		RetryAfter: retry,
	})
}
