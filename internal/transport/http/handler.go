// Package httptransport exposes the submission pipeline over HTTP.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scholar/internal/ledger"
	"scholar/internal/partners"
	"scholar/internal/partners/tokens"
	"scholar/internal/platform/metrics"
	"scholar/internal/submission"
	"scholar/internal/submission/feed"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

const agentName = "Scholar Sentinel"

// SubmissionService accepts submissions and reads their records.
type SubmissionService interface {
	Submit(ctx context.Context, req submission.SubmitRequest) (submission.Record, error)
	Records(ctx context.Context) ([]submission.Record, error)
	Stats(ctx context.Context) (submission.Stats, error)
}

// WalletService reads the funding wallet.
type WalletService interface {
	WalletInfo(ctx context.Context, mint string) (ledger.WalletInfo, error)
}

// TokenCatalog lists partner tokens.
type TokenCatalog interface {
	Tokens(ctx context.Context) tokens.Listing
	TokensWithOnChain(ctx context.Context) tokens.Listing
	Available(ctx context.Context) bool
}

// MintService reads a token mint.
type MintService interface {
	Mint(ctx context.Context, address string) (ledger.MintInfo, error)
}

// Feed hands out transition subscriptions.
type Feed interface {
	Subscribe(snapshot func()) *feed.Subscription
}

// Handler serves the public API.
type Handler struct {
	submissions  SubmissionService
	feed         Feed
	partners     *partners.Registry
	wallet       WalletService
	tokenMint    string
	tokens       TokenCatalog
	mints        MintService
	rpcURL       string
	integrations map[string]string
	heartbeat    time.Duration
	started      time.Time

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Handler.
type Option func(*Handler)

// WithWallet enables the wallet endpoint.
func WithWallet(w WalletService, tokenMint string) Option {
	return func(h *Handler) {
		h.wallet = w
		h.tokenMint = tokenMint
	}
}

// WithTokenCatalog enables the partner token listing.
func WithTokenCatalog(c TokenCatalog) Option {
	return func(h *Handler) {
		h.tokens = c
	}
}

// WithMintInfo enables the grant token endpoint for mint. rpcURL selects
// the explorer cluster.
func WithMintInfo(m MintService, mint, rpcURL string) Option {
	return func(h *Handler) {
		h.mints = m
		h.tokenMint = mint
		h.rpcURL = rpcURL
	}
}

// WithMetrics counts connected event streams.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithHeartbeat sets the event stream keep-alive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// WithIntegrations reports integration modes on the health endpoint.
func WithIntegrations(modes map[string]string) Option {
	return func(h *Handler) {
		h.integrations = modes
	}
}

// New builds the handler.
func New(submissions SubmissionService, f Feed, registry *partners.Registry, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		submissions:  submissions,
		feed:         f,
		partners:     registry,
		integrations: map[string]string{},
		heartbeat:    25 * time.Second,
		started:      time.Now(),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the API. limit guards submission ingress only.
func (h *Handler) Register(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.With(limit).Post("/evaluate", h.HandleEvaluate)
		r.Get("/agent/logs", h.HandleLogs)
		r.Get("/agent/stats", h.HandleStats)
		r.Get("/agent/wallet", h.HandleWallet)
		r.Get("/partners", h.HandlePartners)
		r.Get("/biodao/tokens", h.HandlePartnerTokens)
		r.Get("/bio-token", h.HandleGrantToken)
		r.Get("/events", h.HandleEvents)
		r.Get("/health", h.HandleHealth)
	})
}
