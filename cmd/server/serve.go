package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"

	"scholar/internal/content"
	contentmetrics "scholar/internal/content/metrics"
	"scholar/internal/fingerprint"
	"scholar/internal/freshness"
	freshnessmetrics "scholar/internal/freshness/metrics"
	"scholar/internal/ledger"
	"scholar/internal/ownership"
	"scholar/internal/partners"
	"scholar/internal/partners/tokens"
	"scholar/internal/payout"
	payoutmetrics "scholar/internal/payout/metrics"
	"scholar/internal/platform/config"
	"scholar/internal/platform/httpserver"
	"scholar/internal/platform/logger"
	"scholar/internal/platform/metrics"
	"scholar/internal/platform/tracing"
	rlmetrics "scholar/internal/ratelimit/metrics"
	rlmw "scholar/internal/ratelimit/middleware"
	rlstore "scholar/internal/ratelimit/store"
	"scholar/internal/submission"
	"scholar/internal/submission/feed"
	submissionmetrics "scholar/internal/submission/metrics"
	httptransport "scholar/internal/transport/http"
	"scholar/pkg/platform/middleware/metadata"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and submission pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, version)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	deps, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	subMetrics := submissionmetrics.New()
	integrations := map[string]string{
		"fingerprintStore": cfg.Fingerprint.Store,
		"rateLimitStore":   cfg.RateLimit.Store,
		"feedSink":         "none",
	}

	providers, metaProvider, err := content.BuildProviders(cfg.Fetch, time.Now(), log)
	if err != nil {
		return err
	}
	resolverOpts := []content.Option{
		content.WithLogger(log),
		content.WithMetrics(contentmetrics.New()),
		content.WithRetries(cfg.Fetch.Retries),
		content.WithBackoffBase(cfg.Fetch.BackoffBase),
		content.WithBreaker(cfg.Fetch.BreakerThreshold, cfg.Fetch.BreakerCooldown),
	}
	integrations["contentGateway"] = "public"
	if metaProvider != nil {
		resolverOpts = append(resolverOpts, content.WithMetadataProvider(metaProvider))
		integrations["contentGateway"] = content.PinataProviderID
	}
	resolver, err := content.NewResolver(providers, resolverOpts...)
	if err != nil {
		return err
	}

	fpStore, err := buildFingerprintStore(ctx, cfg, deps)
	if err != nil {
		return err
	}
	registry, err := fingerprint.New(ctx, fpStore, fingerprint.WithLogger(log))
	if err != nil {
		return err
	}

	var searcher freshness.Searcher
	if cfg.Freshness.TavilyAPIKey != "" {
		searcher = freshness.NewTavilyClient(cfg.Freshness.TavilyURL, cfg.Freshness.TavilyAPIKey,
			&http.Client{Timeout: cfg.Freshness.Timeout})
	}
	oracle := freshness.New(searcher,
		freshness.WithLogger(log),
		freshness.WithMetrics(freshnessmetrics.New()),
		freshness.WithCacheTTL(cfg.Freshness.CacheTTL),
		freshness.WithRateLimit(cfg.Freshness.RequestsPerSecond),
		freshness.WithTimeout(cfg.Freshness.Timeout),
	)
	integrations["tavilySearch"] = oracle.Mode()

	hubOpts := []feed.Option{
		feed.WithLogger(log),
		feed.WithMetrics(subMetrics),
		feed.WithBufferSize(cfg.Feed.SubscriberBuffer),
	}
	if deps.kafka != nil {
		hubOpts = append(hubOpts, feed.WithSink(feed.NewKafkaSink(deps.kafka, cfg.Kafka.Topic, log, subMetrics)))
		integrations["feedSink"] = "kafka"
	}
	hub := feed.NewHub(hubOpts...)

	var store submission.Store = submission.NewInMemoryStore()
	if deps.pool != nil {
		if store, err = submission.NewJournalStore(ctx, deps.pool, log); err != nil {
			return err
		}
	}

	coordOpts := []submission.Option{
		submission.WithLogger(log),
		submission.WithMetrics(subMetrics),
	}
	handlerOpts := []httptransport.Option{
		httptransport.WithHeartbeat(cfg.Feed.Heartbeat),
	}
	integrations["solana"] = "disabled"
	integrations["bioToken"] = "disabled"
	if cfg.Ledger.AgentPrivateKey != "" {
		wallet, instruments, err := buildLedger(cfg.Ledger, log)
		if err != nil {
			return err
		}
		orchestrator, err := payout.New(instruments,
			payout.WithLogger(log),
			payout.WithMetrics(payoutmetrics.New()),
		)
		if err != nil {
			return err
		}
		coordOpts = append(coordOpts, submission.WithPayer(orchestrator))
		handlerOpts = append(handlerOpts, httptransport.WithWallet(wallet, cfg.Ledger.TokenMint))
		integrations["solana"] = "configured"
		if cfg.Ledger.TokenMint != "" {
			integrations["bioToken"] = "configured"
		}
		log.Info("grant payouts enabled", "wallet", wallet.PublicKey().String(), "instruments", orchestrator.Instruments())
	} else {
		log.Warn("AGENT_PRIVATE_KEY not set, fundable submissions settle as verified without payout")
	}

	coordinator, err := submission.New(store, resolver, ownership.New(ownership.WithLogger(log)), registry, oracle, hub, coordOpts...)
	if err != nil {
		return err
	}

	limiter, err := buildRateLimiter(ctx, cfg, deps, log)
	if err != nil {
		return err
	}

	partnerRegistry, err := partners.Load()
	if err != nil {
		return err
	}
	mints := ledger.NewMintReader(rpc.New(cfg.Ledger.RPCURL))
	catalog, err := tokens.New(partnerRegistry.Names(),
		tokens.WithLogger(log),
		tokens.WithListURLs(cfg.Tokens.BioListURL, cfg.Tokens.BiddingListURL),
		tokens.WithSolanaChains(cfg.Tokens.SolanaChainIDs),
		tokens.WithCacheTTL(cfg.Tokens.CacheTTL),
		tokens.WithTimeout(cfg.Tokens.Timeout),
		tokens.WithRetries(cfg.Fetch.Retries, cfg.Fetch.BackoffBase),
		tokens.WithMintReader(mints),
	)
	if err != nil {
		return err
	}
	handlerOpts = append(handlerOpts,
		httptransport.WithTokenCatalog(catalog),
		httptransport.WithMintInfo(mints, cfg.Ledger.TokenMint, cfg.Ledger.RPCURL),
	)

	httpMetrics := metrics.New()
	handlerOpts = append(handlerOpts,
		httptransport.WithMetrics(httpMetrics),
		httptransport.WithIntegrations(integrations),
	)
	trusted, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}
	handler := httptransport.New(coordinator, hub, partnerRegistry, log, handlerOpts...)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		Logger:         log,
		Metrics:        httpMetrics,
		RateLimit:      limiter.RateLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustedProxies: trusted,
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting scholar", "addr", cfg.Server.Addr, "version", version, "integrations", integrations)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down", "in_flight", coordinator.InFlight())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Server.DrainTimeout)
	defer cancelDrain()
	if err := coordinator.Shutdown(drainCtx); err != nil {
		log.Error("submissions still running at exit", "in_flight", coordinator.InFlight(), "error", err)
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func buildLedger(cfg config.Ledger, log *slog.Logger) (*ledger.Client, []payout.Instrument, error) {
	key, err := ledger.ParsePrivateKey(cfg.AgentPrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("AGENT_PRIVATE_KEY: %w", err)
	}
	client, err := ledger.New(rpc.New(cfg.RPCURL), key,
		ledger.WithLogger(log),
		ledger.WithConfirmTimeout(cfg.ConfirmTimeout),
	)
	if err != nil {
		return nil, nil, err
	}

	var instruments []payout.Instrument
	if cfg.TokenMint != "" {
		token, err := ledger.NewTokenInstrument(client, cfg.TokenMint, cfg.TokenAmount)
		if err != nil {
			return nil, nil, fmt.Errorf("BIO_TOKEN_MINT: %w", err)
		}
		instruments = append(instruments, token)
	}
	instruments = append(instruments, ledger.NewNativeInstrument(client, cfg.FallbackLamports))
	return client, instruments, nil
}

func buildRateLimiter(ctx context.Context, cfg *config.Config, deps *infra, log *slog.Logger) (*rlmw.Middleware, error) {
	local := rlstore.NewInMemoryStore()
	go local.RunSweeper(ctx, time.Minute)

	opts := []rlmw.Option{
		rlmw.WithDisabled(cfg.RateLimit.Disabled),
		rlmw.WithLimit(cfg.RateLimit.Max, cfg.RateLimit.Window),
		rlmw.WithMetrics(rlmetrics.New()),
	}
	var primary rlmw.Store = local
	if cfg.RateLimit.Store == "redis" {
		if deps.redis == nil {
			return nil, fmt.Errorf("redis rate limit store needs REDIS_URL")
		}
		primary = rlstore.NewRedisStore(deps.redis.Client)
		opts = append(opts, rlmw.WithFallback(local))
	}
	return rlmw.New(primary, log, opts...), nil
}
