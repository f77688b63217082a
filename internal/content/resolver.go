// Package content resolves a locator to raw bytes and best-effort metadata
// from an ordered list of remote providers.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"scholar/internal/content/metrics"
	"scholar/pkg/platform/circuit"
)

// Document is a resolved submission.
type Document struct {
	Locator     string
	Raw         []byte
	Text        string
	ContentType string
	ProviderID  string
	Metadata    map[string]string
}

// Resolver tries providers in order with per-provider retries.
type Resolver struct {
	providers []Provider
	metadata  MetadataProvider
	breakers  map[string]*circuit.Breaker

	retries          int
	backoffBase      time.Duration
	breakerThreshold int
	breakerCooldown  time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithMetadataProvider enables side-channel metadata lookups.
func WithMetadataProvider(p MetadataProvider) Option {
	return func(r *Resolver) {
		r.metadata = p
	}
}

// WithRetries sets retries per provider after the first attempt.
func WithRetries(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// WithBackoffBase sets the first retry delay; later delays double.
func WithBackoffBase(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.backoffBase = d
		}
	}
}

// WithBreaker configures provider circuit breakers.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(r *Resolver) {
		r.breakerThreshold = threshold
		r.breakerCooldown = cooldown
	}
}

// NewResolver builds a resolver over providers, tried in the given order.
func NewResolver(providers []Provider, opts ...Option) (*Resolver, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one content provider is required")
	}
	r := &Resolver{
		providers:        providers,
		breakers:         make(map[string]*circuit.Breaker, len(providers)),
		retries:          2,
		backoffBase:      time.Second,
		breakerThreshold: 3,
		breakerCooldown:  time.Minute,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, p := range providers {
		r.breakers[p.ID()] = circuit.New(p.ID(),
			circuit.WithFailureThreshold(r.breakerThreshold),
			circuit.WithCooldown(r.breakerCooldown),
		)
	}
	return r, nil
}

// ProviderIDs returns provider ids in configured order.
func (r *Resolver) ProviderIDs() []string {
	ids := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		ids = append(ids, p.ID())
	}
	return ids
}

// Resolve fetches content and metadata concurrently. Only a content failure
// is returned; metadata always degrades to an empty map.
func (r *Resolver) Resolve(ctx context.Context, locator string) (*Document, error) {
	locator = NormalizeLocator(locator)
	if locator == "" {
		return nil, ErrEmptyLocator
	}

	var (
		payload    *Payload
		providerID string
		meta       map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		payload, providerID, err = r.Fetch(gctx, locator)
		return err
	})
	g.Go(func() error {
		// Metadata must not be cancelled by a failed content fetch either way,
		// so it runs on the parent context.
		meta = r.Metadata(ctx, locator)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Document{
		Locator:     locator,
		Raw:         payload.Body,
		Text:        ExtractText(payload, locator),
		ContentType: payload.ContentType,
		ProviderID:  providerID,
		Metadata:    meta,
	}, nil
}

// Fetch returns the first successful payload and the id of the provider
// that served it.
func (r *Resolver) Fetch(ctx context.Context, locator string) (*Payload, string, error) {
	fetchErr := &FetchError{Locator: locator}
	for _, p := range r.ordered() {
		if err := ctx.Err(); err != nil {
			fetchErr.Failures = append(fetchErr.Failures, ProviderFailure{ProviderID: p.ID(), Err: err})
			continue
		}

		start := time.Now()
		payload, err := r.fetchWithRetry(ctx, p, locator)
		r.metrics.ObserveFetch(p.ID(), err == nil, time.Since(start))
		breaker := r.breakers[p.ID()]

		if err == nil {
			if _, change := breaker.RecordSuccess(); change.Closed {
				r.logger.InfoContext(ctx, "content provider recovered", "provider", p.ID())
			}
			r.logger.DebugContext(ctx, "content fetched", "provider", p.ID(), "locator", locator, "bytes", len(payload.Body))
			return payload, p.ID(), nil
		}

		if _, change := breaker.RecordFailure(); change.Opened {
			r.metrics.IncrementBreakerOpened(p.ID())
			r.logger.WarnContext(ctx, "content provider circuit opened", "provider", p.ID())
		}
		r.logger.WarnContext(ctx, "content provider failed",
			"provider", p.ID(),
			"locator", locator,
			"error", err,
		)
		fetchErr.Failures = append(fetchErr.Failures, ProviderFailure{ProviderID: p.ID(), Err: err})
	}
	return nil, "", fetchErr
}

// Metadata returns provider metadata or an empty map.
func (r *Resolver) Metadata(ctx context.Context, locator string) map[string]string {
	if r.metadata == nil {
		return map[string]string{}
	}
	meta, err := r.metadata.FetchMetadata(ctx, locator)
	if err != nil {
		r.metrics.IncrementMetadataFailures()
		r.logger.WarnContext(ctx, "metadata lookup failed", "provider", r.metadata.ID(), "locator", locator, "error", err)
		return map[string]string{}
	}
	if meta == nil {
		meta = map[string]string{}
	}
	return meta
}

// ordered puts providers whose breaker refuses traffic after the rest,
// keeping the configured order within each group.
func (r *Resolver) ordered() []Provider {
	healthy := make([]Provider, 0, len(r.providers))
	var demoted []Provider
	for _, p := range r.providers {
		if r.breakers[p.ID()].Allow() {
			healthy = append(healthy, p)
		} else {
			demoted = append(demoted, p)
		}
	}
	return append(healthy, demoted...)
}

func (r *Resolver) fetchWithRetry(ctx context.Context, p Provider, locator string) (*Payload, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.backoffBase
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = r.backoffBase << uint(max(r.retries, 1))
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.retries)), ctx)

	var payload *Payload
	attempt := 0
	op := func() error {
		attempt++
		var err error
		payload, err = p.Fetch(ctx, locator)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.DebugContext(ctx, "retrying content provider",
			"provider", p.ID(),
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return payload, nil
}
