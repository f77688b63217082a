// Package submission owns the lifecycle of a research submission: it accepts
// it, runs the verification stages in order and publishes every transition.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scholar/internal/content"
	"scholar/internal/fingerprint"
	"scholar/internal/freshness"
	"scholar/internal/ownership"
	"scholar/internal/payout"
	"scholar/internal/scoring"
	"scholar/internal/submission/metrics"
	dErrors "scholar/pkg/domain-errors"
	"scholar/pkg/requestcontext"
)

const (
	defaultAuthor = "Unknown Researcher"

	reasonDuplicate = "Duplicate Submission Detected: This research content has already been evaluated and funded. We only award grants for unique scientific datasets."
)

// ErrShuttingDown is returned by Submit once Shutdown has started.
var ErrShuttingDown = errors.New("coordinator is shutting down")

// Resolver fetches content and metadata.
type Resolver interface {
	Resolve(ctx context.Context, locator string) (*content.Document, error)
}

// OwnershipVerifier decides a claim.
type OwnershipVerifier interface {
	Verify(ctx context.Context, c ownership.Claim, metadata map[string]string, raw []byte) ownership.Result
}

// Registry is the funded-content set.
type Registry interface {
	IsDuplicate(content []byte) bool
	Settle(ctx context.Context, content []byte, fn func(ctx context.Context) (bool, error)) error
}

// FreshnessOracle checks for prior publication.
type FreshnessOracle interface {
	Check(ctx context.Context, title, excerpt string) freshness.Verdict
}

// Payer sends grants.
type Payer interface {
	Pay(ctx context.Context, req payout.TransferRequest) (payout.Receipt, error)
}

// Publisher broadcasts events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// SubmitRequest is an ingress request.
type SubmitRequest struct {
	Locator   string
	Title     string
	Author    string
	Wallet    string
	Signature string
	Source    string
}

// Coordinator runs one goroutine per accepted submission.
type Coordinator struct {
	store     Store
	resolver  Resolver
	verifier  OwnershipVerifier
	registry  Registry
	oracle    FreshnessOracle
	payer     Payer
	publisher Publisher

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string

	wg       sync.WaitGroup
	closing  atomic.Bool
	inFlight atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = t
	}
}

// WithPayer enables payouts. Without one, funded decisions settle Verified.
func WithPayer(p Payer) Option {
	return func(c *Coordinator) {
		c.payer = p
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithIDGenerator overrides submission id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		c.newID = fn
	}
}

// New builds a coordinator.
func New(
	store Store,
	resolver Resolver,
	verifier OwnershipVerifier,
	registry Registry,
	oracle FreshnessOracle,
	publisher Publisher,
	opts ...Option,
) (*Coordinator, error) {
	switch {
	case store == nil:
		return nil, fmt.Errorf("record store is required")
	case resolver == nil:
		return nil, fmt.Errorf("content resolver is required")
	case verifier == nil:
		return nil, fmt.Errorf("ownership verifier is required")
	case registry == nil:
		return nil, fmt.Errorf("fingerprint registry is required")
	case oracle == nil:
		return nil, fmt.Errorf("freshness oracle is required")
	case publisher == nil:
		return nil, fmt.Errorf("publisher is required")
	}
	c := &Coordinator{
		store:     store,
		resolver:  resolver,
		verifier:  verifier,
		registry:  registry,
		oracle:    oracle,
		publisher: publisher,
		logger:    slog.Default(),
		tracer:    otel.Tracer("scholar/submission"),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit validates and accepts a submission, publishes its Scanning record
// and starts the pipeline. The returned record is the Scanning snapshot.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (Record, error) {
	if c.closing.Load() {
		return Record{}, dErrors.Wrap(ErrShuttingDown, dErrors.CodeUnavailable, "service is shutting down")
	}
	sub, err := c.accept(ctx, req)
	if err != nil {
		return Record{}, err
	}

	rec := NewRecord(sub, scoring.Unassigned)
	if err := c.commit(ctx, &rec, EventStatus); err != nil {
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record submission")
	}
	c.metrics.IncrementAccepted()
	c.logger.InfoContext(ctx, "submission accepted",
		"submission_id", sub.ID,
		"locator", sub.Locator,
		"claimed", sub.HasClaim(),
		"source", sub.Source,
	)

	c.wg.Add(1)
	c.inFlight.Add(1)
	// Pipelines outlive the request that started them.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer c.wg.Done()
		defer c.inFlight.Add(-1)
		c.run(runCtx, sub, rec)
	}()
	return rec, nil
}

func (c *Coordinator) accept(ctx context.Context, req SubmitRequest) (Submission, error) {
	locator := content.NormalizeLocator(req.Locator)
	if locator == "" {
		return Submission{}, dErrors.New(dErrors.CodeValidation, "cid is required")
	}
	wallet := strings.TrimSpace(req.Wallet)
	signature := strings.TrimSpace(req.Signature)
	if (wallet == "") != (signature == "") {
		return Submission{}, dErrors.New(dErrors.CodeValidation, "walletAddress and signature must be provided together")
	}
	if wallet != "" && !ownership.ValidAddress(wallet) {
		return Submission{}, dErrors.New(dErrors.CodeInvalidInput, "walletAddress is not a valid address")
	}

	id := c.newID()
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Research Submission " + shortID(id)
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = defaultAuthor
	}
	return Submission{
		ID:         id,
		Locator:    locator,
		Title:      title,
		Author:     author,
		Claimant:   wallet,
		Signature:  signature,
		Source:     req.Source,
		ReceivedAt: c.receivedAt(ctx),
	}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// receivedAt prefers the time pinned by the request middleware.
func (c *Coordinator) receivedAt(ctx context.Context) time.Time {
	if t, ok := requestcontext.Pinned(ctx); ok {
		return t
	}
	return c.now()
}

// InFlight returns the number of running pipelines.
func (c *Coordinator) InFlight() int64 {
	return c.inFlight.Load()
}

// Shutdown stops accepting submissions and waits for running pipelines
// until ctx ends.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.closing.Store(true)
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain pipelines: %d still running: %w", c.InFlight(), ctx.Err())
	}
}

// Records returns every record, newest first.
func (c *Coordinator) Records(ctx context.Context) ([]Record, error) {
	return c.store.List(ctx)
}

// Stats summarizes every record.
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(records), nil
}

// commit stamps, stores and publishes rec. Store before publish keeps a
// subscriber's snapshot from ever being older than a frame it already got.
func (c *Coordinator) commit(ctx context.Context, rec *Record, eventType string) error {
	rec.Version++
	rec.UpdatedAt = c.now()
	if err := c.store.Save(ctx, *rec); err != nil {
		return err
	}
	c.publisher.Publish(ctx, Event{Type: eventType, Record: *rec})
	return nil
}

// publish is commit for pipeline stages, where a store failure is logged
// and the pipeline moves on.
func (c *Coordinator) publish(ctx context.Context, rec *Record) {
	if err := c.commit(ctx, rec, EventStatus); err != nil {
		c.logger.ErrorContext(ctx, "failed to store record", "submission_id", rec.ID, "error", err)
	}
}

func (c *Coordinator) stage(ctx context.Context, sub Submission, name string) (context.Context, func(err error)) {
	ctx, span := c.tracer.Start(ctx, "submission."+name,
		trace.WithAttributes(attribute.String("submission.id", sub.ID)),
	)
	start := time.Now()
	return ctx, func(err error) {
		c.metrics.ObserveStage(name, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// advance applies a stage transition and publishes it. It reports whether
// the pipeline may continue.
func (c *Coordinator) advance(ctx context.Context, rec *Record, stage Stage, status StageStatus, reason string) bool {
	if err := rec.Advance(stage, status, reason); err != nil {
		c.logger.ErrorContext(ctx, "rejected stage transition",
			"submission_id", rec.ID,
			"stage", stage,
			"status", status,
			"error", err,
		)
		return false
	}
	c.publish(ctx, rec)
	return status != StageFailed
}

func (c *Coordinator) finish(ctx context.Context, rec *Record) {
	c.metrics.ObserveOutcome(string(rec.Status))
	if rec.Status == StatusVerified || rec.Status == StatusPayoutSent {
		c.publisher.Publish(ctx, Event{Type: EventVerified, Record: *rec})
	}
	c.logger.InfoContext(ctx, "submission settled",
		"submission_id", rec.ID,
		"status", rec.Status,
		"trust_score", rec.TrustScore,
		"payout_tx", rec.PayoutTx,
	)
}

func (c *Coordinator) run(ctx context.Context, sub Submission, rec Record) {
	ctx, span := c.tracer.Start(ctx, "submission.pipeline",
		trace.WithAttributes(attribute.String("submission.id", sub.ID)),
	)
	defer span.End()
	defer c.finish(ctx, &rec)

	// resolve
	sctx, end := c.stage(ctx, sub, "resolve")
	doc, err := c.resolver.Resolve(sctx, sub.Locator)
	end(err)
	if err != nil {
		c.logger.WarnContext(ctx, "content unreachable", "submission_id", sub.ID, "error", err)
		if rec.Fail(fmt.Sprintf("Content Unreachable: %v", err)) == nil {
			c.publish(ctx, &rec)
		}
		return
	}
	rec.ContentFingerprint = fingerprint.Fingerprint(doc.Raw)

	// ownership
	sctx, end = c.stage(ctx, sub, "ownership")
	own := ownership.Result{Status: ownership.StatusSkipped}
	if sub.HasClaim() {
		own = c.verifier.Verify(sctx, ownership.Claim{
			Locator:   sub.Locator,
			Wallet:    sub.Claimant,
			Signature: sub.Signature,
		}, doc.Metadata, doc.Raw)
	}
	end(nil)
	if !c.advance(ctx, &rec, StageOwnership, StageStatus(own.Status), own.Reason) {
		return
	}

	// duplicate
	_, end = c.stage(ctx, sub, "duplicate")
	dup := c.registry.IsDuplicate(doc.Raw)
	end(nil)
	if dup {
		c.logger.WarnContext(ctx, "duplicate content", "submission_id", sub.ID, "fingerprint", rec.ContentFingerprint)
		c.advance(ctx, &rec, StageDuplicate, StageFailed, reasonDuplicate)
		return
	}
	if !c.advance(ctx, &rec, StageDuplicate, StageVerified, "") {
		return
	}

	// freshness
	sctx, end = c.stage(ctx, sub, "freshness")
	verdict := c.oracle.Check(sctx, sub.Title, freshness.Excerpt(doc.Text))
	end(nil)
	if !verdict.Original {
		c.advance(ctx, &rec, StageFreshness, StageFailed, "Research Freshness Check Failed: "+verdict.Reason)
		return
	}
	if !c.advance(ctx, &rec, StageFreshness, StageVerified, "") {
		return
	}

	// decision
	_, end = c.stage(ctx, sub, "score")
	result := scoring.Score(doc.Text, doc.Raw)
	end(nil)
	applyScore(&rec, result)
	if !c.advance(ctx, &rec, StageDecision, StageVerified, "") {
		return
	}

	// payout
	status := StatusVerified
	if result.Decision == scoring.DecisionFund {
		sctx, end = c.stage(ctx, sub, "payout")
		var payErr error
		status, payErr = c.pay(sctx, sub, &rec, doc.Raw, result.VerificationHash)
		end(payErr)
	}
	if status == StatusFailed {
		if rec.Fail(reasonDuplicate) == nil {
			c.publish(ctx, &rec)
		}
		return
	}
	if err := rec.Settle(status); err != nil {
		c.logger.ErrorContext(ctx, "settle rejected", "submission_id", sub.ID, "error", err)
		return
	}
	c.publish(ctx, &rec)
}

func applyScore(rec *Record, r scoring.Result) {
	rec.TrustScore = r.TrustScore
	rec.ReproducibilityScore = r.Breakdown.Reproducibility
	rec.MethodologyScore = r.Breakdown.Methodology
	rec.NoveltyScore = r.Breakdown.Novelty
	rec.ImpactScore = r.Breakdown.Impact
	rec.ImpactCategory = r.Category
	rec.RecommendedBioDao = r.Destination
	rec.GrantRecommendation = string(r.Decision)
	rec.AgentReasoning = r.Reasoning
	rec.VerificationHash = r.VerificationHash
}

// recipient is the claimant, else the declared author when it is an address.
func recipient(sub Submission) string {
	if sub.Claimant != "" {
		return sub.Claimant
	}
	return sub.Author
}

// pay settles the grant under the fingerprint lock. It returns Failed only
// when the same content was funded by a concurrent submission.
func (c *Coordinator) pay(ctx context.Context, sub Submission, rec *Record, raw []byte, hash string) (Status, error) {
	if c.payer == nil {
		c.logger.InfoContext(ctx, "no payout instruments configured", "submission_id", sub.ID)
		return StatusVerified, nil
	}

	var (
		receipt payout.Receipt
		payErr  error
	)
	err := c.registry.Settle(ctx, raw, func(ctx context.Context) (bool, error) {
		receipt, payErr = c.payer.Pay(ctx, payout.TransferRequest{Recipient: recipient(sub), Memo: hash})
		// An unconfirmed transfer may still land, so the content counts as funded.
		return payErr == nil || errors.Is(payErr, payout.ErrIndeterminate), nil
	})
	switch {
	case errors.Is(err, fingerprint.ErrDuplicate):
		c.logger.WarnContext(ctx, "content funded concurrently", "submission_id", sub.ID)
		return StatusFailed, err
	case err != nil:
		// The transfer went out; only the fingerprint write failed.
		c.logger.ErrorContext(ctx, "fingerprint not persisted after payout", "submission_id", sub.ID, "error", err)
	}

	switch {
	case payErr == nil:
		rec.PayoutTx = receipt.Signature
		rec.PayoutToken = receipt.Instrument
		return StatusPayoutSent, nil
	case errors.Is(payErr, payout.ErrIndeterminate):
		rec.PayoutTx = receipt.Signature
		rec.PayoutToken = receipt.Instrument
		c.logger.ErrorContext(ctx, "payout unconfirmed, needs reconciliation",
			"submission_id", sub.ID,
			"instrument", receipt.Instrument,
			"signature", receipt.Signature,
		)
		return StatusVerified, payErr
	case errors.Is(payErr, payout.ErrInvalidRecipient):
		c.logger.InfoContext(ctx, "no valid payout address", "submission_id", sub.ID, "author", sub.Author)
		return StatusVerified, nil
	default:
		c.logger.ErrorContext(ctx, "payout failed on every instrument", "submission_id", sub.ID, "error", payErr)
		return StatusVerified, payErr
	}
}
