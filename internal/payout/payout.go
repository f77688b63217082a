// Package payout sends grants through an ordered chain of transfer
// instruments, falling back to the next one when a transfer fails.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/singleflight"

	"scholar/internal/payout/metrics"
)

var (
	// ErrInvalidRecipient means no transfer was attempted.
	ErrInvalidRecipient = errors.New("recipient is not a valid address")
	// ErrExhausted is matched by the error returned when every instrument failed.
	ErrExhausted = errors.New("all payout instruments failed")
	// ErrIndeterminate means a transfer was broadcast but its outcome is
	// unknown. No further instrument may be tried for the same grant.
	ErrIndeterminate = errors.New("transfer submitted but not confirmed")
)

// IndeterminateError carries the signature of a transfer that was broadcast
// without a confirmation.
type IndeterminateError struct {
	Instrument string
	Signature  string
	Err        error
}

func (e *IndeterminateError) Error() string {
	msg := "transfer " + e.Signature + " submitted but not confirmed"
	if e.Instrument != "" {
		msg = e.Instrument + " " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IndeterminateError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIndeterminate}
	}
	return []error{ErrIndeterminate, e.Err}
}

// TransferRequest is one grant transfer.
type TransferRequest struct {
	Recipient string
	// Memo is attached on-chain so the transfer can be traced to its evaluation.
	Memo string
}

// Receipt describes a completed transfer.
type Receipt struct {
	Instrument string
	Signature  string
	Amount     uint64
	Unit       string
}

// Instrument moves value to a recipient.
type Instrument interface {
	Name() string
	Transfer(ctx context.Context, req TransferRequest) (Receipt, error)
}

// InstrumentFailure pairs an instrument with its error.
type InstrumentFailure struct {
	Instrument string
	Err        error
}

// ExhaustedError lists every failed instrument in attempt order.
type ExhaustedError struct {
	Failures []InstrumentFailure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Instrument, f.Err))
	}
	return "all payout instruments failed: " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() error {
	return ErrExhausted
}

// ValidRecipient reports whether addr is a well-formed base58 public key.
func ValidRecipient(addr string) bool {
	_, err := solana.PublicKeyFromBase58(addr)
	return err == nil
}

// Orchestrator tries instruments in order and remembers settled memos.
type Orchestrator struct {
	instruments []Instrument
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu      sync.RWMutex
	settled map[string]outcome
	flight  singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New builds an orchestrator over instruments, tried in the given order.
func New(instruments []Instrument, opts ...Option) (*Orchestrator, error) {
	if len(instruments) == 0 {
		return nil, fmt.Errorf("at least one payout instrument is required")
	}
	for i, in := range instruments {
		if in == nil {
			return nil, fmt.Errorf("payout instrument %d is nil", i)
		}
	}
	o := &Orchestrator{
		instruments: instruments,
		settled:     make(map[string]outcome),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Instruments returns instrument names in attempt order.
func (o *Orchestrator) Instruments() []string {
	names := make([]string, 0, len(o.instruments))
	for _, in := range o.instruments {
		names = append(names, in.Name())
	}
	return names
}

// outcome is a memoized transfer result. err is only ever an
// indeterminate error; plain failures are not remembered.
type outcome struct {
	receipt Receipt
	err     error
}

// Pay sends one grant. The memo doubles as the idempotency key: a memo
// that already settled returns its receipt without a new transfer, and a
// memo whose transfer is unconfirmed keeps returning that error.
func (o *Orchestrator) Pay(ctx context.Context, req TransferRequest) (Receipt, error) {
	if !ValidRecipient(req.Recipient) {
		o.metrics.IncrementSkipped()
		o.logger.InfoContext(ctx, "payout skipped, no valid recipient", "recipient", req.Recipient)
		return Receipt{}, ErrInvalidRecipient
	}
	if req.Memo == "" {
		return o.transfer(ctx, req)
	}
	if out, ok := o.lookup(req.Memo); ok {
		o.metrics.IncrementReplayed()
		return out.receipt, out.err
	}

	v, err, _ := o.flight.Do(req.Memo, func() (any, error) {
		if out, ok := o.lookup(req.Memo); ok {
			return out, nil
		}
		r, err := o.transfer(ctx, req)
		if err != nil && !errors.Is(err, ErrIndeterminate) {
			return outcome{}, err
		}
		out := outcome{receipt: r, err: err}
		o.mu.Lock()
		o.settled[req.Memo] = out
		o.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return Receipt{}, err
	}
	out := v.(outcome)
	return out.receipt, out.err
}

func (o *Orchestrator) lookup(memo string) (outcome, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out, ok := o.settled[memo]
	return out, ok
}

func (o *Orchestrator) transfer(ctx context.Context, req TransferRequest) (Receipt, error) {
	exhausted := &ExhaustedError{}
	for _, in := range o.instruments {
		r, err := in.Transfer(ctx, req)
		o.metrics.ObserveAttempt(in.Name(), err == nil)
		if err == nil {
			if r.Instrument == "" {
				r.Instrument = in.Name()
			}
			o.logger.InfoContext(ctx, "payout sent",
				"instrument", r.Instrument,
				"signature", r.Signature,
				"recipient", req.Recipient,
			)
			return r, nil
		}
		var pending *IndeterminateError
		if errors.As(err, &pending) {
			if pending.Instrument == "" {
				pending.Instrument = in.Name()
			}
			o.logger.ErrorContext(ctx, "payout unconfirmed, not falling back",
				"instrument", pending.Instrument,
				"signature", pending.Signature,
				"recipient", req.Recipient,
			)
			return Receipt{Instrument: pending.Instrument, Signature: pending.Signature}, err
		}
		o.logger.WarnContext(ctx, "payout instrument failed",
			"instrument", in.Name(),
			"recipient", req.Recipient,
			"error", err,
		)
		exhausted.Failures = append(exhausted.Failures, InstrumentFailure{Instrument: in.Name(), Err: err})
	}
	return Receipt{}, exhausted
}
