// Package fingerprint tracks content that has already been funded. A hash
// enters the registry only after a payout completes, so a duplicate here means
// "already paid", never merely "already seen".
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ErrDuplicate is returned by Settle when the content was already funded.
var ErrDuplicate = errors.New("content already funded")

// Store persists the funded set durably.
type Store interface {
	// Load returns every persisted hash.
	Load(ctx context.Context) ([]string, error)
	// Persist durably records hash. all is the full set including hash, for
	// stores that rewrite a snapshot rather than append.
	Persist(ctx context.Context, hash string, all []string) error
}

// Registry is the in-memory funded set backed by a Store.
type Registry struct {
	store  Store
	logger *slog.Logger

	mu     sync.RWMutex
	hashes map[string]struct{}
	order  []string

	writeMu sync.Mutex
	locks   *keyedMutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New builds a registry and loads the persisted set once. A store that
// cannot be read degrades to an empty set with a warning.
func New(ctx context.Context, store Store, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("fingerprint store is required")
	}
	r := &Registry{
		store:  store,
		logger: slog.Default(),
		hashes: make(map[string]struct{}),
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(r)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "fingerprint store unreadable, starting with empty registry", "error", err)
		loaded = nil
	}
	for _, h := range loaded {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, ok := r.hashes[h]; !ok {
			r.hashes[h] = struct{}{}
			r.order = append(r.order, h)
		}
	}
	r.logger.InfoContext(ctx, "fingerprint registry loaded", "count", len(r.order))
	return r, nil
}

// Fingerprint normalizes content and hashes it: lowercase, drop whitespace and
// every character outside [a-z0-9_], then SHA-256 as hex.
func Fingerprint(content []byte) string {
	lowered := strings.ToLower(string(content))
	var b strings.Builder
	b.Grow(len(lowered))
	for i := 0; i < len(lowered); i++ {
		c := lowered[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// IsDuplicate reports whether content was already funded.
func (r *Registry) IsDuplicate(content []byte) bool {
	return r.Contains(Fingerprint(content))
}

// Contains reports whether hash is registered.
func (r *Registry) Contains(hash string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hashes[hash]
	return ok
}

// Len returns the number of funded fingerprints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// RegisterSuccess records content as funded and persists the set. The hash is
// kept in memory even if persistence fails so this process never pays twice.
func (r *Registry) RegisterSuccess(ctx context.Context, content []byte) error {
	return r.register(ctx, Fingerprint(content))
}

func (r *Registry) register(ctx context.Context, hash string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	if _, ok := r.hashes[hash]; ok {
		r.mu.Unlock()
		return nil
	}
	r.hashes[hash] = struct{}{}
	r.order = append(r.order, hash)
	snapshot := make([]string, len(r.order))
	copy(snapshot, r.order)
	r.mu.Unlock()

	if err := r.store.Persist(ctx, hash, snapshot); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist fingerprint", "fingerprint", hash, "error", err)
		return fmt.Errorf("persist fingerprint: %w", err)
	}
	return nil
}

// Settle runs fn while holding the lock for content's fingerprint. It returns
// ErrDuplicate without calling fn if the content is already funded, and
// registers the fingerprint when fn reports a completed payout. Concurrent
// settlements of the same content therefore fund at most once.
func (r *Registry) Settle(ctx context.Context, content []byte, fn func(ctx context.Context) (funded bool, err error)) error {
	hash := Fingerprint(content)
	unlock := r.locks.Lock(hash)
	defer unlock()

	if r.Contains(hash) {
		return ErrDuplicate
	}

	funded, err := fn(ctx)
	if err != nil {
		return err
	}
	if !funded {
		return nil
	}
	return r.register(ctx, hash)
}
