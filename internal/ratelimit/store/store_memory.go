package store

import (
	"context"
	"sync"
	"time"

	"scholar/internal/ratelimit/models"
)

type window struct {
	count   int
	resetAt time.Time
}

// InMemoryStore counts requests per key in fixed windows. It is local to
// the process.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{windows: make(map[string]*window), now: time.Now}
}

// Allow counts a request against key and reports whether it fits in limit.
// Rejected requests still count, matching the shared store.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, win time.Duration) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(win)}
		s.windows[key] = w
	}
	w.count++
	return result(w.count, limit, w.resetAt), nil
}

// Sweep drops expired windows.
func (s *InMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, k)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx ends.
func (s *InMemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func result(count, limit int, resetAt time.Time) *models.Result {
	return &models.Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
}
