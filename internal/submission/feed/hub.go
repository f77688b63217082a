// Package feed fans submission events out to live subscribers and external
// sinks without ever blocking the publisher.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"scholar/internal/submission"
	"scholar/internal/submission/metrics"
)

// Sink receives every published event after subscribers.
type Sink interface {
	Deliver(ctx context.Context, event submission.Event)
}

// Hub is the in-process broadcaster.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	sinks       []Sink
	bufferSize  int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithBufferSize sets the per-subscriber buffer.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithSink adds an external sink.
func WithSink(s Sink) Option {
	return func(h *Hub) {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
}

// NewHub creates a hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  64,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription is one subscriber's view of the feed.
type Subscription struct {
	hub    *Hub
	buf    *ringBuffer
	notify chan struct{}
	once   sync.Once
}

// Ready is signalled when events are waiting. It is closed when the
// subscription ends.
func (s *Subscription) Ready() <-chan struct{} {
	return s.notify
}

// Drain returns buffered events, oldest first.
func (s *Subscription) Drain() []submission.Event {
	return s.buf.drain()
}

// Dropped returns how many events were discarded for this subscriber.
func (s *Subscription) Dropped() int64 {
	return s.buf.droppedCount()
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subscribers, s)
		s.hub.mu.Unlock()
		close(s.notify)
		s.hub.metrics.SubscriberRemoved()
	})
}

// Subscribe registers a subscriber. snapshot, when non-nil, runs while
// publishing is held off, so the subscriber sees every event published
// after whatever state snapshot captured.
func (h *Hub) Subscribe(snapshot func()) *Subscription {
	sub := &Subscription{
		hub:    h,
		buf:    newRingBuffer(h.bufferSize),
		notify: make(chan struct{}, 1),
	}
	h.mu.Lock()
	if snapshot != nil {
		snapshot()
	}
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.SubscriberAdded()
	return sub
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish delivers event to every subscriber and sink. Slow subscribers lose
// their oldest events instead of blocking.
func (h *Hub) Publish(ctx context.Context, event submission.Event) {
	h.mu.Lock()
	for sub := range h.subscribers {
		if sub.buf.enqueue(event) {
			h.metrics.IncrementDropped()
		}
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()

	for _, s := range h.sinks {
		s.Deliver(ctx, event)
	}
}
