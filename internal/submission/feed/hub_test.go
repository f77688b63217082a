package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"scholar/internal/submission"
	"scholar/internal/submission/metrics"
)

func event(id string, version uint64) submission.Event {
	return submission.Event{
		Type:   submission.EventStatus,
		Record: submission.Record{ID: id, Version: version, Status: submission.StatusScanning},
	}
}

func testMetrics() *metrics.Metrics {
	return metrics.NewWithRegistry(prometheus.NewRegistry())
}

func TestRingBufferDropsOldest(t *testing.T) {
	b := newRingBuffer(3)
	for i := 1; i <= 5; i++ {
		b.enqueue(event("s", uint64(i)))
	}
	assert.Equal(t, 3, b.len())
	assert.Equal(t, int64(2), b.droppedCount())

	got := b.drain()
	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[0].Record.Version)
	assert.Equal(t, uint64(5), got[2].Record.Version)
	assert.Nil(t, b.drain())
}

func TestHubFanOut(t *testing.T) {
	h := NewHub(WithMetrics(testMetrics()))
	a := h.Subscribe(nil)
	b := h.Subscribe(nil)
	defer b.Close()

	h.Publish(context.Background(), event("one", 1))

	for _, sub := range []*Subscription{a, b} {
		select {
		case <-sub.Ready():
		case <-time.After(time.Second):
			t.Fatal("subscriber not signalled")
		}
		got := sub.Drain()
		require.Len(t, got, 1)
		assert.Equal(t, "one", got[0].Record.ID)
	}

	a.Close()
	a.Close()
	assert.Equal(t, 1, h.Len())
	h.Publish(context.Background(), event("two", 1))
	assert.Empty(t, a.Drain())
	assert.Len(t, b.Drain(), 1)
}

func TestSlowSubscriberNeverBlocksPublisher(t *testing.T) {
	h := NewHub(WithBufferSize(4), WithMetrics(testMetrics()))
	slow := h.Subscribe(nil)
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			h.Publish(context.Background(), event("s", uint64(i)))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	got := slow.Drain()
	require.Len(t, got, 4)
	assert.Equal(t, uint64(999), got[3].Record.Version, "latest frames survive")
	assert.Equal(t, int64(996), slow.Dropped())
}

func TestSubscribeSnapshotIsConsistent(t *testing.T) {
	h := NewHub()
	var (
		mu       sync.Mutex
		versions = map[string]uint64{}
	)
	publish := func(v uint64) {
		mu.Lock()
		versions["x"] = v
		mu.Unlock()
		h.Publish(context.Background(), event("x", v))
	}
	publish(1)

	var seen uint64
	sub := h.Subscribe(func() {
		mu.Lock()
		seen = versions["x"]
		mu.Unlock()
	})
	defer sub.Close()
	publish(2)

	assert.Equal(t, uint64(1), seen)
	got := sub.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].Record.Version)
}

type recordingSink struct {
	mu     sync.Mutex
	events []submission.Event
}

func (r *recordingSink) Deliver(_ context.Context, e submission.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestHubDeliversToSinks(t *testing.T) {
	sink := &recordingSink{}
	h := NewHub(WithSink(sink), WithSink(nil))
	h.Publish(context.Background(), event("a", 1))
	h.Publish(context.Background(), event("a", 2))
	assert.Len(t, sink.events, 2)
}

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	// buffered caps accepted records; zero means unlimited.
	buffered int
}

func (f *fakeProducer) TryProduce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	if f.buffered > 0 && len(f.records) >= f.buffered {
		f.mu.Unlock()
		promise(r, kgo.ErrMaxBuffered)
		return
	}
	f.records = append(f.records, r)
	f.mu.Unlock()
	if f.err != nil {
		promise(r, f.err)
	}
}

func TestKafkaSink(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("keyed by submission id", func(t *testing.T) {
		p := &fakeProducer{}
		sink := NewKafkaSink(p, "scholar.submissions", logger, testMetrics())
		sink.Deliver(context.Background(), submission.Event{
			Type:   submission.EventVerified,
			Record: submission.Record{ID: "abc", Status: submission.StatusPayoutSent, PayoutToken: "SOL"},
		})

		require.Len(t, p.records, 1)
		r := p.records[0]
		assert.Equal(t, "scholar.submissions", r.Topic)
		assert.Equal(t, "abc", string(r.Key))
		assert.Equal(t, []kgo.RecordHeader{{Key: "event", Value: []byte("agent_verified")}}, r.Headers)

		var body map[string]any
		require.NoError(t, json.Unmarshal(r.Value, &body))
		assert.Equal(t, "Payout Sent", body["status"])
		assert.Equal(t, "SOL", body["payoutToken"])
	})

	t.Run("produce failure is counted", func(t *testing.T) {
		m := testMetrics()
		p := &fakeProducer{err: errors.New("broker unavailable")}
		sink := NewKafkaSink(p, "t", logger, m)
		for i := 0; i < 3; i++ {
			sink.Deliver(context.Background(), event(fmt.Sprint(i), 1))
		}
		assert.Len(t, p.records, 3)
		assert.Equal(t, 3.0, promtestutil.ToFloat64(m.SinkFailures))
	})

	t.Run("full buffer drops instead of blocking publish", func(t *testing.T) {
		m := testMetrics()
		p := &fakeProducer{buffered: 1}
		hub := NewHub(WithSink(NewKafkaSink(p, "t", logger, m)))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 5; i++ {
				hub.Publish(context.Background(), event(fmt.Sprint(i), 1))
			}
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on a full producer")
		}
		assert.Len(t, p.records, 1)
		assert.Equal(t, 4.0, promtestutil.ToFloat64(m.SinkFailures))
	})
}
