package feed

import (
	"sync"

	"scholar/internal/submission"
)

// ringBuffer is a bounded buffer of events. When full, the oldest event is
// dropped to make room.
type ringBuffer struct {
	mu       sync.Mutex
	events   []submission.Event
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 64
	}
	return &ringBuffer{
		events:   make([]submission.Event, capacity),
		capacity: capacity,
	}
}

// enqueue adds an event and reports whether an older one was dropped.
func (b *ringBuffer) enqueue(event submission.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := false
	if b.count >= b.capacity {
		b.events[b.tail] = submission.Event{}
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		dropped = true
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

// drain removes and returns every buffered event, oldest first.
func (b *ringBuffer) drain() []submission.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	out := make([]submission.Event, b.count)
	for i := range out {
		out[i] = b.events[b.tail]
		b.events[b.tail] = submission.Event{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count = 0
	return out
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *ringBuffer) droppedCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
