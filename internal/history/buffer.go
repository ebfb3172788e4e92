package history

import (
	"sync"

	"github.com/digiy/pulse/internal/event"
)

// Buffer is a fixed-capacity ring of events in arrival order.
type Buffer struct {
	mu       sync.RWMutex
	events   []event.Event
	head     int // index of the oldest event
	size     int
	capacity int
}

// NewBuffer creates an empty buffer.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		events:   make([]event.Event, capacity),
		capacity: capacity,
	}
}

// Add appends an event, overwriting the oldest one when full.
func (b *Buffer) Add(evt event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size < b.capacity {
		b.events[(b.head+b.size)%b.capacity] = evt
		b.size++
		return
	}

	b.events[b.head] = evt
	b.head = (b.head + 1) % b.capacity
}

// Events returns a copy of the buffered events, oldest first.
func (b *Buffer) Events() []event.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]event.Event, b.size)
	n := copy(out, b.events[b.head:min(b.head+b.size, b.capacity)])
	copy(out[n:], b.events[:b.size-n])
	return out
}

// Size returns the number of buffered events.
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity returns the maximum number of events the buffer holds.
func (b *Buffer) Capacity() int {
	return b.capacity
}
