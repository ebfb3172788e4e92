package history

import (
	"sort"
	"sync"

	"github.com/digiy/pulse/internal/event"
)

// DefaultCapacity is the number of events kept per merchant.
const DefaultCapacity = 200

// Store maps merchants to their recent-event buffers.
//
// SAFETY ASSUMPTION: Buffer references are never removed from s.buffers, so a
// buffer may be used after s.mu is released.
type Store struct {
	mu       sync.RWMutex
	buffers  map[string]*Buffer
	capacity int
}

// NewStore creates a store whose buffers hold at most capacity events.
// A non-positive capacity falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		buffers:  make(map[string]*Buffer),
		capacity: capacity,
	}
}

// Append adds evt to the end of the merchant's buffer, evicting the oldest
// event once the buffer is full.
func (s *Store) Append(tenantID string, evt event.Event) {
	s.buffer(tenantID).Add(evt)
}

// Snapshot returns a copy of the merchant's buffer, oldest first. Unknown
// merchants yield an empty, non-nil slice.
func (s *Store) Snapshot(tenantID string) []event.Event {
	s.mu.RLock()
	buf, ok := s.buffers[tenantID]
	s.mu.RUnlock()

	if !ok {
		return []event.Event{}
	}
	return buf.Events()
}

// Len returns the number of buffered events for a merchant.
func (s *Store) Len(tenantID string) int {
	s.mu.RLock()
	buf, ok := s.buffers[tenantID]
	s.mu.RUnlock()

	if !ok {
		return 0
	}
	return buf.Size()
}

// Tenants returns the merchants that have at least one buffer, sorted.
func (s *Store) Tenants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.buffers))
	for id := range s.buffers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Capacity returns the per-merchant buffer capacity.
func (s *Store) Capacity() int {
	return s.capacity
}

// buffer returns the merchant's buffer, creating it on first use.
func (s *Store) buffer(tenantID string) *Buffer {
	s.mu.RLock()
	buf, ok := s.buffers[tenantID]
	s.mu.RUnlock()
	if ok {
		return buf
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check: another goroutine might have created it
	if buf, ok = s.buffers[tenantID]; !ok {
		buf = NewBuffer(s.capacity)
		s.buffers[tenantID] = buf
	}
	return buf
}
