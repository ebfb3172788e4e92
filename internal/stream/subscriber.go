package stream

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSubscriberClosed is returned when delivering to a subscriber that left.
	ErrSubscriberClosed = errors.New("subscriber closed")

	// ErrQueueFull is returned when a subscriber is too slow to keep up.
	ErrQueueFull = errors.New("subscriber queue full")
)

// ConnState is the lifecycle state of a subscriber connection.
type ConnState int32

const (
	// StateBootstrapped: history captured and subscriber registered, bootstrap
	// frame not yet written.
	StateBootstrapped ConnState = iota
	// StateLive: bootstrap written, live frames flowing.
	StateLive
	// StateClosed is terminal.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateBootstrapped:
		return "bootstrapped"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Subscriber is one live connection of one merchant.
type Subscriber struct {
	ID          string
	TenantID    string
	ConnectedAt time.Time

	queue chan Frame
	done  chan struct{}
	once  sync.Once
	state atomic.Int32
}

func newSubscriber(tenantID string, queueSize int) *Subscriber {
	return &Subscriber{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		ConnectedAt: time.Now(),
		queue:       make(chan Frame, queueSize),
		done:        make(chan struct{}),
	}
}

// Deliver enqueues a frame without blocking.
func (s *Subscriber) Deliver(f Frame) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}

	select {
	case s.queue <- f:
		return nil
	default:
		return ErrQueueFull
	}
}

// State returns the current lifecycle state.
func (s *Subscriber) State() ConnState {
	return ConnState(s.state.Load())
}

// Done is closed once the subscriber has left.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Pending returns the number of queued, unwritten frames.
func (s *Subscriber) Pending() int {
	return len(s.queue)
}

func (s *Subscriber) setState(state ConnState) {
	s.state.Store(int32(state))
}

// close marks the subscriber closed. Safe to call more than once.
func (s *Subscriber) close() {
	s.once.Do(func() {
		s.setState(StateClosed)
		close(s.done)
	})
}
