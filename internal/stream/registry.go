package stream

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/digiy/pulse/internal/metrics"
)

// Registry tracks the live subscribers of every merchant.
//
// LOCK ORDERING:
// 1. r.mu - protects the sets map (sets are never removed)
// 2. subscriberSet.mu - protects one merchant's members
type Registry struct {
	mu    sync.RWMutex
	sets  map[string]*subscriberSet
	total atomic.Int64
	log   logrus.FieldLogger
}

type subscriberSet struct {
	mu      sync.RWMutex
	members map[*Subscriber]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry(log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		sets: make(map[string]*subscriberSet),
		log:  log,
	}
}

// Register adds sub to the merchant's live set. Registering the same
// subscriber twice has no further effect.
func (r *Registry) Register(tenantID string, sub *Subscriber) {
	set := r.set(tenantID, true)

	set.mu.Lock()
	_, exists := set.members[sub]
	if !exists {
		set.members[sub] = struct{}{}
	}
	set.mu.Unlock()

	if !exists {
		r.total.Add(1)
		metrics.ActiveSubscribers.Inc()
	}
}

// Unregister removes sub from the merchant's live set. Removing an absent
// subscriber is a no-op.
func (r *Registry) Unregister(tenantID string, sub *Subscriber) {
	set := r.set(tenantID, false)
	if set == nil {
		return
	}

	set.mu.Lock()
	_, exists := set.members[sub]
	if exists {
		delete(set.members, sub)
	}
	set.mu.Unlock()

	if exists {
		r.total.Add(-1)
		metrics.ActiveSubscribers.Dec()
	}
}

// Broadcast hands frame to every subscriber registered for the merchant when
// the call starts and returns how many accepted it. Failed deliveries are
// logged and counted; the subscriber stays registered until its own
// connection ends.
func (r *Registry) Broadcast(tenantID string, frame Frame) int {
	set := r.set(tenantID, false)
	if set == nil {
		return 0
	}

	set.mu.RLock()
	subs := make([]*Subscriber, 0, len(set.members))
	for sub := range set.members {
		subs = append(subs, sub)
	}
	set.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if err := sub.Deliver(frame); err != nil {
			r.dropped(sub, frame, err)
			continue
		}
		delivered++
	}
	return delivered
}

// Count returns the number of live subscribers for a merchant.
func (r *Registry) Count(tenantID string) int {
	set := r.set(tenantID, false)
	if set == nil {
		return 0
	}
	set.mu.RLock()
	defer set.mu.RUnlock()
	return len(set.members)
}

// Total returns the number of live subscribers across all merchants.
func (r *Registry) Total() int {
	return int(r.total.Load())
}

func (r *Registry) dropped(sub *Subscriber, frame Frame, err error) {
	reason := "error"
	switch {
	case errors.Is(err, ErrQueueFull):
		reason = "queue_full"
	case errors.Is(err, ErrSubscriberClosed):
		reason = "closed"
	}
	metrics.DeliveriesDropped.WithLabelValues(reason).Inc()

	r.log.WithFields(logrus.Fields{
		"merchantId": sub.TenantID,
		"subscriber": sub.ID,
		"kind":       frame.Kind,
	}).WithError(err).Warn("stream: delivery dropped")
}

// set returns the merchant's subscriber set, creating it when create is true.
func (r *Registry) set(tenantID string, create bool) *subscriberSet {
	r.mu.RLock()
	set, ok := r.sets[tenantID]
	r.mu.RUnlock()
	if ok || !create {
		return set
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok = r.sets[tenantID]; !ok {
		set = &subscriberSet{members: make(map[*Subscriber]struct{})}
		r.sets[tenantID] = set
	}
	return set
}
