package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/digiy/pulse/internal/event"
	"github.com/digiy/pulse/internal/history"
	"github.com/digiy/pulse/internal/metrics"
)

// ErrNoTenant is returned when an operation is called without a merchant.
var ErrNoTenant = errors.New("merchant id is required")

// ErrEngineClosed is returned by Serve once the engine has been stopped.
var ErrEngineClosed = errors.New("engine closed")

// DefaultQueueSize is the per-subscriber frame buffer.
const DefaultQueueSize = 100

// Options configures an Engine.
type Options struct {
	QueueSize         int
	HeartbeatInterval time.Duration
	Logger            logrus.FieldLogger
	Clock             func() time.Time
}

// Engine routes ingested events to history and to live subscribers.
type Engine struct {
	history  *history.Store
	registry *Registry

	// Per-merchant sequencing lanes; never removed.
	lanesMu sync.RWMutex
	lanes   map[string]*sync.Mutex

	queueSize int
	heartbeat time.Duration
	log       logrus.FieldLogger
	now       func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// Stats summarizes the transactions currently retained for a merchant.
type Stats struct {
	CA  float64 `json:"ca"`
	TX  int     `json:"tx"`
	AOV float64 `json:"aov"`
}

// NewEngine creates an engine over the given history store.
func NewEngine(store *history.Store, opts Options) *Engine {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Engine{
		history:   store,
		registry:  NewRegistry(opts.Logger),
		lanes:     make(map[string]*sync.Mutex),
		queueSize: opts.QueueSize,
		heartbeat: opts.HeartbeatInterval,
		log:       opts.Logger,
		now:       opts.Clock,
		done:      make(chan struct{}),
	}
}

// Ingest validates a raw payload, records the resulting event and fans it
// out to the merchant's live subscribers. Delivery problems never fail the
// call.
func (e *Engine) Ingest(ctx context.Context, tenantID string, p event.Payload) (event.Event, error) {
	source := SourceFromContext(ctx)
	if tenantID == "" {
		return event.Event{}, ErrNoTenant
	}

	evt, err := event.NewTx(p, e.now())
	if err != nil {
		metrics.IngestRejected.WithLabelValues("missing_fields").Inc()
		return event.Event{}, err
	}

	frame, err := NewEventFrame(evt)
	if err != nil {
		metrics.IngestRejected.WithLabelValues("encode").Inc()
		return event.Event{}, err
	}

	start := time.Now()
	lane := e.lane(tenantID)
	lane.Lock()
	e.history.Append(tenantID, evt)
	delivered := e.registry.Broadcast(tenantID, frame)
	lane.Unlock()

	metrics.IngestDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	metrics.EventsIngested.WithLabelValues(source).Inc()
	metrics.FramesBroadcast.WithLabelValues(frame.Kind).Inc()

	e.log.WithFields(logrus.Fields{
		"merchantId": tenantID,
		"event":      evt.ID,
		"source":     source,
		"delivered":  delivered,
	}).Debug("stream: event ingested")

	return evt, nil
}

// Recent returns the merchant's retained events, oldest first.
func (e *Engine) Recent(tenantID string) []event.Event {
	return e.history.Snapshot(tenantID)
}

// Stats computes totals over the retained history only, not a calendar day.
func (e *Engine) Stats(tenantID string) Stats {
	var s Stats
	for _, evt := range e.history.Snapshot(tenantID) {
		if !evt.IsTx() {
			continue
		}
		s.CA += evt.Amount
		s.TX++
	}
	if s.TX > 0 {
		s.AOV = s.CA / float64(s.TX)
	}
	return s
}

// Registry exposes the subscriber registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Close stops every running Serve call. Safe to call more than once.
func (e *Engine) Close() {
	e.stopOnce.Do(func() {
		close(e.done)
	})
}

// join captures history and registers a subscriber atomically with respect
// to ingestion for the same merchant.
func (e *Engine) join(tenantID string) (*Subscriber, []event.Event) {
	sub := newSubscriber(tenantID, e.queueSize)

	lane := e.lane(tenantID)
	lane.Lock()
	recent := e.history.Snapshot(tenantID)
	e.registry.Register(tenantID, sub)
	lane.Unlock()

	return sub, recent
}

// leave unregisters the subscriber and marks it closed.
func (e *Engine) leave(sub *Subscriber) {
	e.registry.Unregister(sub.TenantID, sub)
	sub.close()
}

func (e *Engine) lane(tenantID string) *sync.Mutex {
	e.lanesMu.RLock()
	lane, ok := e.lanes[tenantID]
	e.lanesMu.RUnlock()
	if ok {
		return lane
	}

	e.lanesMu.Lock()
	defer e.lanesMu.Unlock()
	if lane, ok = e.lanes[tenantID]; !ok {
		lane = &sync.Mutex{}
		e.lanes[tenantID] = lane
	}
	return lane
}

type sourceKey struct{}

// WithSource labels ingestion performed with ctx, e.g. "http" or "nats".
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the ingestion source label, "unknown" if unset.
func SourceFromContext(ctx context.Context) string {
	if ctx != nil {
		if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}
