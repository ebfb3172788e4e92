package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/digiy/pulse/internal/event"
	"github.com/digiy/pulse/internal/history"
)

// recordingWriter collects frames written by Serve.
type recordingWriter struct {
	frames     chan Frame
	mu         sync.Mutex
	keepAlives int
	failOn     string
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{frames: make(chan Frame, 1024)}
}

func (w *recordingWriter) WriteFrame(_ context.Context, f Frame) error {
	if w.failOn != "" && f.Kind == w.failOn {
		return errors.New("broken pipe")
	}
	w.frames <- f
	return nil
}

func (w *recordingWriter) KeepAlive(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keepAlives++
	return nil
}

func (w *recordingWriter) next(t *testing.T) Frame {
	t.Helper()
	select {
	case f := <-w.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for frame")
		return Frame{}
	}
}

func newTestEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	return NewEngine(history.NewStore(history.DefaultCapacity), opts)
}

func payload(t *testing.T, body string) event.Payload {
	t.Helper()
	p, err := event.ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("ParsePayload failed: %v", err)
	}
	return p
}

// startServe runs Serve in the background and waits for registration.
func startServe(t *testing.T, engine *Engine, tenantID string, w FrameWriter) (*Subscriber, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	joined := make(chan *Subscriber, 1)
	errCh := make(chan error, 1)

	go func() {
		errCh <- engine.serve(ctx, tenantID, w, func(s *Subscriber) { joined <- s })
	}()

	select {
	case sub := <-joined:
		return sub, cancel, errCh
	case err := <-errCh:
		cancel()
		t.Fatalf("Serve returned before joining: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("timeout waiting for subscriber to join")
	}
	return nil, cancel, errCh
}

func TestIngestDefaultsAndStats(t *testing.T) {
	engine := newTestEngine(Options{Clock: func() time.Time { return time.UnixMilli(1000) }})

	evt, err := engine.Ingest(context.Background(), "T", payload(t, `{"amount":10,"method":"card"}`))
	if err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}
	if evt.Currency != "EUR" || evt.Item != nil || len(evt.Meta) != 0 {
		t.Errorf("Unexpected defaults: currency=%q item=%v meta=%v", evt.Currency, evt.Item, evt.Meta)
	}
	if evt.Timestamp != 1000 {
		t.Errorf("Expected ts from clock, got %d", evt.Timestamp)
	}

	stats := engine.Stats("T")
	if stats.CA != 10 || stats.TX != 1 || stats.AOV != 10 {
		t.Errorf("Expected {ca:10 tx:1 aov:10}, got %+v", stats)
	}
}

func TestStatsEmptyTenant(t *testing.T) {
	engine := newTestEngine(Options{})

	stats := engine.Stats("nobody")
	if stats.CA != 0 || stats.TX != 0 || stats.AOV != 0 {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
}

func TestStatsCoverRetainedWindowOnly(t *testing.T) {
	engine := newTestEngine(Options{})
	ctx := context.Background()

	for i := 1; i <= 201; i++ {
		if _, err := engine.Ingest(ctx, "T", payload(t, fmt.Sprintf(`{"amount":%d,"method":"card"}`, i))); err != nil {
			t.Fatalf("Ingest(%d) failed: %v", i, err)
		}
	}

	recent := engine.Recent("T")
	if len(recent) != 200 {
		t.Fatalf("Expected 200 retained events, got %d", len(recent))
	}
	if recent[0].Amount != 2 {
		t.Errorf("Expected first retained event to be the 2nd ingested, got amount %v", recent[0].Amount)
	}

	// Sum of 2..201
	stats := engine.Stats("T")
	if stats.TX != 200 || stats.CA != 20300 {
		t.Errorf("Expected tx=200 ca=20300, got %+v", stats)
	}
}

func TestIngestMissingFieldsHasNoEffect(t *testing.T) {
	engine := newTestEngine(Options{})
	w := newRecordingWriter()
	sub, cancel, errCh := startServe(t, engine, "T", w)
	defer func() { cancel(); <-errCh }()

	if f := w.next(t); f.Kind != KindBootstrap {
		t.Fatalf("Expected bootstrap frame, got %s", f.Kind)
	}

	_, err := engine.Ingest(context.Background(), "T", payload(t, `{"method":"card"}`))
	if !errors.Is(err, event.ErrMissingFields) {
		t.Fatalf("Expected ErrMissingFields, got %v", err)
	}

	if n := len(engine.Recent("T")); n != 0 {
		t.Errorf("Expected empty history, got %d events", n)
	}
	if sub.Pending() != 0 {
		t.Errorf("Expected no broadcast, got %d pending frames", sub.Pending())
	}
	select {
	case f := <-w.frames:
		t.Errorf("Unexpected frame after rejected ingest: %s", f.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIngestRequiresTenant(t *testing.T) {
	engine := newTestEngine(Options{})
	if _, err := engine.Ingest(context.Background(), "", payload(t, `{"amount":1,"method":"card"}`)); !errors.Is(err, ErrNoTenant) {
		t.Errorf("Expected ErrNoTenant, got %v", err)
	}
}

func TestIngestWithoutSubscribersSucceeds(t *testing.T) {
	engine := newTestEngine(Options{})
	ctx := WithSource(context.Background(), "test")

	if _, err := engine.Ingest(ctx, "lonely", payload(t, `{"amount":"4.5","method":"cash"}`)); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}
	if SourceFromContext(ctx) != "test" {
		t.Errorf("Expected source test, got %s", SourceFromContext(ctx))
	}
	if SourceFromContext(context.Background()) != "unknown" {
		t.Error("Expected unknown source for bare context")
	}
}

func TestTxFrameMatchesEvent(t *testing.T) {
	engine := newTestEngine(Options{})
	w := newRecordingWriter()
	_, cancel, errCh := startServe(t, engine, "T", w)
	defer func() { cancel(); <-errCh }()
	w.next(t) // bootstrap

	evt, err := engine.Ingest(context.Background(), "T", payload(t, `{"amount":7,"method":"card","item":"cafe"}`))
	if err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}

	f := w.next(t)
	if f.Kind != KindTx || f.ID != evt.ID {
		t.Fatalf("Unexpected frame kind=%s id=%s", f.Kind, f.ID)
	}

	var got event.Event
	if err := json.Unmarshal(f.Data, &got); err != nil {
		t.Fatalf("Unmarshal frame failed: %v", err)
	}
	if got.Amount != 7 || got.Method != "card" || got.Item == nil || *got.Item != "cafe" {
		t.Errorf("Frame payload mismatch: %+v", got)
	}
}
