package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// threadSafeResponseWriter captures SSE output in a thread-safe way
type threadSafeResponseWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	headers http.Header
	status  int
	flushes int
}

func newThreadSafeResponseWriter() *threadSafeResponseWriter {
	return &threadSafeResponseWriter{headers: make(http.Header)}
}

func (w *threadSafeResponseWriter) Header() http.Header {
	return w.headers
}

func (w *threadSafeResponseWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(data)
}

func (w *threadSafeResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
}

func (w *threadSafeResponseWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func (w *threadSafeResponseWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestSSEWriterHeaders(t *testing.T) {
	rw := newThreadSafeResponseWriter()
	NewSSEWriter(rw)

	if ct := rw.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Expected text/event-stream, got %q", ct)
	}
	if cc := rw.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Expected Cache-Control no-cache, got %q", cc)
	}
	if rw.status != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rw.status)
	}
	if rw.flushes == 0 {
		t.Error("Expected headers to be flushed immediately")
	}
}

func TestSSEWriterFormat(t *testing.T) {
	rw := newThreadSafeResponseWriter()
	w := NewSSEWriter(rw)
	ctx := context.Background()

	if err := w.WriteFrame(ctx, Frame{Kind: KindBootstrap, Data: []byte(`{"ok":true,"recent":[]}`)}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if err := w.WriteFrame(ctx, Frame{Kind: KindTx, ID: "01J", Data: []byte(`{"type":"tx"}`)}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if err := w.KeepAlive(ctx); err != nil {
		t.Fatalf("KeepAlive failed: %v", err)
	}

	want := "event: bootstrap\ndata: {\"ok\":true,\"recent\":[]}\n\n" +
		"id: 01J\nevent: tx\ndata: {\"type\":\"tx\"}\n\n" +
		": ping\n\n"
	if got := rw.String(); got != want {
		t.Errorf("Unexpected SSE output:\n got %q\nwant %q", got, want)
	}
}

func TestServeOverSSE(t *testing.T) {
	engine := newTestEngine(Options{})
	rw := newThreadSafeResponseWriter()
	_, cancel, errCh := startServe(t, engine, "T", NewSSEWriter(rw))

	if _, err := engine.Ingest(context.Background(), "T", payload(t, `{"amount":10,"method":"card"}`)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	waitFor(t, func() bool { return strings.Contains(rw.String(), "event: tx") })
	cancel()
	<-errCh

	out := rw.String()
	if strings.Index(out, "event: bootstrap") > strings.Index(out, "event: tx") {
		t.Errorf("bootstrap must precede live events:\n%s", out)
	}
	if !strings.Contains(out, `"amount":10,"currency":"EUR","method":"card","item":null,"meta":{}`) {
		t.Errorf("Unexpected tx payload:\n%s", out)
	}
}

type fakeWSConn struct {
	mu       sync.Mutex
	messages [][]byte
	pings    int
	pingErr  error
}

func (c *fakeWSConn) Write(_ context.Context, typ websocket.MessageType, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if typ != websocket.MessageText {
		return errors.New("unexpected message type")
	}
	c.messages = append(c.messages, append([]byte(nil), p...))
	return nil
}

func (c *fakeWSConn) Ping(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return c.pingErr
}

func TestWSWriterEnvelope(t *testing.T) {
	conn := &fakeWSConn{}
	w := newWSWriter(conn)

	if err := w.WriteFrame(context.Background(), Frame{Kind: KindTx, ID: "abc", Data: []byte(`{"amount":1}`)}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	var env struct {
		Event string          `json:"event"`
		ID    string          `json:"id"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(conn.messages[0], &env); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if env.Event != KindTx || env.ID != "abc" || string(env.Data) != `{"amount":1}` {
		t.Errorf("Unexpected envelope: %+v", env)
	}
}

func TestWSWriterKeepAlive(t *testing.T) {
	conn := &fakeWSConn{}
	w := newWSWriter(conn)

	if err := w.KeepAlive(context.Background()); err != nil {
		t.Fatalf("KeepAlive failed: %v", err)
	}
	if conn.pings != 1 {
		t.Errorf("Expected 1 ping, got %d", conn.pings)
	}

	conn.pingErr = errors.New("no pong")
	if err := w.KeepAlive(context.Background()); err == nil {
		t.Error("Expected ping error to propagate")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
