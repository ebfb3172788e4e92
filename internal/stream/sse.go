package stream

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// SSEWriter writes frames as Server-Sent Events.
type SSEWriter struct {
	mu      sync.Mutex // Protect Writer access
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter sends the SSE response headers and returns a writer for the
// stream. The server write deadline is cleared for the connection where the
// ResponseWriter supports it.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Streams outlive the server WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.WriteHeader(http.StatusOK)

	s := &SSEWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
		f.Flush()
	}
	return s
}

// WriteFrame writes one event record and flushes it.
func (s *SSEWriter) WriteFrame(_ context.Context, f Frame) error {
	var buf bytes.Buffer
	if f.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", f.ID)
	}
	fmt.Fprintf(&buf, "event: %s\n", f.Kind)
	buf.WriteString("data: ")
	buf.Write(f.Data)
	buf.WriteString("\n\n")

	return s.write(buf.Bytes())
}

// KeepAlive writes an SSE comment, which EventSource clients ignore.
func (s *SSEWriter) KeepAlive(_ context.Context) error {
	return s.write([]byte(": ping\n\n"))
}

func (s *SSEWriter) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(p); err != nil {
		return fmt.Errorf("failed to write sse record: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
