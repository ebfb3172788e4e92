package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
)

// wsConn is the subset of *websocket.Conn used by WSWriter.
type wsConn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Ping(ctx context.Context) error
}

// wsEnvelope wraps a frame for WebSocket clients, which have no event field.
type wsEnvelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// WSWriter writes frames as WebSocket text messages.
type WSWriter struct {
	conn        wsConn
	pingTimeout time.Duration
}

// NewWSWriter wraps an accepted connection. The caller must keep the read
// side running (websocket.Conn.CloseRead) so that pings get their pongs.
func NewWSWriter(conn *websocket.Conn) *WSWriter {
	return newWSWriter(conn)
}

func newWSWriter(conn wsConn) *WSWriter {
	return &WSWriter{conn: conn, pingTimeout: 10 * time.Second}
}

// WriteFrame writes one JSON message.
func (w *WSWriter) WriteFrame(ctx context.Context, f Frame) error {
	payload, err := json.Marshal(wsEnvelope{Event: f.Kind, ID: f.ID, Data: f.Data})
	if err != nil {
		return fmt.Errorf("failed to marshal ws frame: %w", err)
	}
	if err := w.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("failed to write ws frame: %w", err)
	}
	return nil
}

// KeepAlive pings the peer and waits for the pong.
func (w *WSWriter) KeepAlive(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.pingTimeout)
	defer cancel()
	return w.conn.Ping(ctx)
}
