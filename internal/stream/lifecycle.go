package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// FrameWriter is the transport side of one subscriber connection.
type FrameWriter interface {
	WriteFrame(ctx context.Context, f Frame) error
	KeepAlive(ctx context.Context) error
}

// Serve runs one subscriber connection for an authenticated merchant. It
// writes the bootstrap frame, then live frames, and blocks until ctx is done,
// the engine closes or a write fails. The subscriber is unregistered exactly
// once before Serve returns.
func (e *Engine) Serve(ctx context.Context, tenantID string, w FrameWriter) error {
	return e.serve(ctx, tenantID, w, nil)
}

// serve calls onJoin once the subscriber is registered, before the bootstrap
// frame is written.
func (e *Engine) serve(ctx context.Context, tenantID string, w FrameWriter, onJoin func(*Subscriber)) error {
	if tenantID == "" {
		return ErrNoTenant
	}
	if e.Closed() {
		return ErrEngineClosed
	}

	sub, recent := e.join(tenantID)
	defer e.leave(sub)

	log := e.log.WithFields(logrus.Fields{
		"merchantId": tenantID,
		"subscriber": sub.ID,
	})
	log.WithField("recent", len(recent)).Debug("stream: subscriber joined")
	defer func() {
		log.WithField("duration", time.Since(sub.ConnectedAt).String()).Debug("stream: subscriber left")
	}()

	if onJoin != nil {
		onJoin(sub)
	}

	bootstrap, err := NewBootstrapFrame(recent)
	if err != nil {
		return err
	}
	if err := w.WriteFrame(ctx, bootstrap); err != nil {
		return fmt.Errorf("failed to write bootstrap: %w", err)
	}
	sub.setState(StateLive)

	var heartbeat <-chan time.Time
	if e.heartbeat > 0 {
		ticker := time.NewTicker(e.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.done:
			return nil
		case frame := <-sub.queue:
			if err := w.WriteFrame(ctx, frame); err != nil {
				return fmt.Errorf("failed to write %s frame: %w", frame.Kind, err)
			}
		case <-heartbeat:
			if err := w.KeepAlive(ctx); err != nil {
				return fmt.Errorf("failed to write keep-alive: %w", err)
			}
		}
	}
}
