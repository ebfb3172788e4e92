package api

import (
	"context"

	"github.com/digiy/pulse/internal/auth"
	"github.com/digiy/pulse/internal/event"
	"github.com/digiy/pulse/internal/stream"
)

// StreamPort defines the minimal interface the API needs from the broadcast engine.
type StreamPort interface {
	Ingest(ctx context.Context, merchantID string, p event.Payload) (event.Event, error)
	Stats(merchantID string) stream.Stats
	Serve(ctx context.Context, merchantID string, w stream.FrameWriter) error
	Closed() bool
}

// MinterPort issues merchant credentials.
type MinterPort interface {
	Mint(merchantID string) (string, *auth.Claims, error)
}

// Compile-time assertions for port conformance
var _ StreamPort = (*stream.Engine)(nil)
var _ MinterPort = (*auth.Verifier)(nil)
