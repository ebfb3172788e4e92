package stream

import (
	"encoding/json"
	"fmt"

	"github.com/digiy/pulse/internal/event"
)

// Frame kinds written to subscribers.
const (
	KindBootstrap = "bootstrap"
	KindTx        = event.TypeTx
)

// Frame is one serialized message. Data is shared between subscribers and
// must not be modified after construction.
type Frame struct {
	Kind string
	ID   string
	Data []byte
}

// Bootstrap is the payload of the first frame on every connection.
type Bootstrap struct {
	OK     bool          `json:"ok"`
	Recent []event.Event `json:"recent"`
}

// NewBootstrapFrame serializes the replay of recent events.
func NewBootstrapFrame(recent []event.Event) (Frame, error) {
	if recent == nil {
		recent = []event.Event{}
	}
	data, err := json.Marshal(Bootstrap{OK: true, Recent: recent})
	if err != nil {
		return Frame{}, fmt.Errorf("failed to marshal bootstrap: %w", err)
	}
	return Frame{Kind: KindBootstrap, Data: data}, nil
}

// NewEventFrame serializes a single live event.
func NewEventFrame(evt event.Event) (Frame, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return Frame{Kind: evt.Type, ID: evt.ID, Data: data}, nil
}
