package event

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// TypeTx is the only event type produced by ingestion today.
const TypeTx = "tx"

// DefaultCurrency is applied when the payload omits a currency.
const DefaultCurrency = "EUR"

// Event is one ingested transaction as stored in history and sent to subscribers.
type Event struct {
	// ID orders events across a process lifetime. It is written as the SSE id
	// line and kept out of the JSON body.
	ID        string         `json:"-"`
	Type      string         `json:"type"`
	Timestamp int64          `json:"ts"`
	Amount    float64        `json:"amount"`
	Currency  string         `json:"currency"`
	Method    string         `json:"method"`
	Item      *string        `json:"item"`
	Meta      map[string]any `json:"meta"`
}

// IsTx reports whether the event counts toward transaction statistics.
func (e Event) IsTx() bool {
	return e.Type == TypeTx
}

// NewTx builds a transaction event from a raw payload. Validation failures
// are returned as *ValidationError.
func NewTx(p Payload, now time.Time) (Event, error) {
	amount, amountOK := p.amount()
	method, methodOK := p.str("method")

	var missing []string
	if !amountOK {
		missing = append(missing, "amount")
	}
	if !methodOK {
		missing = append(missing, "method")
	}
	if len(missing) > 0 {
		return Event{}, &ValidationError{Fields: missing}
	}

	currency, ok := p.str("currency")
	if !ok {
		currency = DefaultCurrency
	}

	var item *string
	if s, ok := p.str("item"); ok {
		item = &s
	}

	meta, ok := p["meta"].(map[string]any)
	if !ok || meta == nil {
		meta = map[string]any{}
	}

	return Event{
		ID:        ulid.Make().String(),
		Type:      TypeTx,
		Timestamp: now.UnixMilli(),
		Amount:    amount,
		Currency:  currency,
		Method:    method,
		Item:      item,
		Meta:      meta,
	}, nil
}
