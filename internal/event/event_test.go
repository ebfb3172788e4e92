package event

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func mustParse(t *testing.T, body string) Payload {
	t.Helper()
	p, err := ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("ParsePayload(%q) failed: %v", body, err)
	}
	return p
}

func TestNewTxDefaults(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	evt, err := NewTx(mustParse(t, `{"amount":10,"method":"card"}`), now)
	if err != nil {
		t.Fatalf("NewTx() failed: %v", err)
	}

	if evt.Type != TypeTx {
		t.Errorf("Expected type %q, got %q", TypeTx, evt.Type)
	}
	if evt.Timestamp != 1700000000123 {
		t.Errorf("Expected ts 1700000000123, got %d", evt.Timestamp)
	}
	if evt.Amount != 10 {
		t.Errorf("Expected amount 10, got %v", evt.Amount)
	}
	if evt.Currency != "EUR" {
		t.Errorf("Expected currency EUR, got %q", evt.Currency)
	}
	if evt.Item != nil {
		t.Errorf("Expected nil item, got %q", *evt.Item)
	}
	if evt.Meta == nil || len(evt.Meta) != 0 {
		t.Errorf("Expected empty meta, got %v", evt.Meta)
	}
	if evt.ID == "" {
		t.Error("Expected event ID to be assigned")
	}
}

func TestNewTxJSONShape(t *testing.T) {
	evt, err := NewTx(mustParse(t, `{"amount":"12.5","method":"cash"}`), time.UnixMilli(42))
	if err != nil {
		t.Fatalf("NewTx() failed: %v", err)
	}

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"type":"tx","ts":42,"amount":12.5,"currency":"EUR","method":"cash","item":null,"meta":{}}`
	if string(data) != want {
		t.Errorf("Unexpected JSON:\n got  %s\n want %s", data, want)
	}
}

func TestNewTxKeepsOptionalFields(t *testing.T) {
	body := `{"amount":3,"currency":"XOF","method":"wave","item":"thiebou","meta":{"table":4,"tags":["a"]}}`
	evt, err := NewTx(mustParse(t, body), time.Now())
	if err != nil {
		t.Fatalf("NewTx() failed: %v", err)
	}

	if evt.Currency != "XOF" {
		t.Errorf("Expected currency XOF, got %q", evt.Currency)
	}
	if evt.Item == nil || *evt.Item != "thiebou" {
		t.Errorf("Expected item thiebou, got %v", evt.Item)
	}
	if _, ok := evt.Meta["table"]; !ok {
		t.Errorf("Expected meta.table to be kept, got %v", evt.Meta)
	}
}

func TestNewTxMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"no amount", `{"method":"card"}`, []string{"amount"}},
		{"no method", `{"amount":5}`, []string{"method"}},
		{"empty object", `{}`, []string{"amount", "method"}},
		{"empty body", ``, []string{"amount", "method"}},
		{"null amount", `{"amount":null,"method":"card"}`, []string{"amount"}},
		{"non numeric amount", `{"amount":"abc","method":"card"}`, []string{"amount"}},
		{"blank amount", `{"amount":"  ","method":"card"}`, []string{"amount"}},
		{"amount over limit", `{"amount":1e308,"method":"card"}`, []string{"amount"}},
		{"negative amount over limit", `{"amount":"-2e12","method":"card"}`, []string{"amount"}},
		{"empty method", `{"amount":1,"method":""}`, []string{"method"}},
		{"non string method", `{"amount":1,"method":7}`, []string{"method"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTx(mustParse(t, tt.body), time.Now())
			if !errors.Is(err, ErrMissingFields) {
				t.Fatalf("Expected ErrMissingFields, got %v", err)
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %T", err)
			}
			if strings.Join(verr.Fields, ",") != strings.Join(tt.fields, ",") {
				t.Errorf("Expected fields %v, got %v", tt.fields, verr.Fields)
			}
		})
	}
}

func TestNewTxAcceptsZeroAmount(t *testing.T) {
	evt, err := NewTx(mustParse(t, `{"amount":0,"method":"refund"}`), time.Now())
	if err != nil {
		t.Fatalf("NewTx() failed: %v", err)
	}
	if evt.Amount != 0 {
		t.Errorf("Expected amount 0, got %v", evt.Amount)
	}
}

func TestParsePayloadRejectsNonObjects(t *testing.T) {
	for _, body := range []string{`[1,2]`, `"tx"`, `{"amount":1`, `{} {}`} {
		if _, err := ParsePayload([]byte(body)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("ParsePayload(%q): expected ErrInvalidPayload, got %v", body, err)
		}
	}
}

func TestEventIDsAreOrdered(t *testing.T) {
	p := mustParse(t, `{"amount":1,"method":"card"}`)
	prev := ""
	for i := 0; i < 50; i++ {
		evt, err := NewTx(p, time.Now())
		if err != nil {
			t.Fatalf("NewTx() failed: %v", err)
		}
		if evt.ID <= prev {
			t.Fatalf("Event ID %s not greater than previous %s", evt.ID, prev)
		}
		prev = evt.ID
	}
}
