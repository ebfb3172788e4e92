package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMissingFields marks a payload without a usable amount or method.
	ErrMissingFields = errors.New("missing_fields")

	// ErrInvalidPayload marks a body that is not a JSON object.
	ErrInvalidPayload = errors.New("invalid_json")
)

// ValidationError lists the required fields a payload lacked.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingFields, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrMissingFields
}

// MaxAmount bounds the magnitude of a single amount so that totals over a
// full history stay finite.
const MaxAmount = 1e12

// Payload is a decoded ingestion body. Numbers are kept as json.Number.
type Payload map[string]any

// DecodePayload reads a single JSON object. An empty body decodes to an empty
// payload so that it fails validation rather than parsing.
func DecodePayload(r io.Reader) (Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return ParsePayload(data)
}

// ParsePayload decodes raw bytes the same way DecodePayload does.
func ParsePayload(data []byte) (Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Payload{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidPayload)
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}

// amount coerces the amount field to a float64 within MaxAmount.
func (p Payload) amount() (float64, bool) {
	var f float64
	switch v := p["amount"].(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > MaxAmount {
		return 0, false
	}
	return f, true
}

// str returns a non-empty string field.
func (p Payload) str(key string) (string, bool) {
	s, ok := p[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
