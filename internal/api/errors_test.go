package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/digiy/pulse/internal/auth"
	"github.com/digiy/pulse/internal/event"
	"github.com/digiy/pulse/internal/stream"
)

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"nil", nil, http.StatusOK, ""},
		{"validation", &event.ValidationError{Fields: []string{"amount"}}, http.StatusBadRequest, CodeMissingFields},
		{"wrapped missing fields", fmt.Errorf("ingest: %w", event.ErrMissingFields), http.StatusBadRequest, CodeMissingFields},
		{"invalid payload", fmt.Errorf("%w: eof", event.ErrInvalidPayload), http.StatusBadRequest, CodeInvalidJSON},
		{"too large", fmt.Errorf("read payload: %w", &http.MaxBytesError{Limit: 1}), http.StatusRequestEntityTooLarge, CodePayloadTooLarge},
		{"forbidden", auth.ErrForbidden, http.StatusForbidden, auth.CodeForbidden},
		{"unauthorized", fmt.Errorf("%w: expired", auth.ErrUnauthorized), http.StatusUnauthorized, auth.CodeUnauthorized},
		{"no tenant", stream.ErrNoTenant, http.StatusUnauthorized, auth.CodeUnauthorized},
		{"engine closed", stream.ErrEngineClosed, http.StatusServiceUnavailable, CodeUnavailable},
		{"api error", &APIError{Code: "teapot", StatusCode: http.StatusTeapot}, http.StatusTeapot, "teapot"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := ToAPIError(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("ToAPIError(%v) = %d %q, want %d %q", tt.err, status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	err := &APIError{Code: "x", StatusCode: http.StatusBadRequest, Err: auth.ErrForbidden}
	if !errors.Is(err, auth.ErrForbidden) {
		t.Error("Expected APIError to unwrap to its cause")
	}
	if err.Error() != "x: forbidden" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
