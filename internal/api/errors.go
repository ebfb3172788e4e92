package api

import (
	"errors"
	"net/http"

	"github.com/digiy/pulse/internal/auth"
	"github.com/digiy/pulse/internal/event"
	"github.com/digiy/pulse/internal/stream"
)

// APIError represents an API-layer error with HTTP status code.
type APIError struct {
	Code       string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ToAPIError converts an error to an HTTP status code and error code.
func ToAPIError(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, apiErr.Code
	}

	var validation *event.ValidationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, CodePayloadTooLarge
	case errors.As(err, &validation), errors.Is(err, event.ErrMissingFields):
		return http.StatusBadRequest, CodeMissingFields
	case errors.Is(err, event.ErrInvalidPayload):
		return http.StatusBadRequest, CodeInvalidJSON
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, auth.CodeForbidden
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, stream.ErrNoTenant):
		return http.StatusUnauthorized, auth.CodeUnauthorized
	case errors.Is(err, stream.ErrEngineClosed):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// writeAPIError writes err using the ToAPIError mapping.
func writeAPIError(w http.ResponseWriter, err error) {
	status, code := ToAPIError(err)
	writeError(w, status, code)
}
