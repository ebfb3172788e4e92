package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// CorrelationHeader echoes the per-request correlation ID.
const CorrelationHeader = "X-Correlation-ID"

// Error codes used in the {"error": code} envelope.
const (
	CodeMissingFields    = "missing_fields"
	CodeInvalidJSON      = "invalid_json"
	CodePayloadTooLarge  = "payload_too_large"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeNotFound         = "not_found"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal"
)

// okResponse is the success envelope of mutating endpoints.
type okResponse struct {
	OK bool `json:"ok"`
}

type mintResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token"`
}

type statsResponse struct {
	OK  bool    `json:"ok"`
	CA  float64 `json:"ca"`
	TX  int     `json:"tx"`
	AOV float64 `json:"aov"`
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it with the given status code.
// Encoding happens before the status is sent; a value that cannot be encoded
// turns into a 500 internal error.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorResponse{Error: CodeInternal})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

// generateCorrelationID generates a unique correlation ID.
func generateCorrelationID() string {
	return uuid.NewString()
}
