package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ContextKey is used for storing claims in request context.
type ContextKey string

const (
	ClaimsKey ContextKey = "claims"
)

// Error codes written by the middleware.
const (
	CodeUnauthorized = "unauthorized"
	CodeInvalidToken = "invalid_token"
	CodeForbidden    = "forbidden"
)

// AdminSecretHeader carries the administrative secret.
const AdminSecretHeader = "X-Admin-Secret"

// TokenVerifier is the part of Verifier the middleware depends on.
type TokenVerifier interface {
	VerifyToken(token string) (*Claims, error)
}

// Middleware handles authentication for merchant and admin routes.
type Middleware struct {
	verifier    TokenVerifier
	adminSecret string
	onReject    func(r *http.Request, code string, err error)
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(verifier TokenVerifier, adminSecret string) *Middleware {
	return &Middleware{
		verifier:    verifier,
		adminSecret: adminSecret,
	}
}

// OnReject registers a callback for rejected requests, used for logging.
func (m *Middleware) OnReject(fn func(r *http.Request, code string, err error)) {
	m.onReject = fn
}

// RequireBearer authenticates with the Authorization header.
func (m *Middleware) RequireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := m.extractBearerToken(r)
		if err != nil {
			m.reject(w, r, http.StatusUnauthorized, CodeUnauthorized, err)
			return
		}

		claims, err := m.verifier.VerifyToken(token)
		if err != nil {
			m.reject(w, r, http.StatusUnauthorized, CodeUnauthorized, err)
			return
		}

		next(w, r.WithContext(WithClaims(r.Context(), claims)))
	}
}

// RequireQueryToken authenticates with the "token" query parameter.
func (m *Middleware) RequireQueryToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			m.reject(w, r, http.StatusUnauthorized, CodeInvalidToken, fmt.Errorf("%w: missing token parameter", ErrUnauthorized))
			return
		}

		claims, err := m.verifier.VerifyToken(token)
		if err != nil {
			m.reject(w, r, http.StatusUnauthorized, CodeInvalidToken, err)
			return
		}

		next(w, r.WithContext(WithClaims(r.Context(), claims)))
	}
}

// RequireAdmin checks the administrative secret. An unset secret rejects
// every request.
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.checkAdminSecret(r.Header.Get(AdminSecretHeader)) {
			m.reject(w, r, http.StatusForbidden, CodeForbidden, ErrForbidden)
			return
		}
		next(w, r)
	}
}

// extractBearerToken extracts the bearer token from the Authorization header.
func (m *Middleware) extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("%w: missing Authorization header", ErrUnauthorized)
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("%w: invalid Authorization header format", ErrUnauthorized)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	return token, nil
}

func (m *Middleware) checkAdminSecret(given string) bool {
	if m.adminSecret == "" || given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(m.adminSecret)) == 1
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	if m.onReject != nil {
		m.onReject(r, code, err)
	}
	writeError(w, status, code)
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// ClaimsFromContext extracts claims from the request context.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// MerchantID returns the authenticated merchant of a request, or "".
func MerchantID(r *http.Request) string {
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		return claims.MerchantID
	}
	return ""
}

// writeError writes an error response in the API format.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
