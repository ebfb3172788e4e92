package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthorized covers missing, malformed, expired or forged credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned for a missing or wrong administrative secret.
	ErrForbidden = errors.New("forbidden")
)

// DefaultTokenTTL is the lifetime of minted credentials.
const DefaultTokenTTL = 30 * 24 * time.Hour

// VerifierConfig holds configuration for credential signing and verification.
type VerifierConfig struct {
	SecretKey string

	// Algorithm is fixed to HS256; other values are rejected.
	Algorithm string

	// TokenTTL applies to minted credentials.
	TokenTTL time.Duration

	// Leeway tolerates clock skew on exp/iat checks.
	Leeway time.Duration
}

// Claims represents the verified identity of a merchant.
type Claims struct {
	MerchantID string    `json:"merchantId"`
	IssuedAt   time.Time `json:"iat"`
	ExpiresAt  time.Time `json:"exp"`
}

// tokenClaims is the JWT body.
type tokenClaims struct {
	MerchantID string `json:"merchantId"`
	jwt.RegisteredClaims
}

// Verifier handles JWT verification and issuance.
type Verifier struct {
	config VerifierConfig
	now    func() time.Time
}

// NewVerifier creates a new JWT verifier.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	if config.Algorithm == "" {
		config.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	if config.Algorithm != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unsupported algorithm: %s", config.Algorithm)
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("HS256 requires secret key")
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}

	return &Verifier{config: config, now: time.Now}, nil
}

// VerifyToken verifies a credential and returns its claims. All failures
// wrap ErrUnauthorized.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("%w: token cannot be empty", ErrUnauthorized)
	}

	var body tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &body, func(token *jwt.Token) (interface{}, error) {
		// Validate algorithm
		if token.Method.Alg() != v.config.Algorithm {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.config.SecretKey), nil
	},
		jwt.WithLeeway(v.config.Leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse token: %v", ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	if body.MerchantID == "" {
		return nil, fmt.Errorf("%w: missing or invalid 'merchantId' claim", ErrUnauthorized)
	}

	claims := &Claims{MerchantID: body.MerchantID}
	if body.IssuedAt != nil {
		claims.IssuedAt = body.IssuedAt.Time
	}
	if body.ExpiresAt != nil {
		claims.ExpiresAt = body.ExpiresAt.Time
	}
	return claims, nil
}

// Mint issues a credential scoped to merchantID, valid for the configured TTL.
func (v *Verifier) Mint(merchantID string) (string, *Claims, error) {
	if merchantID == "" {
		return "", nil, fmt.Errorf("merchant id cannot be empty")
	}

	now := v.now().Truncate(time.Second)
	exp := now.Add(v.config.TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		MerchantID: merchantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString([]byte(v.config.SecretKey))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, &Claims{MerchantID: merchantID, IssuedAt: now, ExpiresAt: exp}, nil
}

// TokenTTL returns the lifetime of minted credentials.
func (v *Verifier) TokenTTL() time.Duration {
	return v.config.TokenTTL
}
