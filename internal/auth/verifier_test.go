package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(VerifierConfig{SecretKey: testSecret})
	if err != nil {
		t.Fatalf("NewVerifier() failed: %v", err)
	}
	return v
}

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return token
}

func TestNewVerifier(t *testing.T) {
	tests := []struct {
		name    string
		config  VerifierConfig
		wantErr bool
	}{
		{
			name:   "valid HS256 config",
			config: VerifierConfig{Algorithm: "HS256", SecretKey: testSecret},
		},
		{
			name:   "algorithm defaults to HS256",
			config: VerifierConfig{SecretKey: testSecret},
		},
		{
			name:    "invalid algorithm",
			config:  VerifierConfig{Algorithm: "RS256", SecretKey: testSecret},
			wantErr: true,
		},
		{
			name:    "HS256 without secret",
			config:  VerifierConfig{Algorithm: "HS256"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier, err := NewVerifier(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewVerifier() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && verifier.TokenTTL() != DefaultTokenTTL {
				t.Errorf("Expected default TTL %v, got %v", DefaultTokenTTL, verifier.TokenTTL())
			}
		})
	}
}

func TestMintAndVerify(t *testing.T) {
	v := newTestVerifier(t)
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return fixed }

	token, minted, err := v.Mint("merchant-x")
	if err != nil {
		t.Fatalf("Mint() failed: %v", err)
	}
	if minted.ExpiresAt.Sub(minted.IssuedAt) != 30*24*time.Hour {
		t.Errorf("Expected 30 day lifetime, got %v", minted.ExpiresAt.Sub(minted.IssuedAt))
	}

	claims, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() failed: %v", err)
	}
	if claims.MerchantID != "merchant-x" {
		t.Errorf("Expected merchant-x, got %q", claims.MerchantID)
	}
	if !claims.ExpiresAt.Equal(fixed.Add(DefaultTokenTTL)) {
		t.Errorf("Unexpected expiry %v", claims.ExpiresAt)
	}
}

func TestMintRequiresMerchant(t *testing.T) {
	v := newTestVerifier(t)
	if _, _, err := v.Mint(""); err == nil {
		t.Error("Expected error for empty merchant")
	}
}

func TestVerifyTokenRejects(t *testing.T) {
	v := newTestVerifier(t)
	now := time.Now()

	expired := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), tokenClaims{
		MerchantID: "m",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.Add(-48 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	})
	wrongSecret := signToken(t, jwt.SigningMethodHS256, []byte("other-secret"), tokenClaims{MerchantID: "m"})
	noMerchant := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "m"})
	wrongAlg := signToken(t, jwt.SigningMethodHS512, []byte(testSecret), tokenClaims{MerchantID: "m"})

	tests := map[string]string{
		"empty":        "",
		"blank":        "   ",
		"garbage":      "not-a-jwt",
		"expired":      expired,
		"wrong secret": wrongSecret,
		"no merchant":  noMerchant,
		"wrong alg":    wrongAlg,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			claims, err := v.VerifyToken(token)
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Expected ErrUnauthorized, got %v", err)
			}
			if claims != nil {
				t.Errorf("Expected nil claims, got %+v", claims)
			}
		})
	}
}

func TestVerifyTokenWithoutExpiry(t *testing.T) {
	v := newTestVerifier(t)
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"merchantId": "legacy"})

	claims, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() failed: %v", err)
	}
	if claims.MerchantID != "legacy" {
		t.Errorf("Expected legacy, got %q", claims.MerchantID)
	}
}
