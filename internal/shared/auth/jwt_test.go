package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyHS256(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Secret: "s3cret", Issuer: "portal", Audience: "filing"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	token, err := SignHS256("s3cret", Claims{
		Email: "alice@example.com",
		Name:  "Alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "user-1",
			Issuer:   "portal",
			Audience: jwt.ClaimStrings{"filing"},
		},
	}, time.Hour)
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "alice@example.com" || claims.Name != "Alice" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Secret: "s3cret", Issuer: "portal"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	sign := func(secret string, c Claims, ttl time.Duration) string {
		t.Helper()
		tok, err := SignHS256(secret, c, ttl)
		if err != nil {
			t.Fatalf("SignHS256: %v", err)
		}
		return tok
	}
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	cases := map[string]string{
		"wrong secret": sign("other", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "portal"}}, time.Hour),
		"wrong issuer": sign("s3cret", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "elsewhere"}}, time.Hour),
		"expired":      sign("s3cret", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "portal", ExpiresAt: past}}, 0),
		"garbage":      "not.a.token",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(tok); err != ErrInvalidToken {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerifyRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewVerifier(VerifierConfig{PublicKeyPEM: string(pubPEM)})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if got, err := v.Verify(token); err != nil || got.Subject != "user-2" {
		t.Fatalf("expected verified subject, got %+v %v", got, err)
	}

	hsToken, _ := SignHS256("s3cret", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"}}, time.Hour)
	if _, err := v.Verify(hsToken); err != ErrInvalidToken {
		t.Fatalf("expected HS256 token to be rejected by RS256 verifier, got %v", err)
	}
}

func TestNewVerifierRequiresSecretOutsideDev(t *testing.T) {
	if _, err := NewVerifier(VerifierConfig{}); err == nil {
		t.Fatalf("expected error without secret")
	}
	if _, err := NewVerifier(VerifierConfig{AllowDevSecret: true}); err != nil {
		t.Fatalf("expected dev fallback, got %v", err)
	}
}
