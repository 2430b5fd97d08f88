// Package auth verifies bearer tokens issued by the firm's identity provider.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the identity contained in a JWT.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

const devSecret = "dev-secret"

// VerifierConfig selects the verification key and the expected claims.
type VerifierConfig struct {
	// Secret enables HS256 when PublicKeyPEM is empty.
	Secret       string
	PublicKeyPEM string
	Issuer       string
	Audience     string
	// AllowDevSecret falls back to a fixed secret when none is configured.
	AllowDevSecret bool
}

// Verifier checks token signatures and standard claims.
type Verifier struct {
	key     any
	method  string
	options []jwt.ParserOption
}

// NewVerifier builds a Verifier. RS256 is used when a public key is configured.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{}
	if pem := strings.TrimSpace(cfg.PublicKeyPEM); pem != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		v.key = key
		v.method = jwt.SigningMethodRS256.Alg()
	} else {
		secret := strings.TrimSpace(cfg.Secret)
		if secret == "" {
			if !cfg.AllowDevSecret {
				return nil, errors.New("jwt secret not configured")
			}
			secret = devSecret
		}
		v.key = []byte(secret)
		v.method = jwt.SigningMethodHS256.Alg()
	}

	v.options = []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method}),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		v.options = append(v.options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.options = append(v.options, jwt.WithAudience(cfg.Audience))
	}
	return v, nil
}

// Verify parses token and returns its claims. Tokens without a subject are rejected.
func (v *Verifier) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, v.options...)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// SignHS256 issues a token for local development and tests.
func SignHS256(secret string, claims Claims, ttl time.Duration) (string, error) {
	if claims.Subject == "" {
		return "", errors.New("sub is required")
	}
	if secret == "" {
		secret = devSecret
	}
	now := time.Now().UTC()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil && ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
