package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/duzelt/duzelt-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// IdentityClaims is the subset of the identity provider's token this
// service cares about: who the user is and, optionally, their email.
type IdentityClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the provider-issued opaque user identifier.
func (c *IdentityClaims) UserID() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Subject)
}

// VerifyIdentityToken validates a bearer token signed by the identity
// provider's shared secret and returns the typed claims.
func VerifyIdentityToken(cfg config.IdentityConfig, tokenString string) (*IdentityClaims, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("identity jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &IdentityClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}

	if claims.UserID() == "" {
		return nil, fmt.Errorf("token subject is empty")
	}

	return claims, nil
}

// MintIdentityToken issues a token the way the identity provider would.
// Used by local tooling and tests; production tokens come from the
// provider itself.
func MintIdentityToken(cfg config.IdentityConfig, now time.Time, userID, email string, ttl time.Duration) (string, error) {
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("identity jwt secret is required")
	}
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	claims := IdentityClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
