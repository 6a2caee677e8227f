package jwtx

import (
	"time"

	"github.com/aussiebroadwan/userspace/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// NewRegisteredClaims builds the standard claim set for a token issued at now.
// A zero ttl leaves the expiry unset.
func NewRegisteredClaims(issuer, subject string, ttl time.Duration, now time.Time) jwt.RegisteredClaims {
	claims := jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
		ID:       NewJTI(),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return claims
}

// NewJTI returns a random token identifier.
func NewJTI() string {
	return cryptox.MustGenerateToken(cryptox.TokenSize128)
}
