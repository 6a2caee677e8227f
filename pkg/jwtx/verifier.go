package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks a token and decodes its payload into claims.
type Verifier interface {
	Verify(token string, claims jwt.Claims) error
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrInvalid     = errors.New("jwtx: invalid claims")
)

// KeySetVerifier verifies tokens against the keys of a KeySet.
type KeySetVerifier struct {
	keys   *KeySet
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier returns a verifier for tokens issued by issuer. An empty issuer
// disables the issuer check.
func NewVerifier(keys *KeySet, issuer string, leeway time.Duration) *KeySetVerifier {
	return &KeySetVerifier{keys: keys, issuer: issuer, leeway: leeway}
}

// WithClock returns a copy of v that evaluates time-based claims against now.
func (v *KeySetVerifier) WithClock(now func() time.Time) *KeySetVerifier {
	c := *v
	c.now = now
	return &c
}

// Verify parses token into claims and classifies any failure as one of the
// package errors.
func (v *KeySetVerifier) Verify(token string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodEdDSA.Alg(),
			jwt.SigningMethodRS256.Alg(),
			jwt.SigningMethodES256.Alg(),
		}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.now != nil {
		opts = append(opts, jwt.WithTimeFunc(v.now))
	}

	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, v.keyFunc)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrUnknownKID):
		return ErrUnknownKID
	case errors.Is(err, ErrAlgMismatch):
		return ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	default:
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
}

func (v *KeySetVerifier) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, ErrUnknownKID
	}

	alg, pub, err := v.keys.Get(kid)
	if err != nil {
		return nil, ErrUnknownKID
	}
	if t.Method.Alg() != alg {
		return nil, ErrAlgMismatch
	}
	return pub, nil
}
