package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/pkg/cryptox"
	"github.com/aussiebroadwan/userspace/pkg/jwtx"
)

// DefaultTokenTTL is the lifetime of identity tokens when none is configured.
const DefaultTokenTTL = 31 * 24 * time.Hour

// IdentityClaims is the payload of an identity token: the registered claims
// plus the account's public fields.
type IdentityClaims[X any] struct {
	jwt.RegisteredClaims
	User domain.PublicAccount[X] `json:"user"`
}

// TokenIssuer creates opaque single-use tokens and signs and verifies
// identity tokens.
type TokenIssuer[X any] struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Issuer   string
	TTL      time.Duration // zero disables expiry
	Now      func() time.Time
}

// NewToken returns a fresh 512-bit opaque token, hex encoded.
func (t *TokenIssuer[X]) NewToken() (string, error) {
	tok, err := cryptox.GenerateHexToken(cryptox.TokenSize512)
	if err != nil {
		return "", fmt.Errorf("tokens: %w", err)
	}
	return tok, nil
}

// Sign issues an identity token for account.
func (t *TokenIssuer[X]) Sign(account domain.PublicAccount[X]) (string, error) {
	claims := IdentityClaims[X]{
		RegisteredClaims: jwtx.NewRegisteredClaims(t.Issuer, account.ID, t.TTL, t.now()),
		User:             account,
	}
	token, err := t.Signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("tokens: sign: %w", err)
	}
	return token, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the
// embedded account. Every failure is ErrSessionInvalid.
func (t *TokenIssuer[X]) Verify(token string) (domain.PublicAccount[X], error) {
	var claims IdentityClaims[X]
	if err := t.Verifier.Verify(token, &claims); err != nil {
		return domain.PublicAccount[X]{}, fmt.Errorf("%w: %w", domain.ErrSessionInvalid, err)
	}
	if claims.Subject == "" || claims.Subject != claims.User.ID {
		return domain.PublicAccount[X]{}, domain.ErrSessionInvalid
	}
	return claims.User, nil
}

func (t *TokenIssuer[X]) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}
