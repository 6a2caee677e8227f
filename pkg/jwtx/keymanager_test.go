package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/userspace/pkg/cryptox"
	"github.com/aussiebroadwan/userspace/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type testClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func newManager(t *testing.T, alg string) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewEphemeralKeyManager(alg, "test-issuer", 2048)
	require.NoError(t, err)
	return km
}

func TestNewEphemeralKeyManager_AllAlgorithms(t *testing.T) {
	for _, alg := range []string{cryptox.AlgEdDSA, cryptox.AlgRS256, cryptox.AlgES256} {
		t.Run(alg, func(t *testing.T) {
			km := newManager(t, alg)
			require.Equal(t, alg, km.Algorithm())
			require.True(t, km.IsReady())
			require.NotEmpty(t, km.Signer.KID())

			now := time.Now()
			token, err := km.Signer.Sign(testClaims{
				RegisteredClaims: jwtx.NewRegisteredClaims("test-issuer", "user-1", time.Hour, now),
				Email:            "alice@example.com",
			})
			require.NoError(t, err)

			var got testClaims
			require.NoError(t, km.Verifier.Verify(token, &got))
			require.Equal(t, "user-1", got.Subject)
			require.Equal(t, "alice@example.com", got.Email)
			require.NotEmpty(t, got.ID)
		})
	}
}

func TestNewEphemeralKeyManager_Errors(t *testing.T) {
	_, err := jwtx.NewEphemeralKeyManager("HS256", "issuer", 0)
	require.Error(t, err)

	_, err = jwtx.NewEphemeralKeyManager(cryptox.AlgEdDSA, "", 0)
	require.Error(t, err)
}

func TestVerify_Failures(t *testing.T) {
	km := newManager(t, cryptox.AlgEdDSA)
	now := time.Now()

	sign := func(claims jwt.Claims) string {
		token, err := km.Signer.Sign(claims)
		require.NoError(t, err)
		return token
	}

	t.Run("malformed", func(t *testing.T) {
		var c testClaims
		require.ErrorIs(t, km.Verifier.Verify("not-a-token", &c), jwtx.ErrMalformed)
	})

	t.Run("tampered signature", func(t *testing.T) {
		token := sign(jwtx.NewRegisteredClaims("test-issuer", "user-1", time.Hour, now))
		parts := strings.Split(token, ".")
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		tampered := parts[0] + "." + parts[1] + "." + string(sig)

		var c testClaims
		require.ErrorIs(t, km.Verifier.Verify(tampered, &c), jwtx.ErrInvalidSig)
	})

	t.Run("expired", func(t *testing.T) {
		token := sign(jwtx.NewRegisteredClaims("test-issuer", "user-1", time.Minute, now.Add(-time.Hour)))
		var c testClaims
		require.ErrorIs(t, km.Verifier.Verify(token, &c), jwtx.ErrExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := sign(jwtx.NewRegisteredClaims("someone-else", "user-1", time.Hour, now))
		var c testClaims
		require.ErrorIs(t, km.Verifier.Verify(token, &c), jwtx.ErrIssuer)
	})

	t.Run("signed by a different key", func(t *testing.T) {
		other := newManager(t, cryptox.AlgEdDSA)
		token, err := other.Signer.Sign(jwtx.NewRegisteredClaims("test-issuer", "user-1", time.Hour, now))
		require.NoError(t, err)

		var c testClaims
		require.ErrorIs(t, km.Verifier.Verify(token, &c), jwtx.ErrUnknownKID)
	})

	t.Run("no expiry is accepted", func(t *testing.T) {
		token := sign(jwtx.NewRegisteredClaims("test-issuer", "user-1", 0, now))
		var c testClaims
		require.NoError(t, km.Verifier.Verify(token, &c))
		require.Nil(t, c.ExpiresAt)
	})
}

func TestPublicKeyPEM(t *testing.T) {
	km := newManager(t, cryptox.AlgEdDSA)

	pemKey, err := km.PublicKeyPEM()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(pemKey), "-----BEGIN PUBLIC KEY-----"))

	jwks := km.KeySet.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	fromJWK, err := jwks.Keys[0].PEM()
	require.NoError(t, err)
	require.Equal(t, string(pemKey), fromJWK)
}
