package http

import (
	"net/http"

	"github.com/aussiebroadwan/userspace/pkg/httpx"
	"github.com/aussiebroadwan/userspace/pkg/jwtx"
	"github.com/aussiebroadwan/userspace/pkg/usersdk"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify identity tokens.
//	@Tags			Keys
//	@Produce		json
//	@Success		200	{object}	usersdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, usersdk.JWKSResponse(keys.PublicJWKS()))
	}
}

// PublicKeyHandler exposes the verification key as PEM for services that
// check identity tokens without JWKS support.
//
//	@Summary		Get the public key
//	@Tags			Keys
//	@Produce		json
//	@Success		200	{object}	usersdk.PublicKeyResponse
//	@Router			/v1/keys/public [get].
func PublicKeyHandler(km *jwtx.KeyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pem, err := km.PublicKeyPEM()
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, usersdk.PublicKeyResponse{
			Algorithm: km.Algorithm(),
			KeyID:     km.Signer.KID(),
			PEM:       string(pem),
		})
	}
}
