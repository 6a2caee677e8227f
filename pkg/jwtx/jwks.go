package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/aussiebroadwan/userspace/pkg/cryptox"
)

// JWK represents a public key in JSON Web Key format (RFC 7517).
type JWK struct {
	Kty string `json:"kty"`           // "RSA", "OKP" or "EC"
	Use string `json:"use,omitempty"` // always "sig" here
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`

	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// OKP and EC
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

var b64 = base64.RawURLEncoding

// NewJWK describes pub as a signing JWK.
func NewJWK(kid, alg string, pub crypto.PublicKey) (JWK, error) {
	j := JWK{Use: "sig", Alg: alg, Kid: kid}

	switch key := pub.(type) {
	case *rsa.PublicKey:
		j.Kty = "RSA"
		j.N = b64.EncodeToString(key.N.Bytes())
		j.E = b64.EncodeToString(big.NewInt(int64(key.E)).Bytes())
	case ed25519.PublicKey:
		j.Kty = "OKP"
		j.Crv = "Ed25519"
		j.X = b64.EncodeToString(key)
	case *ecdsa.PublicKey:
		if key.Curve != elliptic.P256() {
			return JWK{}, errors.New("jwtx: only P-256 EC keys are supported")
		}
		// Coordinates are left padded to the 32-byte field size.
		x, y := make([]byte, 32), make([]byte, 32)
		key.X.FillBytes(x)
		key.Y.FillBytes(y)
		j.Kty = "EC"
		j.Crv = "P-256"
		j.X = b64.EncodeToString(x)
		j.Y = b64.EncodeToString(y)
	default:
		return JWK{}, fmt.Errorf("jwtx: unsupported public key type %T", pub)
	}
	return j, nil
}

// PublicKey parses the JWK back into a crypto public key.
func (j JWK) PublicKey() (crypto.PublicKey, error) {
	switch j.Kty {
	case "RSA":
		nb, err := b64.DecodeString(j.N)
		if err != nil {
			return nil, err
		}
		eb, err := b64.DecodeString(j.E)
		if err != nil {
			return nil, err
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(nb),
			E: int(new(big.Int).SetBytes(eb).Int64()),
		}, nil

	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, errors.New("jwtx: unsupported OKP curve " + j.Crv)
		}
		xb, err := b64.DecodeString(j.X)
		if err != nil {
			return nil, err
		}
		if len(xb) != ed25519.PublicKeySize {
			return nil, errors.New("jwtx: invalid Ed25519 public key size")
		}
		return ed25519.PublicKey(xb), nil

	case "EC":
		if j.Crv != "P-256" {
			return nil, errors.New("jwtx: unsupported EC curve " + j.Crv)
		}
		xb, err := b64.DecodeString(j.X)
		if err != nil {
			return nil, err
		}
		yb, err := b64.DecodeString(j.Y)
		if err != nil {
			return nil, err
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xb),
			Y:     new(big.Int).SetBytes(yb),
		}, nil

	default:
		return nil, errors.New("jwtx: unsupported kty " + j.Kty)
	}
}

// PEM returns the PKIX PEM encoding of the key, handy for tools like jwt.io.
func (j JWK) PEM() (string, error) {
	pub, err := j.PublicKey()
	if err != nil {
		return "", err
	}
	data, err := cryptox.EncodePublicKey(pub)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
