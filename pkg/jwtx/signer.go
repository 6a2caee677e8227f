package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/userspace/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Signer signs JWTs with a single private key.
type Signer interface {
	Alg() string
	KID() string
	Sign(jwt.Claims) (string, error)
	Public() crypto.PublicKey
}

type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
}

// NewSigner builds a Signer from a PKCS8 PEM private key. The algorithm
// follows from the key type and the kid is derived from the public key, so the
// same key file always yields the same kid.
func NewSigner(pemKey []byte) (Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM private key")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8 private key: %w", err)
	}

	var method jwt.SigningMethod
	switch key := parsed.(type) {
	case ed25519.PrivateKey:
		method = jwt.SigningMethodEdDSA
	case *rsa.PrivateKey:
		if key.N.BitLen() < cryptox.MinRSABits {
			return nil, fmt.Errorf("jwtx: RSA key must be at least %d bits", cryptox.MinRSABits)
		}
		method = jwt.SigningMethodRS256
	case *ecdsa.PrivateKey:
		if key.Curve.Params().Name != "P-256" {
			return nil, errors.New("jwtx: ECDSA key must use the P-256 curve")
		}
		method = jwt.SigningMethodES256
	default:
		return nil, fmt.Errorf("jwtx: unsupported private key type %T", parsed)
	}

	signer := parsed.(crypto.Signer)
	kid, err := Thumbprint(signer.Public())
	if err != nil {
		return nil, err
	}

	return &keySigner{kid: kid, method: method, key: signer}, nil
}

// Thumbprint returns a short stable identifier for pub, derived from the
// SHA-256 of its PKIX encoding.
func Thumbprint(pub crypto.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("jwtx: marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return b64.EncodeToString(sum[:12]), nil
}

func (s *keySigner) Alg() string              { return s.method.Alg() }
func (s *keySigner) KID() string              { return s.kid }
func (s *keySigner) Public() crypto.PublicKey { return s.key.Public() }

func (s *keySigner) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}
