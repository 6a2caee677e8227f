package cryptox

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// Key algorithm names, matching the JOSE "alg" values they are used for.
const (
	AlgEdDSA = "EdDSA"
	AlgRS256 = "RS256"
	AlgES256 = "ES256"
)

// MinRSABits is the smallest RSA modulus GenerateRSAKey accepts.
const MinRSABits = 2048

// GenerateKey creates a private key for alg and returns it PEM encoded (PKCS8).
// rsaBits is only read for RS256.
func GenerateKey(alg string, rsaBits int) ([]byte, error) {
	switch alg {
	case AlgEdDSA:
		return GenerateEd25519Key()
	case AlgRS256:
		return GenerateRSAKey(rsaBits)
	case AlgES256:
		return GenerateES256Key()
	default:
		return nil, fmt.Errorf("cryptox: unsupported key algorithm %q", alg)
	}
}

// GenerateEd25519Key generates a new Ed25519 private key in PKCS8 PEM form.
func GenerateEd25519Key() ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate Ed25519 key: %w", err)
	}
	return encodePKCS8(priv)
}

// GenerateRSAKey generates a new RSA private key in PKCS8 PEM form.
func GenerateRSAKey(bits int) ([]byte, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("cryptox: RSA key size must be at least %d bits", MinRSABits)
	}

	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate RSA key: %w", err)
	}
	return encodePKCS8(priv)
}

// GenerateES256Key generates a new ECDSA P-256 private key in PKCS8 PEM form.
func GenerateES256Key() ([]byte, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate ECDSA key: %w", err)
	}
	return encodePKCS8(priv)
}

// EncodePublicKey returns the PKIX PEM encoding of pub.
func EncodePublicKey(pub any) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

func encodePKCS8(priv any) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
