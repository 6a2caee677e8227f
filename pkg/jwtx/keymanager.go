package jwtx

import (
	"fmt"
	"time"

	"github.com/aussiebroadwan/userspace/pkg/cryptox"
)

// DefaultRSABits is used for RS256 keys when no size is configured.
const DefaultRSABits = 4096

// DefaultLeeway absorbs small clock differences when checking exp and iat.
const DefaultLeeway = 30 * time.Second

// KeyManager bundles the single signing key of a process with the matching
// verifier and the published key set. It is immutable after construction.
type KeyManager struct {
	Signer   Signer
	Verifier Verifier
	KeySet   *KeySet
}

// NewKeyManager wires a signer into a verifier accepting tokens from issuer.
func NewKeyManager(signer Signer, issuer string) (*KeyManager, error) {
	if issuer == "" {
		return nil, fmt.Errorf("jwtx: issuer is required")
	}

	keys := NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("jwtx: failed to add signer to keyset: %w", err)
	}

	return &KeyManager{
		Signer:   signer,
		Verifier: NewVerifier(keys, issuer, DefaultLeeway),
		KeySet:   keys,
	}, nil
}

// NewEphemeralKeyManager generates a fresh in-memory key. Tokens signed with it
// stop verifying once the process exits, which suits tests and throwaway
// development instances.
func NewEphemeralKeyManager(algorithm, issuer string, rsaBits int) (*KeyManager, error) {
	if algorithm == cryptox.AlgRS256 && rsaBits == 0 {
		rsaBits = DefaultRSABits
	}

	pemKey, err := cryptox.GenerateKey(algorithm, rsaBits)
	if err != nil {
		return nil, err
	}

	signer, err := NewSigner(pemKey)
	if err != nil {
		return nil, err
	}
	return NewKeyManager(signer, issuer)
}

// Algorithm returns the signing algorithm in use.
func (km *KeyManager) Algorithm() string {
	return km.Signer.Alg()
}

// IsReady reports whether verification keys are loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}

// PublicKeyPEM returns the PKIX PEM encoding of the signing key's public half.
func (km *KeyManager) PublicKeyPEM() ([]byte, error) {
	return cryptox.EncodePublicKey(km.Signer.Public())
}
