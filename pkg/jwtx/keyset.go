package jwtx

import (
	"crypto"
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

type verificationKey struct {
	alg string
	key crypto.PublicKey
}

// KeySet holds the public verification keys and their JWKS rendering.
type KeySet struct {
	mu   sync.RWMutex
	jwks JWKS
	pub  map[string]verificationKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]verificationKey)}
}

// AddSigner registers the public half of s.
func (k *KeySet) AddSigner(s Signer) error {
	j, err := NewJWK(s.KID(), s.Alg(), s.Public())
	if err != nil {
		return err
	}
	return k.AddJWK(j)
}

// AddJWK registers a public key published elsewhere.
func (k *KeySet) AddJWK(j JWK) error {
	pub, err := j.PublicKey()
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub[j.Kid] = verificationKey{alg: j.Alg, key: pub}
	k.jwks.Keys = append(k.jwks.Keys, j)
	return nil
}

// Get returns the algorithm and public key registered under kid.
func (k *KeySet) Get(kid string) (string, crypto.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	vk, ok := k.pub[kid]
	if !ok {
		return "", nil, ErrNoKey
	}
	return vk.alg, vk.key, nil
}

// PublicJWKS returns a snapshot of the set for HTTP serving.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: append([]JWK(nil), k.jwks.Keys...)}
}

// IsReady reports whether at least one key is loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}
