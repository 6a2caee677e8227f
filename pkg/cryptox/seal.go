package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrCiphertextTooShort is returned by Open for inputs shorter than a nonce.
var ErrCiphertextTooShort = errors.New("cryptox: ciphertext too short")

// MasterKey is a 32-byte AES-256 key used to seal private key material at rest.
type MasterKey [32]byte

// DeriveMasterKey hashes arbitrary key material into a MasterKey.
func DeriveMasterKey(material []byte) MasterKey {
	return MasterKey(sha256.Sum256(material))
}

// LoadMasterKey reads key material from path and derives a MasterKey from it.
// Surrounding whitespace is ignored so the file can be written with echo.
func LoadMasterKey(path string) (MasterKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MasterKey{}, fmt.Errorf("cryptox: failed to read master key file: %w", err)
	}
	material := strings.TrimSpace(string(data))
	if material == "" {
		return MasterKey{}, fmt.Errorf("cryptox: master key file %s is empty", path)
	}
	return DeriveMasterKey([]byte(material)), nil
}

// Seal encrypts data with AES-256-GCM.
// The output format is: [12-byte nonce][ciphertext][16-byte auth tag].
func (k MasterKey) Seal(data []byte) ([]byte, error) {
	gcm, err := k.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

// Open decrypts data produced by Seal and verifies its authentication tag.
func (k MasterKey) Open(sealed []byte) ([]byte, error) {
	gcm, err := k.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decryption failed: %w", err)
	}
	return plaintext, nil
}

func (k MasterKey) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create GCM: %w", err)
	}
	return gcm, nil
}
