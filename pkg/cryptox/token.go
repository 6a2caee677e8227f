package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy.
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy.
	TokenSize256 = 32
	// TokenSize512 provides 512 bits of entropy (128 hex chars). Used for
	// email verification and password recovery links.
	TokenSize512 = 64
)

// GenerateToken creates a cryptographically secure random token of size bytes,
// returned base64url encoded without padding.
func GenerateToken(size int) (string, error) {
	buf, err := randomBytes(size)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateHexToken is like GenerateToken but hex encodes the result, which
// survives copy and paste from plain-text emails without escaping.
func GenerateHexToken(size int) (string, error) {
	buf, err := randomBytes(size)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// MustGenerateToken is like GenerateToken but panics on error.
// Use this only where a failing random source is unrecoverable anyway.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate token: %v", err))
	}
	return token
}

func randomBytes(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate random token: %w", err)
	}
	return buf, nil
}
