package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Params tunes the argon2id key derivation.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  uint32
}

// DefaultArgon2Params follows the OWASP minimum for argon2id (19 MiB, t=2, p=1).
var DefaultArgon2Params = Argon2Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	KeyLength:   32,
	SaltLength:  16,
}

// Hashed is a derived password hash together with the salt used to produce it.
// The two values must always be stored and replaced together.
type Hashed struct {
	Hash string
	Salt string
}

// Argon2Hasher hashes and verifies passwords with argon2id. The zero value is
// not usable, construct it with NewArgon2Hasher.
type Argon2Hasher struct {
	params Argon2Params
	pepper []byte
}

// NewArgon2Hasher returns a hasher using params. The pepper is appended to every
// password before derivation and may be empty.
func NewArgon2Hasher(params Argon2Params, pepper []byte) *Argon2Hasher {
	return &Argon2Hasher{params: params, pepper: append([]byte(nil), pepper...)}
}

// HashAndSalt derives a hash for password with a fresh random salt.
//
// The hash is encoded as "argon2id$v=19$m=X,t=Y,p=Z$<key>" so the parameters
// travel with it. The salt is returned separately, base64 encoded.
func (h *Argon2Hasher) HashAndSalt(password string) (Hashed, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return Hashed{}, fmt.Errorf("cryptox: failed to generate salt: %w", err)
	}

	key := argon2.IDKey(h.peppered(password), salt,
		h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return Hashed{
		Hash: fmt.Sprintf("argon2id$v=%d$m=%d,t=%d,p=%d$%s",
			argon2.Version,
			h.params.Memory,
			h.params.Iterations,
			h.params.Parallelism,
			base64.RawStdEncoding.EncodeToString(key),
		),
		Salt: base64.RawStdEncoding.EncodeToString(salt),
	}, nil
}

// Verify reports whether password produces encodedHash under salt. Malformed
// hashes or salts never verify.
func (h *Argon2Hasher) Verify(password, salt, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 4 || parts[0] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return false
	}
	// argon2 panics on zero rounds or parallelism.
	if mem == 0 || iters == 0 || par == 0 {
		return false
	}

	rawSalt, err := base64.RawStdEncoding.DecodeString(salt)
	if err != nil || len(rawSalt) == 0 {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(expected) == 0 {
		return false
	}

	computed := argon2.IDKey(h.peppered(password), rawSalt,
		iters, mem, par,
		uint32(len(expected)), // #nosec G115 - key length is always small
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

func (h *Argon2Hasher) peppered(password string) []byte {
	out := make([]byte, 0, len(password)+len(h.pepper))
	out = append(out, password...)
	return append(out, h.pepper...)
}
