package jwtx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/userspace/pkg/cryptox"
)

// KeyFileOptions describes where the signing key lives and how to create it.
type KeyFileOptions struct {
	// Path of the private key. The public key is written next to it with a
	// ".pub" suffix whenever a key is generated.
	Path string

	// Algorithm for newly generated keys. Existing keys keep their own type.
	Algorithm string

	// RSABits for generated RS256 keys. Defaults to DefaultRSABits.
	RSABits int

	// MasterKey seals the private key at rest when set. A sealed key file
	// cannot be read without it.
	MasterKey *cryptox.MasterKey

	// Issuer is passed through to the verifier.
	Issuer string
}

// LoadOrGenerateKeyFile loads the signing key stored at opts.Path, generating
// and persisting a new one when the file does not exist. The boolean result
// reports whether a key was generated.
func LoadOrGenerateKeyFile(opts KeyFileOptions) (*KeyManager, bool, error) {
	if opts.Path == "" {
		return nil, false, errors.New("jwtx: key file path is required")
	}
	path := filepath.Clean(opts.Path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		pemKey, err := openKey(data, opts.MasterKey)
		if err != nil {
			return nil, false, err
		}
		signer, err := NewSigner(pemKey)
		if err != nil {
			return nil, false, err
		}
		km, err := NewKeyManager(signer, opts.Issuer)
		return km, false, err

	case !errors.Is(err, fs.ErrNotExist):
		return nil, false, fmt.Errorf("jwtx: read key file: %w", err)
	}

	bits := opts.RSABits
	if bits == 0 {
		bits = DefaultRSABits
	}
	pemKey, err := cryptox.GenerateKey(opts.Algorithm, bits)
	if err != nil {
		return nil, false, err
	}
	signer, err := NewSigner(pemKey)
	if err != nil {
		return nil, false, err
	}

	if err := writeKeyFiles(path, pemKey, signer, opts.MasterKey); err != nil {
		return nil, false, err
	}

	km, err := NewKeyManager(signer, opts.Issuer)
	return km, true, err
}

func openKey(data []byte, master *cryptox.MasterKey) ([]byte, error) {
	if master == nil {
		return data, nil
	}
	pemKey, err := master.Open(data)
	if err != nil {
		return nil, fmt.Errorf("jwtx: unseal key file: %w", err)
	}
	return pemKey, nil
}

func writeKeyFiles(path string, pemKey []byte, signer Signer, master *cryptox.MasterKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("jwtx: create key directory: %w", err)
	}

	out := pemKey
	if master != nil {
		sealed, err := master.Seal(pemKey)
		if err != nil {
			return err
		}
		out = sealed
	}

	// O_EXCL so two instances racing on first start cannot overwrite each
	// other's key.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("jwtx: create key file: %w", err)
	}
	if _, err := f.Write(out); err != nil {
		_ = f.Close()
		return fmt.Errorf("jwtx: write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("jwtx: close key file: %w", err)
	}

	pub, err := cryptox.EncodePublicKey(signer.Public())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path+".pub", pub, 0644); err != nil { // #nosec G306 - public key
		return fmt.Errorf("jwtx: write public key file: %w", err)
	}
	return nil
}
