package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const pepperLength = 32

// LoadOrGeneratePepper reads the pepper stored at path. When the file does not
// exist a new random pepper is generated and written with 0600 permissions.
//
// Losing the pepper invalidates every stored password hash, so the file must be
// backed up alongside the database.
func LoadOrGeneratePepper(path string) ([]byte, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	if err == nil {
		pepper := strings.TrimSpace(string(data))
		if pepper == "" {
			return nil, fmt.Errorf("cryptox: pepper file %s is empty", path)
		}
		return []byte(pepper), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cryptox: failed to read pepper: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("cryptox: failed to create pepper directory: %w", err)
	}

	raw := make([]byte, pepperLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate pepper: %w", err)
	}
	pepper := base64.RawURLEncoding.EncodeToString(raw)

	if err := os.WriteFile(path, []byte(pepper), 0600); err != nil {
		return nil, fmt.Errorf("cryptox: failed to write pepper: %w", err)
	}
	return []byte(pepper), nil
}
