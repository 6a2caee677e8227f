package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/userspace/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestLoadOrGeneratePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "pepper")

	generated, err := cryptox.LoadOrGeneratePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, generated)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := cryptox.LoadOrGeneratePepper(path)
	require.NoError(t, err)
	require.Equal(t, generated, loaded, "second call must reuse the stored pepper")
}

func TestLoadOrGeneratePepper_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	_, err := cryptox.LoadOrGeneratePepper(path)
	require.Error(t, err)
}
