package acme

import (
	"crypto/ecdsa"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAccountKey_CreatesThenReuses(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "acme-account.pem")

	first, err := EnsureAccountKey(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := EnsureAccountKey(path)
	require.NoError(t, err)
	assert.True(t, first.(*ecdsa.PrivateKey).Equal(second))
}

func TestEnsureAccountKey_RejectsForeignFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "acme-account.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, err := EnsureAccountKey(path)
	assert.ErrorContains(t, err, "is not a PEM")
}
