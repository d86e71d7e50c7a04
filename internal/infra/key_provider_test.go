package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

func TestEnsureKey(t *testing.T) {
	tests := []struct {
		name   string
		testFn func(t *testing.T, dir string, provider *FileKeyProvider)
	}{
		{
			name: "fresh directory gets a private key file",
			testFn: func(t *testing.T, dir string, provider *FileKeyProvider) {
				key, err := EnsureKey(provider, LedgerPath(dir))
				require.NoError(t, err)
				assert.Len(t, key, keySize)

				info, err := os.Stat(provider.Path())
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
				assert.Equal(t, filepath.Join(dir, "ledger.key"), provider.Path())
			},
		},
		{
			name: "existing key is reused",
			testFn: func(t *testing.T, dir string, provider *FileKeyProvider) {
				first, err := EnsureKey(provider, LedgerPath(dir))
				require.NoError(t, err)
				second, err := EnsureKey(NewFileKeyProvider(dir), LedgerPath(dir))
				require.NoError(t, err)
				assert.Equal(t, first, second)
			},
		},
		{
			name: "ledger without its key is refused",
			testFn: func(t *testing.T, dir string, provider *FileKeyProvider) {
				key, err := EnsureKey(provider, LedgerPath(dir))
				require.NoError(t, err)
				store, err := NewEncryptedLedgerStore(dir, key)
				require.NoError(t, err)
				require.NoError(t, store.Save(domain.PointLedger{Points: 40}))
				require.NoError(t, store.Close())

				require.NoError(t, os.Remove(provider.Path()))

				_, err = EnsureKey(provider, LedgerPath(dir))
				assert.True(t, errors.Is(err, ErrLedgerKeyMissing))
				assert.False(t, provider.KeyExists(), "no replacement key may be written")
			},
		},
		{
			name: "corrupt key file is an error",
			testFn: func(t *testing.T, dir string, provider *FileKeyProvider) {
				require.NoError(t, os.WriteFile(provider.Path(), []byte("not base64!"), 0600))
				_, err := EnsureKey(provider, LedgerPath(dir))
				assert.Error(t, err)
			},
		},
		{
			name: "short key is rejected on store",
			testFn: func(t *testing.T, dir string, provider *FileKeyProvider) {
				err := provider.StoreKey([]byte("tooshort"))
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid key size")
				assert.False(t, provider.KeyExists())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.testFn(t, dir, NewFileKeyProvider(dir))
		})
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
