package secretstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveLoadDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secrets.json")
	store, err := Open(path, "correct horse")
	require.NoError(t, err)

	_, found, err := store.Load("auth_token")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save("auth_token", "tok-123"))

	got, found, err := store.Load("auth_token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tok-123", got)

	require.NoError(t, store.Delete("auth_token"))
	_, found, err = store.Load("auth_token")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Delete("auth_token"), "deleting a missing key is not an error")
}

func TestFileStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	store, err := Open(path, "passphrase")
	require.NoError(t, err)
	require.NoError(t, store.Save("auth_token", "persisted"))

	reopened, err := Open(path, "passphrase")
	require.NoError(t, err)
	got, found, err := reopened.Load("auth_token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "persisted", got)
}

func TestFileStore_ValueIsNotStoredInPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	store, err := Open(path, "passphrase")
	require.NoError(t, err)
	require.NoError(t, store.Save("auth_token", "very-secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "very-secret-token")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_WrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	store, err := Open(path, "right")
	require.NoError(t, err)
	require.NoError(t, store.Save("auth_token", "value"))

	other, err := Open(path, "wrong")
	require.NoError(t, err)
	_, found, err := other.Load("auth_token")
	assert.ErrorIs(t, err, ErrDecrypt)
	assert.False(t, found)
}

func TestOpen_EmptyPassphrase(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "secrets.json"), "")
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := Open(path, "passphrase")
	assert.Error(t, err)
}
