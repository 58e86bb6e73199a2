package vault

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/fernet/fernet-go"
	"github.com/org/authvault/internal/core"
	"github.com/org/authvault/internal/crypto"
	"github.com/org/authvault/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// legacySeal writes plain as a Fernet token under the raw file key.
func legacySeal(t *testing.T, plain, key []byte) []byte {
	t.Helper()
	var k fernet.Key
	copy(k[:], key)
	token, err := fernet.EncryptAndSign(plain, &k)
	require.NoError(t, err)
	return token
}

func TestMigratedLegacyVault(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	legacy := storage.FilePair{Data: filepath.Join(dir, "app", "accounts.dat"), Key: filepath.Join(dir, "app", ".key")}
	current := storage.FilePair{Data: filepath.Join(dir, "home", "data.vault"), Key: filepath.Join(dir, "home", "secret.key")}

	rawKey := bytes.Repeat([]byte{3}, 32)
	require.NoError(t, os.MkdirAll(filepath.Dir(legacy.Key), 0o700))
	require.NoError(t, os.WriteFile(legacy.Key, []byte(base64.URLEncoding.EncodeToString(rawKey)), 0o600))
	doc := `{"accounts": [{"id": "0b5e", "name": "GitHub", "secret": "JBSWY3DPEHPK3PXP", "note": "",
		"created_at": "2023-06-01T10:00:00.000001", "updated_at": "2023-06-01T10:00:00.000001"}]}`
	require.NoError(t, os.WriteFile(legacy.Data, legacySeal(t, []byte(doc), rawKey), 0o600))

	res, err := storage.MigrateLegacy(legacy, current)
	require.NoError(t, err)
	require.True(t, res.DataCopied)

	keys := core.NewKeyManager(current.Key, zerolog.Nop())
	s := newStoreAt(current.Data, keys)

	accounts, err := s.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "0b5e", accounts[0].ID)
	assert.Equal(t, "GitHub", accounts[0].Name)

	// The first mutation rewrites the vault in the current format.
	_, err = s.Add("GitLab", demoSecret, "")
	require.NoError(t, err)
	dataKey, err := keys.Key()
	require.NoError(t, err)
	_, err = crypto.Open(fileBytes(t, current.Data), dataKey)
	assert.NoError(t, err)

	accounts, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"GitHub", "GitLab"}, names(accounts))
}

func TestLegacyFormatNeedsRootKey(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	rawKey := bytes.Repeat([]byte{1}, 32)
	require.NoError(t, os.WriteFile(s.Path(), legacySeal(t, []byte(`{"accounts": []}`), rawKey), 0o600))

	// staticKey has no RootKey, so the legacy token is just unreadable.
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrCorruptVault)
}
