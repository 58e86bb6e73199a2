package vault

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/org/authvault/internal/crypto"
	"github.com/org/authvault/internal/secret"
	"github.com/org/authvault/internal/storage"
	"github.com/org/authvault/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoSecret = "JBSWY3DPEHPK3PXP"

type staticKey []byte

func (k staticKey) Key() ([]byte, error) { return bytes.Clone(k), nil }

func testKey(b byte) staticKey {
	return staticKey(bytes.Repeat([]byte{b}, crypto.KeySize))
}

// tickingClock advances one second per call.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.vault")
	return newStoreAt(path, testKey(1), opts...)
}

func newStoreAt(path string, key KeyProvider, opts ...Option) *Store {
	clock := &tickingClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	base := []Option{
		WithLogger(zerolog.Nop()),
		WithClock(clock.now),
		WithIDGenerator(sequentialIDs()),
	}
	return New(storage.NewFileBackend(path), key, append(base, opts...)...)
}

func fileBytes(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func names(accounts []models.Account) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.Name
	}
	return out
}

func TestAddGetRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	acct, err := s.Add("  GitHub ", "jbsw y3dp ehpk 3pxp", "  work  ")
	require.NoError(t, err)
	assert.Equal(t, "id-1", acct.ID)

	got, err := s.Get(acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "GitHub", got.Name)
	assert.Equal(t, demoSecret, got.Secret)
	assert.Equal(t, "work", got.Note)
	assert.False(t, got.CreatedAt.IsZero())
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt.Time))
	assert.Equal(t, acct, got)
}

func TestAddCanonicalizesPadding(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	acct, err := s.Add("short", "jbswy3dpee", "")
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEE======", acct.Secret)
}

func TestUpdatePreservesIdentity(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	orig, err := s.Add("GitHub", demoSecret, "")
	require.NoError(t, err)

	updated, err := s.Update(orig.ID, "GitHub (work)", "gezdgnbvgy3tqojq", "note")
	require.NoError(t, err)
	assert.Equal(t, orig.ID, updated.ID)
	assert.True(t, orig.CreatedAt.Equal(updated.CreatedAt.Time))
	assert.True(t, updated.UpdatedAt.After(orig.UpdatedAt.Time))
	assert.Equal(t, "GEZDGNBVGY3TQOJQ", updated.Secret)

	got, err := s.Get(orig.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestUpdateKeepingName(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	orig, err := s.Add("GitHub", demoSecret, "")
	require.NoError(t, err)
	_, err = s.Update(orig.ID, "GitHub", demoSecret, "new note")
	require.NoError(t, err)
}

func TestDuplicateNameLeavesVaultUnchanged(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Add("GitHub", demoSecret, "")
	require.NoError(t, err)
	before := fileBytes(t, s.Path())

	_, err = s.Add("GitHub", "GEZDGNBVGY3TQOJQ", "other")
	require.ErrorIs(t, err, ErrAccountAlreadyExists)
	assert.Equal(t, before, fileBytes(t, s.Path()))

	accounts, err := s.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	// Names are case-sensitive.
	_, err = s.Add("github", demoSecret, "")
	assert.NoError(t, err)
}

func TestUpdateRenameCollision(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Add("GitHub", demoSecret, "")
	require.NoError(t, err)
	b, err := s.Add("GitLab", demoSecret, "")
	require.NoError(t, err)

	_, err = s.Update(b.ID, "GitHub", demoSecret, "")
	assert.ErrorIs(t, err, ErrAccountAlreadyExists)

	got, err := s.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "GitLab", got.Name)
}

func TestInvalidInput(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Add("   ", demoSecret, "")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = s.Add(strings.Repeat("é", MaxNameLength+1), demoSecret, "")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = s.Add("GitHub", "not-base32!", "")
	assert.ErrorIs(t, err, secret.ErrInvalidSecret)

	_, err = s.Add("GitHub", "", "")
	assert.ErrorIs(t, err, secret.ErrInvalidSecret)

	// Nothing was persisted.
	assert.NoFileExists(t, s.Path())

	_, err = s.Add(strings.Repeat("é", MaxNameLength), demoSecret, "")
	assert.NoError(t, err)
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = s.Update("missing", "x", demoSecret, "")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	err = s.Delete("missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDeleteKeepsOrder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, n := range []string{"a", "b", "c"} {
		_, err := s.Add(n, demoSecret, "")
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete("id-2"))

	accounts, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names(accounts))

	// Ids are never reused.
	acct, err := s.Add("d", demoSecret, "")
	require.NoError(t, err)
	assert.Equal(t, "id-4", acct.ID)
}

func TestLoadAbsentOrEmpty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.Load()
	require.NoError(t, err)
	assert.NotNil(t, v.Accounts)
	assert.Empty(t, v.Accounts)

	require.NoError(t, os.WriteFile(s.Path(), nil, 0o600))
	v, err = s.Load()
	require.NoError(t, err)
	assert.Empty(t, v.Accounts)
}

func TestEncryptedAtRest(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Add("GitHub", demoSecret, "personal")
	require.NoError(t, err)

	data := fileBytes(t, s.Path())
	assert.NotContains(t, string(data), demoSecret)
	assert.NotContains(t, string(data), "GitHub")
	assert.NotContains(t, string(data), "accounts")

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// A present but unreadable vault surfaces a distinguishable error by default.
func TestCorruptVaultStrict(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("garbage that is not a sealed vault"), 0o600))

	_, err := s.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptVault)
	assert.ErrorIs(t, err, storage.ErrStorage)

	_, err = s.Add("GitHub", demoSecret, "")
	assert.ErrorIs(t, err, ErrCorruptVault)
	assert.Equal(t, "garbage that is not a sealed vault", string(fileBytes(t, s.Path())))
}

// With strict loading off, an unreadable vault is treated as empty and the
// next mutation replaces it.
func TestCorruptVaultTolerant(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, WithStrictLoad(false))
	require.NoError(t, os.WriteFile(s.Path(), []byte("garbage"), 0o600))

	v, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, v.Accounts)

	_, err = s.Add("GitHub", demoSecret, "")
	require.NoError(t, err)

	accounts, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"GitHub"}, names(accounts))
}

func TestWrongKey(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "data.vault")

	_, err := newStoreAt(path, testKey(1)).Add("GitHub", demoSecret, "")
	require.NoError(t, err)

	_, err = newStoreAt(path, testKey(2)).Load()
	assert.ErrorIs(t, err, ErrCorruptVault)
}

func TestPlaintextNotJSON(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	blob, err := crypto.Seal([]byte("not json"), testKey(1))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), blob, 0o600))

	_, err = s.Load()
	assert.ErrorIs(t, err, ErrCorruptVault)
}

func TestSaveValidates(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.Save(&models.Vault{Accounts: []models.Account{
		{ID: "a", Name: "x", Secret: demoSecret},
		{ID: "b", Name: "x", Secret: demoSecret},
	}})
	assert.ErrorIs(t, err, ErrInvalidDocument)
	assert.NoFileExists(t, s.Path())

	require.NoError(t, s.Save(&models.Vault{Accounts: []models.Account{
		{Name: "x", Secret: "jbswy3dpehpk3pxp"},
	}}))
	accounts, err := s.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "id-1", accounts[0].ID)
	assert.Equal(t, demoSecret, accounts[0].Secret)
}

func TestConcurrentAdds(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "data.vault")
	s := New(storage.NewFileBackend(path), testKey(1), WithLogger(zerolog.Nop()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Add(fmt.Sprintf("account-%02d", i), demoSecret, "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	accounts, err := s.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 20)
}
