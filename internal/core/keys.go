package core

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/org/authvault/internal/crypto"
	"github.com/org/authvault/internal/storage"
	"github.com/rs/zerolog"
)

// dataKeyContext binds the derived key to vault and backup encryption.
const dataKeyContext = "authvault-data-v1"

var keyEncoding = base64.URLEncoding

// KeyManager owns the symmetric key used for all vault and backup encryption.
// The key file is created on first use and read verbatim afterwards; it is
// never rotated.
type KeyManager struct {
	mu      sync.RWMutex
	path    string
	root    []byte
	dataKey []byte
	log     zerolog.Logger
}

// NewKeyManager creates a KeyManager for the key file at path.
func NewKeyManager(path string, logger zerolog.Logger) *KeyManager {
	return &KeyManager{path: path, log: logger}
}

// Path returns the key file location.
func (m *KeyManager) Path() string {
	return m.path
}

// Exists reports whether the key file is present.
func (m *KeyManager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Key returns a copy of the data encryption key, loading or generating the
// key file on first call.
func (m *KeyManager) Key() ([]byte, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bytes.Clone(m.dataKey), nil
}

// RootKey returns a copy of the key file contents. Only legacy files, which
// were encrypted with the file key directly, need it.
func (m *KeyManager) RootKey() ([]byte, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bytes.Clone(m.root), nil
}

// Forget wipes the cached keys from memory. The next call rereads the file.
func (m *KeyManager) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	crypto.Zero(m.root)
	crypto.Zero(m.dataKey)
	m.root, m.dataKey = nil, nil
}

func (m *KeyManager) ensure() error {
	m.mu.RLock()
	loaded := m.dataKey != nil
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dataKey != nil {
		return nil
	}
	root, err := m.loadOrCreate()
	if err != nil {
		return err
	}
	dk, err := crypto.DeriveKey(root, dataKeyContext)
	if err != nil {
		crypto.Zero(root)
		return storage.Wrap("derive key", m.path, err)
	}
	m.root, m.dataKey = root, dk
	return nil
}

func (m *KeyManager) loadOrCreate() ([]byte, error) {
	raw, err := os.ReadFile(m.path)
	switch {
	case err == nil:
		return decodeKey(m.path, raw)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, storage.Wrap("read key", m.path, err)
	}

	root, err := crypto.GenerateKey()
	if err != nil {
		return nil, storage.Wrap("generate key", m.path, err)
	}
	encoded := keyEncoding.EncodeToString(root) + "\n"
	if err := storage.WriteFileAtomic(m.path, []byte(encoded)); err != nil {
		return nil, storage.Wrap("write key", m.path, err)
	}
	m.log.Info().Str("path", m.path).Msg("generated new encryption key")
	return root, nil
}

func decodeKey(path string, raw []byte) ([]byte, error) {
	text := bytes.TrimSpace(raw)
	root := make([]byte, keyEncoding.DecodedLen(len(text)))
	n, err := keyEncoding.Decode(root, text)
	if err != nil {
		return nil, storage.Wrap("decode key", path, err)
	}
	if n != crypto.KeySize {
		return nil, storage.Wrap("decode key", path, fmt.Errorf("key is %d bytes, want %d", n, crypto.KeySize))
	}
	return root[:n], nil
}
