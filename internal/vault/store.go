// Package vault implements the encrypted account store. Every operation
// loads the vault file, applies its change and writes the whole document
// back; nothing is cached between calls.
package vault

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/org/authvault/internal/audit"
	"github.com/org/authvault/internal/crypto"
	"github.com/org/authvault/internal/secret"
	"github.com/org/authvault/internal/storage"
	"github.com/org/authvault/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxNameLength bounds account names, counted in characters.
const MaxNameLength = 100

// KeyProvider supplies the data encryption key.
type KeyProvider interface {
	Key() ([]byte, error)
}

// LegacyKeyProvider is implemented by key providers that can also supply the
// raw file key, which older releases used to encrypt vaults and backups.
type LegacyKeyProvider interface {
	RootKey() ([]byte, error)
}

// Store is the encrypted CRUD and backup surface over one vault file.
// Mutations are serialized by an in-process mutex and the backend lock.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	keys    KeyProvider
	now     func() time.Time
	newID   func() string
	log     zerolog.Logger
	auditor audit.Auditor
	strict  bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the account id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithAuditor records every mutation to a.
func WithAuditor(a audit.Auditor) Option {
	return func(s *Store) { s.auditor = a }
}

// WithStrictLoad controls how a present but unreadable vault file is treated.
// When strict (the default) Load returns an error matching ErrCorruptVault.
// Otherwise the failure is logged and an empty vault is returned, and the
// next mutation overwrites the unreadable file.
func WithStrictLoad(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// New returns a Store persisting through backend and encrypting with keys.
func New(backend storage.Backend, keys KeyProvider, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		keys:    keys,
		now:     time.Now,
		newID:   uuid.NewString,
		log:     log.Logger,
		auditor: audit.Nop(),
		strict:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the vault file location.
func (s *Store) Path() string {
	return s.backend.Path()
}

// Load reads and decrypts the vault. An absent or empty file is an empty vault.
func (s *Store) Load() (*models.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.load()
	observe("load", err)
	return v, err
}

// Save validates and writes v, replacing the stored vault.
func (s *Store) Save(v *models.Vault) error {
	clean, err := s.normalizeDocument(v)
	if err == nil {
		err = s.replace(clean)
	}
	s.record("save", "", "", err)
	return err
}

// List returns all accounts in stored order.
func (s *Store) List() ([]models.Account, error) {
	v, err := s.Load()
	if err != nil {
		return nil, err
	}
	return v.Accounts, nil
}

// Get returns the account with the given id.
func (s *Store) Get(id string) (models.Account, error) {
	v, err := s.Load()
	if err != nil {
		return models.Account{}, err
	}
	i := v.Index(id)
	if i < 0 {
		return models.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return v.Accounts[i], nil
}

// Add creates an account. The secret is stored in canonical form and both
// timestamps are set to the current time.
func (s *Store) Add(name, rawSecret, note string) (models.Account, error) {
	acct, err := s.add(name, rawSecret, note)
	s.record("add", acct.ID, acct.Name, err)
	return acct, err
}

func (s *Store) add(name, rawSecret, note string) (models.Account, error) {
	name, err := validateName(name)
	if err != nil {
		return models.Account{}, err
	}
	canonical, err := secret.Normalize(rawSecret)
	if err != nil {
		return models.Account{}, err
	}

	var acct models.Account
	err = s.mutate(func(v *models.Vault) error {
		if v.HasName(name, "") {
			return fmt.Errorf("%w: %q", ErrAccountAlreadyExists, name)
		}
		acct = s.insert(v, name, canonical, note)
		return nil
	})
	if err != nil {
		return models.Account{Name: name}, err
	}
	return acct, nil
}

// Update replaces the name, secret and note of an account. The id and
// created_at are preserved and updated_at is refreshed.
func (s *Store) Update(id, name, rawSecret, note string) (models.Account, error) {
	acct, err := s.update(id, name, rawSecret, note)
	s.record("update", id, acct.Name, err)
	return acct, err
}

func (s *Store) update(id, name, rawSecret, note string) (models.Account, error) {
	name, err := validateName(name)
	if err != nil {
		return models.Account{}, err
	}
	canonical, err := secret.Normalize(rawSecret)
	if err != nil {
		return models.Account{}, err
	}

	var acct models.Account
	err = s.mutate(func(v *models.Vault) error {
		i := v.Index(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		if v.HasName(name, id) {
			return fmt.Errorf("%w: %q", ErrAccountAlreadyExists, name)
		}
		a := &v.Accounts[i]
		a.Name = name
		a.Secret = canonical
		a.Note = strings.TrimSpace(note)
		a.UpdatedAt = models.NewTimestamp(s.now())
		acct = *a
		return nil
	})
	if err != nil {
		return models.Account{Name: name}, err
	}
	return acct, nil
}

// Delete removes an account.
func (s *Store) Delete(id string) error {
	var name string
	err := s.mutate(func(v *models.Vault) error {
		i := v.Index(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		name = v.Accounts[i].Name
		v.Accounts = slices.Delete(v.Accounts, i, i+1)
		return nil
	})
	s.record("delete", id, name, err)
	return err
}

// insert appends a new account to v and returns it.
func (s *Store) insert(v *models.Vault, name, canonical, note string) models.Account {
	now := models.NewTimestamp(s.now())
	acct := models.Account{
		ID:        s.newID(),
		Name:      name,
		Secret:    canonical,
		Note:      strings.TrimSpace(note),
		CreatedAt: now,
		UpdatedAt: now,
	}
	v.Accounts = append(v.Accounts, acct)
	return acct
}

// mutate runs one locked load-modify-save cycle. fn's error aborts the
// cycle and leaves the stored vault untouched.
func (s *Store) mutate(fn func(v *models.Vault) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.backend.Lock()
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			s.log.Warn().Err(err).Str("path", s.backend.Path()).Msg("failed to release vault lock")
		}
	}()

	v, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(v); err != nil {
		return err
	}
	return s.save(v)
}

// replace overwrites the stored vault without reading it first.
func (s *Store) replace(v *models.Vault) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.backend.Lock()
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			s.log.Warn().Err(err).Str("path", s.backend.Path()).Msg("failed to release vault lock")
		}
	}()
	return s.save(v)
}

func (s *Store) load() (*models.Vault, error) {
	data, err := s.backend.Read()
	if err == nil && len(bytes.TrimSpace(data)) == 0 {
		accountsTotal.Set(0)
		return emptyVault(), nil
	}
	var v *models.Vault
	if err == nil {
		v, err = s.decodeVault(data)
	}
	if err != nil {
		if s.strict {
			return nil, err
		}
		s.log.Error().Err(err).Str("path", s.backend.Path()).
			Msg("vault file unreadable, continuing with an empty vault")
		return emptyVault(), nil
	}
	accountsTotal.Set(float64(len(v.Accounts)))
	return v, nil
}

func (s *Store) decodeVault(blob []byte) (*models.Vault, error) {
	plain, err := s.open(blob, s.backend.Path())
	if err != nil {
		return nil, err
	}
	v := &models.Vault{}
	if err := json.Unmarshal(plain, v); err != nil {
		return nil, corrupt("parse", s.backend.Path(), err)
	}
	if v.Accounts == nil {
		v.Accounts = []models.Account{}
	}
	return v, nil
}

func (s *Store) save(v *models.Vault) error {
	if v.Accounts == nil {
		v.Accounts = []models.Account{}
	}
	plain, err := json.Marshal(v)
	if err != nil {
		return storage.Wrap("encode", s.backend.Path(), err)
	}
	blob, err := s.seal(plain, s.backend.Path())
	if err != nil {
		return err
	}
	if err := s.backend.Write(blob); err != nil {
		return err
	}
	accountsTotal.Set(float64(len(v.Accounts)))
	return nil
}

func (s *Store) seal(plain []byte, path string) ([]byte, error) {
	key, err := s.keys.Key()
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(key)
	blob, err := crypto.Seal(plain, key)
	if err != nil {
		return nil, storage.Wrap("encrypt", path, err)
	}
	return blob, nil
}

func (s *Store) open(blob []byte, path string) ([]byte, error) {
	key, err := s.keys.Key()
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(key)
	plain, err := crypto.Open(blob, key)
	if err != nil {
		if legacy, ok := s.openLegacy(blob, path); ok {
			return legacy, nil
		}
		return nil, corrupt("decrypt", path, err)
	}
	return plain, nil
}

// openLegacy decrypts a file in the older Fernet format. The vault is
// rewritten in the current format by the next save.
func (s *Store) openLegacy(blob []byte, path string) ([]byte, bool) {
	lk, ok := s.keys.(LegacyKeyProvider)
	if !ok || !crypto.IsFernetToken(blob) {
		return nil, false
	}
	root, err := lk.RootKey()
	if err != nil {
		return nil, false
	}
	defer crypto.Zero(root)
	plain, err := crypto.OpenFernet(blob, root)
	if err != nil {
		return nil, false
	}
	s.log.Info().Str("path", path).Msg("read file in legacy format")
	return plain, true
}

// record counts the operation and writes an audit entry for it.
func (s *Store) record(op, id, name string, err error) {
	observe(op, err)

	entry := &models.AuditEntry{
		Timestamp: s.now().UTC(),
		Operation: op,
		AccountID: id,
		Name:      name,
		Status:    models.AuditSuccess,
	}
	if err != nil {
		entry.Status = models.AuditFailure
		entry.Error = err.Error()
		s.log.Debug().Err(err).Str("op", op).Str("account_id", id).Msg("vault operation failed")
	} else {
		s.log.Debug().Str("op", op).Str("account_id", id).Msg("vault operation")
	}
	s.auditor.Record(entry)
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if n := utf8.RuneCountInString(name); n > MaxNameLength {
		return "", fmt.Errorf("%w: %d characters, at most %d allowed", ErrInvalidName, n, MaxNameLength)
	}
	return name, nil
}

func corrupt(op, path string, err error) error {
	return storage.Wrap(op, path, fmt.Errorf("%w: %v", ErrCorruptVault, err))
}

func emptyVault() *models.Vault {
	return &models.Vault{Accounts: []models.Account{}}
}
