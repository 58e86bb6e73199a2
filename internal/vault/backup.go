package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/org/authvault/internal/secret"
	"github.com/org/authvault/internal/storage"
	"github.com/org/authvault/pkg/models"
)

// Backup writes the current vault, wrapped in a versioned envelope and
// encrypted with the vault key, to path. The backup is only restorable with
// the same key file.
func (s *Store) Backup(path string) error {
	err := s.backup(path)
	s.record("backup", "", "", err)
	return err
}

func (s *Store) backup(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.load()
	if err != nil {
		return err
	}
	env := models.BackupEnvelope{
		BackupTime: models.NewTimestamp(s.now()),
		Version:    models.BackupVersion,
		Data:       v,
	}
	plain, err := json.Marshal(env)
	if err != nil {
		return storage.Wrap("encode backup", path, err)
	}
	blob, err := s.seal(plain, path)
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(path, blob); err != nil {
		return storage.Wrap("write backup", path, err)
	}
	s.log.Debug().Str("path", path).Int("accounts", len(v.Accounts)).Msg("vault backed up")
	return nil
}

// Restore replaces the vault with the contents of an encrypted backup. Both
// an envelope and a bare vault document are accepted. It returns the number
// of restored accounts.
func (s *Store) Restore(path string) (int, error) {
	n, err := s.restore(path)
	s.record("restore", "", "", err)
	return n, err
}

func (s *Store) restore(path string) (int, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return 0, storage.Wrap("read backup", path, err)
	}
	plain, err := s.open(blob, path)
	if err != nil {
		return 0, err
	}
	return s.importDocument(plain, path)
}

// ExportPlain writes the vault as unencrypted, indented JSON. The file holds
// every secret in the clear.
func (s *Store) ExportPlain(path string) error {
	err := s.exportPlain(path)
	s.record("export", "", "", err)
	return err
}

func (s *Store) exportPlain(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.load()
	if err != nil {
		return err
	}
	plain, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return storage.Wrap("encode export", path, err)
	}
	if err := storage.WriteFileAtomic(path, append(plain, '\n')); err != nil {
		return storage.Wrap("write export", path, err)
	}
	s.log.Warn().Str("path", path).Msg("vault exported without encryption")
	return nil
}

// ImportPlain replaces the vault with an unencrypted JSON document written by
// ExportPlain. It returns the number of imported accounts.
func (s *Store) ImportPlain(path string) (int, error) {
	n, err := s.importPlain(path)
	s.record("import", "", "", err)
	return n, err
}

func (s *Store) importPlain(path string) (int, error) {
	plain, err := os.ReadFile(path)
	if err != nil {
		return 0, storage.Wrap("read import", path, err)
	}
	return s.importDocument(plain, path)
}

func (s *Store) importDocument(plain []byte, path string) (int, error) {
	v, err := decodeDocument(plain)
	if err != nil {
		return 0, err
	}
	clean, err := s.normalizeDocument(v)
	if err != nil {
		return 0, err
	}
	if err := s.replace(clean); err != nil {
		return 0, err
	}
	s.log.Debug().Str("path", path).Int("accounts", len(clean.Accounts)).Msg("vault replaced")
	return len(clean.Accounts), nil
}

// decodeDocument accepts a backup envelope (identified by its data field) or
// a bare vault document.
func decodeDocument(plain []byte) (*models.Vault, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(plain, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if _, ok := probe["data"]; ok {
		var env struct {
			Data *models.Vault `json:"data"`
		}
		if err := json.Unmarshal(plain, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		if env.Data == nil {
			return nil, fmt.Errorf("%w: backup has no data", ErrInvalidDocument)
		}
		return env.Data, nil
	}

	if _, ok := probe["accounts"]; !ok {
		return nil, fmt.Errorf("%w: no accounts field", ErrInvalidDocument)
	}
	v := &models.Vault{}
	if err := json.Unmarshal(plain, v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return v, nil
}

// normalizeDocument checks every invariant of an incoming vault and returns a
// cleaned copy. Missing ids and timestamps are filled in.
func (s *Store) normalizeDocument(v *models.Vault) (*models.Vault, error) {
	out := &models.Vault{Accounts: make([]models.Account, 0, len(v.Accounts))}
	ids := make(map[string]bool, len(v.Accounts))
	names := make(map[string]bool, len(v.Accounts))
	now := models.NewTimestamp(s.now())

	for i, a := range v.Accounts {
		name, err := validateName(a.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: account %d: %w", ErrInvalidDocument, i, err)
		}
		if names[name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidDocument, name)
		}
		names[name] = true

		canonical, err := secret.Normalize(a.Secret)
		if err != nil {
			return nil, fmt.Errorf("%w: account %q: %w", ErrInvalidDocument, name, err)
		}

		if a.ID == "" {
			a.ID = s.newID()
		}
		if ids[a.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidDocument, a.ID)
		}
		ids[a.ID] = true

		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = a.CreatedAt
		}
		a.Name = name
		a.Secret = canonical
		a.Note = strings.TrimSpace(a.Note)
		out.Accounts = append(out.Accounts, a)
	}
	return out, nil
}
