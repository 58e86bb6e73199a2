package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// BackupVersion is the envelope format tag written by backups.
const BackupVersion = "1.0"

// Account is one stored TOTP credential.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Secret    string    `json:"secret"` // canonical padded uppercase Base32
	Note      string    `json:"note"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// Vault is the decrypted vault document. Accounts keep insertion order.
type Vault struct {
	Accounts []Account `json:"accounts"`
}

// Index returns the position of the account with the given id, or -1.
func (v *Vault) Index(id string) int {
	for i := range v.Accounts {
		if v.Accounts[i].ID == id {
			return i
		}
	}
	return -1
}

// HasName reports whether any account other than exceptID is named name.
func (v *Vault) HasName(name, exceptID string) bool {
	for i := range v.Accounts {
		if v.Accounts[i].ID != exceptID && v.Accounts[i].Name == name {
			return true
		}
	}
	return false
}

// BackupEnvelope wraps a vault document inside a backup file.
type BackupEnvelope struct {
	BackupTime Timestamp `json:"backup_time"`
	Version    string    `json:"version"`
	Data       *Vault    `json:"data"`
}

// legacyLayouts are accepted when reading timestamps written without a zone offset.
var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is an ISO-8601 instant serialized as RFC 3339 in UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t, normalized to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	// Older exports carry local wall-clock time with no offset.
	for _, layout := range legacyLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}
