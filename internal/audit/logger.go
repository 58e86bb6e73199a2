// Package audit writes an append-only trail of vault operations.
package audit

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/org/authvault/pkg/models"
	"github.com/rs/zerolog"
)

// Auditor records vault operations.
// Secret values must NEVER be passed here, only metadata.
type Auditor interface {
	Record(entry *models.AuditEntry)
}

// Logger writes audit entries as JSON lines.
type Logger struct {
	log    zerolog.Logger
	closer io.Closer
	now    func() time.Time
}

// NewLogger creates a Logger writing to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{
		log: zerolog.New(w),
		now: time.Now,
	}
}

// OpenFile creates a Logger appending to the file at path, creating it with
// mode 0600 when absent.
func OpenFile(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	l := NewLogger(f)
	l.closer = f
	return l, nil
}

// Record appends entry to the trail. Write failures are dropped so that
// auditing never blocks a vault operation.
func (l *Logger) Record(entry *models.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	ev := l.log.Log().
		Time("time", entry.Timestamp).
		Str("operation", entry.Operation).
		Str("status", entry.Status)
	if entry.AccountID != "" {
		ev = ev.Str("account_id", entry.AccountID)
	}
	if entry.Name != "" {
		ev = ev.Str("name", entry.Name)
	}
	if entry.Error != "" {
		ev = ev.Str("error", entry.Error)
	}
	ev.Send()
}

// Close releases the underlying file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

type nop struct{}

func (nop) Record(*models.AuditEntry) {}

// Nop returns an Auditor that discards every entry.
func Nop() Auditor { return nop{} }
