package models

import "time"

// AuditEntry records a single vault operation. It never carries secrets or codes.
type AuditEntry struct {
	Timestamp time.Time
	Operation string
	AccountID string
	Name      string
	Status    string
	Error     string
}

// Audit status values.
const (
	AuditSuccess = "success"
	AuditFailure = "failure"
)
