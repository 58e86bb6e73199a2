package vault

import "errors"

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrInvalidName          = errors.New("invalid account name")
	// ErrCorruptVault marks a present vault or backup file that cannot be
	// decrypted or parsed. It is always wrapped in a storage error.
	ErrCorruptVault = errors.New("vault is corrupt or unreadable")
	// ErrInvalidDocument is returned when a restored or imported document
	// violates the vault invariants.
	ErrInvalidDocument = errors.New("invalid vault document")
)
