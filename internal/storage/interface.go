package storage

import (
	"errors"
	"fmt"
)

// ErrStorage matches every *Error via errors.Is.
var ErrStorage = errors.New("storage error")

// Error describes a failed I/O, encryption or decryption step on a file.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true for any *Error.
func (e *Error) Is(target error) bool { return target == ErrStorage }

// Wrap returns nil for a nil err, otherwise an *Error.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}

// Backend persists one opaque blob.
type Backend interface {
	// Read returns the stored bytes, or nil with no error if nothing is stored yet.
	Read() ([]byte, error)
	// Write replaces the stored bytes atomically.
	Write(data []byte) error
	// Lock takes an exclusive advisory lock for a load-modify-save cycle.
	Lock() (unlock func() error, err error)
	// Path identifies the blob location for logs and errors.
	Path() string
}
