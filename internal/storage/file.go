package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// FileBackend stores the blob in a single file on the local filesystem.
type FileBackend struct {
	path string
	lock *flock.Flock
}

// NewFileBackend returns a backend for path. Nothing is touched on disk until first use.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path, lock: flock.New(path + ".lock")}
}

func (b *FileBackend) Path() string { return b.path }

// Read returns nil, nil when the file does not exist.
func (b *FileBackend) Read() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, Wrap("read", b.path, err)
	}
	return data, nil
}

// Write writes to a temp file in the same directory, syncs it and renames it
// over the target, so a crash leaves either the old or the new version.
func (b *FileBackend) Write(data []byte) error {
	if err := WriteFileAtomic(b.path, data); err != nil {
		return Wrap("write", b.path, err)
	}
	return nil
}

// Lock takes an exclusive flock on <path>.lock, blocking until it is free.
func (b *FileBackend) Lock() (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(b.path), dirMode); err != nil {
		return nil, Wrap("lock", b.path, err)
	}
	if err := b.lock.Lock(); err != nil {
		return nil, Wrap("lock", b.path, err)
	}
	return b.lock.Unlock, nil
}

// WriteFileAtomic writes data to path via a synced temp file and rename.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
