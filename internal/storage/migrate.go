package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FilePair names a vault data file and its key file.
type FilePair struct {
	Data string
	Key  string
}

// MigrationResult reports which legacy files were copied.
type MigrationResult struct {
	DataCopied bool
	KeyCopied  bool
}

// MigrateLegacy copies legacy files into the current location, one file at a
// time, only when the current file is absent and the legacy one exists.
// It never removes or overwrites anything.
func MigrateLegacy(legacy, current FilePair) (MigrationResult, error) {
	var res MigrationResult
	if exists(current.Data) && exists(current.Key) {
		return res, nil
	}

	copied, err := copyIfMissing(legacy.Key, current.Key)
	if err != nil {
		return res, Wrap("migrate key", legacy.Key, err)
	}
	res.KeyCopied = copied

	// Legacy data is only readable with the legacy key.
	if !copied && !sameContent(legacy.Key, current.Key) {
		return res, nil
	}

	copied, err = copyIfMissing(legacy.Data, current.Data)
	if err != nil {
		return res, Wrap("migrate data", legacy.Data, err)
	}
	res.DataCopied = copied
	return res, nil
}

func copyIfMissing(src, dst string) (bool, error) {
	if src == "" || dst == "" || src == dst || exists(dst) || !exists(src) {
		return false, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return false, fmt.Errorf("reading legacy file: %w", err)
	}
	if err := WriteFileAtomic(dst, data); err != nil {
		return false, err
	}
	return true, nil
}

func sameContent(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	da, err := os.ReadFile(a)
	if err != nil {
		return false
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false
	}
	return bytes.Equal(bytes.TrimSpace(da), bytes.TrimSpace(db))
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
