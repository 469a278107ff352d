// Package atomicfile is the shared write-temp+fsync+rename primitive used
// by every component that persists a JSON document to a single well-known
// path (the Session Manager's state file and the Tool-Help Cache), plus
// the cross-process advisory lock guarding concurrent writers to it.
// Extracted from the Session Manager's original persistence code so the
// two components share one durability implementation instead of two
// copies of the same write path.
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock acquires an exclusive cross-process advisory lock on path+".lock",
// blocking until it is available. The caller must call Unlock when done.
func Lock(path string) (*flock.Flock, error) {
	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, err
	}
	return fl, nil
}

// ReadOrEmpty returns the bytes at path, or an empty (nil-length) slice
// with no error if path does not exist or is empty.
func ReadOrEmpty(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteAtomic writes data to path by creating a temp file in the same
// directory, fsyncing it, and renaming it over path. A reader can never
// observe a partially written file, including across a crash between the
// write and the rename.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".atomicfile-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
