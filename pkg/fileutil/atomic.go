// Package fileutil provides crash-safe file writes for the on-disk stores.
package fileutil

import (
	"os"
	"path/filepath"
	"strings"
)

// TempMarker appears in the names of in-flight temporary files. Readers
// and mirrors skip any file containing it.
const TempMarker = ".tmp."

// IsTemp reports whether name is an in-flight temporary file.
func IsTemp(name string) bool {
	return strings.Contains(name, TempMarker)
}

// WriteFileAtomic writes data to path so that readers observe either the
// previous content or the complete new content. The data is fsynced before
// the rename and the directory is fsynced after it.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+TempMarker+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true

	return syncDir(dir)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
