// Package filelock serializes report writes between concurrent covrun
// processes. Shards of one CI job often write under the same
// coverage_reports directory, so every artifact write takes an exclusive
// lock and lands through a rename.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockSuffix is appended to an artifact path to name its lock file.
const lockSuffix = ".lock"

// LockPath returns the lock file guarding path.
func LockPath(path string) string {
	return path + lockSuffix
}

// WriteFile replaces path with data while holding the exclusive lock.
// Readers never see a partially written file.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	lock := flock.New(LockPath(path))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", path, err)
	}
	defer lock.Unlock()

	return atomicWrite(path, data)
}

// ReadFile reads path under the shared lock so a concurrent WriteFile is
// never observed halfway.
func ReadFile(path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	lock := flock.New(LockPath(path))
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire read lock on %s: %w", path, err)
	}
	defer lock.Unlock()

	return os.ReadFile(path)
}

// IsLockFile reports whether name is a lock file created by this package.
func IsLockFile(name string) bool {
	return filepath.Ext(name) == lockSuffix
}

func atomicWrite(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}
