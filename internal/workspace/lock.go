// Package workspace guards the local Narravox data directory against
// concurrent sessions. Two editing sessions flushing against the same
// snapshot cache would corrupt each other's dirty tracking, so every
// long-running command takes an exclusive file lock first.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned by [Acquire] when another process holds the lock.
var ErrLocked = errors.New("workspace: locked by another narravox process")

// Lock is an exclusive hold on a workspace. Release it when the session ends.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire takes an exclusive lock for the workspace containing dataPath.
// The lock file lives next to the data file, so sessions pointed at
// different cache paths do not contend. The directory is created if needed.
func Acquire(dataPath string) (*Lock, error) {
	if dataPath == "" {
		return nil, errors.New("workspace: data path is empty")
	}
	dir := filepath.Dir(dataPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, "narravox.lock")
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("workspace: acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	return &Lock{path: path, fl: fl}, nil
}

// Release drops the lock. Safe to call on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("workspace: release lock %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file location, for diagnostics.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}
