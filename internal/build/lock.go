package build

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock provides cross-process exclusivity for a build, using gofrs/flock
// so that two `kioku build` invocations against the same index directory
// never interleave writes. Per §5, a build holds this lock for the
// duration of the diff/embed/persist pipeline; queries never take it.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewLock creates a build lock rooted at <dir>/.build.lock.
func NewLock(dir string) *Lock {
	lockPath := filepath.Join(dir, ".build.lock")
	return &Lock{path: lockPath, flock: flock.New(lockPath)}
}

// Lock blocks until the exclusive lock is acquired.
func (l *Lock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire build lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking. Returns false,
// nil if another build currently holds it.
func (l *Lock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire build lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call multiple times.
func (l *Lock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return fmt.Errorf("failed to release build lock: %w", err)
	}
	l.locked = false
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// IsLocked reports whether this handle currently holds the lock.
func (l *Lock) IsLocked() bool { return l.locked }
