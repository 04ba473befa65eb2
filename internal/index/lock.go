package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock serializes indexing runs across processes. Only one run may touch
// the vector index and checkpoint at a time; a second vab process must fail
// fast rather than corrupt either. Backed by gofrs/flock so it works on
// every platform.
type RunLock struct {
	path string
	fl   *flock.Flock
	held bool
}

// NewRunLock scopes a lock to the given index directory. The lock file is
// <dir>/.index.lock.
func NewRunLock(dir string) *RunLock {
	p := filepath.Join(dir, ".index.lock")
	return &RunLock{path: p, fl: flock.New(p)}
}

// TryLock attempts a non-blocking acquire. A false return with nil error
// means another run holds the lock.
func (l *RunLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.held = ok
	return ok, nil
}

// Unlock releases the lock. Calling it again, or without holding the lock,
// is a no-op.
func (l *RunLock) Unlock() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (l *RunLock) Path() string { return l.path }

// IsLocked reports whether this process currently holds the lock.
func (l *RunLock) IsLocked() bool { return l.held }
