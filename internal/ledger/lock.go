package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"dreary/internal/services"
)

// RunLock is an exclusive per-account lock held for the duration of an import.
type RunLock struct {
	path string
	lock *flock.Flock
}

// Lock acquires the account lock under stateDir without blocking. A second
// import for the same account fails immediately.
func Lock(stateDir, did string) (*RunLock, error) {
	dir := filepath.Join(stateDir, "locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	name := strings.NewReplacer(":", "_", "/", "_").Replace(did)
	path := filepath.Join(dir, name+".lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "ledger", "lock",
			fmt.Sprintf("another dreary import is already running for %s", did), nil)
	}
	return &RunLock{path: path, lock: lock}, nil
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.path
}

// Release unlocks the account.
func (l *RunLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
