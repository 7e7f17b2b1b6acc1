package rotation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	appErrors "backup-rotator/internal/errors"
)

// LockFileName is the advisory lock file created in the local root
const LockFileName = ".backup-rotator.lock"

// RunLock keeps a second rotation from running against the same local root
type RunLock struct {
	fl *flock.Flock
}

// AcquireLock takes the run lock without waiting. It fails with a lock
// error when another process holds it.
func AcquireLock(localRoot string) (*RunLock, error) {
	if err := os.MkdirAll(localRoot, 0755); err != nil {
		return nil, appErrors.NewLockError("failed to create local root", err)
	}

	path := filepath.Join(localRoot, LockFileName)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, appErrors.NewLockError(fmt.Sprintf("failed to lock %s", path), err)
	}
	if !locked {
		return nil, appErrors.NewLockError(fmt.Sprintf("another run holds %s", path), nil)
	}
	return &RunLock{fl: fl}, nil
}

// Path returns the lock file path
func (l *RunLock) Path() string {
	return l.fl.Path()
}

// Release unlocks the lock file. The file itself is left in place.
func (l *RunLock) Release() error {
	return l.fl.Unlock()
}
