package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// LockFileName is the advisory lock taken in an output directory while a
// build publishes into it.
const LockFileName = ".tinkybink.lock"

// LockDir takes an exclusive flock on dir's lock file, creating dir if
// needed, and blocks until it is free. The returned function releases it.
// The lock file itself is left in place.
func LockDir(dir string) (unlock func() error, err error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LockFileName), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("locking %s: %w", dir, err)
	}
	return func() error {
		defer func() { _ = f.Close() }()
		return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}, nil
}
