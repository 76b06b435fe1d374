package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockFile acquires an exclusive advisory lock on a .migrate.lock file
// adjacent to the database, blocking (with periodic retries) until it is
// available or ctx is done. Returns the lock handle; pass to unlockFile when done.
func lockFile(ctx context.Context, dbPath string) (*flock.Flock, error) {
	lockPath := dbPath + ".migrate.lock"
	if dir := filepath.Dir(lockPath); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire lock %s: timed out", lockPath)
	}
	return fl, nil
}

// unlockFile releases the advisory lock. Nil-safe.
func unlockFile(fl *flock.Flock) {
	if fl == nil {
		return
	}
	_ = fl.Unlock()
}
