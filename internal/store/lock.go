package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

// LockFileName is the writer lock inside a storage root.
const LockFileName = ".ingest.lock"

// FileLock is the cross-process writer lock of a storage root. Only one
// process ingests into a root at a time; readers never take it.
type FileLock struct {
	flock *flock.Flock
	held  bool
}

// NewFileLock returns the lock of the storage root dir. Nothing touches the
// disk until the lock is taken.
func NewFileLock(dir string) *FileLock {
	return &FileLock{flock: flock.New(filepath.Join(dir, LockFileName))}
}

// Path returns <root>/.ingest.lock.
func (l *FileLock) Path() string { return l.flock.Path() }

func (l *FileLock) mkdir() error {
	if err := os.MkdirAll(filepath.Dir(l.Path()), 0o755); err != nil {
		return nxerrors.New(nxerrors.ErrCodeWriteFailed, "failed to create storage root", err)
	}
	return nil
}

// TryLock takes the lock if no other process holds it.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.mkdir(); err != nil {
		return false, err
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.held = l.held || ok
	return ok, nil
}

// LockContext polls for the lock every retry until ctx is done. A lock
// still held by another writer when ctx expires is reported as
// ERR_210_LOCKED.
func (l *FileLock) LockContext(ctx context.Context, retry time.Duration) error {
	if err := l.mkdir(); err != nil {
		return err
	}

	ok, err := l.flock.TryLockContext(ctx, retry)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nxerrors.New(nxerrors.ErrCodeLocked,
			fmt.Sprintf("storage is locked by another writer (%s)", l.Path()), ctx.Err()).
			WithSuggestion("wait for the running ingest to finish")
	}
	l.held = true
	return nil
}

// Unlock releases the lock. Unlocking a lock that is not held is a no-op.
func (l *FileLock) Unlock() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
