// Package lockfile coordinates processes that touch the same document.
//
// DocLock is a reader/writer lock on a sidecar file next to the document:
// runs and question edits take it exclusively, status and validate take it
// shared. WatchLock keeps a second watcher from driving the same document.
package lockfile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
)

const (
	// DefaultTimeout bounds how long Acquire waits for another process.
	DefaultTimeout = 30 * time.Second

	pollInterval = 50 * time.Millisecond
)

// DocLock is a file lock guarding one document.
type DocLock struct {
	flock *flock.Flock
	mode  string
}

// LockPath returns the sidecar lock file for a document: .<name>.lock in the
// same directory.
func LockPath(docPath string) string {
	return filepath.Join(filepath.Dir(docPath), "."+filepath.Base(docPath)+".lock")
}

// NewDocLock returns an unheld lock for docPath.
func NewDocLock(docPath string) *DocLock {
	return &DocLock{flock: flock.New(LockPath(docPath))}
}

// Acquire takes the lock, polling until timeout. A zero timeout tries once.
func (l *DocLock) Acquire(ctx context.Context, exclusive bool, timeout time.Duration) error {
	mode := "shared"
	try := l.flock.TryRLock
	if exclusive {
		mode = "exclusive"
		try = l.flock.TryLock
	}

	start := time.Now()
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		locked, err := try()
		if err != nil {
			return fmt.Errorf("failed to acquire %s document lock: %w", mode, err)
		}
		if locked {
			l.mode = mode
			debug.Logf("acquired %s document lock after %v: %s", mode, time.Since(start), l.flock.Path())
			return nil
		}
		if timeout <= 0 {
			return fmt.Errorf("timeout waiting for %s document lock after 0s (another orchestrator process is using %s)", mode, l.flock.Path())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("timeout waiting for %s document lock after %v (another orchestrator process is using %s)",
				mode, time.Since(start).Round(time.Millisecond), l.flock.Path())
		case <-time.After(pollInterval):
		}
	}
}

// Release releases the lock. Safe to call more than once.
func (l *DocLock) Release() error {
	if l.mode == "" {
		return nil
	}
	debug.Logf("releasing %s document lock: %s", l.mode, l.flock.Path())
	l.mode = ""
	return l.flock.Unlock()
}

// WithExclusive runs fn while holding the document's exclusive lock.
func WithExclusive(ctx context.Context, docPath string, timeout time.Duration, fn func() error) error {
	return with(ctx, docPath, true, timeout, fn)
}

// WithShared runs fn while holding the document's shared lock.
func WithShared(ctx context.Context, docPath string, timeout time.Duration, fn func() error) error {
	return with(ctx, docPath, false, timeout, fn)
}

func with(ctx context.Context, docPath string, exclusive bool, timeout time.Duration, fn func() error) error {
	lock := NewDocLock(docPath)
	if err := lock.Acquire(ctx, exclusive, timeout); err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	return fn()
}
