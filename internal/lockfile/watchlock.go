package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLockBusy is returned when another process holds the lock.
var ErrLockBusy = errors.New("lock already held by another process")

// LockInfo is written into a watch lock so other processes can report who
// holds it.
type LockInfo struct {
	PID       int       `json:"pid"`
	Document  string    `json:"document"`
	StartedAt time.Time `json:"started_at"`
}

// WatchLock is held by `orchestrator watch` for as long as it runs.
type WatchLock struct {
	f *os.File
}

// WatchLockPath is the watch lock for a document.
func WatchLockPath(docPath string) string {
	return filepath.Join(filepath.Dir(docPath), "."+filepath.Base(docPath)+".watch")
}

// AcquireWatchLock takes the watch lock for docPath without blocking. When
// another live process holds it the error wraps ErrLockBusy and names the
// holder's PID.
func AcquireWatchLock(docPath string) (*WatchLock, error) {
	path := WatchLockPath(docPath)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 - derived from the document path
	if err != nil {
		return nil, fmt.Errorf("failed to open watch lock: %w", err)
	}
	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockBusy) {
			if info, rerr := readLockInfo(path); rerr == nil && isProcessRunning(info.PID) {
				return nil, fmt.Errorf("%w: %s is already watched by pid %d", ErrLockBusy, docPath, info.PID)
			}
			return nil, fmt.Errorf("%w: %s", ErrLockBusy, docPath)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	info := LockInfo{PID: os.Getpid(), Document: docPath, StartedAt: time.Now().UTC()}
	data, _ := json.Marshal(info)
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt(data, 0)
	}
	return &WatchLock{f: f}, nil
}

// Release unlocks and removes the watch lock.
func (l *WatchLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	path := l.f.Name()
	_ = flockUnlock(l.f)
	err := l.f.Close()
	l.f = nil
	_ = os.Remove(path)
	return err
}

// ReadWatchLock reports who holds the watch lock for docPath.
func ReadWatchLock(docPath string) (*LockInfo, error) {
	return readLockInfo(WatchLockPath(docPath))
}

// readLockInfo accepts the JSON form and a bare PID.
func readLockInfo(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path) // #nosec G304 - lock file path
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err == nil {
		return &info, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid lock file format: %s", path)
	}
	return &LockInfo{PID: pid}, nil
}
