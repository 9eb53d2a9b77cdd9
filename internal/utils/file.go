// Package utils holds small filesystem helpers shared by the document store
// and the watcher.
package utils

import (
	"fmt"
	"os"
	"runtime"
	"time"
)

// RenameWithRetry renames oldPath to newPath. On Windows a rename over a file
// that an editor or indexer holds open fails with "Access is denied", so it
// retries with doubling delays there. Elsewhere it tries once.
func RenameWithRetry(oldPath, newPath string, maxRetries int, initialDelay time.Duration) error {
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := os.Rename(oldPath, newPath)
		if err == nil {
			return nil
		}
		lastErr = err

		if runtime.GOOS != "windows" {
			break
		}
		if attempt < maxRetries {
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("rename failed after %d attempt(s): %w", maxRetries+1, lastErr)
}

// DefaultRenameRetry retries 3 times starting at 100ms.
func DefaultRenameRetry(oldPath, newPath string) error {
	return RenameWithRetry(oldPath, newPath, 3, 100*time.Millisecond)
}
