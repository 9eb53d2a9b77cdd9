//go:build js && wasm

package lockfile

import "os"

// WASM is single-process, so locking is a no-op.
func flockExclusive(*os.File) error { return nil }

func flockUnlock(*os.File) error { return nil }

func isProcessRunning(int) bool { return false }
