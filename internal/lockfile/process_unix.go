//go:build unix

package lockfile

import "syscall"

func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false // 0 would signal our own process group
	}
	return syscall.Kill(pid, 0) == nil
}
