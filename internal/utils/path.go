package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveForWrite returns the path to write to. A symlink resolves to its
// target so the link survives an atomic replace; a missing path is returned
// unchanged.
func ResolveForWrite(path string) (string, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return "", err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return filepath.EvalSymlinks(path)
	}
	return path, nil
}

// CanonicalizePath makes path absolute and resolves symlinks, falling back to
// the best form it could compute.
func CanonicalizePath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	canonical, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return absPath
	}
	return canonical
}

// PathsEqual compares two paths after canonicalizing them, ignoring case on
// case-insensitive filesystems (darwin, windows).
func PathsEqual(path1, path2 string) bool {
	return normalizeForComparison(path1) == normalizeForComparison(path2)
}

func normalizeForComparison(path string) string {
	if path == "" {
		return ""
	}
	canonical := CanonicalizePath(path)
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		canonical = strings.ToLower(canonical)
	}
	return canonical
}
