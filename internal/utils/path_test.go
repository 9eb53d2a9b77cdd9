package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalizePath(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	canonicalCwd, _ := filepath.EvalSymlinks(cwd)

	for _, in := range []string{".", ""} {
		got := CanonicalizePath(in)
		if got != cwd && got != canonicalCwd {
			t.Errorf("CanonicalizePath(%q) = %q, want %q", in, got, canonicalCwd)
		}
	}
	if got := CanonicalizePath("/definitely/not/here"); got != "/definitely/not/here" {
		t.Errorf("missing path should stay absolute: %q", got)
	}
}

func TestCanonicalizePathSymlink(t *testing.T) {
	tmpDir := t.TempDir()
	link := filepath.Join(tmpDir, "link")
	if err := os.Symlink(tmpDir, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	want, _ := filepath.EvalSymlinks(tmpDir)
	if got := CanonicalizePath(link); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !PathsEqual(link, tmpDir) {
		t.Error("a symlink and its target should compare equal")
	}
	if PathsEqual(tmpDir, filepath.Join(tmpDir, "other")) {
		t.Error("different paths compared equal")
	}
}

func TestResolveForWrite(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "target.md")
	if err := os.WriteFile(target, []byte("test"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveForWrite(target)
	if err != nil || got != target {
		t.Errorf("regular file: got %q, %v", got, err)
	}

	newFile := filepath.Join(tmpDir, "new.md")
	got, err = ResolveForWrite(newFile)
	if err != nil || got != newFile {
		t.Errorf("missing file: got %q, %v", got, err)
	}

	link := filepath.Join(tmpDir, "link.md")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	got, err = ResolveForWrite(link)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS /var is itself a symlink.
	wantTarget, _ := filepath.EvalSymlinks(target)
	if got != wantTarget {
		t.Errorf("symlink: got %q, want %q", got, wantTarget)
	}
}

func TestRenameWithRetry(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	if err := os.WriteFile(src, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := DefaultRenameRetry(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("destination missing: %v", err)
	}
	if err := RenameWithRetry(src, dst, 0, 0); err == nil {
		t.Error("renaming a missing file should fail")
	}
}
