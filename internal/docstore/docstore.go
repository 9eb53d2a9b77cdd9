// Package docstore reads documents from disk and writes them back with a
// backup taken first and an atomic replace.
package docstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/utils"
)

// Load reads and parses a document.
func Load(path string) (*document.Document, error) {
	data, err := os.ReadFile(path) // #nosec G304 - user-supplied document path
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return document.Parse(string(data)), nil
}

// Store writes documents. BackupDir should live outside any versioned tree.
type Store struct {
	BackupDir string
	Now       func() time.Time
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Save writes doc to path. It does nothing when the file already holds the
// same text. Otherwise the current file is copied into the backup directory
// before being atomically replaced. The backup path is returned, or "" when
// nothing was written or there was no previous file.
func (s *Store) Save(path string, doc *document.Document) (backup string, written bool, err error) {
	target, err := utils.ResolveForWrite(path)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	data := []byte(doc.String())

	mode := os.FileMode(0o644)
	old, err := os.ReadFile(target) // #nosec G304 - resolved document path
	switch {
	case err == nil:
		if bytes.Equal(old, data) {
			return "", false, nil
		}
		if info, statErr := os.Stat(target); statErr == nil {
			mode = info.Mode().Perm()
		}
		backup, err = s.backup(target, old)
		if err != nil {
			return "", false, err
		}
	case os.IsNotExist(err):
	default:
		return "", false, fmt.Errorf("failed to read %s: %w", target, err)
	}

	if err := WriteAtomic(target, data, mode); err != nil {
		return backup, false, err
	}
	debug.Logf("docstore: wrote %s (%d bytes, backup %s)", target, len(data), backup)
	return backup, true, nil
}

// BackupName is <name>-<dirhash>-<timestamp>.bak. The short hash of the
// document's directory keeps same-named documents apart.
func BackupName(path string, at time.Time) string {
	sum := sha256.Sum256([]byte(utils.CanonicalizePath(filepath.Dir(path))))
	stamp := strings.ReplaceAll(at.UTC().Format("20060102T150405.000Z"), ".", "")
	return fmt.Sprintf("%s-%s-%s.bak", filepath.Base(path), hex.EncodeToString(sum[:4]), stamp)
}

func (s *Store) backup(path string, data []byte) (string, error) {
	if s.BackupDir == "" {
		return "", fmt.Errorf("no backup directory configured")
	}
	if err := os.MkdirAll(s.BackupDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	dst := filepath.Join(s.BackupDir, BackupName(path, s.now()))
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return dst, nil
}

// WriteAtomic writes data to a temp file in path's directory, syncs it, and
// renames it over path.
func WriteAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := utils.DefaultRenameRetry(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
