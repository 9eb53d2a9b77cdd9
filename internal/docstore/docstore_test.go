package docstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
)

const original = "<!-- section:goals -->\n## Goals\n\n<!-- PLACEHOLDER -->\n"

func setup(t *testing.T) (string, *Store) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements.md")
	require.NoError(t, os.WriteFile(path, []byte(original), 0o640))
	at := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	return path, &Store{BackupDir: filepath.Join(dir, "backups"), Now: func() time.Time { return at }}
}

func TestSaveBacksUpThenReplaces(t *testing.T) {
	path, store := setup(t)
	doc, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, original, doc.String())

	updated := document.Parse(strings.Replace(original, "<!-- PLACEHOLDER -->", "Ship it.", 1))
	backup, written, err := store.Save(path, updated)
	require.NoError(t, err)
	assert.True(t, written)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, updated.String(), string(got))

	saved, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, original, string(saved), "backup holds the previous content")
	assert.Equal(t, store.BackupDir, filepath.Dir(backup))
	assert.True(t, strings.HasPrefix(filepath.Base(backup), "requirements.md-"))
	assert.True(t, strings.HasSuffix(backup, "-20250115T103000000Z.bak"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm(), "permissions preserved")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp file left behind")
	}
}

func TestSaveUnchangedIsNoop(t *testing.T) {
	path, store := setup(t)
	doc, err := Load(path)
	require.NoError(t, err)

	backup, written, err := store.Save(path, doc)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Empty(t, backup)
	_, err = os.Stat(store.BackupDir)
	assert.True(t, os.IsNotExist(err), "no backup for an unchanged document")
}

func TestSaveNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.md")
	store := &Store{BackupDir: filepath.Join(dir, "backups")}

	backup, written, err := store.Save(path, document.Parse(original))
	require.NoError(t, err)
	assert.True(t, written)
	assert.Empty(t, backup)
}

func TestSaveThroughSymlink(t *testing.T) {
	path, store := setup(t)
	link := filepath.Join(filepath.Dir(path), "link.md")
	if err := os.Symlink(path, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	_, _, err := store.Save(link, document.Parse("changed\n"))
	require.NoError(t, err)

	fi, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeSymlink, "symlink must survive the replace")
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "changed\n", string(got))
}

func TestSaveRequiresBackupDir(t *testing.T) {
	path, store := setup(t)
	store.BackupDir = ""
	_, _, err := store.Save(path, document.Parse("changed\n"))
	require.Error(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(got), "document untouched when the backup fails")
}

func TestBackupNameSeparatesDirectories(t *testing.T) {
	at := time.Now()
	a := BackupName("/one/requirements.md", at)
	b := BackupName("/two/requirements.md", at)
	assert.NotEqual(t, a, b)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}
