package commit

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/pkg/errors"
)

func writeDoc(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestBackupCreate(t *testing.T) {
	dir := t.TempDir()
	original := []byte("document bytes")
	docPath := writeDoc(t, dir, "report.docx", original)

	m := NewBackupManager(5)
	backupPath, err := m.Create(docPath)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(backupPath))
	name := filepath.Base(backupPath)
	assert.Regexp(t, `^report_backup_\d{8}_\d{6}\.docx$`, name)

	copied, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, original, copied)

	// The source document is untouched.
	src, err := os.ReadFile(docPath)
	require.NoError(t, err)
	assert.Equal(t, original, src)
}

func TestBackupCreate_MissingDocument(t *testing.T) {
	m := NewBackupManager(5)
	_, err := m.Create(filepath.Join(t.TempDir(), "gone.docx"))
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrCodeBackupFailed, appErr.Code)
}

func TestBackupPrune(t *testing.T) {
	dir := t.TempDir()
	docPath := writeDoc(t, dir, "report.docx", []byte("doc"))

	// Older backups, written directly so the timestamps differ.
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("report_backup_20240101_12000%d.docx", i)
		writeDoc(t, dir, name, []byte("old"))
	}
	// An unrelated file that matches neither prefix nor extension rules.
	writeDoc(t, dir, "report_notes.txt", []byte("keep"))

	m := NewBackupManager(3)
	_, err := m.Create(docPath)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var backups []string
	for _, e := range entries {
		if e.Name() != "report.docx" && e.Name() != "report_notes.txt" {
			backups = append(backups, e.Name())
		}
	}
	assert.Len(t, backups, 3)

	// The oldest was removed first.
	assert.NoFileExists(t, filepath.Join(dir, "report_backup_20240101_120000.docx"))
	assert.FileExists(t, filepath.Join(dir, "report_notes.txt"))
}

func TestBackupPrune_Disabled(t *testing.T) {
	dir := t.TempDir()
	docPath := writeDoc(t, dir, "report.docx", []byte("doc"))

	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("report_backup_20240101_12000%d.docx", i)
		writeDoc(t, dir, name, []byte("old"))
	}

	m := NewBackupManager(0)
	_, err := m.Create(docPath)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 8, "six old backups, the new one and the document itself")
}

func TestBackupPrune_IgnoresOtherStems(t *testing.T) {
	dir := t.TempDir()
	docPath := writeDoc(t, dir, "report.docx", []byte("doc"))
	writeDoc(t, dir, "summary_backup_20240101_120000.docx", []byte("other"))

	m := NewBackupManager(1)
	_, err := m.Create(docPath)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "summary_backup_20240101_120000.docx"))
}
