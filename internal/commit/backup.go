package commit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

// backupTimeLayout names backup files by creation time
const backupTimeLayout = "20060102_150405"

// BackupManager writes timestamped copies of a document next to the
// original and prunes copies beyond the retention count.
type BackupManager struct {
	retention int
}

// NewBackupManager creates a backup manager. retention <= 0 disables
// pruning.
func NewBackupManager(retention int) *BackupManager {
	return &BackupManager{retention: retention}
}

// Create copies the document's current on-disk bytes to
// <stem>_backup_YYYYMMDD_HHMMSS<ext> in the same directory and returns
// the backup path.
func (m *BackupManager) Create(docPath string) (string, error) {
	data, err := os.ReadFile(docPath)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeBackupFailed, "failed to read document for backup", err)
	}

	dir := filepath.Dir(docPath)
	base := filepath.Base(docPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	name := fmt.Sprintf("%s_backup_%s%s", stem, time.Now().Format(backupTimeLayout), ext)
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrap(errors.ErrCodeBackupFailed, "failed to write backup file", err)
	}

	m.prune(dir, stem, ext)

	logger.Debug("Backup written", zap.String("path", path))
	return path, nil
}

// prune removes the oldest backups of one document beyond the retention
// count. Timestamped names sort chronologically, so name order is age
// order. Removal failures are logged and ignored.
func (m *BackupManager) prune(dir, stem, ext string) {
	if m.retention <= 0 {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("Failed to list backup directory", zap.String("dir", dir), zap.Error(err))
		return
	}

	prefix := stem + "_backup_"
	var backups []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ext) {
			backups = append(backups, name)
		}
	}
	if len(backups) <= m.retention {
		return
	}

	sort.Strings(backups)
	for _, name := range backups[:len(backups)-m.retention] {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			logger.Warn("Failed to prune backup", zap.String("path", path), zap.Error(err))
			continue
		}
		logger.Debug("Pruned backup", zap.String("path", path))
	}
}
