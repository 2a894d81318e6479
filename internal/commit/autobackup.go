package commit

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/logger"
)

// AutoBackupService periodically snapshots every loaded document to a
// timestamped backup, independent of commits.
type AutoBackupService struct {
	store    store.Store
	sections *section.Manager
	backups  *BackupManager
	cron     *cron.Cron
	minutes  int
	entryID  cron.EntryID
	mu       sync.RWMutex
}

// NewAutoBackupService creates an auto-backup service. minutes <= 0
// disables it.
func NewAutoBackupService(s store.Store, sections *section.Manager, backups *BackupManager, minutes int) *AutoBackupService {
	return &AutoBackupService{
		store:    s,
		sections: sections,
		backups:  backups,
		cron:     cron.New(),
		minutes:  minutes,
	}
}

// Start schedules the periodic snapshot
func (s *AutoBackupService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.minutes <= 0 {
		logger.Info("Auto-backup disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %dm", s.minutes), s.snapshot)
	if err != nil {
		logger.Error("Failed to schedule auto-backup", zap.Error(err))
		return err
	}

	s.entryID = entryID
	s.cron.Start()

	logger.Info("Auto-backup service started",
		zap.Int("period_minutes", s.minutes),
	)
	return nil
}

// Stop stops the service gracefully
func (s *AutoBackupService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.minutes > 0 {
		logger.Info("Stopping auto-backup service")
		ctx := s.cron.Stop()
		<-ctx.Done()
		logger.Info("Auto-backup service stopped")
	}
}

// snapshot backs up the on-disk bytes of every loaded document. Unsaved
// in-memory changes are not captured; they belong to the commit that
// produced them.
func (s *AutoBackupService) snapshot() {
	ids := s.sections.DocumentIDs()
	if len(ids) == 0 {
		return
	}

	logger.Debug("Starting auto-backup", zap.Int("documents", len(ids)))

	for _, id := range ids {
		doc, _, ok := s.sections.Get(id)
		if !ok || doc.Path() == "" {
			continue
		}

		path, err := s.backups.Create(doc.Path())
		if err != nil {
			logger.Warn("Auto-backup failed",
				zap.String("document_id", id),
				zap.Error(err),
			)
			continue
		}

		if err := s.store.Document().TouchBackup(id, time.Now()); err != nil {
			logger.Warn("Failed to record backup time",
				zap.String("document_id", id),
				zap.Error(err),
			)
		}

		logger.Debug("Auto-backup written",
			zap.String("document_id", id),
			zap.String("path", path),
		)
	}
}
