package store

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/draftforge/draftforge/pkg/logger"
)

const (
	// DefaultJobLogRetentionDays is the default number of days to retain job logs
	DefaultJobLogRetentionDays = 30
	// JobLogCleanupSchedule is the cron schedule for job log cleanup (daily at 2 AM)
	JobLogCleanupSchedule = "0 2 * * *"
)

// JobLogCleanupService manages periodic cleanup of old job logs
type JobLogCleanupService struct {
	store         JobLogStore
	cron          *cron.Cron
	retentionDays int
	entryID       cron.EntryID
	mu            sync.RWMutex
}

// NewJobLogCleanupService creates a new job log cleanup service
func NewJobLogCleanupService(store JobLogStore, retentionDays int) *JobLogCleanupService {
	if retentionDays <= 0 {
		retentionDays = DefaultJobLogRetentionDays
	}

	return &JobLogCleanupService{
		store:         store,
		cron:          cron.New(),
		retentionDays: retentionDays,
	}
}

// Start starts the cleanup service with scheduled cleanup tasks
func (s *JobLogCleanupService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(JobLogCleanupSchedule, s.cleanup)
	if err != nil {
		logger.Error("Failed to schedule job log cleanup", zap.Error(err))
		return err
	}

	s.entryID = entryID
	s.cron.Start()

	logger.Info("Job log cleanup service started",
		zap.String("schedule", JobLogCleanupSchedule),
		zap.Int("retention_days", s.retentionDays),
	)

	// Run initial cleanup immediately (non-blocking)
	go s.cleanup()

	return nil
}

// Stop stops the cleanup service gracefully
func (s *JobLogCleanupService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		logger.Info("Stopping job log cleanup service")
		ctx := s.cron.Stop()
		<-ctx.Done()
		logger.Info("Job log cleanup service stopped")
	}
}

// cleanup performs the actual cleanup of old job logs
func (s *JobLogCleanupService) cleanup() {
	logger.Info("Starting job log cleanup",
		zap.Int("retention_days", s.retentionDays),
	)

	startTime := time.Now()
	deletedCount, err := s.store.DeleteOlderThan(s.retentionDays)
	if err != nil {
		logger.Error("Failed to cleanup old job logs",
			zap.Int("retention_days", s.retentionDays),
			zap.Error(err),
		)
		return
	}

	logger.Info("Job log cleanup completed",
		zap.Int64("deleted_count", deletedCount),
		zap.Int("retention_days", s.retentionDays),
		zap.Duration("duration", time.Since(startTime)),
	)
}

// SetRetentionDays updates the retention period (takes effect on next cleanup)
func (s *JobLogCleanupService) SetRetentionDays(days int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if days <= 0 {
		days = DefaultJobLogRetentionDays
	}

	s.retentionDays = days
	logger.Info("Job log retention days updated",
		zap.Int("retention_days", days),
	)
}
