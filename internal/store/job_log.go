package store

import (
	"gorm.io/gorm"

	"github.com/draftforge/draftforge/internal/model"
)

// JobLogStore defines operations for the JobLog model.
// Note: This store uses a separate database connection (job_logs.db)
// instead of the main application database.
// JobLogStore also implements the logger.JobLogWriter interface.
type JobLogStore interface {
	// Write implements logger.JobLogWriter for batch writing logs.
	// This is used by the logger hook for dual-write mode.
	Write(logs []model.JobLog) error

	// Create creates a new job log entry
	Create(log *model.JobLog) error

	// BatchCreate creates multiple job log entries in a single transaction
	BatchCreate(logs []model.JobLog) error

	// GetByJobID retrieves all logs for a specific job
	GetByJobID(jobID string) ([]model.JobLog, error)

	// GetByJobIDWithPagination retrieves logs for a job with pagination
	GetByJobIDWithPagination(jobID string, page, pageSize int) ([]model.JobLog, int64, error)

	// GetByJobIDWithLevelAndAbove retrieves logs at or above a level
	GetByJobIDWithLevelAndAbove(jobID string, level model.LogLevel) ([]model.JobLog, error)

	// GetByJobIDAndLevel retrieves logs at or above a level with pagination
	GetByJobIDAndLevel(jobID string, level model.LogLevel, page, pageSize int) ([]model.JobLog, int64, error)

	// GetLatestByJobID retrieves the latest N logs for a job in
	// chronological order
	GetLatestByJobID(jobID string, limit int) ([]model.JobLog, error)

	// DeleteByJobID deletes all logs for a specific job
	DeleteByJobID(jobID string) error

	// DeleteOlderThan deletes logs older than the given number of days
	DeleteOlderThan(days int) (int64, error)

	// CountByJobID returns the total count of logs for a job
	CountByJobID(jobID string) (int64, error)
}

// jobLogStore implements JobLogStore using GORM.
type jobLogStore struct {
	db *gorm.DB
}

// NewJobLogStore creates a new JobLogStore with the provided database
// connection. This should be called with the job log database connection,
// not the main database.
func NewJobLogStore(db *gorm.DB) JobLogStore {
	return &jobLogStore{db: db}
}

// Write implements logger.JobLogWriter for batch writing logs.
func (s *jobLogStore) Write(logs []model.JobLog) error {
	return s.BatchCreate(logs)
}

func (s *jobLogStore) Create(log *model.JobLog) error {
	return s.db.Create(log).Error
}

func (s *jobLogStore) BatchCreate(logs []model.JobLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.Create(&logs).Error
}

// GetByJobID retrieves all logs for a job, ordered by creation time ascending.
func (s *jobLogStore) GetByJobID(jobID string) ([]model.JobLog, error) {
	var logs []model.JobLog
	err := s.db.Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

func (s *jobLogStore) GetByJobIDWithPagination(jobID string, page, pageSize int) ([]model.JobLog, int64, error) {
	var logs []model.JobLog
	var total int64

	query := s.db.Model(&model.JobLog{}).Where("job_id = ?", jobID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at ASC").Offset(offset).Limit(pageSize).Find(&logs).Error
	return logs, total, err
}

// GetByJobIDWithLevelAndAbove retrieves logs at or above a specified level.
// Level priority: debug < info < warn < error < fatal
func (s *jobLogStore) GetByJobIDWithLevelAndAbove(jobID string, level model.LogLevel) ([]model.JobLog, error) {
	var logs []model.JobLog
	levels := getLevelsAtAndAbove(level)
	err := s.db.Where("job_id = ? AND level IN ?", jobID, levels).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

func (s *jobLogStore) GetByJobIDAndLevel(jobID string, level model.LogLevel, page, pageSize int) ([]model.JobLog, int64, error) {
	var logs []model.JobLog
	var total int64

	levels := getLevelsAtAndAbove(level)
	query := s.db.Model(&model.JobLog{}).Where("job_id = ? AND level IN ?", jobID, levels)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at ASC").Offset(offset).Limit(pageSize).Find(&logs).Error
	return logs, total, err
}

func (s *jobLogStore) GetLatestByJobID(jobID string, limit int) ([]model.JobLog, error) {
	var logs []model.JobLog
	err := s.db.Where("job_id = ?", jobID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error

	// Reverse the slice to return in chronological order
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, err
}

func (s *jobLogStore) DeleteByJobID(jobID string) error {
	return s.db.Where("job_id = ?", jobID).Delete(&model.JobLog{}).Error
}

func (s *jobLogStore) DeleteOlderThan(days int) (int64, error) {
	result := s.db.Exec(
		"DELETE FROM job_logs WHERE created_at < datetime('now', '-' || ? || ' days')",
		days,
	)
	return result.RowsAffected, result.Error
}

func (s *jobLogStore) CountByJobID(jobID string) (int64, error) {
	var count int64
	err := s.db.Model(&model.JobLog{}).
		Where("job_id = ?", jobID).
		Count(&count).Error
	return count, err
}

// getLevelsAtAndAbove returns all log levels at or above the specified level.
func getLevelsAtAndAbove(level model.LogLevel) []model.LogLevel {
	switch level {
	case model.LogLevelDebug:
		return []model.LogLevel{model.LogLevelDebug, model.LogLevelInfo, model.LogLevelWarn, model.LogLevelError, model.LogLevelFatal}
	case model.LogLevelInfo:
		return []model.LogLevel{model.LogLevelInfo, model.LogLevelWarn, model.LogLevelError, model.LogLevelFatal}
	case model.LogLevelWarn:
		return []model.LogLevel{model.LogLevelWarn, model.LogLevelError, model.LogLevelFatal}
	case model.LogLevelError:
		return []model.LogLevel{model.LogLevelError, model.LogLevelFatal}
	case model.LogLevelFatal:
		return []model.LogLevel{model.LogLevelFatal}
	default:
		return []model.LogLevel{model.LogLevelDebug, model.LogLevelInfo, model.LogLevelWarn, model.LogLevelError, model.LogLevelFatal}
	}
}
