package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/draftforge/draftforge/internal/model"
)

// JobStore defines operations for the GenerationJob model.
type JobStore interface {
	Create(job *model.GenerationJob) error
	GetByID(id string) (*model.GenerationJob, error)
	Save(job *model.GenerationJob) error
	Delete(id string) error

	// List returns jobs filtered by owner and optional document/status,
	// newest first
	List(ownerID, documentID, status string, limit, offset int) ([]model.GenerationJob, int64, error)

	// ListByStatus returns all jobs in one status
	ListByStatus(status model.JobStatus) ([]model.GenerationJob, error)

	// ListNonTerminal returns jobs that were pending, running or paused,
	// used by startup recovery
	ListNonTerminal() ([]model.GenerationJob, error)

	// UpdateStatusIfAllowed transitions the job status atomically; the
	// returned count is zero when the job was not in an allowed state
	UpdateStatusIfAllowed(id string, newStatus model.JobStatus, allowed []model.JobStatus) (int64, error)

	// UpdateProgress persists the cursor and counters after each section
	UpdateProgress(id string, cursor, completed, failed int) error

	// AppendResult adds one section outcome to the results column
	AppendResult(id string, result model.SectionResult) error

	// MarkStarted stamps the start time and flips the status to running
	MarkStarted(id string, at time.Time) error

	// MarkFinished stamps the terminal state, error and duration
	MarkFinished(id string, status model.JobStatus, errMsg string, at time.Time) error

	// Statistics
	CountAll() (int64, error)
	CountByStatus(status model.JobStatus) (int64, error)
	CountCreatedAfter(start time.Time) (int64, error)
	SumTokensAfter(start time.Time) (int64, error)
}

// jobStore implements JobStore using GORM.
type jobStore struct {
	db *gorm.DB
}

func newJobStore(db *gorm.DB) JobStore {
	return &jobStore{db: db}
}

func (s *jobStore) Create(job *model.GenerationJob) error {
	return s.db.Create(job).Error
}

func (s *jobStore) GetByID(id string) (*model.GenerationJob, error) {
	var job model.GenerationJob
	if err := s.db.First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *jobStore) Save(job *model.GenerationJob) error {
	return s.db.Save(job).Error
}

func (s *jobStore) Delete(id string) error {
	return s.db.Delete(&model.GenerationJob{}, "id = ?", id).Error
}

func (s *jobStore) List(ownerID, documentID, status string, limit, offset int) ([]model.GenerationJob, int64, error) {
	var jobs []model.GenerationJob
	var total int64

	query := s.db.Model(&model.GenerationJob{}).Where("owner_id = ?", ownerID)
	if documentID != "" {
		query = query.Where("document_id = ?", documentID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&jobs).Error
	return jobs, total, err
}

func (s *jobStore) ListByStatus(status model.JobStatus) ([]model.GenerationJob, error) {
	var jobs []model.GenerationJob
	err := s.db.Where("status = ?", status).Order("created_at ASC").Find(&jobs).Error
	return jobs, err
}

func (s *jobStore) ListNonTerminal() ([]model.GenerationJob, error) {
	var jobs []model.GenerationJob
	err := s.db.Where("status IN ?", []model.JobStatus{
		model.JobStatusPending, model.JobStatusRunning, model.JobStatusPaused,
	}).Find(&jobs).Error
	return jobs, err
}

// UpdateStatusIfAllowed performs a compare-and-set on the status column so
// concurrent control requests cannot double-apply a transition.
func (s *jobStore) UpdateStatusIfAllowed(id string, newStatus model.JobStatus, allowed []model.JobStatus) (int64, error) {
	result := s.db.Model(&model.GenerationJob{}).
		Where("id = ? AND status IN ?", id, allowed).
		Update("status", newStatus)
	return result.RowsAffected, result.Error
}

func (s *jobStore) UpdateProgress(id string, cursor, completed, failed int) error {
	return s.db.Model(&model.GenerationJob{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"cursor":    cursor,
			"completed": completed,
			"failed":    failed,
		}).Error
}

// AppendResult reads and rewrites the results column. Only the single
// scheduler goroutine of a job appends, so read-modify-write is safe.
func (s *jobStore) AppendResult(id string, result model.SectionResult) error {
	job, err := s.GetByID(id)
	if err != nil {
		return err
	}
	job.Results = append(job.Results, result)
	return s.db.Model(&model.GenerationJob{}).Where("id = ?", id).
		Update("results", job.Results).Error
}

func (s *jobStore) MarkStarted(id string, at time.Time) error {
	return s.db.Model(&model.GenerationJob{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.JobStatusRunning,
			"started_at": at,
		}).Error
}

func (s *jobStore) MarkFinished(id string, status model.JobStatus, errMsg string, at time.Time) error {
	updates := map[string]interface{}{
		"status":        status,
		"completed_at":  at,
		"error_message": errMsg,
	}

	var job model.GenerationJob
	if err := s.db.Select("started_at").First(&job, "id = ?", id).Error; err == nil && job.StartedAt != nil {
		updates["duration"] = at.Sub(*job.StartedAt).Milliseconds()
	}

	return s.db.Model(&model.GenerationJob{}).Where("id = ?", id).
		Updates(updates).Error
}

func (s *jobStore) CountAll() (int64, error) {
	var count int64
	err := s.db.Model(&model.GenerationJob{}).Count(&count).Error
	return count, err
}

func (s *jobStore) CountByStatus(status model.JobStatus) (int64, error) {
	var count int64
	err := s.db.Model(&model.GenerationJob{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (s *jobStore) CountCreatedAfter(start time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&model.GenerationJob{}).Where("created_at >= ?", start).Count(&count).Error
	return count, err
}

// SumTokensAfter totals the tokens recorded in results of jobs created
// after start. Results are a JSON column, so the sum walks rows in Go.
func (s *jobStore) SumTokensAfter(start time.Time) (int64, error) {
	var jobs []model.GenerationJob
	if err := s.db.Select("results").Where("created_at >= ?", start).Find(&jobs).Error; err != nil {
		return 0, err
	}
	var total int64
	for _, job := range jobs {
		for _, r := range job.Results {
			total += int64(r.Tokens)
		}
	}
	return total, nil
}
