package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/internal/stream"
	pkgerrors "github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
	"github.com/draftforge/draftforge/pkg/telemetry"
)

// BatchRequest describes a batch generation job. SectionIDs selects the
// targets in the order given; empty selects every section in document
// order. EmptyOnly drops sections that already have content, once, at
// creation time.
type BatchRequest struct {
	DocumentID string `json:"document_id"`
	ClientID   string `json:"client_id,omitempty"`

	Mode           model.GenerationMode `json:"mode"`
	SectionIDs     []string             `json:"section_ids,omitempty"`
	EmptyOnly      bool                 `json:"empty_only,omitempty"`
	Model          string               `json:"model,omitempty"`
	Temperature    *float64             `json:"temperature,omitempty"`
	MaxTokens      *int                 `json:"max_tokens,omitempty"`
	PromptTemplate string               `json:"prompt_template,omitempty"`
	Collections    []string             `json:"collections,omitempty"`

	// Save persists the document after each committed section; omitted
	// means save.
	Save *bool `json:"save,omitempty"`
	// Backup overrides the backup policy for the job's first commit.
	// Later commits in the same job never back up their own output.
	Backup *bool `json:"backup,omitempty"`
}

// StartBatch validates the request, resolves and filters the target
// sections, persists the job and launches its runner goroutine. The
// number of concurrently running jobs is bounded; past the bound the
// request is rejected rather than queued.
func (e *Engine) StartBatch(ownerID string, req BatchRequest) (*model.GenerationJob, error) {
	if !model.ValidGenerationMode(string(req.Mode)) {
		return nil, pkgerrors.Newf(pkgerrors.ErrCodeValidation, "invalid generation mode %q", req.Mode)
	}
	if err := validateSampling(req.Temperature, req.MaxTokens); err != nil {
		return nil, err
	}
	if _, err := e.loadDocument(req.DocumentID, ownerID); err != nil {
		return nil, err
	}

	targets, err := e.resolveTargets(req)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeValidation, "no sections to generate")
	}

	select {
	case e.slots <- struct{}{}:
	default:
		return nil, pkgerrors.New(pkgerrors.ErrCodeJobQueueFull, "job queue is full")
	}

	settings := e.resolveSettings(ownerID, req.Model, req.Temperature, req.MaxTokens)
	job := &model.GenerationJob{
		ID:             uuid.NewString(),
		DocumentID:     req.DocumentID,
		OwnerID:        ownerID,
		ClientID:       req.ClientID,
		Mode:           req.Mode,
		PromptTemplate: req.PromptTemplate,
		Model:          settings.model,
		Temperature:    settings.temperature,
		MaxTokens:      settings.maxTokens,
		Collections:    req.Collections,
		EmptyOnly:      req.EmptyOnly,
		TargetSections: targets,
		Status:         model.JobStatusPending,
		Total:          len(targets),
	}
	if err := e.store.Job().Create(job); err != nil {
		<-e.slots
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to create job", err)
	}

	rt := e.registerRuntime(job.ID)
	opts := runOptions{save: req.Save == nil || *req.Save, backup: req.Backup}
	e.wg.Add(1)
	go e.runJob(job, rt, settings, opts)

	logger.Get().Info("generation job created",
		zap.String(logger.FieldJobID, job.ID),
		zap.String("document_id", job.DocumentID),
		zap.String("mode", string(job.Mode)),
		zap.Int("total", job.Total),
		zap.Bool("empty_only", job.EmptyOnly))
	return job, nil
}

// resolveTargets expands the requested section selection against the
// current tree. Explicit ids keep their request order and must all
// exist; an empty selection walks the whole tree in document order.
func (e *Engine) resolveTargets(req BatchRequest) ([]string, error) {
	var targets []string
	err := e.sections.WithDocument(req.DocumentID, func(doc *docx.Document, tree *section.Tree) (*section.Tree, error) {
		if len(req.SectionIDs) > 0 {
			for _, id := range req.SectionIDs {
				s := tree.Find(id)
				if s == nil {
					return nil, pkgerrors.Newf(pkgerrors.ErrCodeSectionNotFound, "section %s not found", id)
				}
				if req.EmptyOnly && s.HasContent(doc) {
					continue
				}
				targets = append(targets, id)
			}
			return nil, nil
		}
		for _, s := range tree.Flat {
			if req.EmptyOnly && s.HasContent(doc) {
				continue
			}
			targets = append(targets, s.ID)
		}
		return nil, nil
	})
	return targets, err
}

// Pause requests a pause. The transition is immediate; the runner parks
// at the next section boundary and any in-flight section completes and
// is recorded.
func (e *Engine) Pause(jobID, ownerID string) (*model.GenerationJob, error) {
	job, err := e.loadJob(jobID, ownerID)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.Job().UpdateStatusIfAllowed(jobID, model.JobStatusPaused,
		[]model.JobStatus{model.JobStatusRunning})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to update job status", err)
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeJobBadTransition, "only a running job can be paused")
	}
	if rt := e.lookupRuntime(jobID); rt != nil {
		rt.requestPause()
	}

	job.Status = model.JobStatusPaused
	e.emit(job, stream.EventJobPaused, nil)
	logger.WithJobContext(jobID).Info("generation job paused", zap.Int("cursor", job.Cursor))
	return job, nil
}

// Resume wakes a paused job; the runner re-enters the loop at the saved
// cursor.
func (e *Engine) Resume(jobID, ownerID string) (*model.GenerationJob, error) {
	job, err := e.loadJob(jobID, ownerID)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.Job().UpdateStatusIfAllowed(jobID, model.JobStatusRunning,
		[]model.JobStatus{model.JobStatusPaused})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to update job status", err)
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeJobBadTransition, "only a paused job can be resumed")
	}
	if rt := e.lookupRuntime(jobID); rt != nil {
		rt.requestResume()
	}

	job.Status = model.JobStatusRunning
	e.emit(job, stream.EventJobResumed, nil)
	logger.WithJobContext(jobID).Info("generation job resumed", zap.Int("cursor", job.Cursor))
	return job, nil
}

// Cancel terminates a running or paused job before its next section
// begins. An in-flight model call is left to finish; the runner discards
// its result. All terminal bookkeeping happens here so the transition is
// visible immediately.
func (e *Engine) Cancel(ctx context.Context, jobID, ownerID string) (*model.GenerationJob, error) {
	job, err := e.loadJob(jobID, ownerID)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.Job().UpdateStatusIfAllowed(jobID, model.JobStatusCancelled,
		[]model.JobStatus{model.JobStatusRunning, model.JobStatusPaused})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to update job status", err)
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeJobBadTransition, "only a running or paused job can be cancelled")
	}
	if rt := e.lookupRuntime(jobID); rt != nil {
		rt.requestCancel()
	}

	now := time.Now()
	if err := e.store.Job().MarkFinished(jobID, model.JobStatusCancelled, "", now); err != nil {
		logger.Get().Warn("failed to stamp cancelled job",
			zap.String(logger.FieldJobID, jobID), zap.Error(err))
	}

	job.Status = model.JobStatusCancelled
	job.CompletedAt = &now
	e.emit(job, stream.EventJobCancelled, nil)
	telemetry.GetMetrics().RecordJobFinished(ctx, string(model.JobStatusCancelled))
	e.notifyTerminal(ctx, job)
	logger.WithJobContext(jobID).Info("generation job cancelled",
		zap.Int("completed", job.Completed),
		zap.Int("failed", job.Failed),
		zap.Int("cursor", job.Cursor))
	return job, nil
}

// Status returns the stored job row.
func (e *Engine) Status(jobID, ownerID string) (*model.GenerationJob, error) {
	return e.loadJob(jobID, ownerID)
}

// List returns jobs visible to the principal, newest first, optionally
// filtered by document and status.
func (e *Engine) List(ownerID, documentID, status string, limit, offset int) ([]model.GenerationJob, int64, error) {
	jobs, total, err := e.store.Job().List(ownerID, documentID, status, limit, offset)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to list jobs", err)
	}
	return jobs, total, nil
}

func (e *Engine) loadJob(jobID, ownerID string) (*model.GenerationJob, error) {
	job, err := e.store.Job().GetByID(jobID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.Newf(pkgerrors.ErrCodeJobNotFound, "job %s not found", jobID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to load job", err)
	}
	if ownerID != "" && job.OwnerID != "" && job.OwnerID != ownerID {
		return nil, pkgerrors.ErrForbidden("job belongs to another user")
	}
	return job, nil
}
