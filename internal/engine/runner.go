package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/stream"
	"github.com/draftforge/draftforge/pkg/logger"
	"github.com/draftforge/draftforge/pkg/telemetry"
)

// runOptions carries per-job commit behavior that is not persisted on
// the job row. A job interrupted by a restart is never resumed, so these
// do not need to survive one.
type runOptions struct {
	save   bool
	backup *bool
}

// jobRuntime is the control surface between a job's runner goroutine and
// the engine's control operations. Pause and cancel are observed at
// section boundaries only; a request mid-section takes effect once the
// current section finishes.
type jobRuntime struct {
	mu     sync.Mutex
	paused bool

	// resume carries at most one pending wake-up
	resume    chan struct{}
	cancelled chan struct{}
	once      sync.Once
}

func newJobRuntime() *jobRuntime {
	return &jobRuntime{
		resume:    make(chan struct{}, 1),
		cancelled: make(chan struct{}),
	}
}

func (rt *jobRuntime) requestPause() {
	rt.mu.Lock()
	rt.paused = true
	rt.mu.Unlock()
}

func (rt *jobRuntime) requestResume() {
	rt.mu.Lock()
	rt.paused = false
	rt.mu.Unlock()
	select {
	case rt.resume <- struct{}{}:
	default:
	}
}

func (rt *jobRuntime) requestCancel() {
	rt.once.Do(func() { close(rt.cancelled) })
}

func (rt *jobRuntime) isPaused() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.paused
}

func (rt *jobRuntime) isCancelled() bool {
	select {
	case <-rt.cancelled:
		return true
	default:
		return false
	}
}

// parkResult tells the runner how a boundary wait ended.
type parkResult int

const (
	parkRun parkResult = iota
	parkCancelled
	parkShutdown
)

// park blocks while the job is paused. Cancellation and engine shutdown
// win over a pending resume.
func (rt *jobRuntime) park(ctx context.Context) parkResult {
	for {
		if rt.isCancelled() {
			return parkCancelled
		}
		if !rt.isPaused() {
			return parkRun
		}
		select {
		case <-rt.resume:
			// loop to re-check; a new pause may already have landed
		case <-rt.cancelled:
			return parkCancelled
		case <-ctx.Done():
			return parkShutdown
		}
	}
}

// rest waits out the inter-section delay, waking early on cancel or
// shutdown. The delay runs before the next boundary check, so it is
// never spent while parked.
func (rt *jobRuntime) rest(ctx context.Context, d time.Duration) parkResult {
	if d <= 0 {
		return parkRun
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return parkRun
	case <-rt.cancelled:
		return parkCancelled
	case <-ctx.Done():
		return parkShutdown
	}
}

// stepResult tells the runner loop what one section step decided.
type stepResult int

const (
	stepDone stepResult = iota // advance, outcome recorded
	stepCancelled              // cancelled mid-call, result discarded
	stepShutdown               // engine stopping, no outcome recorded
)

// runJob drives one job to a terminal state. It is the only goroutine
// mutating the job's cursor, counters and results; control operations
// communicate through the runtime flags and the status column. A cancel
// wins every status race: the terminal transition here is conditional
// and backs off when the row is no longer running or paused.
func (e *Engine) runJob(job *model.GenerationJob, rt *jobRuntime, settings jobSettings, opts runOptions) {
	defer e.wg.Done()
	defer e.dropRuntime(job.ID)
	defer func() { <-e.slots }()

	ctx, span := telemetry.StartSpan(e.ctx, "engine.runJob",
		telemetry.WithJobAttributes(job.ID, job.DocumentID, string(job.Mode)))
	defer span.End()

	log := logger.WithJobContext(job.ID)

	now := time.Now()
	if err := e.store.Job().MarkStarted(job.ID, now); err != nil {
		log.Error("failed to mark job started", zap.Error(err))
		e.finishJob(ctx, job, model.JobStatusFailed, "failed to start job", log)
		return
	}
	job.Status = model.JobStatusRunning
	job.StartedAt = &now

	telemetry.GetMetrics().RecordJobStarted(ctx)
	log.Info("generation job started",
		zap.String("document_id", job.DocumentID),
		zap.String("mode", string(job.Mode)),
		zap.String("model", settings.model),
		zap.Int("total", job.Total))
	e.emit(job, stream.EventJobStarted, nil)

	client := e.newClient(settings.endpoint)
	// content generated earlier in this job, preferred as parent context
	produced := make(map[string]string, len(job.TargetSections))
	delay := time.Duration(e.cfg.Generation.InterSectionDelayMs) * time.Millisecond

	for i := job.Cursor; i < len(job.TargetSections); i++ {
		switch rt.park(ctx) {
		case parkCancelled:
			log.Info("job runner exiting after cancel", zap.Int("cursor", i))
			return
		case parkShutdown:
			log.Warn("job interrupted by shutdown", zap.Int("cursor", i))
			return
		}

		sectionID := job.TargetSections[i]
		switch e.runSection(ctx, client, settings, job, rt, opts, sectionID, i, produced, log) {
		case stepCancelled:
			log.Info("discarded in-flight result after cancel",
				zap.String("section_id", sectionID))
			return
		case stepShutdown:
			log.Warn("job interrupted by shutdown", zap.String("section_id", sectionID))
			return
		}

		if i < len(job.TargetSections)-1 {
			switch rt.rest(ctx, delay) {
			case parkCancelled:
				log.Info("job runner exiting after cancel", zap.Int("cursor", i+1))
				return
			case parkShutdown:
				log.Warn("job interrupted by shutdown", zap.Int("cursor", i+1))
				return
			}
		}
	}

	e.finishJob(ctx, job, model.JobStatusCompleted, "", log)
}

// runSection processes one target section. Failures are recorded and the
// job advances; only a cancel or shutdown observed after the model call
// stops the loop.
func (e *Engine) runSection(
	ctx context.Context,
	client CompletionClient,
	settings jobSettings,
	job *model.GenerationJob,
	rt *jobRuntime,
	opts runOptions,
	sectionID string,
	index int,
	produced map[string]string,
	log *zap.Logger,
) stepResult {
	ctx, span := telemetry.StartSpan(ctx, "engine.runSection",
		telemetry.WithSectionAttributes(sectionID, ""))
	defer span.End()

	params := sectionParams{
		documentID:  job.DocumentID,
		sectionID:   sectionID,
		mode:        job.Mode,
		template:    job.PromptTemplate,
		collections: job.Collections,
		produced:    produced,
		save:        opts.save,
		backup:      opts.backup,
	}
	if job.Completed > 0 {
		// only the first commit of a job backs up; the rest would snapshot
		// the job's own intermediate output
		params.skipBackup = true
		params.backup = nil
	}

	start := time.Now()
	in, title, err := e.promptInput(params, settings.language)
	if err != nil {
		telemetry.SetSpanError(span, err)
		e.recordSectionFailure(ctx, job, sectionID, title, index, err, 0, log)
		return stepDone
	}

	e.emit(job, stream.EventSectionStarted, &stream.SectionEvent{SectionID: sectionID, Title: title})
	log.Info("section generation started",
		zap.String("section_id", sectionID),
		zap.String("section_title", title),
		zap.Int("index", index))

	cres, _, err := e.complete(ctx, client, settings, e.prompts.Build(in), job.Collections)
	if rt.isCancelled() {
		telemetry.SetSpanOK(span)
		return stepCancelled
	}
	if err != nil {
		if e.ctx.Err() != nil {
			// shutdown aborted the call; recovery owns the bookkeeping
			return stepShutdown
		}
		telemetry.SetSpanError(span, err)
		e.recordSectionFailure(ctx, job, sectionID, title, index, err, time.Since(start).Milliseconds(), log)
		return stepDone
	}

	if _, err := e.commitGenerated(ctx, params, cres.Content); err != nil {
		telemetry.SetSpanError(span, err)
		e.recordSectionFailure(ctx, job, sectionID, title, index, err, time.Since(start).Milliseconds(), log)
		return stepDone
	}

	produced[sectionID] = cres.Content
	telemetry.SetSpanOK(span)
	e.recordSectionSuccess(ctx, job, sectionID, title, index, cres.Content, cres.TokensUsed,
		time.Since(start).Milliseconds(), log)
	return stepDone
}

// recordSectionSuccess advances the counters, persists progress and the
// result row, and emits section_completed.
func (e *Engine) recordSectionSuccess(ctx context.Context, job *model.GenerationJob, sectionID, title string, index int, content string, tokens int, durationMs int64, log *zap.Logger) {
	job.Completed++
	job.Cursor = index + 1
	if err := e.store.Job().UpdateProgress(job.ID, job.Cursor, job.Completed, job.Failed); err != nil {
		log.Warn("failed to persist job progress", zap.Error(err))
	}
	if err := e.store.Job().AppendResult(job.ID, model.SectionResult{
		SectionID:   sectionID,
		Title:       title,
		Status:      "completed",
		Content:     content,
		Tokens:      tokens,
		Duration:    durationMs,
		GeneratedAt: time.Now(),
	}); err != nil {
		log.Warn("failed to append section result", zap.Error(err))
	}

	telemetry.GetMetrics().RecordGeneration(ctx, string(job.Mode), true, float64(durationMs)/1000)
	e.emit(job, stream.EventSectionCompleted, &stream.SectionEvent{
		SectionID:  sectionID,
		Title:      title,
		Content:    content,
		Tokens:     tokens,
		DurationMs: durationMs,
	})
	log.Info("section generation completed",
		zap.String("section_id", sectionID),
		zap.Int("tokens", tokens),
		zap.Int64("duration_ms", durationMs))
}

// recordSectionFailure advances past the section, persists the error and
// emits section_failed. The job itself keeps going.
func (e *Engine) recordSectionFailure(ctx context.Context, job *model.GenerationJob, sectionID, title string, index int, cause error, durationMs int64, log *zap.Logger) {
	job.Failed++
	job.Cursor = index + 1
	if err := e.store.Job().UpdateProgress(job.ID, job.Cursor, job.Completed, job.Failed); err != nil {
		log.Warn("failed to persist job progress", zap.Error(err))
	}
	if err := e.store.Job().AppendResult(job.ID, model.SectionResult{
		SectionID:   sectionID,
		Title:       title,
		Status:      "failed",
		Error:       cause.Error(),
		Duration:    durationMs,
		GeneratedAt: time.Now(),
	}); err != nil {
		log.Warn("failed to append section result", zap.Error(err))
	}

	telemetry.GetMetrics().RecordGeneration(ctx, string(job.Mode), false, float64(durationMs)/1000)
	e.emit(job, stream.EventSectionFailed, &stream.SectionEvent{
		SectionID:  sectionID,
		Title:      title,
		Error:      cause.Error(),
		DurationMs: durationMs,
	})
	log.Warn("section generation failed",
		zap.String("section_id", sectionID),
		zap.Error(cause))
}

// finishJob performs the loop-owned terminal transition. The conditional
// status update loses against a concurrent cancel, which already stamped
// the row and emitted its event.
func (e *Engine) finishJob(ctx context.Context, job *model.GenerationJob, status model.JobStatus, errMsg string, log *zap.Logger) {
	rows, err := e.store.Job().UpdateStatusIfAllowed(job.ID, status,
		[]model.JobStatus{model.JobStatusPending, model.JobStatusRunning, model.JobStatusPaused})
	if err != nil {
		log.Error("failed to finish job", zap.Error(err))
		return
	}
	if rows == 0 {
		return
	}

	now := time.Now()
	if err := e.store.Job().MarkFinished(job.ID, status, errMsg, now); err != nil {
		log.Error("failed to stamp finished job", zap.Error(err))
	}

	job.Status = status
	job.ErrorMessage = errMsg
	job.CompletedAt = &now

	typ := stream.EventJobCompleted
	if status == model.JobStatusFailed {
		typ = stream.EventJobFailed
	}
	e.emit(job, typ, nil)
	telemetry.GetMetrics().RecordJobFinished(ctx, string(status))
	e.notifyTerminal(ctx, job)

	if status == model.JobStatusCompleted {
		log.Info("generation job completed",
			zap.Int("completed", job.Completed),
			zap.Int("failed", job.Failed),
			zap.Int("total", job.Total))
		return
	}
	log.Error("generation job failed",
		zap.String("error", errMsg),
		zap.Int("completed", job.Completed),
		zap.Int("failed", job.Failed))
}
