package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/commit"
	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/llm"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/notification"
	"github.com/draftforge/draftforge/internal/prompt"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/internal/stream"
	pkgerrors "github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

// recoveryMessage is stamped on jobs found non-terminal at startup.
// Scheduler state does not survive a restart, so such jobs cannot resume.
const recoveryMessage = "interrupted by restart"

// Engine runs generation: the synchronous single-section path and batch
// jobs over many sections. Each job is driven by one goroutine that
// processes sections strictly in order; jobs are independent of each other.
type Engine struct {
	cfg       *config.Config
	store     store.Store
	sections  *section.Manager
	prompts   *prompt.Builder
	committer *commit.Committer
	hub       *stream.Hub
	notifier  *notification.Manager

	newClient ClientFactory

	mu       sync.RWMutex
	runtimes map[string]*jobRuntime

	// slots bounds the number of concurrently running jobs
	slots chan struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine wires the engine to its collaborators. The default client
// factory builds the production HTTP client; tests replace it through
// SetClientFactory.
func NewEngine(
	cfg *config.Config,
	st store.Store,
	sections *section.Manager,
	committer *commit.Committer,
	hub *stream.Hub,
	notifier *notification.Manager,
) *Engine {
	queue := cfg.Generation.QueueSize
	if queue <= 0 {
		queue = 5
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:       cfg,
		store:     st,
		sections:  sections,
		prompts:   prompt.NewBuilder(),
		committer: committer,
		hub:       hub,
		notifier:  notifier,
		newClient: func(c llm.Config) CompletionClient { return llm.New(c) },
		runtimes:  make(map[string]*jobRuntime),
		slots:     make(chan struct{}, queue),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetClientFactory replaces the completion client constructor.
// Tests use this to substitute a scripted client.
func (e *Engine) SetClientFactory(f ClientFactory) {
	if f != nil {
		e.newClient = f
	}
}

// Start recovers jobs orphaned by an unclean shutdown. Any job still in a
// non-terminal state is marked failed; its runtime is gone and the cursor
// alone is not enough to resume safely.
func (e *Engine) Start() error {
	orphans, err := e.store.Job().ListNonTerminal()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to list unfinished jobs", err)
	}

	now := time.Now()
	for i := range orphans {
		job := &orphans[i]
		if err := e.store.Job().MarkFinished(job.ID, model.JobStatusFailed, recoveryMessage, now); err != nil {
			logger.Get().Warn("failed to mark orphaned job",
				zap.String(logger.FieldJobID, job.ID),
				zap.Error(err))
			continue
		}
		logger.Get().Info("orphaned job marked failed",
			zap.String(logger.FieldJobID, job.ID),
			zap.String("previous_status", string(job.Status)))
	}
	if len(orphans) > 0 {
		logger.Get().Info("job recovery finished", zap.Int("jobs", len(orphans)))
	}
	return nil
}

// Stop cancels the engine context and waits for running jobs to drain.
// Jobs interrupted here stay running in the database and are marked failed
// by recovery on the next start.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
}

// RunningJobs reports how many job goroutines currently hold a slot.
func (e *Engine) RunningJobs() int {
	return len(e.slots)
}

func (e *Engine) registerRuntime(jobID string) *jobRuntime {
	rt := newJobRuntime()
	e.mu.Lock()
	e.runtimes[jobID] = rt
	e.mu.Unlock()
	return rt
}

func (e *Engine) lookupRuntime(jobID string) *jobRuntime {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runtimes[jobID]
}

func (e *Engine) dropRuntime(jobID string) {
	e.mu.Lock()
	delete(e.runtimes, jobID)
	e.mu.Unlock()
}

// jobSettings is the effective LLM configuration for one request, merged
// from server defaults, the principal's stored settings and request fields.
type jobSettings struct {
	endpoint    llm.Config
	model       string
	temperature float64
	maxTokens   int
	language    string
}

// resolveSettings layers the three configuration sources. Request fields
// win over the user's stored config, which wins over server defaults. The
// user's base URL and API key move together: a custom endpoint never
// inherits the server key.
func (e *Engine) resolveSettings(ownerID, reqModel string, reqTemperature *float64, reqMaxTokens *int) jobSettings {
	s := jobSettings{
		endpoint: llm.Config{
			BaseURL: e.cfg.LLM.BaseURL,
			APIKey:  e.cfg.LLM.APIKey,
			Timeout: time.Duration(e.cfg.LLM.TimeoutSeconds) * time.Second,
		},
		model:       e.cfg.LLM.DefaultModel,
		temperature: e.cfg.LLM.Temperature,
		maxTokens:   e.cfg.LLM.MaxTokens,
		language:    e.cfg.LLM.OutputLanguage,
	}

	if ownerID != "" {
		if uc, err := e.store.User().GetLLMConfig(ownerID); err == nil && uc != nil {
			if uc.BaseURL != "" {
				s.endpoint.BaseURL = uc.BaseURL
				s.endpoint.APIKey = uc.APIKey
			}
			if uc.Model != "" {
				s.model = uc.Model
			}
			if uc.Temperature > 0 {
				s.temperature = uc.Temperature
			}
			if uc.MaxTokens > 0 {
				s.maxTokens = uc.MaxTokens
			}
			if uc.OutputLanguage != "" {
				s.language = uc.OutputLanguage
			}
		}
	}

	if reqModel != "" {
		s.model = reqModel
	}
	if reqTemperature != nil {
		s.temperature = *reqTemperature
	}
	if reqMaxTokens != nil {
		s.maxTokens = *reqMaxTokens
	}
	return s
}

// snapshotOf projects a job row into the wire snapshot.
func snapshotOf(job *model.GenerationJob) *stream.JobSnapshot {
	return &stream.JobSnapshot{
		TaskID:      job.ID,
		DocumentID:  job.DocumentID,
		Status:      string(job.Status),
		Completed:   job.Completed,
		Failed:      job.Failed,
		Total:       job.Total,
		Cursor:      job.Cursor,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.ErrorMessage,
	}
}

// emit delivers a progress event to the job's stream subscriber.
// Delivery is best effort; an absent or slow subscriber never blocks
// the scheduler.
func (e *Engine) emit(job *model.GenerationJob, typ stream.EventType, sec *stream.SectionEvent) {
	if job.ClientID == "" || e.hub == nil {
		return
	}
	e.hub.Send(job.ClientID, stream.Event{
		Type:      typ,
		Job:       snapshotOf(job),
		Section:   sec,
		Timestamp: time.Now(),
	})
}

// notifyTerminal pushes the terminal job snapshot to the configured
// notification channels. Failures are logged inside the manager.
func (e *Engine) notifyTerminal(ctx context.Context, job *model.GenerationJob) {
	if e.notifier == nil || !e.notifier.Enabled() {
		return
	}
	name := job.DocumentID
	if doc, err := e.store.Document().GetByID(job.DocumentID); err == nil {
		name = doc.Name
	}
	if ev := notification.NewJobEvent(job, name); ev != nil {
		e.notifier.Notify(ctx, ev)
	}
}
