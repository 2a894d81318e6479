// Package notification delivers job lifecycle alerts to external channels.
// It supports webhook and Slack notifiers configured in the server config.
package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/pkg/logger"
)

// EventType represents the type of notification event
type EventType string

const (
	// EventJobCompleted is triggered when a generation job finishes successfully
	EventJobCompleted EventType = "job_completed"
	// EventJobFailed is triggered when a generation job fails
	EventJobFailed EventType = "job_failed"
	// EventJobCancelled is triggered when a generation job is cancelled
	EventJobCancelled EventType = "job_cancelled"
)

// Event carries the job snapshot sent to every configured channel
type Event struct {
	// Type is the event type (job_completed, job_failed, job_cancelled)
	Type EventType `json:"type"`
	// JobID is the unique identifier of the generation job
	JobID string `json:"job_id"`
	// DocumentID is the document the job was generating into
	DocumentID string `json:"document_id"`
	// DocumentName is the display name of the document
	DocumentName string `json:"document_name"`
	// Mode is the generation mode (replace, rework, append)
	Mode string `json:"mode"`
	// Completed and Failed count section outcomes, Total is the plan size
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
	// ErrorMessage is set for failure events
	ErrorMessage string `json:"error_message,omitempty"`
	// DurationMs is the job wall time in milliseconds
	DurationMs int64 `json:"duration_ms"`
	// Timestamp is when the job reached its terminal state
	Timestamp time.Time `json:"timestamp"`
}

// NewJobEvent builds an Event from a finished job. It returns nil when the
// job is not in a terminal state.
func NewJobEvent(job *model.GenerationJob, documentName string) *Event {
	var eventType EventType
	switch job.Status {
	case model.JobStatusCompleted:
		eventType = EventJobCompleted
	case model.JobStatusFailed:
		eventType = EventJobFailed
	case model.JobStatusCancelled:
		eventType = EventJobCancelled
	default:
		return nil
	}

	at := time.Now()
	if job.CompletedAt != nil {
		at = *job.CompletedAt
	}

	return &Event{
		Type:         eventType,
		JobID:        job.ID,
		DocumentID:   job.DocumentID,
		DocumentName: documentName,
		Mode:         string(job.Mode),
		Completed:    job.Completed,
		Failed:       job.Failed,
		Total:        job.Total,
		ErrorMessage: job.ErrorMessage,
		DurationMs:   job.Duration,
		Timestamp:    at,
	}
}

// Notifier is the interface that all notification channels must implement
type Notifier interface {
	// Name returns the name of the notifier (e.g., "webhook", "slack")
	Name() string
	// Send sends a notification for the given event
	Send(ctx context.Context, event *Event) error
}

// Manager fans events out to every configured channel.
type Manager struct {
	notifiers []Notifier
}

// NewManager builds a manager from the notification configuration. Unknown
// channel types are logged and skipped.
func NewManager(cfg *config.NotificationConfig) *Manager {
	m := &Manager{}
	if cfg == nil || !cfg.IsEnabled() {
		logger.Info("Notifications disabled")
		return m
	}

	for _, nc := range cfg.Notifiers {
		switch nc.Type {
		case config.NotificationChannelWebhook:
			m.notifiers = append(m.notifiers, NewWebhookNotifier(nc))
		case config.NotificationChannelSlack:
			m.notifiers = append(m.notifiers, NewSlackNotifier(nc))
		default:
			logger.Warn("Unknown notification channel",
				zap.String("channel", string(nc.Type)),
			)
		}
	}

	logger.Info("Notification manager initialized",
		zap.Int("channels", len(m.notifiers)),
	)
	return m
}

// Enabled returns true when at least one channel is configured.
func (m *Manager) Enabled() bool {
	return len(m.notifiers) > 0
}

// Notify dispatches the event to every channel. Delivery failures are
// logged and never propagated, a lost alert must not affect the job.
func (m *Manager) Notify(ctx context.Context, event *Event) {
	if event == nil {
		return
	}

	for _, n := range m.notifiers {
		if err := n.Send(ctx, event); err != nil {
			logger.Error("Failed to send notification",
				zap.String("channel", n.Name()),
				zap.String("event_type", string(event.Type)),
				zap.String("job_id", event.JobID),
				zap.Error(err),
			)
			continue
		}

		logger.Debug("Notification sent",
			zap.String("channel", n.Name()),
			zap.String("event_type", string(event.Type)),
			zap.String("job_id", event.JobID),
		)
	}
}
