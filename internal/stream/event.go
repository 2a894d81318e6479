// Package stream fans generation progress events out to connected
// subscribers. Subscribers are identified by an opaque client id; events
// for one job arrive in emission order because a single scheduler
// goroutine produces them.
package stream

import "time"

// EventType discriminates progress events
type EventType string

// Event types emitted by the generation engine
const (
	EventJobStarted       EventType = "job_started"
	EventSectionStarted   EventType = "section_started"
	EventSectionCompleted EventType = "section_completed"
	EventSectionFailed    EventType = "section_failed"
	EventJobPaused        EventType = "job_paused"
	EventJobResumed       EventType = "job_resumed"
	EventJobCancelled     EventType = "job_cancelled"
	EventJobCompleted     EventType = "job_completed"
	EventJobFailed        EventType = "job_failed"
)

// JobSnapshot is the job progress state attached to every event
type JobSnapshot struct {
	TaskID      string     `json:"task_id"`
	DocumentID  string     `json:"document_id,omitempty"`
	Status      string     `json:"status"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	Total       int        `json:"total"`
	Cursor      int        `json:"cursor"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// SectionEvent is the per-section payload on section_* events
type SectionEvent struct {
	SectionID  string `json:"section_id"`
	Title      string `json:"title"`
	Content    string `json:"content,omitempty"`
	Error      string `json:"error,omitempty"`
	Tokens     int    `json:"tokens,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// Event is one progress message delivered to subscribers
type Event struct {
	Type      EventType     `json:"type"`
	Job       *JobSnapshot  `json:"job,omitempty"`
	Section   *SectionEvent `json:"section,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
