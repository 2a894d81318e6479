// Package model provides database model definitions.
package model

import (
	"time"
)

// LogLevel represents the log level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// JobLog represents a log entry associated with a specific generation job
type JobLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Job identification
	JobID string `gorm:"size:36;not null;index" json:"job_id"`

	// Log content
	Level   LogLevel `gorm:"size:10;not null;index" json:"level"`
	Message string   `gorm:"type:text;not null" json:"message"`
	Fields  JSONMap  `gorm:"type:text" json:"fields,omitempty"` // structured log fields as JSON

	// Source information
	Caller string `gorm:"size:255" json:"caller,omitempty"` // file:line of the log call
}

// TableName specifies the table name for JobLog
func (JobLog) TableName() string {
	return "job_logs"
}

// JobLogQuery represents query parameters for listing job logs
type JobLogQuery struct {
	JobID  string   `json:"job_id"`
	Level  LogLevel `json:"level,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
}
