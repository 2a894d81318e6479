// Package model defines the data models for the application.
// All models use GORM for ORM operations with SQLite database.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/draftforge/draftforge/consts"
)

// StringArray is a custom type for storing string arrays in SQLite
type StringArray []string

// Value implements driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, s)
}

// JSONMap is a custom type for storing JSON maps in SQLite
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, j)
}

// SectionResult records the outcome of a single section within a generation job
type SectionResult struct {
	SectionID   string    `json:"section_id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"` // "completed" or "failed"
	Content     string    `json:"content,omitempty"`
	Error       string    `json:"error,omitempty"`
	Tokens      int       `json:"tokens,omitempty"`
	Duration    int64     `json:"duration,omitempty"` // milliseconds
	GeneratedAt time.Time `json:"generated_at"`
}

// ResultList is a custom type for storing per-section results in SQLite
type ResultList []SectionResult

// Value implements driver.Valuer interface
func (r ResultList) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(r)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (r *ResultList) Scan(value interface{}) error {
	if value == nil {
		*r = ResultList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, r)
}

// GenerationMode determines how generated content is applied to a section
type GenerationMode string

const (
	ModeReplace GenerationMode = consts.ModeReplace
	ModeRework  GenerationMode = consts.ModeRework
	ModeAppend  GenerationMode = consts.ModeAppend
)

// ValidGenerationMode reports whether s names a recognized generation mode
func ValidGenerationMode(s string) bool {
	switch GenerationMode(s) {
	case ModeReplace, ModeRework, ModeAppend:
		return true
	}
	return false
}

// JobStatus represents the status of a generation job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is a terminal state
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// BackupPolicy controls whether a backup is created before committing to a document
type BackupPolicy string

const (
	BackupAlways BackupPolicy = "always"
	BackupNever  BackupPolicy = "never"
	BackupAsk    BackupPolicy = "ask"
)

// ValidBackupPolicy reports whether s names a recognized backup policy
func ValidBackupPolicy(s string) bool {
	switch BackupPolicy(s) {
	case BackupAlways, BackupNever, BackupAsk:
		return true
	}
	return false
}

// Document represents an uploaded .docx document under management
type Document struct {
	ID        string         `gorm:"primarykey;size:36" json:"id"` // uuid
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Ownership
	OwnerID string `gorm:"size:20;index" json:"owner_id"` // user xid

	// File information
	Name         string `gorm:"size:255;not null" json:"name"`  // original filename
	StoredPath   string `gorm:"size:1024;not null" json:"-"`    // path under the upload directory
	Size         int64  `gorm:"not null;default:0" json:"size"` // bytes
	SectionCount int    `gorm:"not null;default:0" json:"section_count"`

	// Backup behavior
	BackupPolicy BackupPolicy `gorm:"size:10;not null;default:ask" json:"backup_policy"`
	BackupChoice *bool        `json:"backup_choice,omitempty"` // remembered answer when policy is ask

	// Timing
	LastCommitAt *time.Time `json:"last_commit_at,omitempty"`
	LastBackupAt *time.Time `json:"last_backup_at,omitempty"`
}

// GenerationJob represents a batch generation job over the sections of a document
type GenerationJob struct {
	ID        string         `gorm:"primarykey;size:36" json:"id"` // uuid
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Associations
	DocumentID string `gorm:"size:36;not null;index" json:"document_id"`
	OwnerID    string `gorm:"size:20;index" json:"owner_id"`
	ClientID   string `gorm:"size:100" json:"client_id,omitempty"` // stream subscriber to notify

	// Generation parameters
	Mode           GenerationMode `gorm:"size:20;not null" json:"mode"`
	PromptTemplate string         `gorm:"type:text" json:"prompt_template,omitempty"`
	Model          string         `gorm:"size:255" json:"model,omitempty"`
	Temperature    float64        `gorm:"default:0.7" json:"temperature"`
	MaxTokens      int            `gorm:"default:4096" json:"max_tokens"`
	Collections    StringArray    `gorm:"type:json" json:"collections,omitempty"` // knowledge collection IDs
	EmptyOnly      bool           `gorm:"default:false" json:"empty_only"`        // filter applied once at creation

	// Target sections resolved at creation time, in document order
	TargetSections StringArray `gorm:"type:json" json:"target_sections"`

	// Status and progress
	Status    JobStatus  `gorm:"size:20;not null;default:pending;index" json:"status"`
	Cursor    int        `gorm:"default:0" json:"cursor"` // index of the next section to process
	Completed int        `gorm:"default:0" json:"completed"`
	Failed    int        `gorm:"default:0" json:"failed"`
	Total     int        `gorm:"default:0" json:"total"`
	Results   ResultList `gorm:"type:json" json:"results,omitempty"`

	// Error handling
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	// Timing
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    int64      `json:"duration,omitempty"` // milliseconds
}

// AllModels returns all models for auto-migration
func AllModels() []interface{} {
	models := []interface{}{
		&Document{},
		&GenerationJob{},
	}
	// Add user models
	models = append(models, UserAllModels()...)
	return models
}
