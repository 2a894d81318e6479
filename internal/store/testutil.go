// Package store provides test utilities for database testing.
package store

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/draftforge/draftforge/internal/database"
	"github.com/draftforge/draftforge/internal/model"
)

// SetupTestDB creates a throwaway SQLite database for testing.
// It returns a Store instance and a cleanup function.
// The cleanup function should be called with defer in tests.
func SetupTestDB(t *testing.T) (Store, func()) {
	// Reset database state to allow re-initialization
	database.ResetForTesting()

	// Create temporary database file
	tmpFile, err := os.CreateTemp("", "test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	// Initialize database with temp path
	if err := database.InitWithPath(tmpPath); err != nil {
		os.Remove(tmpPath)
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	db := database.Get()
	store := NewStore(db)

	// Cleanup function
	cleanup := func() {
		database.Close()
		database.ResetForTesting()
		os.Remove(tmpPath)
	}

	return store, cleanup
}

// SetupTestJobLogDB creates a throwaway job log database for testing.
// It returns a JobLogStore and a cleanup function.
func SetupTestJobLogDB(t *testing.T) (JobLogStore, func()) {
	database.ResetJobLogDBForTesting()

	tmpFile, err := os.CreateTemp("", "test_job_logs_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	if err := database.InitJobLogDBWithPath(tmpPath); err != nil {
		os.Remove(tmpPath)
		t.Fatalf("Failed to initialize test job log database: %v", err)
	}

	store := NewJobLogStore(database.GetJobLogDB())

	cleanup := func() {
		database.CloseJobLogDB()
		database.ResetJobLogDBForTesting()
		os.Remove(tmpPath)
	}

	return store, cleanup
}

// CreateTestUser creates a test User with default values.
// Fields can be overridden by passing a function that modifies the user.
func CreateTestUser(t *testing.T, store Store, overrides ...func(*model.User)) *model.User {
	user := &model.User{
		ID:           xid.New().String(),
		Username:     fmt.Sprintf("user-%s", xid.New().String()),
		PasswordHash: "$2a$10$test.hash.placeholder.for.store.tests",
		Role:         model.UserRoleUser,
	}

	for _, override := range overrides {
		override(user)
	}

	if err := store.User().Create(user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// CreateTestDocument creates a test Document with default values.
func CreateTestDocument(t *testing.T, store Store, ownerID string, overrides ...func(*model.Document)) *model.Document {
	doc := &model.Document{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Name:         "sample.docx",
		StoredPath:   fmt.Sprintf("%s_sample.docx", uuid.NewString()),
		Size:         1024,
		SectionCount: 3,
		BackupPolicy: model.BackupAsk,
	}

	for _, override := range overrides {
		override(doc)
	}

	if err := store.Document().Create(doc); err != nil {
		t.Fatalf("Failed to create test document: %v", err)
	}

	return doc
}

// CreateTestJob creates a test GenerationJob with default values.
func CreateTestJob(t *testing.T, store Store, documentID, ownerID string, overrides ...func(*model.GenerationJob)) *model.GenerationJob {
	job := &model.GenerationJob{
		ID:             uuid.NewString(),
		DocumentID:     documentID,
		OwnerID:        ownerID,
		Mode:           model.ModeReplace,
		Temperature:    0.7,
		MaxTokens:      4096,
		TargetSections: model.StringArray{"sec-1", "sec-2"},
		Status:         model.JobStatusPending,
		Total:          2,
	}

	for _, override := range overrides {
		override(job)
	}

	if err := store.Job().Create(job); err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// CreateTestJobLog creates a test JobLog entry.
func CreateTestJobLog(t *testing.T, store JobLogStore, jobID string, overrides ...func(*model.JobLog)) *model.JobLog {
	entry := &model.JobLog{
		CreatedAt: time.Now(),
		JobID:     jobID,
		Level:     model.LogLevelInfo,
		Message:   "test log entry",
		Fields:    model.JSONMap{"section": "sec-1"},
	}

	for _, override := range overrides {
		override(entry)
	}

	if err := store.Create(entry); err != nil {
		t.Fatalf("Failed to create test job log: %v", err)
	}

	return entry
}
