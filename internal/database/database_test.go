package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/pkg/idgen"
	"github.com/draftforge/draftforge/pkg/logger"
)

func TestSQLiteOptimizations(t *testing.T) {
	// Initialize logger for testing
	logger.Init(logger.Config{
		Level:  "info",
		Format: "text",
		File:   "",
	})
	defer logger.Sync()

	// Reset database state for testing
	ResetForTesting()

	// Create temporary database file
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	// Initialize database with custom path for testing
	err := InitWithPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		Close()
		os.Remove(dbPath)
	}()

	// Get database connection
	db := Get()

	// Check journal_mode (should be WAL)
	var journalMode string
	result := db.Raw("PRAGMA journal_mode").Scan(&journalMode)
	if result.Error != nil {
		t.Fatalf("Failed to query journal_mode: %v", result.Error)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode to be 'wal', got '%s'", journalMode)
	}

	// Check synchronous (should be 1 for NORMAL)
	var synchronous int
	result = db.Raw("PRAGMA synchronous").Scan(&synchronous)
	if result.Error != nil {
		t.Fatalf("Failed to query synchronous: %v", result.Error)
	}
	if synchronous != 1 {
		t.Errorf("Expected synchronous to be 1 (NORMAL), got %d", synchronous)
	}

	// Check foreign_keys (should be ON)
	var foreignKeys int
	result = db.Raw("PRAGMA foreign_keys").Scan(&foreignKeys)
	if result.Error != nil {
		t.Fatalf("Failed to query foreign_keys: %v", result.Error)
	}
	if foreignKeys != 1 {
		t.Errorf("Expected foreign_keys to be 1 (ON), got %d", foreignKeys)
	}

	t.Logf("SQLite optimizations verified: journal_mode=%s, synchronous=%d, foreign_keys=%d",
		journalMode, synchronous, foreignKeys)
}

// TestMigration_AllModels tests that auto-migration creates tables for all models
func TestMigration_AllModels(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	err := InitWithPath(dbPath)
	require.NoError(t, err)
	defer Close()

	db := Get()

	tables := []string{"documents", "generation_jobs", "users", "user_llm_configs"}
	for _, table := range tables {
		var exists bool
		err = db.Raw("SELECT COUNT(*) > 0 FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&exists).Error
		require.NoError(t, err)
		assert.True(t, exists, "Table %s should exist after migration", table)
	}
}

// TestDocumentRoundTrip tests persisting and loading a document record
func TestDocumentRoundTrip(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	err := InitWithPath(dbPath)
	require.NoError(t, err)
	defer Close()

	db := Get()

	doc := &model.Document{
		ID:           idgen.NewDocumentID(),
		OwnerID:      "user-1",
		Name:         "report.docx",
		StoredPath:   "/uploads/report.docx",
		Size:         1024,
		SectionCount: 5,
		BackupPolicy: model.BackupAsk,
	}
	require.NoError(t, db.Create(doc).Error)

	var loaded model.Document
	require.NoError(t, db.First(&loaded, "id = ?", doc.ID).Error)
	assert.Equal(t, "report.docx", loaded.Name)
	assert.Equal(t, 5, loaded.SectionCount)
	assert.Equal(t, model.BackupAsk, loaded.BackupPolicy)
}

// TestGenerationJobRoundTrip tests persisting a job with serialized results
func TestGenerationJobRoundTrip(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	err := InitWithPath(dbPath)
	require.NoError(t, err)
	defer Close()

	db := Get()

	job := &model.GenerationJob{
		ID:          idgen.NewJobID(),
		DocumentID:  idgen.NewDocumentID(),
		OwnerID:     "user-1",
		Mode:        model.ModeReplace,
		Model:       "test-model",
		Temperature: 0.7,
		MaxTokens:   2048,
		Status:      model.JobStatusRunning,
		Total:       3,
		TargetSections: model.StringArray{
			"1", "1.1", "2",
		},
		Results: model.ResultList{
			{SectionID: "1", Title: "Intro", Status: "completed", Tokens: 120},
		},
	}
	require.NoError(t, db.Create(job).Error)

	var loaded model.GenerationJob
	require.NoError(t, db.First(&loaded, "id = ?", job.ID).Error)
	assert.Equal(t, model.JobStatusRunning, loaded.Status)
	assert.Equal(t, model.ModeReplace, loaded.Mode)
	require.Len(t, loaded.TargetSections, 3)
	assert.Equal(t, "1.1", loaded.TargetSections[1])
	require.Len(t, loaded.Results, 1)
	assert.Equal(t, "Intro", loaded.Results[0].Title)
	assert.Equal(t, 120, loaded.Results[0].Tokens)
}

// TestJobLogDB tests the separate job log database lifecycle
func TestJobLogDB(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetJobLogDBForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "job_logs.db")

	assert.False(t, IsJobLogDBInitialized())

	err := InitJobLogDBWithPath(dbPath)
	require.NoError(t, err)
	defer CloseJobLogDB()

	assert.True(t, IsJobLogDBInitialized())

	db := GetJobLogDB()

	// Write and read a job log entry
	entry := &model.JobLog{
		JobID:   "job-123",
		Level:   model.LogLevelInfo,
		Message: "section generated",
		Fields:  model.JSONMap{"section_id": "1.2"},
	}
	require.NoError(t, db.Create(entry).Error)

	var loaded model.JobLog
	require.NoError(t, db.First(&loaded, "job_id = ?", "job-123").Error)
	assert.Equal(t, "section generated", loaded.Message)
	assert.Equal(t, "1.2", loaded.Fields["section_id"])
}

// TestHealthCheck tests the database ping
func TestHealthCheck(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	err := InitWithPath(dbPath)
	require.NoError(t, err)
	defer Close()

	assert.NoError(t, HealthCheck())
}
