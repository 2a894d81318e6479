// Package database provides database connection and management functionality.
package database

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

const (
	// DefaultJobLogDBPath is the hardcoded job log database file path
	// Job logs live in a separate database so their write volume never
	// contends with the main database
	DefaultJobLogDBPath = "./data/job_logs.db"
)

var (
	jobLogDB   *gorm.DB
	jobLogOnce sync.Once
)

// InitJobLogDB initializes the job log database connection and performs auto-migration.
// This function is safe to call multiple times; only the first call will take effect.
// The database path is hardcoded to DefaultJobLogDBPath.
func InitJobLogDB() error {
	return InitJobLogDBWithPath(DefaultJobLogDBPath)
}

// InitJobLogDBWithPath initializes the job log database with a custom path.
// This is primarily useful for testing or development purposes.
func InitJobLogDBWithPath(dbPath string) error {
	var initErr error
	jobLogOnce.Do(func() {
		initErr = initJobLogDB(dbPath)
	})
	return initErr
}

// initJobLogDB performs the actual job log database initialization.
func initJobLogDB(dbPath string) error {
	logger.Info("Initializing job log database", zap.String("path", dbPath))

	// Ensure the directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("Failed to create job log db directory", zap.Error(err), zap.String("dir", dbDir))
		return errors.Wrap(errors.ErrCodeDBConnection, "failed to create job log db directory", err)
	}

	// Configure GORM logger (silent mode for job logs)
	gormLog := gormlogger.Default.LogMode(gormlogger.Silent)

	// Open SQLite database using the same driver as main database
	dialector := sqlite.Open(dbPath)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		logger.Error("Failed to open job log database", zap.Error(err))
		return errors.Wrap(errors.ErrCodeDBConnection, "failed to open job log database", err)
	}

	// Apply SQLite optimizations
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get job log sql.DB", zap.Error(err))
		return errors.Wrap(errors.ErrCodeDBConnection, "failed to get job log sql.DB", err)
	}

	// SQLite connection pool configuration (single connection to avoid concurrent write conflicts)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	// Enable WAL mode (improves concurrent read performance)
	if err := db.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
		logger.Warn("Failed to enable WAL mode for job log db", zap.Error(err))
	}

	// Set synchronous=NORMAL (balances performance and safety)
	if err := db.Exec("PRAGMA synchronous = NORMAL").Error; err != nil {
		logger.Warn("Failed to set synchronous mode for job log db", zap.Error(err))
	}

	// Auto-migrate job log model
	if err := db.AutoMigrate(&model.JobLog{}); err != nil {
		logger.Error("Failed to migrate job log model", zap.Error(err))
		return errors.Wrap(errors.ErrCodeDBMigration, "failed to migrate job log model", err)
	}

	jobLogDB = db

	logger.Info("Job log database initialized successfully",
		zap.String("path", dbPath),
	)

	return nil
}

// GetJobLogDB returns the job log database connection.
// It panics if the database has not been initialized.
func GetJobLogDB() *gorm.DB {
	if jobLogDB == nil {
		panic("job log database not initialized - call InitJobLogDB first")
	}
	return jobLogDB
}

// IsJobLogDBInitialized returns true if the job log database has been initialized.
func IsJobLogDBInitialized() bool {
	return jobLogDB != nil
}

// CloseJobLogDB closes the job log database connection.
func CloseJobLogDB() error {
	if jobLogDB == nil {
		return nil
	}

	sqlDB, err := jobLogDB.DB()
	if err != nil {
		return errors.Wrap(errors.ErrCodeDBConnection, "failed to get job log sql.DB", err)
	}

	if err := sqlDB.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeDBConnection, "failed to close job log database", err)
	}

	logger.Info("Job log database closed")
	return nil
}

// ResetJobLogDBForTesting resets the job log database state for testing purposes.
// This allows re-initialization of the database in tests.
// WARNING: Only use this function in tests!
func ResetJobLogDBForTesting() {
	if jobLogDB != nil {
		sqlDB, _ := jobLogDB.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		jobLogDB = nil
	}
	jobLogOnce = sync.Once{}
}
