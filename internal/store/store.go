// Package store provides the data access layer over the relational
// database. It abstracts GORM operations behind per-model interfaces so
// business logic stays decoupled from query details.
package store

import "gorm.io/gorm"

// Store aggregates all data store interfaces.
// It provides a single point of access for all database operations.
type Store interface {
	User() UserStore
	Document() DocumentStore
	Job() JobStore

	// DB returns the underlying database connection for advanced operations.
	// Use sparingly - prefer using specific store methods.
	DB() *gorm.DB

	// Transaction executes operations within a database transaction.
	Transaction(fn func(Store) error) error
}

// gormStore implements Store interface using GORM.
type gormStore struct {
	db            *gorm.DB
	userStore     UserStore
	documentStore DocumentStore
	jobStore      JobStore
}

// NewStore creates a new Store instance with GORM backend.
func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:            db,
		userStore:     newUserStore(db),
		documentStore: newDocumentStore(db),
		jobStore:      newJobStore(db),
	}
}

func (s *gormStore) User() UserStore {
	return s.userStore
}

func (s *gormStore) Document() DocumentStore {
	return s.documentStore
}

func (s *gormStore) Job() JobStore {
	return s.jobStore
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		txStore := &gormStore{
			db:            tx,
			userStore:     newUserStore(tx),
			documentStore: newDocumentStore(tx),
			jobStore:      newJobStore(tx),
		}
		return fn(txStore)
	})
}
