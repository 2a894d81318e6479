package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/draftforge/draftforge/internal/model"
)

// DocumentStore defines operations for the Document model.
type DocumentStore interface {
	Create(doc *model.Document) error
	GetByID(id string) (*model.Document, error)
	Update(doc *model.Document) error
	Delete(id string) error

	// List returns the owner's documents, newest first
	List(ownerID string, limit, offset int) ([]model.Document, int64, error)

	// UpdateSectionCount refreshes the cached section count
	UpdateSectionCount(id string, count int) error

	// UpdateBackupPolicy persists the policy and the remembered choice
	UpdateBackupPolicy(id string, policy model.BackupPolicy, choice *bool) error

	// TouchCommit and TouchBackup stamp the respective timestamps
	TouchCommit(id string, at time.Time) error
	TouchBackup(id string, at time.Time) error

	// Statistics
	CountAll() (int64, error)
	CountCreatedAfter(start time.Time) (int64, error)
}

// documentStore implements DocumentStore using GORM.
type documentStore struct {
	db *gorm.DB
}

func newDocumentStore(db *gorm.DB) DocumentStore {
	return &documentStore{db: db}
}

func (s *documentStore) Create(doc *model.Document) error {
	return s.db.Create(doc).Error
}

func (s *documentStore) GetByID(id string) (*model.Document, error) {
	var doc model.Document
	if err := s.db.First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *documentStore) Update(doc *model.Document) error {
	return s.db.Save(doc).Error
}

func (s *documentStore) Delete(id string) error {
	return s.db.Delete(&model.Document{}, "id = ?", id).Error
}

func (s *documentStore) List(ownerID string, limit, offset int) ([]model.Document, int64, error) {
	var docs []model.Document
	var total int64

	query := s.db.Model(&model.Document{}).Where("owner_id = ?", ownerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&docs).Error
	return docs, total, err
}

func (s *documentStore) UpdateSectionCount(id string, count int) error {
	return s.db.Model(&model.Document{}).Where("id = ?", id).
		Update("section_count", count).Error
}

func (s *documentStore) UpdateBackupPolicy(id string, policy model.BackupPolicy, choice *bool) error {
	return s.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"backup_policy": policy,
			"backup_choice": choice,
		}).Error
}

func (s *documentStore) TouchCommit(id string, at time.Time) error {
	return s.db.Model(&model.Document{}).Where("id = ?", id).
		Update("last_commit_at", at).Error
}

func (s *documentStore) TouchBackup(id string, at time.Time) error {
	return s.db.Model(&model.Document{}).Where("id = ?", id).
		Update("last_backup_at", at).Error
}

func (s *documentStore) CountAll() (int64, error) {
	var count int64
	err := s.db.Model(&model.Document{}).Count(&count).Error
	return count, err
}

func (s *documentStore) CountCreatedAfter(start time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&model.Document{}).Where("created_at >= ?", start).Count(&count).Error
	return count, err
}
