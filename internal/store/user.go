package store

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/draftforge/draftforge/internal/model"
)

// UserStore defines operations for User and UserLLMConfig models.
type UserStore interface {
	// User CRUD
	Create(user *model.User) error
	GetByID(id string) (*model.User, error)
	GetByUsername(username string) (*model.User, error)
	Update(user *model.User) error
	Delete(id string) error

	// UpdateLastLogin stamps the user's last successful login
	UpdateLastLogin(id string, at time.Time) error

	// Count returns the number of registered users
	Count() (int64, error)

	// List returns users ordered by creation time
	List(limit, offset int) ([]model.User, int64, error)

	// Per-user LLM endpoint configuration
	GetLLMConfig(userID string) (*model.UserLLMConfig, error)
	SaveLLMConfig(cfg *model.UserLLMConfig) error
	DeleteLLMConfig(userID string) error
}

// userStore implements UserStore using GORM.
type userStore struct {
	db *gorm.DB
}

func newUserStore(db *gorm.DB) UserStore {
	return &userStore{db: db}
}

func (s *userStore) Create(user *model.User) error {
	return s.db.Create(user).Error
}

func (s *userStore) GetByID(id string) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userStore) GetByUsername(username string) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userStore) Update(user *model.User) error {
	return s.db.Save(user).Error
}

func (s *userStore) Delete(id string) error {
	return s.db.Delete(&model.User{}, "id = ?", id).Error
}

func (s *userStore) UpdateLastLogin(id string, at time.Time) error {
	return s.db.Model(&model.User{}).Where("id = ?", id).
		Update("last_login_at", at).Error
}

func (s *userStore) Count() (int64, error) {
	var count int64
	err := s.db.Model(&model.User{}).Count(&count).Error
	return count, err
}

func (s *userStore) List(limit, offset int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	query := s.db.Model(&model.User{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at ASC").Offset(offset).Limit(limit).Find(&users).Error
	return users, total, err
}

// GetLLMConfig returns the per-user endpoint settings, or
// gorm.ErrRecordNotFound when the user never saved any.
func (s *userStore) GetLLMConfig(userID string) (*model.UserLLMConfig, error) {
	var cfg model.UserLLMConfig
	if err := s.db.First(&cfg, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveLLMConfig inserts or updates the single config row per user.
func (s *userStore) SaveLLMConfig(cfg *model.UserLLMConfig) error {
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_url", "api_key", "model", "temperature", "max_tokens", "output_language", "updated_at",
		}),
	}).Create(cfg).Error
}

func (s *userStore) DeleteLLMConfig(userID string) error {
	return s.db.Delete(&model.UserLLMConfig{}, "user_id = ?", userID).Error
}
