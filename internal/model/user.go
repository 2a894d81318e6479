// Package model defines the data models for the application.
// This file defines user account and per-user LLM configuration models.
package model

import (
	"time"

	"gorm.io/gorm"
)

// UserRole represents the role of a user account
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// User represents an authenticated principal
type User struct {
	ID        string         `gorm:"primarykey;size:20" json:"id"` // xid
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username     string   `gorm:"size:100;not null;uniqueIndex" json:"username"`
	PasswordHash string   `gorm:"size:255;not null" json:"-"`
	Role         UserRole `gorm:"size:20;not null;default:user" json:"role"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// UserLLMConfig stores the per-user connection settings for the LLM endpoint.
// The API key is write-only: it is stored but never serialized back to clients.
type UserLLMConfig struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID string `gorm:"size:20;not null;uniqueIndex" json:"user_id"`

	BaseURL string `gorm:"size:512" json:"base_url"`
	APIKey  string `gorm:"size:512" json:"-"`
	Model   string `gorm:"size:255" json:"model"`

	Temperature float64 `gorm:"default:0.7" json:"temperature"`
	MaxTokens   int     `gorm:"default:4096" json:"max_tokens"`

	// OutputLanguage is a language code (e.g. "en", "zh") steering generated prose
	OutputLanguage string `gorm:"size:10" json:"output_language,omitempty"`
}

// HasAPIKey reports whether an API key has been configured
func (c *UserLLMConfig) HasAPIKey() bool {
	return c.APIKey != ""
}

// UserAllModels returns all user-related models for auto-migration
func UserAllModels() []interface{} {
	return []interface{}{
		&User{},
		&UserLLMConfig{},
	}
}
