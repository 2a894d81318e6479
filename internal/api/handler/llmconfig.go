// Package handler provides HTTP handlers for the API.
// This file handles the per-user LLM endpoint configuration.
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

// LLMConfigHandler manages per-user LLM endpoint settings
type LLMConfigHandler struct {
	store store.Store
	cfg   *config.Config
}

// NewLLMConfigHandler creates a new LLM config handler
func NewLLMConfigHandler(s store.Store, cfg *config.Config) *LLMConfigHandler {
	return &LLMConfigHandler{store: s, cfg: cfg}
}

// SaveLLMConfigRequest represents the config update body. A missing or
// redacted api_key keeps the previously stored key.
type SaveLLMConfigRequest struct {
	BaseURL        string   `json:"base_url"`
	APIKey         string   `json:"api_key"`
	Model          string   `json:"model"`
	Temperature    *float64 `json:"temperature"`
	MaxTokens      *int     `json:"max_tokens"`
	OutputLanguage string   `json:"output_language"`
}

// Save handles POST /api/v1/config
func (h *LLMConfigHandler) Save(c *gin.Context) {
	var req SaveLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "Invalid request body",
		})
		return
	}

	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "Temperature must be between 0 and 2",
		})
		return
	}
	if req.MaxTokens != nil && (*req.MaxTokens < 100 || *req.MaxTokens > 100000) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "Max tokens must be between 100 and 100000",
		})
		return
	}
	userID := currentUserID(c)

	row, err := h.store.User().GetLLMConfig(userID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to load LLM config", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    errors.ErrCodeDBQuery,
				"message": "Failed to load configuration",
			})
			return
		}
		row = &model.UserLLMConfig{UserID: userID}
	}

	row.BaseURL = strings.TrimRight(req.BaseURL, "/")
	row.Model = req.Model
	row.OutputLanguage = req.OutputLanguage
	if req.Temperature != nil {
		row.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		row.MaxTokens = *req.MaxTokens
	}
	// The api_key round-trips redacted; only a fresh value replaces it
	if req.APIKey != "" && !strings.HasPrefix(req.APIKey, "****") {
		row.APIKey = req.APIKey
	}

	if err := h.store.User().SaveLLMConfig(row); err != nil {
		logger.Error("Failed to save LLM config", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDBQuery,
			"message": "Failed to save configuration",
		})
		return
	}

	logger.Info("LLM config saved",
		zap.String("user_id", userID),
		zap.String("base_url", row.BaseURL),
		zap.String("model", row.Model),
	)

	c.JSON(http.StatusOK, h.view(row, true))
}

// Get handles GET /api/v1/config. When the user never saved settings the
// server defaults are returned with configured=false.
func (h *LLMConfigHandler) Get(c *gin.Context) {
	userID := currentUserID(c)

	row, err := h.store.User().GetLLMConfig(userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusOK, h.view(nil, false))
			return
		}
		logger.Error("Failed to load LLM config", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDBQuery,
			"message": "Failed to load configuration",
		})
		return
	}

	c.JSON(http.StatusOK, h.view(row, true))
}

// view renders the effective settings with the API key redacted
func (h *LLMConfigHandler) view(row *model.UserLLMConfig, configured bool) gin.H {
	if row == nil {
		return gin.H{
			"configured":      false,
			"base_url":        h.cfg.LLM.BaseURL,
			"api_key":         redactKey(h.cfg.LLM.APIKey),
			"model":           h.cfg.LLM.DefaultModel,
			"temperature":     h.cfg.LLM.Temperature,
			"max_tokens":      h.cfg.LLM.MaxTokens,
			"output_language": h.cfg.LLM.OutputLanguage,
		}
	}
	return gin.H{
		"configured":      configured,
		"base_url":        row.BaseURL,
		"api_key":         redactKey(row.APIKey),
		"model":           row.Model,
		"temperature":     row.Temperature,
		"max_tokens":      row.MaxTokens,
		"output_language": row.OutputLanguage,
	}
}
