// Package handler provides HTTP handlers for the API.
// This file proxies model and collection listings from the LLM endpoint.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/llm"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/logger"
)

// ProxyHandler forwards catalog listings to the configured LLM endpoint
type ProxyHandler struct {
	store store.Store
	cfg   *config.Config
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(s store.Store, cfg *config.Config) *ProxyHandler {
	return &ProxyHandler{store: s, cfg: cfg}
}

// ListModels handles GET /api/v1/models
func (h *ProxyHandler) ListModels(c *gin.Context) {
	client := h.clientFor(currentUserID(c))

	models, err := client.ListModels(c.Request.Context())
	if err != nil {
		logger.Warn("Model listing failed", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"models": models})
}

// ListCollections handles GET /api/v1/collections
func (h *ProxyHandler) ListCollections(c *gin.Context) {
	client := h.clientFor(currentUserID(c))

	collections, err := client.ListCollections(c.Request.Context())
	if err != nil {
		logger.Warn("Collection listing failed", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

// clientFor builds a client against the user's endpoint, falling back to
// the server-wide configuration. Endpoint and key move as a pair so a
// user key is never sent to the server's endpoint.
func (h *ProxyHandler) clientFor(userID string) *llm.Client {
	baseURL := h.cfg.LLM.BaseURL
	apiKey := h.cfg.LLM.APIKey

	if row, err := h.store.User().GetLLMConfig(userID); err == nil && row.BaseURL != "" {
		baseURL = row.BaseURL
		apiKey = row.APIKey
	}

	return llm.New(llm.Config{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: time.Duration(h.cfg.LLM.TimeoutSeconds) * time.Second,
	})
}
