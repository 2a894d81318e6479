package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/engine"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

// GenerateHandler handles synchronous generation and the review hook
type GenerateHandler struct {
	store    store.Store
	engine   *engine.Engine
	sections *section.Manager
}

// NewGenerateHandler creates a new generate handler
func NewGenerateHandler(s store.Store, eng *engine.Engine, sections *section.Manager) *GenerateHandler {
	return &GenerateHandler{store: s, engine: eng, sections: sections}
}

// Generate handles POST /api/v1/generate. It blocks until the section is
// generated and committed, so clients get content in the response body.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req engine.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}
	if req.DocumentID == "" || req.SectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "document_id and section_id are required",
		})
		return
	}
	if req.Mode == "" {
		req.Mode = model.ModeReplace
	}

	result, err := h.engine.Generate(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReviewRequest represents a collaborator review submission
type ReviewRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
	SectionID  string `json:"section_id" binding:"required"`
	Comment    string `json:"comment"`
	Reviewer   string `json:"reviewer"`
}

// Review handles POST /api/v1/review. The hook validates the target and
// acknowledges; downstream processing happens out of band.
func (h *GenerateHandler) Review(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "document_id and section_id are required",
		})
		return
	}

	row, err := h.store.Document().GetByID(req.DocumentID)
	if err != nil {
		respondError(c, errors.Newf(errors.ErrCodeNotFound, "document %s not found", req.DocumentID))
		return
	}
	if row.OwnerID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{
			"code":    errors.ErrCodeForbidden,
			"message": "document belongs to another user",
		})
		return
	}
	if err := h.sections.EnsureLoaded(row.ID, row.StoredPath); err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.sections.FindSection(req.DocumentID, req.SectionID); err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Review received",
		zap.String("document_id", req.DocumentID),
		zap.String("section_id", req.SectionID),
		zap.String("reviewer", req.Reviewer),
		zap.Int("comment_len", len(req.Comment)),
	)

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
