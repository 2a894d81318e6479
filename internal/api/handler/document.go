// Package handler provides HTTP handlers for the API.
// This file handles document upload, retrieval, commit, export and deletion.
package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge/internal/commit"
	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/export"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/idgen"
	"github.com/draftforge/draftforge/pkg/logger"
)

// DocumentHandler handles document lifecycle requests
type DocumentHandler struct {
	store     store.Store
	sections  *section.Manager
	committer *commit.Committer
	exports   *export.Manager
	cfg       *config.Config
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(s store.Store, sections *section.Manager, committer *commit.Committer, exports *export.Manager, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{
		store:     s,
		sections:  sections,
		committer: committer,
		exports:   exports,
		cfg:       cfg,
	}
}

// sectionView is the tree node shape returned to clients
type sectionView struct {
	ID         string        `json:"id"`
	Hash       string        `json:"hash"`
	Level      int           `json:"level"`
	Title      string        `json:"title"`
	Path       string        `json:"path"`
	Content    string        `json:"content"`
	HasContent bool          `json:"has_content"`
	Edited     bool          `json:"edited"`
	Children   []sectionView `json:"children,omitempty"`
}

// Upload handles POST /api/v1/documents/upload
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "Multipart field 'file' is required",
		})
		return
	}

	name := filepath.Base(fileHeader.Filename)
	if !validFilename(name) || !strings.EqualFold(filepath.Ext(name), ".docx") {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeDocumentFormat,
			"message": "Only .docx files are accepted",
		})
		return
	}
	if fileHeader.Size > h.cfg.Upload.MaxBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeDocumentTooLarge,
			"message": fmt.Sprintf("File exceeds the %d byte upload limit", h.cfg.Upload.MaxBytes),
		})
		return
	}

	if err := os.MkdirAll(h.cfg.Upload.Dir, 0755); err != nil {
		logger.Error("Failed to create upload directory", zap.String("dir", h.cfg.Upload.Dir), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDocumentStorage,
			"message": "Failed to store upload",
		})
		return
	}

	id := idgen.NewDocumentID()
	storedPath := filepath.Join(h.cfg.Upload.Dir, id+"_"+name)
	if err := c.SaveUploadedFile(fileHeader, storedPath); err != nil {
		logger.Error("Failed to save upload", zap.String("path", storedPath), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDocumentStorage,
			"message": "Failed to store upload",
		})
		return
	}

	doc, err := docx.Open(storedPath)
	if err != nil {
		os.Remove(storedPath)
		logger.Warn("Uploaded document failed to parse", zap.String("name", name), zap.Error(err))
		respondError(c, err)
		return
	}

	tree := section.Parse(doc, id)
	h.sections.Put(id, doc, tree)

	policy := model.BackupAsk
	if model.ValidBackupPolicy(h.cfg.Backup.Policy) {
		policy = model.BackupPolicy(h.cfg.Backup.Policy)
	}

	row := &model.Document{
		ID:           id,
		OwnerID:      currentUserID(c),
		Name:         name,
		StoredPath:   storedPath,
		Size:         fileHeader.Size,
		SectionCount: tree.SectionCount(),
		BackupPolicy: policy,
	}
	if err := h.store.Document().Create(row); err != nil {
		h.sections.Remove(id)
		os.Remove(storedPath)
		logger.Error("Failed to persist document", zap.String("document_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDBQuery,
			"message": "Failed to persist document",
		})
		return
	}

	logger.Info("Document uploaded",
		zap.String("document_id", id),
		zap.String("name", name),
		zap.Int64("size", fileHeader.Size),
		zap.Int("sections", tree.SectionCount()),
	)

	c.JSON(http.StatusCreated, gin.H{
		"document": row,
		"sections": h.treeView(id),
	})
}

// List handles GET /api/v1/documents
func (h *DocumentHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)

	docs, total, err := h.store.Document().List(currentUserID(c), pageSize, (page-1)*pageSize)
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDBQuery,
			"message": "Failed to list documents",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      docs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get handles GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	row, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}

	if err := h.sections.EnsureLoaded(row.ID, row.StoredPath); err != nil {
		logger.Error("Failed to load document from storage",
			zap.String("document_id", row.ID),
			zap.String("path", row.StoredPath),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document": row,
		"sections": h.treeView(row.ID),
	})
}

// CommitRequest represents the body of a section commit
type CommitRequest struct {
	SectionID string `json:"section_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
	Mode      string `json:"mode"`
	Save      *bool  `json:"save"`
	SaveAs    string `json:"save_as"`
	// Backup answers the ask policy for this commit
	Backup *bool `json:"backup"`
}

// Commit handles POST /api/v1/documents/:id/commit
func (h *DocumentHandler) Commit(c *gin.Context) {
	row, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}

	var req CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "section_id and content are required",
		})
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = string(model.ModeReplace)
	}
	if !model.ValidGenerationMode(mode) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": fmt.Sprintf("invalid commit mode %q", mode),
		})
		return
	}

	save := true
	if req.Save != nil {
		save = *req.Save
	}

	result, err := h.committer.Commit(c.Request.Context(), commit.Request{
		DocumentID:     row.ID,
		SectionID:      req.SectionID,
		Content:        req.Content,
		Mode:           model.GenerationMode(mode),
		BackupOverride: req.Backup,
		Save:           save,
		SaveAs:         req.SaveAs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"commit": result})
}

// Download handles GET /api/v1/documents/:id/download
func (h *DocumentHandler) Download(c *gin.Context) {
	row, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}

	if _, err := os.Stat(row.StoredPath); err != nil {
		logger.Error("Stored document file missing", zap.String("document_id", row.ID), zap.String("path", row.StoredPath))
		c.JSON(http.StatusNotFound, gin.H{
			"code":    errors.ErrCodeNotFound,
			"message": "Stored document file is missing",
		})
		return
	}

	c.FileAttachment(row.StoredPath, row.Name)
}

// Export handles GET /api/v1/documents/:id/export?format=markdown|json|html|pdf
func (h *DocumentHandler) Export(c *gin.Context) {
	row, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}

	format := export.Format(c.DefaultQuery("format", string(export.FormatMarkdown)))

	if err := h.sections.EnsureLoaded(row.ID, row.StoredPath); err != nil {
		respondError(c, err)
		return
	}

	var content string
	err := h.sections.WithDocument(row.ID, func(doc *docx.Document, tree *section.Tree) (*section.Tree, error) {
		var exportErr error
		content, exportErr = h.exports.Export(doc, tree, format)
		return nil, exportErr
	})
	if err != nil {
		respondError(c, err)
		return
	}

	filename := h.exports.Filename(row.Name, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, export.ContentType(format), []byte(content))
}

// Delete handles DELETE /api/v1/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	row, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}

	// Refuse while a job is still generating into the document
	for _, status := range []string{string(model.JobStatusRunning), string(model.JobStatusPaused), string(model.JobStatusPending)} {
		_, active, err := h.store.Job().List(row.OwnerID, row.ID, status, 1, 0)
		if err != nil {
			logger.Error("Failed to check active jobs", zap.String("document_id", row.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    errors.ErrCodeDBQuery,
				"message": "Failed to check active jobs",
			})
			return
		}
		if active > 0 {
			c.JSON(http.StatusConflict, gin.H{
				"code":    errors.ErrCodeConflict,
				"message": "Document has an active generation job; cancel it first",
			})
			return
		}
	}

	h.sections.Remove(row.ID)

	if err := os.Remove(row.StoredPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove stored file", zap.String("path", row.StoredPath), zap.Error(err))
	}
	// The sidecar survives Remove when the document was never loaded
	if sidecar := section.SidecarPath(row.StoredPath); sidecar != "" {
		if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove tracking sidecar", zap.String("path", sidecar), zap.Error(err))
		}
	}

	if err := h.store.Document().Delete(row.ID); err != nil {
		logger.Error("Failed to delete document row", zap.String("document_id", row.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDBQuery,
			"message": "Failed to delete document",
		})
		return
	}

	logger.Info("Document deleted", zap.String("document_id", row.ID), zap.String("name", row.Name))

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// loadOwned fetches a document row and enforces ownership
func (h *DocumentHandler) loadOwned(c *gin.Context, id string) (*model.Document, bool) {
	row, err := h.store.Document().GetByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    errors.ErrCodeNotFound,
				"message": fmt.Sprintf("document %s not found", id),
			})
			return nil, false
		}
		logger.Error("Failed to load document", zap.String("document_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDBQuery,
			"message": "Failed to load document",
		})
		return nil, false
	}
	if row.OwnerID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{
			"code":    errors.ErrCodeForbidden,
			"message": "document belongs to another user",
		})
		return nil, false
	}
	return row, true
}

// treeView renders the section tree with content and edit state under the
// document lock so concurrent commits cannot tear the snapshot
func (h *DocumentHandler) treeView(documentID string) []sectionView {
	tracking := h.sections.Tracking(documentID)

	var views []sectionView
	err := h.sections.WithDocument(documentID, func(doc *docx.Document, tree *section.Tree) (*section.Tree, error) {
		views = make([]sectionView, 0, len(tree.Roots))
		for _, s := range tree.Roots {
			views = append(views, buildSectionView(doc, s, tracking))
		}
		return nil, nil
	})
	if err != nil {
		return nil
	}
	return views
}

func buildSectionView(doc *docx.Document, s *section.Section, tracking map[string]section.TrackingEntry) sectionView {
	content := s.ContentText(doc)
	v := sectionView{
		ID:         s.ID,
		Hash:       s.Hash,
		Level:      s.Level,
		Title:      s.Title,
		Path:       s.Path,
		Content:    content,
		HasContent: content != "",
		Edited:     tracking[s.Hash].Edited,
	}
	for _, child := range s.Children {
		v.Children = append(v.Children, buildSectionView(doc, child, tracking))
	}
	return v
}
