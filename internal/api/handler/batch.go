package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/engine"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

// BatchHandler handles batch generation job requests
type BatchHandler struct {
	engine *engine.Engine
	logs   store.JobLogStore
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(eng *engine.Engine, logs store.JobLogStore) *BatchHandler {
	return &BatchHandler{engine: eng, logs: logs}
}

// job log pagination configuration
const (
	defaultLogPage     = 1
	defaultLogPageSize = 50
	minLogPageSize     = 1
	maxLogPageSize     = 500
)

// Start handles POST /api/v1/batch/start
func (h *BatchHandler) Start(c *gin.Context) {
	var req engine.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}
	if req.DocumentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "document_id is required",
		})
		return
	}
	if req.Mode == "" {
		req.Mode = model.ModeReplace
	}

	job, err := h.engine.StartBatch(currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"task_id": job.ID,
		"job":     job,
	})
}

// List handles GET /api/v1/batch
func (h *BatchHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)
	documentID := c.Query("document_id")
	status := c.Query("status")

	if status != "" && !validJobStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "Invalid status, must be one of: pending, running, paused, completed, failed, cancelled",
		})
		return
	}

	jobs, total, err := h.engine.List(currentUserID(c), documentID, status, pageSize, (page-1)*pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      jobs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Status handles GET /api/v1/batch/:job/status
func (h *BatchHandler) Status(c *gin.Context) {
	job, err := h.engine.Status(c.Param("job"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Logs handles GET /api/v1/batch/:job/logs
func (h *BatchHandler) Logs(c *gin.Context) {
	jobID := c.Param("job")

	// Ownership check before touching the log database
	if _, err := h.engine.Status(jobID, currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultLogPage)))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultLogPageSize)))
	level := c.Query("level")

	if page < 1 {
		page = defaultLogPage
	}
	if pageSize < minLogPageSize || pageSize > maxLogPageSize {
		pageSize = defaultLogPageSize
	}

	var levelFilter model.LogLevel
	if level != "" {
		switch level {
		case "debug", "info", "warn", "error", "fatal":
			levelFilter = model.LogLevel(level)
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    errors.ErrCodeValidation,
				"message": "Invalid log level, must be one of: debug, info, warn, error, fatal",
			})
			return
		}
	}

	var logs []model.JobLog
	var total int64
	var err error
	if levelFilter != "" {
		logs, total, err = h.logs.GetByJobIDAndLevel(jobID, levelFilter, page, pageSize)
	} else {
		logs, total, err = h.logs.GetByJobIDWithPagination(jobID, page, pageSize)
	}
	if err != nil {
		logger.Error("Failed to fetch job logs", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDBQuery,
			"message": "Failed to fetch job logs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      logs,
		"total":     total,
		"job_id":    jobID,
		"page":      page,
		"page_size": pageSize,
	})
}

// Pause handles POST /api/v1/batch/:job/pause
func (h *BatchHandler) Pause(c *gin.Context) {
	job, err := h.engine.Pause(c.Param("job"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Resume handles POST /api/v1/batch/:job/resume
func (h *BatchHandler) Resume(c *gin.Context) {
	job, err := h.engine.Resume(c.Param("job"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Cancel handles POST /api/v1/batch/:job/cancel
func (h *BatchHandler) Cancel(c *gin.Context) {
	job, err := h.engine.Cancel(c.Request.Context(), c.Param("job"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func validJobStatus(s string) bool {
	switch model.JobStatus(s) {
	case model.JobStatusPending, model.JobStatusRunning, model.JobStatusPaused,
		model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled:
		return true
	}
	return false
}
