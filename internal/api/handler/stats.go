// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/draftforge/draftforge/consts"
	"github.com/draftforge/draftforge/internal/engine"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

// StatsHandler handles dashboard statistics requests
type StatsHandler struct {
	store  store.Store
	engine *engine.Engine
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(s store.Store, eng *engine.Engine) *StatsHandler {
	return &StatsHandler{store: s, engine: eng}
}

// Get handles GET /api/v1/stats
func (h *StatsHandler) Get(c *gin.Context) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := dayStart.AddDate(0, 0, -int(now.Weekday()))

	docTotal, err := h.store.Document().CountAll()
	if err != nil {
		h.fail(c, "document totals", err)
		return
	}
	docToday, err := h.store.Document().CountCreatedAfter(dayStart)
	if err != nil {
		h.fail(c, "document totals", err)
		return
	}
	docWeek, err := h.store.Document().CountCreatedAfter(weekStart)
	if err != nil {
		h.fail(c, "document totals", err)
		return
	}

	jobTotal, err := h.store.Job().CountAll()
	if err != nil {
		h.fail(c, "job totals", err)
		return
	}
	byStatus := make(map[string]int64, 6)
	for _, status := range []model.JobStatus{
		model.JobStatusPending, model.JobStatusRunning, model.JobStatusPaused,
		model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled,
	} {
		n, err := h.store.Job().CountByStatus(status)
		if err != nil {
			h.fail(c, "job status counts", err)
			return
		}
		byStatus[string(status)] = n
	}
	jobsToday, err := h.store.Job().CountCreatedAfter(dayStart)
	if err != nil {
		h.fail(c, "job totals", err)
		return
	}
	tokensToday, err := h.store.Job().SumTokensAfter(dayStart)
	if err != nil {
		h.fail(c, "token totals", err)
		return
	}
	tokensWeek, err := h.store.Job().SumTokensAfter(weekStart)
	if err != nil {
		h.fail(c, "token totals", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": gin.H{
			"total":     docTotal,
			"today":     docToday,
			"this_week": docWeek,
		},
		"jobs": gin.H{
			"total":     jobTotal,
			"by_status": byStatus,
			"today":     jobsToday,
			"active":    h.engine.RunningJobs(),
		},
		"tokens": gin.H{
			"today":     tokensToday,
			"this_week": tokensWeek,
		},
		"service": gin.H{
			"version":        consts.Version,
			"uptime_seconds": int64(consts.GetUptime().Seconds()),
		},
	})
}

func (h *StatsHandler) fail(c *gin.Context, what string, err error) {
	logger.Error("Failed to compute statistics", zap.String("part", what), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    errors.ErrCodeDBQuery,
		"message": "Failed to compute statistics",
	})
}
