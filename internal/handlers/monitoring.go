package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"xrayqc/api/internal/middleware"
	"xrayqc/api/internal/models"
	"xrayqc/api/internal/repository"
)

// LatestFeed backs the dashboard's polling view: the newest log plus the
// detector's line-side status.
func (h HandlerSet) LatestFeed(c *gin.Context) {
	detectorID := c.Query("detector_id")

	var latest *models.InspectionLog
	log, err := h.logs.Latest(c.Request.Context(), detectorID)
	switch {
	case err == nil:
		latest = &log
	case errors.Is(err, repository.ErrLogNotFound):
		// fresh line, nothing inspected yet
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch latest feed", "error": err.Error()})
		return
	}

	statusText := "Unknown"
	if status, err := h.detectors.CurrentStatus(c.Request.Context(), detectorID); err == nil {
		statusText = status.CurrentStatus
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      statusText,
		"system_time": time.Now().UTC().Format(time.RFC3339),
		"latest_log":  latest,
	})
}

func (h HandlerSet) StatsSummary(c *gin.Context) {
	summary, err := h.logs.Summary(c.Request.Context(), c.Query("duration"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch stats", "error": err.Error()})
		return
	}

	cumulative, err := h.logs.CountAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch stats", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_scans":      summary.TotalScans,
		"defects":          summary.Defects,
		"defect_rate":      summary.DefectRate,
		"cumulative_usage": cumulative,
	})
}

func (h HandlerSet) DefectDetail(c *gin.Context) {
	log, err := h.logs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrLogNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Log not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch log details", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, log)
}

type feedbackRequest struct {
	FeedbackType string `json:"feedback_type"`
}

func (h HandlerSet) RecordFeedback(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Access token required"})
		return
	}

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FeedbackType != "false_positive" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid feedback type"})
		return
	}

	log, err := h.logs.MarkFalsePositive(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrLogNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Log not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to record feedback", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Feedback recorded successfully",
		"log":     log,
	})
}

func (h HandlerSet) History(c *gin.Context) {
	filter := repository.HistoryFilter{
		DetectorID: c.Query("detector_id"),
		StartDate:  c.Query("start_date"),
		EndDate:    c.Query("end_date"),
		Verdict:    c.Query("verdict"),
	}

	page := intQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := intQuery(c, "limit", 20)
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	total, err := h.logs.CountHistory(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch history", "error": err.Error()})
		return
	}

	logs, err := h.logs.ListHistory(c.Request.Context(), filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch history", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs": logs,
		"pagination": gin.H{
			"total":      total,
			"page":       page,
			"limit":      limit,
			"totalPages": totalPages(total, limit),
		},
	})
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
