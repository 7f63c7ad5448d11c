package handlers

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"xrayqc/api/internal/models"
	"xrayqc/api/internal/repository"
)

func (h HandlerSet) PendingUsers(c *gin.Context) {
	users, err := h.users.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch pending users", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toUserResponses(users))
}

func (h HandlerSet) ListUsers(c *gin.Context) {
	users, err := h.users.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch users", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toUserResponses(users))
}

type userIDRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h HandlerSet) ApproveUser(c *gin.Context) {
	var req userIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id is required"})
		return
	}

	user, err := h.users.Approve(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to approve user", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User approved successfully",
		"user":    toUserResponse(user),
	})
}

// RejectUser deletes the account outright; rejection and deletion share
// this one implementation.
func (h HandlerSet) RejectUser(c *gin.Context) {
	var req userIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id is required"})
		return
	}

	user, err := h.users.Delete(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to reject user", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User rejected and removed",
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
		},
	})
}

type roleRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	NewRole string `json:"new_role" binding:"required"`
}

func (h HandlerSet) UpdateUserRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id and new_role are required"})
		return
	}

	role := models.UserRole(req.NewRole)
	if role != models.UserRoleUser && role != models.UserRoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"message": `Invalid role. Must be "user" or "admin"`})
		return
	}

	user, err := h.users.UpdateRole(c.Request.Context(), req.UserID, role)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update role", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User role updated successfully",
		"user":    toUserResponse(user),
	})
}

func (h HandlerSet) Reports(c *gin.Context) {
	filter := repository.ReportFilter{
		StartDate:  c.Query("start_date"),
		EndDate:    c.Query("end_date"),
		DetectorID: c.Query("detector_id"),
	}

	logs, err := h.logs.ListReport(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch reports", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summarizeReport(logs),
		"logs":    logs,
	})
}

type reportSummary struct {
	TotalInspections int     `json:"total_inspections"`
	Defects          int     `json:"defects"`
	FalsePositives   int     `json:"false_positives"`
	DefectRate       float64 `json:"defect_rate"`
}

// summarizeReport aggregates a report window in process. An empty window
// yields a zero rate rather than a division error.
func summarizeReport(logs []models.InspectionLog) reportSummary {
	summary := reportSummary{TotalInspections: len(logs)}
	for _, log := range logs {
		if log.FinalVerdict == models.VerdictNG {
			summary.Defects++
		}
		if log.IsFalsePositive {
			summary.FalsePositives++
		}
	}
	if len(logs) > 0 {
		summary.DefectRate = math.Round(float64(summary.Defects)/float64(len(logs))*10000) / 10000
	}
	return summary
}

func toUserResponses(users []models.User) []userResponse {
	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, toUserResponse(user))
	}
	return resp
}
