package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"xrayqc/api/internal/aiclient"
	"xrayqc/api/internal/models"
	"xrayqc/api/internal/service"
)

type inspectionLogResponse struct {
	models.InspectionLog
	TotalDefects     int     `json:"total_defects"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}

func (h HandlerSet) UploadInspection(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No image file provided"})
		return
	}
	defer file.Close()

	detectorID := c.PostForm("detector_id")
	if detectorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "detector_id is required"})
		return
	}

	if header.Size > h.cfg.Upload.MaxSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Image exceeds the 10MB size limit"})
		return
	}

	if !acceptableImage(header) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Only image files (jpg, jpeg, png) are allowed"})
		return
	}

	result, err := h.inspections.Inspect(c.Request.Context(), service.InspectInput{
		DetectorID: detectorID,
		Filename:   header.Filename,
		Image:      file,
	})
	if err != nil {
		h.respondInspectionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Inspection completed successfully",
		"log": inspectionLogResponse{
			InspectionLog:    result.Log,
			TotalDefects:     result.TotalDefects,
			ProcessingTimeMS: result.ProcessingTimeMS,
		},
	})
}

func (h HandlerSet) respondInspectionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, aiclient.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"message": "AI service is not available",
			"error":   "Cannot connect to AI service. Please ensure it is running.",
		})
	case errors.Is(err, service.ErrImageTooLarge), errors.Is(err, service.ErrEmptyImage):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid image payload", "error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("inspection failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Inspection failed", "error": err.Error()})
	}
}

type batchRequest struct {
	DetectorID string `json:"detector_id" binding:"required"`
	ImageDir   string `json:"image_dir" binding:"required"`
}

func (h HandlerSet) BatchInspection(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "detector_id and image_dir are required"})
		return
	}

	result, err := h.inspections.BatchInspect(c.Request.Context(), req.DetectorID, req.ImageDir)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDirNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Image directory does not exist"})
		case errors.Is(err, service.ErrNoImages):
			c.JSON(http.StatusBadRequest, gin.H{"message": "No image files found in directory"})
		default:
			h.log.Error().Err(err).Msg("batch inspection failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Batch inspection failed", "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Batch inspection completed",
		"total":      result.Total,
		"successful": result.Successful,
		"failed":     result.Failed,
		"results":    result.Results,
	})
}

func (h HandlerSet) InspectionLogs(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	logs, err := h.logs.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to get inspection logs", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": len(logs),
	})
}

// acceptableImage mirrors the upload gate: jpg/jpeg/png by extension, and
// the declared content type must agree when present.
func acceptableImage(header *multipart.FileHeader) bool {
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".jpg", ".jpeg", ".png":
	default:
		return false
	}

	declared := header.Header.Get("Content-Type")
	if declared == "" {
		return true
	}
	for _, allowed := range []string{"jpeg", "jpg", "png"} {
		if strings.Contains(declared, allowed) {
			return true
		}
	}
	return false
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
