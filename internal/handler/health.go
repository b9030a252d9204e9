package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"moldetect-service/internal/dto"
)

// Health answers 200 only once the model is loaded and able to serve,
// so orchestrator probes treat a degraded instance as unhealthy.
func (h *Handler) Health(c *gin.Context) {
	if !h.detection.Ready() {
		c.JSON(http.StatusServiceUnavailable, dto.HealthResponse{
			Status:      "unhealthy",
			Message:     "detection model is not loaded",
			ModelLoaded: false,
			Device:      h.detection.Device(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:      "healthy",
		Message:     "MolDetect API service is running",
		ModelLoaded: true,
		Device:      h.detection.Device(),
	})
}

// Metrics exposes session-pool usage counters.
func (h *Handler) Metrics(c *gin.Context) {
	if h.pool == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session pool is not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.pool.Stats())
}
