package handler

import (
	"github.com/gin-gonic/gin"

	"moldetect-service/internal/detector"
	"moldetect-service/internal/service"
)

// PoolStats exposes session-pool usage for the monitoring endpoint.
type PoolStats interface {
	Stats() detector.Metrics
}

type Handler struct {
	detection     *service.DetectionService
	visualization *service.VisualizationService
	pool          PoolStats
}

// New wires the handlers. pool may be nil when the model failed to
// load; the monitoring endpoint then reports no pool.
func New(detection *service.DetectionService, visualization *service.VisualizationService, pool PoolStats) *Handler {
	return &Handler{
		detection:     detection,
		visualization: visualization,
		pool:          pool,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/detect", h.Detect)
	r.POST("/visualize", h.Visualize)
	r.GET("/visualize/:filename", h.GetVisualization)
	r.GET("/metrics", h.Metrics)
}
