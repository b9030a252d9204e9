package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"moldetect-service/internal/domain"
	"moldetect-service/internal/dto"
)

func (h *Handler) Visualize(c *gin.Context) {
	data, filename, contentType, err := readUpload(c)
	if err != nil {
		fail(c, http.StatusBadRequest, "image file is required")
		return
	}

	// Callers may supply the predictions from an earlier /detect call;
	// otherwise detection runs as part of the request.
	var pred *domain.Prediction
	if raw := c.PostForm("predictions"); raw != "" {
		pred, err = dto.ParsePredictions(raw)
		if err != nil {
			mapDomainError(c, err)
			return
		}
	}

	path, err := h.visualization.Visualize(c.Request.Context(), data, filename, contentType, pred)
	if err != nil {
		log.WithError(err).WithField("filename", filename).Warn("visualization request failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.VisualizationResponse{
		Success:   true,
		Message:   "visualization completed",
		ImagePath: path,
	})
}

func (h *Handler) GetVisualization(c *gin.Context) {
	path, err := h.visualization.Open(c.Param("filename"))
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.Header("Content-Type", "image/png")
	c.File(path)
}
