package handler

import (
	"errors"
	"net/http"

	"moldetect-service/internal/domain"
	"moldetect-service/internal/dto"

	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedMedia),
		errors.Is(err, domain.ErrImageDecode),
		errors.Is(err, domain.ErrEmptyUpload),
		errors.Is(err, domain.ErrInvalidPredictions),
		errors.Is(err, domain.ErrPredictionOutOfRange),
		errors.Is(err, domain.ErrInvalidArtifactName):
		fail(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, domain.ErrVisualizationNotFound):
		fail(c, http.StatusNotFound, err.Error())

	case errors.Is(err, domain.ErrModelNotAvailable),
		errors.Is(err, domain.ErrAcquireTimeout):
		fail(c, http.StatusServiceUnavailable, err.Error())

	default:
		fail(c, http.StatusInternalServerError, "internal server error")
	}
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, dto.DetectionResponse{Success: false, Message: message})
}
