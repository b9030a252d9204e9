package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"moldetect-service/internal/dto"
)

// readUpload pulls the multipart "file" field; returns its bytes,
// original name and declared content type.
func readUpload(c *gin.Context) ([]byte, string, string, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, "", "", err
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", "", err
	}
	return data, header.Filename, uploadContentType(header), nil
}

func uploadContentType(header *multipart.FileHeader) string {
	return header.Header.Get("Content-Type")
}

func (h *Handler) Detect(c *gin.Context) {
	data, filename, contentType, err := readUpload(c)
	if err != nil {
		fail(c, http.StatusBadRequest, "image file is required")
		return
	}

	pred, info, err := h.detection.Detect(c.Request.Context(), data, filename, contentType)
	if err != nil {
		log.WithError(err).WithField("filename", filename).Warn("detection request failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DetectionResponse{
		Success:     true,
		Message:     "detection completed",
		Predictions: dto.ToPredictionPayload(pred),
		ImageInfo:   dto.ToImageInfoPayload(info),
	})
}
