package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"moldetect-service/internal/domain"
)

// Renderer draws a prediction onto the source image.
type Renderer interface {
	Render(img image.Image, pred *domain.Prediction) (image.Image, error)
}

// ArtifactStore persists and resolves rendered visualizations.
type ArtifactStore interface {
	SavePNG(img image.Image, baseName string) (string, error)
	Resolve(name string) (string, error)
}

// VisualizationService renders annotated detection images. When the
// caller does not supply predictions, detection runs first, matching
// the API's historical behavior.
type VisualizationService struct {
	detection *DetectionService
	renderer  Renderer
	store     ArtifactStore
}

func NewVisualizationService(detection *DetectionService, renderer Renderer, store ArtifactStore) *VisualizationService {
	return &VisualizationService{
		detection: detection,
		renderer:  renderer,
		store:     store,
	}
}

// Visualize renders pred (or a fresh detection when pred is nil) onto
// the uploaded image and stores the result, returning its path.
func (s *VisualizationService) Visualize(ctx context.Context, data []byte, filename, contentType string, pred *domain.Prediction) (string, error) {
	if !s.detection.Ready() {
		return "", domain.ErrModelNotAvailable
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", domain.ErrUnsupportedMedia
	}
	if len(data) == 0 {
		return "", domain.ErrEmptyUpload
	}

	if pred == nil {
		var err error
		pred, _, err = s.detection.Detect(ctx, data, filename, contentType)
		if err != nil {
			return "", err
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}

	annotated, err := s.renderer.Render(img, pred)
	if err != nil {
		return "", err
	}

	return s.store.SavePNG(annotated, filename)
}

// Open resolves a stored visualization by file name.
func (s *VisualizationService) Open(name string) (string, error) {
	return s.store.Resolve(name)
}
