package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"

	"moldetect-service/internal/detector"
	"moldetect-service/internal/domain"
)

// SessionPool is the slice of the detector pool the services need.
type SessionPool interface {
	Acquire(ctx context.Context) (detector.Predictor, error)
	Release(detector.Predictor)
	Discard(detector.Predictor)
	Ready() bool
	Device() string
}

// DetectionService turns uploaded image bytes into predictions.
type DetectionService struct {
	pool SessionPool
}

func NewDetectionService(pool SessionPool) *DetectionService {
	return &DetectionService{pool: pool}
}

// Ready reports whether the model can serve requests.
func (s *DetectionService) Ready() bool {
	return s.pool != nil && s.pool.Ready()
}

// Device reports the execution provider, or "none" before the model
// loaded.
func (s *DetectionService) Device() string {
	if s.pool == nil {
		return "none"
	}
	return s.pool.Device()
}

// Detect validates and decodes the upload, runs the model, and returns
// the prediction together with basic image metadata.
func (s *DetectionService) Detect(ctx context.Context, data []byte, filename, contentType string) (*domain.Prediction, *domain.ImageInfo, error) {
	if !s.Ready() {
		return nil, nil, domain.ErrModelNotAvailable
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, nil, domain.ErrUnsupportedMedia
	}
	if len(data) == 0 {
		return nil, nil, domain.ErrEmptyUpload
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}

	session, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	pred, err := session.Predict(ctx, img)
	if err != nil {
		// A failed session may hold a broken runtime state; rebuild it.
		s.pool.Discard(session)
		return nil, nil, fmt.Errorf("detection failed: %w", err)
	}
	s.pool.Release(session)

	bounds := img.Bounds()
	info := &domain.ImageInfo{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Filename:    filename,
		ContentType: contentType,
	}
	return pred, info, nil
}
