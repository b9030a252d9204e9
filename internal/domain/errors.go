package domain

import "errors"

var (
	ErrModelNotAvailable     = errors.New("detection model is not available")
	ErrUnsupportedMedia      = errors.New("uploaded file must be an image")
	ErrImageDecode           = errors.New("failed to decode image")
	ErrEmptyUpload           = errors.New("uploaded file is empty")
	ErrInvalidPredictions    = errors.New("predictions payload is not valid JSON")
	ErrPredictionOutOfRange  = errors.New("prediction references a bbox index out of range")
	ErrVisualizationNotFound = errors.New("visualization image not found")
	ErrInvalidArtifactName   = errors.New("invalid visualization file name")
	ErrAcquireTimeout        = errors.New("timeout waiting for an available model session")
)
