package dto

import (
	"encoding/json"
	"fmt"

	"moldetect-service/internal/domain"
)

func ToPredictionPayload(p *domain.Prediction) *PredictionPayload {
	out := &PredictionPayload{
		Bboxes: make([]BBoxPayload, 0, len(p.Bboxes)),
		Corefs: p.Corefs,
	}
	if out.Corefs == nil {
		out.Corefs = [][]int{}
	}
	for _, d := range p.Bboxes {
		out.Bboxes = append(out.Bboxes, BBoxPayload{
			Category:   string(d.Category),
			BBox:       [4]float64{d.BBox.X1, d.BBox.Y1, d.BBox.X2, d.BBox.Y2},
			CategoryID: d.CategoryID,
			Score:      d.Score,
		})
	}
	return out
}

func ToImageInfoPayload(info *domain.ImageInfo) *ImageInfoPayload {
	return &ImageInfoPayload{
		Width:       info.Width,
		Height:      info.Height,
		Filename:    info.Filename,
		ContentType: info.ContentType,
	}
}

// ParsePredictions decodes a caller-supplied predictions JSON document
// (the same shape /detect returns) into the domain form.
func ParsePredictions(raw string) (*domain.Prediction, error) {
	var payload PredictionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPredictions, err)
	}

	pred := &domain.Prediction{
		Bboxes: make([]domain.Detection, 0, len(payload.Bboxes)),
		Corefs: payload.Corefs,
	}
	for _, b := range payload.Bboxes {
		pred.Bboxes = append(pred.Bboxes, domain.Detection{
			Category:   domain.Category(b.Category),
			CategoryID: b.CategoryID,
			BBox: domain.BoundingBox{
				X1: b.BBox[0],
				Y1: b.BBox[1],
				X2: b.BBox[2],
				Y2: b.BBox[3],
			},
			Score: b.Score,
		})
	}

	for _, group := range pred.Corefs {
		for _, idx := range group {
			if idx < 0 || idx >= len(pred.Bboxes) {
				return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPredictions, domain.ErrPredictionOutOfRange)
			}
		}
	}
	return pred, nil
}
