package detector

import (
	"sort"

	"moldetect-service/internal/domain"
)

// decodePredictions converts the raw output tensor into detections with
// relative coordinates in the original image. The tensor layout is
// channel-major: channels 0-3 hold cx, cy, w, h in model-input pixels,
// channels 4..4+C hold per-class scores, each of length anchors.
func decodePredictions(raw []float32, anchors int, lb letterbox, origW, origH int, scoreThreshold float64) []domain.Detection {
	numClasses := len(domain.Categories)
	if len(raw) < (4+numClasses)*anchors || origW <= 0 || origH <= 0 {
		return nil
	}

	dets := make([]domain.Detection, 0, 32)
	for i := 0; i < anchors; i++ {
		bestClass := -1
		bestScore := float32(0)
		for c := 0; c < numClasses; c++ {
			score := raw[(4+c)*anchors+i]
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || float64(bestScore) < scoreThreshold {
			continue
		}

		cx := float64(raw[i])
		cy := float64(raw[anchors+i])
		w := float64(raw[2*anchors+i])
		h := float64(raw[3*anchors+i])

		// Undo the letterbox, then normalize to the original image.
		x1 := ((cx - w/2) - float64(lb.padX)) / lb.scale
		y1 := ((cy - h/2) - float64(lb.padY)) / lb.scale
		x2 := ((cx + w/2) - float64(lb.padX)) / lb.scale
		y2 := ((cy + h/2) - float64(lb.padY)) / lb.scale

		box := domain.BoundingBox{
			X1: x1 / float64(origW),
			Y1: y1 / float64(origH),
			X2: x2 / float64(origW),
			Y2: y2 / float64(origH),
		}.Clamp()
		if box.Area() == 0 {
			continue
		}

		dets = append(dets, domain.Detection{
			Category:   domain.Categories[bestClass],
			CategoryID: bestClass + 1,
			BBox:       box,
			Score:      float64(bestScore),
		})
	}
	return dets
}

// nonMaxSuppression drops lower-scored boxes that overlap a kept box of
// the same category beyond the IoU threshold.
func nonMaxSuppression(dets []domain.Detection, iouThreshold float64) []domain.Detection {
	if len(dets) == 0 {
		return dets
	}

	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dets[order[a]].Score > dets[order[b]].Score
	})

	suppressed := make([]bool, len(dets))
	kept := make([]domain.Detection, 0, len(dets))
	for _, i := range order {
		if suppressed[i] {
			continue
		}
		kept = append(kept, dets[i])
		for _, j := range order {
			if j == i || suppressed[j] {
				continue
			}
			if dets[i].Category != dets[j].Category {
				continue
			}
			if dets[i].BBox.IoU(dets[j].BBox) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// corefGroups pairs each identifier box with its closest molecule box.
// A pair forms when the center distance is within the molecule box
// diagonal; each group is [moleculeIndex, identifierIndex].
func corefGroups(dets []domain.Detection) [][]int {
	groups := make([][]int, 0)
	for i, d := range dets {
		if d.Category != domain.CategoryIdentifier {
			continue
		}
		idtX, idtY := d.BBox.Center()

		best := -1
		bestDist := 0.0
		for j, m := range dets {
			if m.Category != domain.CategoryMolecule {
				continue
			}
			molX, molY := m.BBox.Center()
			dx, dy := idtX-molX, idtY-molY
			dist := dx*dx + dy*dy
			if best == -1 || dist < bestDist {
				best = j
				bestDist = dist
			}
		}
		if best == -1 {
			continue
		}

		limit := dets[best].BBox.Diagonal()
		if bestDist <= limit*limit {
			groups = append(groups, []int{best, i})
		}
	}

	sort.Slice(groups, func(a, b int) bool { return groups[a][0] < groups[b][0] })
	return groups
}
