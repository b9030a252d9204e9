package domain

import "math"

// Category is one of the region classes emitted by the MolDetect model.
type Category string

const (
	CategoryMolecule    Category = "[Mol]"
	CategoryIdentifier  Category = "[Idt]"
	CategoryReactant    Category = "[Rct]"
	CategoryProduct     Category = "[Pdt]"
	CategoryCatalyst    Category = "[Cat]"
	CategorySolvent     Category = "[Sol]"
	CategoryTemperature Category = "[Tmp]"
	CategoryTime        Category = "[Tme]"
)

// Categories lists the model's classes in output-channel order. The
// class index in the output tensor is the position in this slice;
// CategoryID is that index plus one, matching the checkpoint's label map.
var Categories = []Category{
	CategoryMolecule,
	CategoryIdentifier,
	CategoryReactant,
	CategoryProduct,
	CategoryCatalyst,
	CategorySolvent,
	CategoryTemperature,
	CategoryTime,
}

// CategoryByID returns the category for a 1-based category ID.
func CategoryByID(id int) (Category, bool) {
	if id < 1 || id > len(Categories) {
		return "", false
	}
	return Categories[id-1], true
}

// BoundingBox holds corner coordinates relative to the image size,
// each component in [0,1].
type BoundingBox struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

func (b BoundingBox) Width() float64  { return b.X2 - b.X1 }
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

func (b BoundingBox) Area() float64 {
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return 0
	}
	return b.Width() * b.Height()
}

// Center returns the box midpoint in relative coordinates.
func (b BoundingBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Diagonal returns the box diagonal length in relative coordinates.
func (b BoundingBox) Diagonal() float64 {
	return math.Hypot(b.Width(), b.Height())
}

// Absolute converts the relative box to pixel coordinates for an image
// of the given dimensions.
func (b BoundingBox) Absolute(width, height int) (x1, y1, x2, y2 int) {
	x1 = int(b.X1 * float64(width))
	y1 = int(b.Y1 * float64(height))
	x2 = int(b.X2 * float64(width))
	y2 = int(b.Y2 * float64(height))
	return
}

// IoU computes intersection over union with another box.
func (b BoundingBox) IoU(o BoundingBox) float64 {
	x1 := math.Max(b.X1, o.X1)
	y1 := math.Max(b.Y1, o.Y1)
	x2 := math.Min(b.X2, o.X2)
	y2 := math.Min(b.Y2, o.Y2)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := b.Area() + o.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// Clamp restricts all coordinates to [0,1].
func (b BoundingBox) Clamp() BoundingBox {
	return BoundingBox{
		X1: clamp01(b.X1),
		Y1: clamp01(b.Y1),
		X2: clamp01(b.X2),
		Y2: clamp01(b.Y2),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Detection is a single detected region.
type Detection struct {
	Category   Category
	CategoryID int
	BBox       BoundingBox
	Score      float64
}

// Prediction is the full model output for one image: the detected
// regions plus coreference groups. Each coref group is a list of
// indices into Bboxes tying a molecule structure to its identifier.
type Prediction struct {
	Bboxes []Detection
	Corefs [][]int
}

// ImageInfo describes the uploaded image a prediction was made on.
type ImageInfo struct {
	Width       int
	Height      int
	Filename    string
	ContentType string
}
