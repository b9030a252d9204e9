// Package visualizer renders detection results onto the source image:
// category-colored boxes, labels, scores, index markers, coreference
// connectors and a legend.
package visualizer

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/gofont/goregular"

	"moldetect-service/internal/domain"
)

// categoryHex mirrors the palette the detection tooling has always used
// for these classes.
var categoryHex = map[domain.Category]string{
	domain.CategoryMolecule:    "#ff0000", // red
	domain.CategoryIdentifier:  "#0000ff", // blue
	domain.CategoryReactant:    "#008000", // green
	domain.CategoryProduct:     "#ffa500", // orange
	domain.CategoryCatalyst:    "#800080", // purple
	domain.CategorySolvent:     "#a52a2a", // brown
	domain.CategoryTemperature: "#ffc0cb", // pink
	domain.CategoryTime:        "#00ffff", // cyan
}

const fallbackHex = "#808080" // gray

type Renderer struct {
	font         *truetype.Font
	palette      map[domain.Category]colorful.Color
	defaultColor colorful.Color
}

// New parses the embedded font and palette once.
func New() (*Renderer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}

	palette := make(map[domain.Category]colorful.Color, len(categoryHex))
	for cat, hex := range categoryHex {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("parse palette color %q: %w", hex, err)
		}
		palette[cat] = c
	}
	fallback, err := colorful.Hex(fallbackHex)
	if err != nil {
		return nil, fmt.Errorf("parse fallback color: %w", err)
	}

	return &Renderer{font: f, palette: palette, defaultColor: fallback}, nil
}

func (r *Renderer) colorFor(cat domain.Category) colorful.Color {
	if c, ok := r.palette[cat]; ok {
		return c
	}
	return r.defaultColor
}

func (r *Renderer) face(size float64) *truetype.Options {
	return &truetype.Options{Size: size}
}

// Render draws pred onto a copy of img. Coref groups referencing bbox
// indices out of range are rejected rather than silently skipped, since
// they indicate a corrupt caller-supplied predictions payload.
func (r *Renderer) Render(img image.Image, pred *domain.Prediction) (image.Image, error) {
	for _, group := range pred.Corefs {
		for _, idx := range group {
			if idx < 0 || idx >= len(pred.Bboxes) {
				return nil, domain.ErrPredictionOutOfRange
			}
		}
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	dc := gg.NewContextForImage(img)

	for i, det := range pred.Bboxes {
		r.drawDetection(dc, det, i, width, height)
	}

	for _, group := range pred.Corefs {
		if len(group) < 2 {
			continue
		}
		r.drawCoref(dc, pred.Bboxes[group[0]].BBox, pred.Bboxes[group[len(group)-1]].BBox, width, height)
	}

	r.drawLegend(dc, pred.Bboxes)

	return dc.Image(), nil
}

func (r *Renderer) drawDetection(dc *gg.Context, det domain.Detection, index, width, height int) {
	x1, y1, x2, y2 := det.BBox.Absolute(width, height)
	c := r.colorFor(det.Category)

	dc.SetRGB(c.R, c.G, c.B)
	dc.SetLineWidth(2)
	dc.DrawRectangle(float64(x1), float64(y1), float64(x2-x1), float64(y2-y1))
	dc.Stroke()

	label := fmt.Sprintf("%s (ID:%d)", det.Category, det.CategoryID)
	r.drawPlate(dc, label, float64(x1), float64(y1)-16, c, 12)

	score := fmt.Sprintf("Score: %.3f", det.Score)
	r.drawPlate(dc, score, float64(x1), float64(y2)+4, c, 10)

	// Index marker inside the box corner.
	dc.SetFontFace(truetype.NewFace(r.font, r.face(12)))
	marker := fmt.Sprintf("#%d", index)
	mw, mh := dc.MeasureString(marker)
	dc.SetRGBA(0, 0, 0, 0.7)
	dc.DrawRectangle(float64(x1)+4, float64(y1)+4, mw+6, mh+4)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	dc.DrawString(marker, float64(x1)+7, float64(y1)+4+mh)
}

// drawPlate writes text on a translucent white plate so labels stay
// readable over the source image.
func (r *Renderer) drawPlate(dc *gg.Context, text string, x, y float64, c colorful.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(r.font, r.face(size)))
	w, h := dc.MeasureString(text)

	dc.SetRGBA(1, 1, 1, 0.8)
	dc.DrawRectangle(x, y, w+6, h+4)
	dc.Fill()

	dc.SetRGB(c.R, c.G, c.B)
	dc.DrawString(text, x+3, y+h)
}

func (r *Renderer) drawCoref(dc *gg.Context, first, last domain.BoundingBox, width, height int) {
	fx, fy := first.Center()
	lx, ly := last.Center()

	dc.SetRGBA(0, 0, 0, 0.6)
	dc.SetLineWidth(1)
	dc.SetDash(6, 4)
	dc.DrawLine(fx*float64(width), fy*float64(height), lx*float64(width), ly*float64(height))
	dc.Stroke()
	dc.SetDash()
}

func (r *Renderer) drawLegend(dc *gg.Context, dets []domain.Detection) {
	present := make(map[domain.Category]bool)
	for _, d := range dets {
		present[d.Category] = true
	}
	if len(present) == 0 {
		return
	}

	dc.SetFontFace(truetype.NewFace(r.font, r.face(11)))
	x := float64(dc.Width()) - 80
	y := 10.0
	for _, cat := range domain.Categories {
		if !present[cat] {
			continue
		}
		c := r.colorFor(cat)

		dc.SetRGB(c.R, c.G, c.B)
		dc.DrawRectangle(x, y, 12, 12)
		dc.Fill()

		dc.SetRGB(0, 0, 0)
		dc.DrawString(string(cat), x+16, y+11)
		y += 18
	}
}
