package ocr

import (
	"context"
	"errors"
	"image"
)

// ErrEngineFailure wraps recognition engine errors so callers can
// distinguish them from pipeline errors.
var ErrEngineFailure = errors.New("ocr: engine failure")

// Point is a pixel coordinate with the origin in the upper-left corner.
type Point struct {
	X float64
	Y float64
}

// Quad is the quadrilateral a layout engine reports for a detected text
// region. Vertices follow the engine's own winding; consumers only rely on
// the extremes.
type Quad [4]Point

// Bounds converts the quadrilateral to its axis-aligned bounding box.
func (q Quad) Bounds() image.Rectangle {
	minX, minY := q[0].X, q[0].Y
	maxX, maxY := q[0].X, q[0].Y
	for _, p := range q[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return image.Rect(int(minX), int(minY), int(maxX+0.5), int(maxY+0.5))
}

// Region is one detected text region as reported by a layout engine.
type Region struct {
	Quad       Quad
	Text       string
	Confidence float64
}

// Line is a recognized text line in normalized form: trimmed text, a
// confidence in [0, 1], the axis-aligned bounding box in source-image
// coordinates, and the cropped sub-image for fallback recognition. Lines
// are immutable once produced.
type Line struct {
	Text       string
	Confidence float64
	Bounds     image.Rectangle
	Crop       image.Image
}

// Candidate is a single-region recognition result.
type Candidate struct {
	Text       string
	Confidence float64
}

// LayoutEngine performs full-page recognition: region detection plus
// per-region transcription.
type LayoutEngine interface {
	Name() string
	RecognizeLayout(ctx context.Context, img image.Image) ([]Region, error)
}

// LineEngine recognizes a single pre-cropped text line.
type LineEngine interface {
	Name() string
	RecognizeLine(ctx context.Context, img image.Image) (Candidate, error)
}
