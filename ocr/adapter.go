package ocr

import (
	"image"
	"strings"

	"github.com/wudi/ocrkit/raster"
)

// MinCropSize is the floor, in pixels, on either dimension of a region
// crop. Smaller crops are too unreliable to recognize and tend to break
// fallback engines.
const MinCropSize = 5

// ExtractLines converts raw layout regions into the normalized line list:
// each quadrilateral becomes an axis-aligned box, the source image is
// cropped to it, undersized crops are discarded, and text is trimmed.
// Region order is preserved; it is the primary engine's own reading order.
// An empty input produces an empty (non-nil error free) result: detecting
// no text is a valid outcome, not a failure.
func ExtractLines(img image.Image, regions []Region) []Line {
	lines := make([]Line, 0, len(regions))
	for _, region := range regions {
		box := region.Quad.Bounds().Intersect(img.Bounds())
		if box.Dx() < MinCropSize || box.Dy() < MinCropSize {
			continue
		}
		crop, err := raster.Crop(img, box)
		if err != nil {
			continue
		}
		lines = append(lines, Line{
			Text:       strings.TrimSpace(region.Text),
			Confidence: region.Confidence,
			Bounds:     box,
			Crop:       crop,
		})
	}
	return lines
}
