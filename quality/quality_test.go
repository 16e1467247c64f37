package quality

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/wudi/ocrkit/raster"
)

// sharpPage draws a high-contrast stripe texture, which scores far above the
// blur threshold on the Laplacian-variance measure.
func sharpPage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255)
			if x%2 == 1 {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestAssessGoodImage(t *testing.T) {
	gate := NewGate()
	verdict, err := gate.Assess(sharpPage(100, 600))
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if !verdict.Valid {
		t.Fatalf("verdict = %+v, want valid", verdict)
	}
	if verdict.Reason != ReasonOK {
		t.Fatalf("reason = %q, want %q", verdict.Reason, ReasonOK)
	}
	if got := verdict.Message(); got != "Image quality is good" {
		t.Fatalf("message = %q", got)
	}
}

func TestAssessBlurry(t *testing.T) {
	gate := NewGate()
	// The blur must be heavy relative to the 1px stripe period: smaller
	// kernels leave a rounding ripple that still scores above the
	// threshold.
	smeared := raster.GaussianBlur(sharpPage(100, 600), 41, 16)
	verdict, err := gate.Assess(smeared)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if verdict.Valid || verdict.Reason != ReasonBlurry {
		t.Fatalf("verdict = %+v, want blurry rejection", verdict)
	}
	if msg := verdict.Message(); !strings.Contains(msg, "blurry") || !strings.Contains(msg, "focus measure") {
		t.Fatalf("message = %q", msg)
	}
}

func TestAssessLowContrast(t *testing.T) {
	gate := NewGate()
	// Flat gray scores zero on both focus and contrast; blur is checked
	// first, so disable it to reach the contrast check.
	gate.BlurThreshold = 0
	flat := image.NewGray(image.Rect(0, 0, 100, 600))
	for i := range flat.Pix {
		flat.Pix[i] = 128
	}
	verdict, err := gate.Assess(flat)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if verdict.Valid || verdict.Reason != ReasonLowContrast {
		t.Fatalf("verdict = %+v, want low contrast rejection", verdict)
	}
	if got := verdict.Message(); got != "The image has low contrast" {
		t.Fatalf("message = %q", got)
	}
}

func TestAssessLowResolution(t *testing.T) {
	gate := NewGate()
	verdict, err := gate.Assess(sharpPage(100, 200))
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if verdict.Valid || verdict.Reason != ReasonLowResolution {
		t.Fatalf("verdict = %+v, want low resolution rejection", verdict)
	}
	if got := verdict.Message(); got != "Please upload an image with higher resolution" {
		t.Fatalf("message = %q", got)
	}
	if verdict.Metrics.Height != 200 {
		t.Fatalf("metrics height = %d, want 200", verdict.Metrics.Height)
	}
}

func TestAssessOrderBlurBeforeResolution(t *testing.T) {
	// A blurred low-resolution image reports the blur reason: checks run
	// in a fixed order and short-circuit.
	gate := NewGate()
	smeared := raster.GaussianBlur(sharpPage(100, 200), 41, 16)
	verdict, err := gate.Assess(smeared)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if verdict.Reason != ReasonBlurry {
		t.Fatalf("reason = %q, want %q", verdict.Reason, ReasonBlurry)
	}
}

func TestFocusMeasureDropsWithBlurSeverity(t *testing.T) {
	page := sharpPage(100, 600)
	blurs := []struct {
		ksize int
		sigma float64
	}{
		{21, 8},
		{41, 16},
	}
	prev := raster.FocusMeasure(page)
	for _, b := range blurs {
		fm := raster.FocusMeasure(raster.GaussianBlur(page, b.ksize, b.sigma))
		if fm >= prev {
			t.Fatalf("focus measure did not drop at ksize %d: %.2f >= %.2f", b.ksize, fm, prev)
		}
		prev = fm
	}
}

func TestAssessUnsupportedFormat(t *testing.T) {
	gate := NewGate()
	if _, err := gate.Assess(image.NewCMYK(image.Rect(0, 0, 10, 10))); err == nil {
		t.Fatal("expected error for unsupported channel layout")
	}
}

func TestAssessDeterministic(t *testing.T) {
	gate := NewGate()
	img := sharpPage(80, 600)
	first, err := gate.Assess(img)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := gate.Assess(img)
		if err != nil {
			t.Fatalf("assess: %v", err)
		}
		if again != first {
			t.Fatalf("verdict changed between runs: %+v vs %+v", first, again)
		}
	}
}
