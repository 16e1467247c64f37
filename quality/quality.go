// Package quality classifies raw images as usable or unusable for
// recognition before any expensive processing runs.
package quality

import (
	"fmt"
	"image"

	"github.com/wudi/ocrkit/raster"
)

// Reason identifies why an image passed or failed the gate.
type Reason string

const (
	ReasonOK            Reason = "ok"
	ReasonBlurry        Reason = "blurry"
	ReasonLowContrast   Reason = "low_contrast"
	ReasonLowResolution Reason = "low_resolution"
)

// Metrics carries the raw measurements behind a verdict.
type Metrics struct {
	FocusMeasure  float64
	ContrastRange float64
	Height        int
}

// Verdict is the immutable outcome of a quality assessment.
type Verdict struct {
	Valid   bool
	Reason  Reason
	Metrics Metrics
}

// Message renders the verdict as the user-facing explanation.
func (v Verdict) Message() string {
	switch v.Reason {
	case ReasonBlurry:
		return fmt.Sprintf("The image is blurry (focus measure = %.2f)", v.Metrics.FocusMeasure)
	case ReasonLowContrast:
		return "The image has low contrast"
	case ReasonLowResolution:
		return "Please upload an image with higher resolution"
	default:
		return "Image quality is good"
	}
}

// Default thresholds. Recognition accuracy degrades sharply below roughly
// 500px of height, and a Laplacian variance under 100 marks a smeared image.
const (
	DefaultBlurThreshold     = 100.0
	DefaultContrastThreshold = 15.0
	DefaultMinHeight         = 500
)

// Gate runs the three quality checks in a fixed order, short-circuiting on
// the first failure. The zero value is not usable; construct with NewGate.
type Gate struct {
	BlurThreshold     float64
	ContrastThreshold float64
	MinHeight         int
}

// NewGate returns a gate with the default thresholds.
func NewGate() *Gate {
	return &Gate{
		BlurThreshold:     DefaultBlurThreshold,
		ContrastThreshold: DefaultContrastThreshold,
		MinHeight:         DefaultMinHeight,
	}
}

// Assess measures the image and classifies it. It is a pure function of the
// pixel data; the only possible error is an unsupported channel layout.
func (g *Gate) Assess(img image.Image) (Verdict, error) {
	gray, err := raster.ToGray(img)
	if err != nil {
		return Verdict{}, err
	}
	m := Metrics{
		FocusMeasure:  raster.FocusMeasure(gray),
		ContrastRange: raster.ContrastRange(gray),
		Height:        img.Bounds().Dy(),
	}
	verdict := Verdict{Metrics: m}
	switch {
	case m.FocusMeasure < g.BlurThreshold:
		verdict.Reason = ReasonBlurry
	case m.ContrastRange < g.ContrastThreshold:
		verdict.Reason = ReasonLowContrast
	case m.Height < g.MinHeight:
		verdict.Reason = ReasonLowResolution
	default:
		verdict.Valid = true
		verdict.Reason = ReasonOK
	}
	return verdict, nil
}
