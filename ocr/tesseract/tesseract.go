// Package tesseract backs the ocr engine contracts with the gosseract
// client. It serves two roles: the fallback line recognizer consulted for
// low-confidence lines, and an offline full-page layout engine for
// deployments without a remote primary.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/ocrkit/ocr"
	"github.com/wudi/ocrkit/raster"
)

// Engine implements ocr.LineEngine and ocr.LayoutEngine.
type Engine struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages sets the trained-data languages (default "eng").
func WithLanguages(langs ...string) Option {
	return func(e *Engine) { e.languages = append([]string(nil), langs...) }
}

// New constructs a Tesseract-backed engine. A fresh client is created per
// call; gosseract clients are not safe for concurrent reuse.
func New(opts ...Option) *Engine {
	e := &Engine{
		clientFactory: gosseract.NewClient,
		languages:     []string{"eng"},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "tesseract" }

// RecognizeLine transcribes a single pre-cropped text line in single-block
// segmentation mode. The crop is re-binarized first; Tesseract reads the
// locally thresholded version far more reliably than a raw crop.
func (e *Engine) RecognizeLine(ctx context.Context, img image.Image) (ocr.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Candidate{}, err
	}
	prep, err := PrepareCrop(img)
	if err != nil {
		return ocr.Candidate{}, fmt.Errorf("%w: %v", ocr.ErrEngineFailure, err)
	}
	data, err := raster.EncodePNG(prep)
	if err != nil {
		return ocr.Candidate{}, fmt.Errorf("%w: %v", ocr.ErrEngineFailure, err)
	}

	c := e.clientFactory()
	defer c.Close()
	if err := e.configure(c, gosseract.PSM_SINGLE_BLOCK); err != nil {
		return ocr.Candidate{}, err
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return ocr.Candidate{}, fmt.Errorf("%w: set image: %v", ocr.ErrEngineFailure, err)
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Candidate{}, fmt.Errorf("%w: recognize: %v", ocr.ErrEngineFailure, err)
	}
	conf := meanWordConfidence(c)
	return ocr.Candidate{Text: strings.TrimSpace(text), Confidence: conf}, nil
}

// RecognizeLayout runs full-page recognition and reports one region per
// detected text line.
func (e *Engine) RecognizeLayout(ctx context.Context, img image.Image) ([]ocr.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ocr.ErrEngineFailure, err)
	}

	c := e.clientFactory()
	defer c.Close()
	if err := e.configure(c, gosseract.PSM_AUTO); err != nil {
		return nil, err
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: set image: %v", ocr.ErrEngineFailure, err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("%w: bounding boxes: %v", ocr.ErrEngineFailure, err)
	}

	regions := make([]ocr.Region, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		regions = append(regions, ocr.Region{
			Quad:       quadFromRect(b.Box),
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
		})
	}
	return regions, nil
}

func (e *Engine) configure(c *gosseract.Client, psm gosseract.PageSegMode) error {
	if err := c.SetPageSegMode(psm); err != nil {
		return fmt.Errorf("%w: set psm: %v", ocr.ErrEngineFailure, err)
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return fmt.Errorf("%w: set languages: %v", ocr.ErrEngineFailure, err)
		}
	}
	return nil
}

func meanWordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}

func quadFromRect(r image.Rectangle) ocr.Quad {
	return ocr.Quad{
		{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Max.Y)},
		{X: float64(r.Min.X), Y: float64(r.Max.Y)},
	}
}

// PrepareCrop re-binarizes a line crop for single-line recognition: light
// Gaussian smoothing followed by a tight adaptive threshold.
func PrepareCrop(img image.Image) (*image.Gray, error) {
	gray, err := raster.ToGray(img)
	if err != nil {
		return nil, err
	}
	smoothed := raster.GaussianBlur(gray, 3, 0)
	return raster.AdaptiveThreshold(smoothed, 11, 2), nil
}
