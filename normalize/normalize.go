// Package normalize applies the ordered chain of deterministic transforms
// that prepare a raw document image for recognition: background flattening,
// conditional deblurring, denoising, illumination correction, sharpening,
// adaptive binarization, polarity correction, and optional deskewing and
// super-resolution.
//
// The chain degrades gracefully: a failing sub-step is logged and passed
// through as the identity transform rather than aborting the pipeline. Only
// an unsupported channel layout is a hard error.
package normalize

import (
	"context"
	"fmt"
	"image"

	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/quality"
	"github.com/wudi/ocrkit/raster"
)

// Options selects the optional stages of the chain.
type Options struct {
	// SuperResolution runs the configured upscaler before anything else.
	SuperResolution bool
	// Deskew straightens the image using blob orientation statistics.
	Deskew bool
	// Debug saves intermediate stages to the configured sink.
	Debug bool
	// PolarityBias is the fraction of total pixels by which black must
	// outnumber white before the polarity correction inverts the image.
	// Zero reproduces the strict black > white rule; raising it protects
	// sparse-text documents where border noise tips the count.
	PolarityBias float64
}

// Upscaler is the capability contract for the optional super-resolution
// stage. Implementations that cannot run (missing model, runtime failure)
// return an error and the stage is skipped; super-resolution is an accuracy
// enhancement, never a hard dependency.
type Upscaler interface {
	Upscale(img image.Image) (image.Image, error)
}

// DebugSink receives intermediate stage snapshots when Options.Debug is set.
type DebugSink interface {
	Save(stage string, img image.Image) error
}

// Normalizer runs the transform chain. Construct with New.
type Normalizer struct {
	opts          Options
	upscaler      Upscaler
	sink          DebugSink
	log           observability.Logger
	blurThreshold float64
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithUpscaler installs the super-resolution implementation.
func WithUpscaler(u Upscaler) Option {
	return func(n *Normalizer) { n.upscaler = u }
}

// WithDebugSink installs the sink for intermediate stage snapshots.
func WithDebugSink(s DebugSink) Option {
	return func(n *Normalizer) { n.sink = s }
}

// WithLogger installs a logger for degradation events.
func WithLogger(l observability.Logger) Option {
	return func(n *Normalizer) { n.log = l }
}

// New builds a Normalizer for the given options.
func New(opts Options, mods ...Option) *Normalizer {
	n := &Normalizer{
		opts:          opts,
		log:           observability.NopLogger{},
		blurThreshold: quality.DefaultBlurThreshold,
	}
	for _, mod := range mods {
		mod(n)
	}
	return n
}

// Apply runs the chain and returns the binarized image ready for
// recognition. Cancellation is honored between stages; no stage is
// interrupted mid-transform.
func (n *Normalizer) Apply(ctx context.Context, src image.Image) (image.Image, error) {
	img := src
	if n.opts.SuperResolution && n.upscaler != nil {
		if up, err := n.upscaler.Upscale(img); err != nil {
			n.log.Info("super-resolution skipped", observability.Error("err", err))
		} else {
			img = up
			n.snapshot("1_superres", img)
		}
	}

	rgba, err := raster.ToRGBA(img)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rgba = n.stepRGBA("white_background", rgba, whiteBackground)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rgba = n.stepRGBA("conditional_deblur", rgba, n.conditionalDeblur)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray, err := raster.ToGray(rgba)
	if err != nil {
		return nil, err
	}
	n.snapshot("1_gray", gray)

	gray = n.stepGray("denoise", gray, func(g *image.Gray) *image.Gray {
		return raster.DenoiseNLM(g, 30)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray = n.stepGray("illumination", gray, func(g *image.Gray) *image.Gray {
		background := raster.CloseRect(g, 15)
		return raster.DivideScaled(g, background)
	})
	n.snapshot("2_norm", gray)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray = n.stepGray("sharpen", gray, raster.Sharpen)
	n.snapshot("3_sharp", gray)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray = n.stepGray("adaptive_threshold", gray, func(g *image.Gray) *image.Gray {
		return raster.AdaptiveThreshold(g, 31, 15)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray = n.stepGray("polarity", gray, n.correctPolarity)
	n.snapshot("4_thresh", gray)

	if n.opts.Deskew {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gray = n.stepGray("deskew", gray, n.deskew)
		n.snapshot("5_deskew", gray)
	}

	return gray, nil
}

// stepGray runs one transform, logging and passing the input through on
// panic so a single failing stage never aborts the chain.
func (n *Normalizer) stepGray(name string, in *image.Gray, fn func(*image.Gray) *image.Gray) (out *image.Gray) {
	out = in
	defer func() {
		if r := recover(); r != nil {
			n.log.Warn("normalize step failed, passing through",
				observability.String("step", name),
				observability.Error("err", fmt.Errorf("%v", r)))
			out = in
		}
	}()
	out = fn(in)
	return out
}

func (n *Normalizer) stepRGBA(name string, in *image.RGBA, fn func(*image.RGBA) *image.RGBA) (out *image.RGBA) {
	out = in
	defer func() {
		if r := recover(); r != nil {
			n.log.Warn("normalize step failed, passing through",
				observability.String("step", name),
				observability.Error("err", fmt.Errorf("%v", r)))
			out = in
		}
	}()
	out = fn(in)
	return out
}

func (n *Normalizer) snapshot(stage string, img image.Image) {
	if !n.opts.Debug || n.sink == nil {
		return
	}
	if err := n.sink.Save(stage, img); err != nil {
		n.log.Warn("debug snapshot failed",
			observability.String("stage", stage),
			observability.Error("err", err))
	}
}

// whiteBackground finds the foreground via Otsu thresholding and composites
// it onto a synthesized pure-white background, removing scanning artifacts
// and uneven paper tint.
func whiteBackground(src *image.RGBA) *image.RGBA {
	gray, _ := raster.ToGray(src)
	t := raster.OtsuThreshold(gray)
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			oo := out.PixOffset(x, y)
			if gray.GrayAt(x, y).Y > t {
				out.Pix[oo] = 255
				out.Pix[oo+1] = 255
				out.Pix[oo+2] = 255
				out.Pix[oo+3] = 255
				continue
			}
			so := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			copy(out.Pix[oo:oo+4], src.Pix[so:so+4])
		}
	}
	return out
}

// conditionalDeblur re-runs the blur check and applies an unsharp mask only
// when the image is judged blurry. Unsharp masking sharp input amplifies
// noise, so already-sharp images pass through untouched.
func (n *Normalizer) conditionalDeblur(src *image.RGBA) *image.RGBA {
	gray, _ := raster.ToGray(src)
	fm := raster.FocusMeasure(gray)
	if fm >= n.blurThreshold {
		return src
	}
	n.log.Info("deblurred image", observability.Float64("focus_measure", fm))
	return raster.UnsharpMask(src, 10)
}

// correctPolarity inverts the binarized image when black pixels outnumber
// white beyond the configured bias. Recognition engines are tuned for dark
// text on a light background; this handles photographed whiteboards and
// dark-mode screenshots without a separate code path.
func (n *Normalizer) correctPolarity(src *image.Gray) *image.Gray {
	black, white := raster.CountBinary(src)
	total := src.Bounds().Dx() * src.Bounds().Dy()
	if float64(black) > float64(white)+n.opts.PolarityBias*float64(total) {
		n.log.Info("inverted polarity",
			observability.Int("black", black),
			observability.Int("white", white))
		return raster.Invert(src)
	}
	return src
}

// deskew estimates the median blob rotation from an Otsu binarization of
// the input and rotates the input itself (not the re-binarized copy) by the
// negative of that angle. The binarization is inverted first so the angle
// statistics come from the text blobs, not the page background.
func (n *Normalizer) deskew(src *image.Gray) *image.Gray {
	bin := raster.Invert(raster.Threshold(src, raster.OtsuThreshold(src)))
	angles := raster.SkewAngles(bin)
	if len(angles) == 0 {
		return src
	}
	median := raster.Median(angles)
	rotated, err := raster.Rotate(src, -median)
	if err != nil {
		n.log.Warn("deskew rotation failed", observability.Error("err", err))
		return src
	}
	out, ok := rotated.(*image.Gray)
	if !ok {
		return src
	}
	n.log.Info("deskewed image", observability.Float64("angle", median))
	return out
}
