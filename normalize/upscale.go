package normalize

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/wudi/ocrkit/raster"
)

// ResampleUpscaler implements Upscaler with Catmull-Rom resampling. It is
// the model-free default; callers with a learned super-resolution backend
// substitute their own implementation.
type ResampleUpscaler struct {
	// Factor is the linear scale factor; zero means 4.
	Factor int
	// MaxPixels bounds the output size. Upscaling beyond it fails, which
	// the normalizer treats as a skip.
	MaxPixels int
}

// Upscale enlarges the image. It refuses to produce an output larger than
// MaxPixels (default 64 megapixels).
func (u ResampleUpscaler) Upscale(img image.Image) (image.Image, error) {
	factor := u.Factor
	if factor <= 0 {
		factor = 4
	}
	maxPixels := u.MaxPixels
	if maxPixels <= 0 {
		maxPixels = 64 << 20
	}
	b := img.Bounds()
	w, h := b.Dx()*factor, b.Dy()*factor
	if w*h > maxPixels {
		return nil, fmt.Errorf("normalize: upscaled size %dx%d exceeds pixel budget", w, h)
	}
	return imaging.Resize(img, w, h, imaging.CatmullRom), nil
}

// DirSink writes stage snapshots as PNG files into a directory.
type DirSink struct {
	Dir string
}

// Save encodes the snapshot to <dir>/<stage>.png.
func (s DirSink) Save(stage string, img image.Image) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, stage+".png"), data, 0o644)
}
