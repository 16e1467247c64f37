// Package raster implements the pixel-level primitives behind the OCR
// preparation pipeline: channel coercion, thresholding, filtering,
// morphology, and geometry. Operations accept the channel layouts produced
// by the standard decoders (grayscale, 3-channel, and 4-channel images) and
// report ErrUnsupportedFormat for anything else; they never mutate their
// input.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat reports an image whose channel layout is outside the
// supported set (grayscale, 3-channel, 4-channel).
var ErrUnsupportedFormat = errors.New("raster: unsupported image format")

// Decode parses encoded image bytes into a pixel buffer. PNG, JPEG, GIF,
// BMP, TIFF, and WebP are recognized. Paletted images are expanded to
// 4-channel at the decode boundary so every downstream transform sees one of
// the supported layouts.
func Decode(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("raster: decode: %w", err)
	}
	if p, ok := img.(*image.Paletted); ok {
		out := image.NewNRGBA(p.Bounds())
		draw.Draw(out, out.Bounds(), p, p.Bounds().Min, draw.Src)
		return out, nil
	}
	return img, nil
}

// EncodePNG serializes an image to PNG bytes, the interchange format used
// when handing crops to recognition engines.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("raster: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Sniff inspects magic bytes and reports the image content type, or "" when
// the bytes do not look like a supported image.
func Sniff(data []byte) string {
	switch {
	case len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return "image/webp"
	case bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return "image/tiff"
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp"
	}
	return ""
}

// ToGray coerces any supported layout to a single-channel image using the
// ITU-R 601 luma weights. A grayscale input is returned unchanged.
func ToGray(img image.Image) (*image.Gray, error) {
	switch src := img.(type) {
	case *image.Gray:
		return src, nil
	case *image.RGBA, *image.NRGBA, *image.YCbCr:
		b := img.Bounds()
		out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bb, _ := img.At(x, y).RGBA()
				v := (299*(r>>8) + 587*(g>>8) + 114*(bb>>8) + 500) / 1000
				out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: uint8(v)})
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedFormat, img)
	}
}

// ToRGBA coerces any supported layout to the canonical color layout the
// normalization chain works in. Grayscale is replicated across channels and
// alpha is flattened to opaque.
func ToRGBA(img image.Image) (*image.RGBA, error) {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.YCbCr, *image.Gray:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedFormat, img)
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out, nil
}

// Crop returns a copy of the given rectangle, clipped to the image bounds.
// An empty intersection yields an error.
func Crop(img image.Image, r image.Rectangle) (image.Image, error) {
	rect := r.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("raster: crop region %v outside image bounds %v", r, img.Bounds())
	}
	switch src := img.(type) {
	case *image.Gray:
		out := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		for y := 0; y < rect.Dy(); y++ {
			off := src.PixOffset(rect.Min.X, rect.Min.Y+y)
			copy(out.Pix[y*out.Stride:], src.Pix[off:off+rect.Dx()])
		}
		return out, nil
	default:
		out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
		return out, nil
	}
}

// plane is a flat origin-anchored view of a grayscale image. Filters operate
// on planes so sub-images with shifted bounds behave identically to
// standalone buffers.
type plane struct {
	w, h int
	pix  []uint8
}

func grayPlane(g *image.Gray) plane {
	b := g.Bounds()
	p := plane{w: b.Dx(), h: b.Dy(), pix: make([]uint8, b.Dx()*b.Dy())}
	for y := 0; y < p.h; y++ {
		copy(p.pix[y*p.w:(y+1)*p.w], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):g.PixOffset(b.Min.X, b.Min.Y+y)+p.w])
	}
	return p
}

func (p plane) image() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, p.w, p.h))
	copy(out.Pix, p.pix)
	return out
}

// at reads a pixel with edge replication for out-of-range coordinates.
func (p plane) at(x, y int) uint8 {
	if x < 0 {
		x = 0
	} else if x >= p.w {
		x = p.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.h {
		y = p.h - 1
	}
	return p.pix[y*p.w+x]
}

func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
