package raster

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// gaussianKernel builds a normalized 1D Gaussian kernel of the given odd
// size. A non-positive sigma derives one from the kernel size the way the
// usual computer-vision toolkits do.
func gaussianKernel(ksize int, sigma float64) []float64 {
	if ksize%2 == 0 {
		ksize++
	}
	if sigma <= 0 {
		sigma = 0.3*(float64(ksize-1)*0.5-1) + 0.8
	}
	k := make([]float64, ksize)
	mid := ksize / 2
	var sum float64
	for i := range k {
		d := float64(i - mid)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// blurFloat runs a separable Gaussian over a plane with edge replication and
// returns the unrounded response. Thresholding code compares against the
// float response directly to avoid double rounding.
func blurFloat(p plane, ksize int, sigma float64) []float64 {
	k := gaussianKernel(ksize, sigma)
	mid := len(k) / 2
	tmp := make([]float64, p.w*p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var acc float64
			for i, kv := range k {
				acc += kv * float64(p.at(x+i-mid, y))
			}
			tmp[y*p.w+x] = acc
		}
	}
	out := make([]float64, p.w*p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var acc float64
			for i, kv := range k {
				yy := y + i - mid
				if yy < 0 {
					yy = 0
				} else if yy >= p.h {
					yy = p.h - 1
				}
				acc += kv * tmp[yy*p.w+x]
			}
			out[y*p.w+x] = acc
		}
	}
	return out
}

// GaussianBlur smooths a grayscale image with an odd kernel size. Sigma <= 0
// selects a size-derived default.
func GaussianBlur(src *image.Gray, ksize int, sigma float64) *image.Gray {
	p := grayPlane(src)
	resp := blurFloat(p, ksize, sigma)
	out := plane{w: p.w, h: p.h, pix: make([]uint8, len(p.pix))}
	for i, v := range resp {
		out.pix[i] = clampU8(v)
	}
	return out.image()
}

// Convolve3x3 applies a 3x3 kernel with edge replication, clamping the
// response to [0, 255].
func Convolve3x3(src *image.Gray, k [9]float64) *image.Gray {
	p := grayPlane(src)
	out := plane{w: p.w, h: p.h, pix: make([]uint8, len(p.pix))}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var acc float64
			idx := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					acc += k[idx] * float64(p.at(x+dx, y+dy))
					idx++
				}
			}
			out.pix[y*p.w+x] = clampU8(acc)
		}
	}
	return out.image()
}

// Sharpen applies the fixed Laplacian-sharpening kernel used to recover
// edges softened by the smoothing stages.
func Sharpen(src *image.Gray) *image.Gray {
	return Convolve3x3(src, [9]float64{
		0, -1, 0,
		-1, 5, -1,
		0, -1, 0,
	})
}

// UnsharpMask blends an image against a heavily blurred copy
// (1.5*src - 0.5*blur), the standard deblurring correction for smeared
// captures. It operates on the color image so later grayscale conversion
// sees the corrected channels.
func UnsharpMask(src *image.RGBA, sigma float64) *image.RGBA {
	blurred := imaging.Blur(src, sigma)
	b := src.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			so := src.PixOffset(x, y)
			bo := blurred.PixOffset(x-b.Min.X, y-b.Min.Y)
			oo := out.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := 1.5*float64(src.Pix[so+c]) - 0.5*float64(blurred.Pix[bo+c])
				out.Pix[oo+c] = clampU8(v)
			}
			out.Pix[oo+3] = 0xFF
		}
	}
	return out
}

// Non-local-means parameters: 3x3 patches compared across an 11x11 search
// window. Contributions below minWeight are dropped; besides the speedup,
// the cutoff keeps the filter an exact identity on clean binary images.
const (
	nlmPatchRadius  = 1
	nlmSearchRadius = 5
	nlmMinWeight    = 1e-2
)

// DenoiseNLM suppresses sensor and compression noise with a non-local-means
// filter while preserving edges. h controls filtering strength.
func DenoiseNLM(src *image.Gray, h float64) *image.Gray {
	p := grayPlane(src)
	out := plane{w: p.w, h: p.h, pix: make([]uint8, len(p.pix))}
	h2 := h * h
	patchN := float64((2*nlmPatchRadius + 1) * (2*nlmPatchRadius + 1))
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var sum, wsum float64
			for sy := -nlmSearchRadius; sy <= nlmSearchRadius; sy++ {
				for sx := -nlmSearchRadius; sx <= nlmSearchRadius; sx++ {
					var d2 float64
					for py := -nlmPatchRadius; py <= nlmPatchRadius; py++ {
						for px := -nlmPatchRadius; px <= nlmPatchRadius; px++ {
							d := float64(p.at(x+px, y+py)) - float64(p.at(x+sx+px, y+sy+py))
							d2 += d * d
						}
					}
					w := math.Exp(-d2 / (patchN * h2))
					if w < nlmMinWeight {
						continue
					}
					sum += w * float64(p.at(x+sx, y+sy))
					wsum += w
				}
			}
			out.pix[y*p.w+x] = clampU8(sum / wsum)
		}
	}
	return out.image()
}
