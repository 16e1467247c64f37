package raster

import "image"

// Histogram counts grayscale intensities.
func Histogram(src *image.Gray) [256]int {
	var hist [256]int
	p := grayPlane(src)
	for _, v := range p.pix {
		hist[v]++
	}
	return hist
}

// OtsuThreshold picks the global threshold that minimizes intra-class
// intensity variance.
func OtsuThreshold(src *image.Gray) uint8 {
	hist := Histogram(src)
	total := 0
	var sum float64
	for i, n := range hist {
		total += n
		sum += float64(i) * float64(n)
	}
	if total == 0 {
		return 0
	}
	var sumB, wB float64
	var best float64
	var threshold uint8
	for i := 0; i < 256; i++ {
		wB += float64(hist[i])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(hist[i])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = uint8(i)
		}
	}
	return threshold
}

// Threshold binarizes: pixels strictly above t become white, the rest black.
func Threshold(src *image.Gray, t uint8) *image.Gray {
	p := grayPlane(src)
	out := plane{w: p.w, h: p.h, pix: make([]uint8, len(p.pix))}
	for i, v := range p.pix {
		if v > t {
			out.pix[i] = 255
		}
	}
	return out.image()
}

// AdaptiveThreshold binarizes against a Gaussian-weighted local mean: a
// pixel is white when it exceeds the mean of its blockSize neighborhood
// minus c. Local thresholds cope with spatially varying illumination where
// a single global threshold cannot.
func AdaptiveThreshold(src *image.Gray, blockSize int, c float64) *image.Gray {
	if blockSize%2 == 0 {
		blockSize++
	}
	p := grayPlane(src)
	mean := blurFloat(p, blockSize, 0)
	out := plane{w: p.w, h: p.h, pix: make([]uint8, len(p.pix))}
	for i, v := range p.pix {
		if float64(v) > mean[i]-c {
			out.pix[i] = 255
		}
	}
	return out.image()
}

// Invert flips every intensity.
func Invert(src *image.Gray) *image.Gray {
	p := grayPlane(src)
	out := plane{w: p.w, h: p.h, pix: make([]uint8, len(p.pix))}
	for i, v := range p.pix {
		out.pix[i] = 255 - v
	}
	return out.image()
}

// CountBinary tallies black and white pixels of a binarized image.
func CountBinary(src *image.Gray) (black, white int) {
	p := grayPlane(src)
	for _, v := range p.pix {
		switch v {
		case 0:
			black++
		case 255:
			white++
		}
	}
	return black, white
}
