package raster

import "image"

// FocusMeasure computes the variance of the Laplacian response, the
// standard low-cost sharpness proxy: a smeared image has few high-frequency
// edges and scores low.
func FocusMeasure(src *image.Gray) float64 {
	p := grayPlane(src)
	n := p.w * p.h
	if n == 0 {
		return 0
	}
	resp := make([]float64, n)
	var mean float64
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			v := float64(p.at(x-1, y)) + float64(p.at(x+1, y)) +
				float64(p.at(x, y-1)) + float64(p.at(x, y+1)) -
				4*float64(p.at(x, y))
			resp[y*p.w+x] = v
			mean += v
		}
	}
	mean /= float64(n)
	var variance float64
	for _, v := range resp {
		d := v - mean
		variance += d * d
	}
	return variance / float64(n)
}

// ContrastRange reports the spread between the darkest and brightest pixel.
func ContrastRange(src *image.Gray) float64 {
	p := grayPlane(src)
	if len(p.pix) == 0 {
		return 0
	}
	minV, maxV := p.pix[0], p.pix[0]
	for _, v := range p.pix {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return float64(maxV) - float64(minV)
}
