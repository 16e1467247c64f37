package raster

import "image"

func maxFilterH(p plane, radius int) plane {
	out := plane{w: p.w, h: p.h, pix: make([]uint8, len(p.pix))}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			best := uint8(0)
			for d := -radius; d <= radius; d++ {
				if v := p.at(x+d, y); v > best {
					best = v
				}
			}
			out.pix[y*p.w+x] = best
		}
	}
	return out
}

func maxFilterV(p plane, radius int) plane {
	out := plane{w: p.w, h: p.h, pix: make([]uint8, len(p.pix))}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			best := uint8(0)
			for d := -radius; d <= radius; d++ {
				if v := p.at(x, y+d); v > best {
					best = v
				}
			}
			out.pix[y*p.w+x] = best
		}
	}
	return out
}

func minFilterH(p plane, radius int) plane {
	out := plane{w: p.w, h: p.h, pix: make([]uint8, len(p.pix))}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			best := uint8(255)
			for d := -radius; d <= radius; d++ {
				if v := p.at(x+d, y); v < best {
					best = v
				}
			}
			out.pix[y*p.w+x] = best
		}
	}
	return out
}

func minFilterV(p plane, radius int) plane {
	out := plane{w: p.w, h: p.h, pix: make([]uint8, len(p.pix))}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			best := uint8(255)
			for d := -radius; d <= radius; d++ {
				if v := p.at(x, y+d); v < best {
					best = v
				}
			}
			out.pix[y*p.w+x] = best
		}
	}
	return out
}

// CloseRect applies morphological closing (dilation then erosion) with a
// rectangular structuring element of the given odd size. The rectangular
// element makes both passes separable.
func CloseRect(src *image.Gray, size int) *image.Gray {
	if size%2 == 0 {
		size++
	}
	radius := size / 2
	p := grayPlane(src)
	dilated := maxFilterV(maxFilterH(p, radius), radius)
	eroded := minFilterV(minFilterH(dilated, radius), radius)
	return eroded.image()
}

// DivideScaled divides num by den, scaled to full intensity
// (round(num/den*255)). Division by zero yields zero, matching the usual
// saturating array-division semantics. Dividing an image by a smooth
// estimate of its background flattens uneven lighting.
func DivideScaled(num, den *image.Gray) *image.Gray {
	np := grayPlane(num)
	dp := grayPlane(den)
	out := plane{w: np.w, h: np.h, pix: make([]uint8, len(np.pix))}
	for i, v := range np.pix {
		d := dp.pix[i]
		if d == 0 {
			out.pix[i] = 0
			continue
		}
		out.pix[i] = clampU8(float64(v) / float64(d) * 255)
	}
	return out.image()
}
