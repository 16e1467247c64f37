package raster

import (
	"image"
	"math"
	"sort"
)

// SkewAngles estimates the rotation of every foreground blob in a binarized
// image. Each 4-connected white component contributes the angle of its
// minimum-area bounding rectangle, folded into the (-45, 45) range so a
// near-vertical rectangle reports the same skew as a near-horizontal one.
func SkewAngles(bin *image.Gray) []float64 {
	p := grayPlane(bin)
	labels := make([]int32, len(p.pix))
	var angles []float64
	var queue []int
	next := int32(0)
	for start, v := range p.pix {
		if v != 255 || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		queue = queue[:0]
		queue = append(queue, start)
		var pts []image.Point
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := idx%p.w, idx/p.w
			pts = append(pts, image.Pt(x, y))
			for _, n := range [4]int{idx - 1, idx + 1, idx - p.w, idx + p.w} {
				if n < 0 || n >= len(p.pix) || labels[n] != 0 || p.pix[n] != 255 {
					continue
				}
				nx := n % p.w
				if (n == idx-1 || n == idx+1) && abs(nx-x) != 1 {
					continue // row wrap
				}
				labels[n] = next
				queue = append(queue, n)
			}
		}
		if len(pts) < 3 {
			continue
		}
		angle := minAreaRectAngle(pts)
		if angle < -45 {
			angle += 90
		} else if angle > 45 {
			angle -= 90
		}
		if angle > -45 && angle < 45 {
			angles = append(angles, angle)
		}
	}
	return angles
}

// Median returns the middle value of the samples, averaging the two central
// values for even counts. Median (not mean) keeps one or two wildly
// misdetected blobs from dragging the skew estimate.
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// minAreaRectAngle computes the rotation of the minimum-area bounding
// rectangle of a point set via rotating calipers over the convex hull. The
// result is in degrees, normalized into (-90, 90].
func minAreaRectAngle(pts []image.Point) float64 {
	hull := convexHull(pts)
	if len(hull) < 3 {
		return 0
	}
	bestArea := math.Inf(1)
	bestTheta := 0.0
	for i := 0; i < len(hull); i++ {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		theta := math.Atan2(float64(b.Y-a.Y), float64(b.X-a.X))
		cosT, sinT := math.Cos(theta), math.Sin(theta)
		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, pt := range hull {
			u := cosT*float64(pt.X) + sinT*float64(pt.Y)
			v := -sinT*float64(pt.X) + cosT*float64(pt.Y)
			minU = math.Min(minU, u)
			maxU = math.Max(maxU, u)
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
		area := (maxU - minU) * (maxV - minV)
		if area < bestArea {
			bestArea = area
			bestTheta = theta
		}
	}
	deg := bestTheta * 180 / math.Pi
	for deg <= -90 {
		deg += 180
	}
	for deg > 90 {
		deg -= 180
	}
	return deg
}

// convexHull builds the hull with the monotone chain algorithm.
func convexHull(pts []image.Point) []image.Point {
	if len(pts) < 3 {
		return pts
	}
	sorted := append([]image.Point(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})
	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}
	var hull []image.Point
	for _, pt := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		pt := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return hull[:len(hull)-1]
}

// Rotate turns an image by the given angle in degrees around its center,
// counter-clockwise positive in image coordinates. Samples are bilinear and
// out-of-range reads replicate the nearest edge pixel, so rotation never
// introduces synthetic border color.
func Rotate(img image.Image, degrees float64) (image.Image, error) {
	switch src := img.(type) {
	case *image.Gray:
		return rotateGray(src, degrees), nil
	default:
		rgba, err := ToRGBA(img)
		if err != nil {
			return nil, err
		}
		return rotateRGBA(rgba, degrees), nil
	}
}

func rotateGray(src *image.Gray, degrees float64) *image.Gray {
	p := grayPlane(src)
	out := plane{w: p.w, h: p.h, pix: make([]uint8, len(p.pix))}
	theta := degrees * math.Pi / 180
	cosT, sinT := math.Cos(theta), math.Sin(theta)
	cx, cy := float64(p.w-1)/2, float64(p.h-1)/2
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			sx := cosT*dx + sinT*dy + cx
			sy := -sinT*dx + cosT*dy + cy
			out.pix[y*p.w+x] = bilinearGray(p, sx, sy)
		}
	}
	return out.image()
}

func bilinearGray(p plane, x, y float64) uint8 {
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-float64(x0), y-float64(y0)
	v00 := float64(p.at(x0, y0))
	v10 := float64(p.at(x0+1, y0))
	v01 := float64(p.at(x0, y0+1))
	v11 := float64(p.at(x0+1, y0+1))
	top := v00*(1-fx) + v10*fx
	bot := v01*(1-fx) + v11*fx
	return clampU8(top*(1-fy) + bot*fy)
}

func rotateRGBA(src *image.RGBA, degrees float64) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	theta := degrees * math.Pi / 180
	cosT, sinT := math.Cos(theta), math.Sin(theta)
	cx, cy := float64(w-1)/2, float64(h-1)/2
	sample := func(x, y, c int) float64 {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= h {
			y = h - 1
		}
		return float64(src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y)+c])
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			sx := cosT*dx + sinT*dy + cx
			sy := -sinT*dx + cosT*dy + cy
			x0, y0 := int(math.Floor(sx)), int(math.Floor(sy))
			fx, fy := sx-float64(x0), sy-float64(y0)
			oo := out.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				top := sample(x0, y0, c)*(1-fx) + sample(x0+1, y0, c)*fx
				bot := sample(x0, y0+1, c)*(1-fx) + sample(x0+1, y0+1, c)*fx
				out.Pix[oo+c] = clampU8(top*(1-fy) + bot*fy)
			}
			out.Pix[oo+3] = 0xFF
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
