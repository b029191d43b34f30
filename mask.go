package faceswap

import (
	"image"
	"math"
	"sort"

	"github.com/esimov/faceswap/landmark"
	"github.com/esimov/faceswap/utils"
)

// FaceMask returns a size.X×size.Y mask with the face region, bounded by the
// jaw line and the eyebrow arc, set to 255. Pixels on the contour belong
// to the region; the parts of the contour outside the canvas are clipped.
func FaceMask(size image.Point, lm landmark.Set) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	fillPolygon(mask, lm.Contour(), 255)
	return mask
}

// fillPolygon fills the closed polygon interior, using the even-odd rule,
// and draws its outline, so the boundary pixels are always included.
func fillPolygon(img *image.Gray, pts []image.Point, v uint8) {
	if len(pts) == 0 {
		return
	}
	b := img.Bounds()

	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	minY = max(minY, b.Min.Y)
	maxY = min(maxY, b.Max.Y-1)

	xs := make([]float64, 0, len(pts))
	for y := minY; y <= maxY; y++ {
		xs = xs[:0]
		fy := float64(y)
		for i := range pts {
			p1, p2 := pts[i], pts[(i+1)%len(pts)]
			if p1.Y == p2.Y {
				continue
			}
			lo, hi := p1, p2
			if lo.Y > hi.Y {
				lo, hi = hi, lo
			}
			// Half-open span so shared vertices are counted once.
			if fy < float64(lo.Y) || fy >= float64(hi.Y) {
				continue
			}
			t := (fy - float64(lo.Y)) / float64(hi.Y-lo.Y)
			xs = append(xs, float64(lo.X)+t*float64(hi.X-lo.X))
		}
		sort.Float64s(xs)

		for i := 0; i+1 < len(xs); i += 2 {
			x0 := max(int(math.Ceil(xs[i])), b.Min.X)
			x1 := min(int(math.Floor(xs[i+1])), b.Max.X-1)
			for x := x0; x <= x1; x++ {
				img.Pix[img.PixOffset(x, y)] = v
			}
		}
	}

	for i := range pts {
		drawLine(img, pts[i], pts[(i+1)%len(pts)], v)
	}
}

// drawLine rasterizes the segment between p0 and p1 with Bresenham's
// algorithm, skipping the pixels outside of the image.
func drawLine(img *image.Gray, p0, p1 image.Point, v uint8) {
	dx := utils.Abs(p1.X - p0.X)
	dy := -utils.Abs(p1.Y - p0.Y)
	sx, sy := 1, 1
	if p0.X > p1.X {
		sx = -1
	}
	if p0.Y > p1.Y {
		sy = -1
	}
	e := dx + dy
	x, y := p0.X, p0.Y

	for {
		if (image.Point{X: x, Y: y}).In(img.Bounds()) {
			img.Pix[img.PixOffset(x, y)] = v
		}
		if x == p1.X && y == p1.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

// maskArea returns the number of nonzero mask pixels.
func maskArea(m *image.Gray) int {
	var n int
	b := m.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for _, v := range m.Pix[y*m.Stride : y*m.Stride+b.Dx()] {
			if v > 0 {
				n++
			}
		}
	}
	return n
}
