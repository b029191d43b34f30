package faceswap

import (
	"image"
	"math"
	"sync"

	"github.com/esimov/faceswap/utils"
	"gonum.org/v1/gonum/floats"
)

// PoissonOptions configures the conjugate gradient solver of SeamlessClone.
type PoissonOptions struct {
	MaxIterations int
	// Tolerance is the residual norm, relative to the norm of the right hand
	// side, under which the solution is accepted.
	Tolerance float64
}

// SeamlessClone blends the masked region of src into dst so that the result
// keeps the gradients of src inside the mask and agrees with dst on the mask
// boundary. The mask is given in the coordinates of src and its bounding box
// is centered on anchor, given in the coordinates of dst. The returned image
// has the bounds of dst; dst itself is left untouched.
func SeamlessClone(src, dst *image.NRGBA, mask *image.Gray, anchor image.Point, opts PoissonOptions) (*image.NRGBA, error) {
	out, _, err := seamlessClone(src, dst, mask, anchor, opts)
	return out, err
}

// poisson is the discretized blending problem of a single region: the
// unknowns are the pixels of the region, each linked to its four neighbours.
type poisson struct {
	pts []image.Point
	// nb holds the unknown index of the neighbours of each point,
	// or -1 when the neighbour lies outside of the region.
	nb     [][4]int
	offset image.Point
}

var neighbours = [4]image.Point{{X: -1}, {X: 1}, {Y: -1}, {Y: 1}}

func seamlessClone(src, dst *image.NRGBA, mask *image.Gray, anchor image.Point, opts PoissonOptions) (*image.NRGBA, int, error) {
	mb, ok := maskBounds(mask)
	if !ok {
		return nil, 0, ErrEmptyIntersection
	}
	center := image.Pt((mb.Min.X+mb.Max.X-1)/2, (mb.Min.Y+mb.Max.Y-1)/2)

	pr := newPoisson(dst.Bounds(), mask, anchor.Sub(center))
	if len(pr.pts) == 0 {
		return nil, 0, ErrEmptyIntersection
	}

	out := cloneNRGBA(dst)

	var (
		wg    sync.WaitGroup
		iters [3]int
	)
	wg.Add(3)
	for c := 0; c < 3; c++ {
		go func(c int) {
			defer wg.Done()
			x, n := pr.solve(src, dst, c, opts)
			iters[c] = n
			for i, p := range pr.pts {
				out.Pix[out.PixOffset(p.X, p.Y)+c] = utils.ClampUint8(x[i])
			}
		}(c)
	}
	wg.Wait()

	return out, max(iters[0], iters[1], iters[2]), nil
}

// newPoisson collects the pixels of dst strictly inside its border whose
// mask value, sampled at the pixel shifted back by offset, is nonzero.
func newPoisson(b image.Rectangle, mask *image.Gray, offset image.Point) *poisson {
	pr := &poisson{offset: offset}
	index := make(map[image.Point]int)

	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			mp := image.Pt(x, y).Sub(offset)
			if !mp.In(mask.Bounds()) || mask.Pix[mask.PixOffset(mp.X, mp.Y)] == 0 {
				continue
			}
			index[image.Pt(x, y)] = len(pr.pts)
			pr.pts = append(pr.pts, image.Pt(x, y))
		}
	}

	pr.nb = make([][4]int, len(pr.pts))
	for i, p := range pr.pts {
		for k, d := range neighbours {
			if j, ok := index[p.Add(d)]; ok {
				pr.nb[i][k] = j
			} else {
				pr.nb[i][k] = -1
			}
		}
	}
	return pr
}

// sample returns channel c of img at p, clamping p to the image bounds.
func sample(img *image.NRGBA, p image.Point, c int) float64 {
	b := img.Bounds()
	p.X = utils.Clamp(p.X, b.Min.X, b.Max.X-1)
	p.Y = utils.Clamp(p.Y, b.Min.Y, b.Max.Y-1)
	return float64(img.Pix[img.PixOffset(p.X, p.Y)+c])
}

// rhs builds the right hand side of the system for channel c: the discrete
// Laplacian of the shifted source plus the known destination values of
// the neighbours lying outside of the region.
func (pr *poisson) rhs(src, dst *image.NRGBA, c int) (b, g []float64) {
	b = make([]float64, len(pr.pts))
	g = make([]float64, len(pr.pts))

	for i, p := range pr.pts {
		sp := p.Sub(pr.offset)
		gp := sample(src, sp, c)
		g[i] = gp

		var v float64
		for k, d := range neighbours {
			v += gp - sample(src, sp.Add(d), c)
			if pr.nb[i][k] < 0 {
				v += sample(dst, p.Add(d), c)
			}
		}
		b[i] = v
	}
	return b, g
}

// apply computes dst = A·x, where A is the negated five point Laplacian
// restricted to the region.
func (pr *poisson) apply(dst, x []float64) {
	for i := range x {
		v := 4 * x[i]
		for _, j := range pr.nb[i] {
			if j >= 0 {
				v -= x[j]
			}
		}
		dst[i] = v
	}
}

// solve runs the conjugate gradient method on channel c starting from the
// source values, and returns the solution with the number of iterations run.
func (pr *poisson) solve(src, dst *image.NRGBA, c int, opts PoissonOptions) ([]float64, int) {
	b, x := pr.rhs(src, dst, c)
	n := len(x)

	r := make([]float64, n)
	pr.apply(r, x)
	floats.SubTo(r, b, r)

	p := make([]float64, n)
	copy(p, r)
	ap := make([]float64, n)

	limit := opts.Tolerance * floats.Norm(b, 2)
	rs := floats.Dot(r, r)

	var it int
	for it = 0; it < opts.MaxIterations; it++ {
		if math.Sqrt(rs) <= limit {
			break
		}
		pr.apply(ap, p)
		pap := floats.Dot(p, ap)
		if pap == 0 {
			break
		}
		alpha := rs / pap
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, ap)

		rsNew := floats.Dot(r, r)
		floats.AddScaledTo(p, r, rsNew/rs, p)
		rs = rsNew
	}
	return x, it
}

// cloneNRGBA returns a copy of img with the same bounds, copied row by row
// since a sub-image shares the pixel buffer of its parent.
func cloneNRGBA(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	row := b.Dx() * 4
	for y := b.Min.Y; y < b.Max.Y; y++ {
		si := img.PixOffset(b.Min.X, y)
		di := out.PixOffset(b.Min.X, y)
		copy(out.Pix[di:di+row], img.Pix[si:si+row])
	}
	return out
}
