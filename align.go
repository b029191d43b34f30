package faceswap

import (
	"fmt"
	"image"
	"math"

	"github.com/esimov/faceswap/landmark"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"
)

// singularEps is the determinant magnitude below which the alignment points
// are considered collinear.
const singularEps = 1e-9

// Affine is a 2×3 affine transform mapping source coordinates onto
// destination coordinates:
//
//	u = A[0]*x + A[1]*y + A[2]
//	v = A[3]*x + A[4]*y + A[5]
type Affine [6]float64

// NewAffine returns the transform mapping the alignment points of src exactly
// onto the alignment points of dst. It returns ErrSingularAlignment when the
// source points are collinear.
func NewAffine(src, dst landmark.Set) (Affine, error) {
	sp, dp := src.Anchors(), dst.Anchors()

	a := mat.NewDense(3, 3, nil)
	b := mat.NewDense(3, 2, nil)
	for i := range sp {
		a.SetRow(i, []float64{float64(sp[i].X), float64(sp[i].Y), 1})
		b.SetRow(i, []float64{float64(dp[i].X), float64(dp[i].Y)})
	}
	if math.Abs(mat.Det(a)) < singularEps {
		return Affine{}, ErrSingularAlignment
	}

	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return Affine{}, fmt.Errorf("%w: %v", ErrSingularAlignment, err)
	}
	return Affine{
		x.At(0, 0), x.At(1, 0), x.At(2, 0),
		x.At(0, 1), x.At(1, 1), x.At(2, 1),
	}, nil
}

// Apply maps the point (x, y) through the transform.
func (m Affine) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// Warp resamples img through the transform onto a size.X×size.Y canvas using
// bilinear interpolation. Pixels mapping outside of img stay transparent black.
func (m Affine) Warp(img *image.NRGBA, size image.Point) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.BiLinear.Transform(dst, m.pixelCentered(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// WarpMask is the mask counterpart of Warp. Both use the same matrix,
// so an image and its mask stay registered after the warp.
func (m Affine) WarpMask(mask *image.Gray, size image.Point) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	draw.BiLinear.Transform(dst, m.pixelCentered(), mask, mask.Bounds(), draw.Src, nil)
	return dst
}

// pixelCentered returns the matrix expected by x/image/draw, which samples
// pixels at their centers (x+0.5, y+0.5) while landmarks address the pixel
// itself. The transform is conjugated by the half pixel shift.
func (m Affine) pixelCentered() f64.Aff3 {
	return f64.Aff3{
		m[0], m[1], m[2] + 0.5 - 0.5*(m[0]+m[1]),
		m[3], m[4], m[5] + 0.5 - 0.5*(m[3]+m[4]),
	}
}
