package faceswap

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/esimov/faceswap/imop"
	"github.com/esimov/faceswap/utils"
)

// minEpsilon is the smallest divisor accepted for the color ratio.
const minEpsilon = 1e-6

// HarmonizeOptions configures the illumination correction of the warped source.
type HarmonizeOptions struct {
	// Masked makes the swapper pass the blend mask to Harmonize, comparing
	// the mean colors of the two faces. Otherwise the ratio is computed per
	// pixel from a wide Gaussian blur.
	Masked bool
	// KernelSize is the Gaussian kernel width used in unmasked mode.
	KernelSize int
	// Epsilon bounds the divisor of the color ratio from below.
	// Values under 1e-6 are raised to it.
	Epsilon float64
}

// Harmonize rescales the colors of src so that its illumination matches dst
// and returns the corrected copy over the bounds of src. The images and the
// mask are matched by their pixel coordinates.
//
// With a mask, the ratio of the mean face colors inside the mask is applied
// to every pixel; an empty mask leaves the source colors unchanged. With a
// nil mask the ratio is computed per pixel from the blurred images.
// The alpha channel of src is preserved.
func Harmonize(src, dst *image.NRGBA, mask *image.Gray, opts HarmonizeOptions) *image.NRGBA {
	eps := math.Max(opts.Epsilon, minEpsilon)
	if mask == nil {
		return harmonizeUnmasked(src, dst, opts.KernelSize, eps)
	}
	return harmonizeMasked(src, dst, mask, eps)
}

func harmonizeMasked(src, dst *image.NRGBA, mask *image.Gray, eps float64) *image.NRGBA {
	srcMean, n := faceMean(src, mask)
	dstMean, m := faceMean(dst, mask)

	ratio := [3]float64{1, 1, 1}
	if n > 0 && m > 0 {
		for c := range ratio {
			ratio[c] = dstMean[c] / math.Max(srcMean[c], eps)
		}
	}
	return rescale(src, func(_, _, c int) float64 {
		return ratio[c]
	})
}

func harmonizeUnmasked(src, dst *image.NRGBA, kernel int, eps float64) *image.NRGBA {
	sigma := gaussianSigma(kernel)
	// The blurred copies start at the origin.
	srcBlur := imaging.Blur(src, sigma)
	dstBlur := imaging.Blur(dst, sigma)
	sb, db := src.Bounds(), dst.Bounds()

	return rescale(src, func(x, y, c int) float64 {
		var d float64
		if (image.Point{X: x, Y: y}).In(db) {
			d = float64(dstBlur.Pix[dstBlur.PixOffset(x-db.Min.X, y-db.Min.Y)+c])
		}
		s := float64(srcBlur.Pix[srcBlur.PixOffset(x-sb.Min.X, y-sb.Min.Y)+c])
		return d / math.Max(s, eps)
	})
}

// rescale returns a copy of img with each color channel multiplied by the
// ratio returned for its pixel. The alpha channel is kept.
func rescale(img *image.NRGBA, ratio func(x, y, c int) float64) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		si := img.PixOffset(b.Min.X, y)
		di := out.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			for c := 0; c < 3; c++ {
				out.Pix[di+c] = utils.ClampUint8(float64(img.Pix[si+c]) * ratio(x, y, c))
			}
			out.Pix[di+3] = img.Pix[si+3]
			si += 4
			di += 4
		}
	}
	return out
}

// faceMean cuts the face out of img with the mask and returns the per channel
// mean color of the pixels left visible, together with their number.
// Transparent pixels of img do not count.
func faceMean(img *image.NRGBA, mask *image.Gray) ([3]float64, int) {
	var (
		sum [3]float64
		n   int
	)
	face := imop.SrcIn(img, mask)
	b := face.Bounds()

	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := face.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if face.Pix[i+3] > 0 {
				sum[0] += float64(face.Pix[i])
				sum[1] += float64(face.Pix[i+1])
				sum[2] += float64(face.Pix[i+2])
				n++
			}
			i += 4
		}
	}
	if n == 0 {
		return sum, 0
	}
	for c := range sum {
		sum[c] /= float64(n)
	}
	return sum, n
}

// gaussianSigma returns the standard deviation matching a k×k Gaussian kernel,
// using the same rule as OpenCV does when sigma is left unspecified.
func gaussianSigma(k int) float64 {
	return 0.3*(float64(k-1)*0.5-1) + 0.8
}
