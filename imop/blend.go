// Package imop implements the pixel-wise operations used for combining face masks
// and for cutting a masked region out of a color image.
//
// Darken is the separable darken blend applied to single channel masks.
// SrcIn is the Porter-Duff source-in operator with a mask as backdrop.
// Pixels are matched by their image coordinates, so both operators accept
// sub-images.
package imop

import (
	"image"
)

// Darken blends the two masks, keeping the smaller value of each pixel, and
// returns the result over the bounds of src. Pixels of src not covered by
// dst are blended with a zero backdrop.
func Darken(src, dst *image.Gray) *image.Gray {
	b := src.Bounds()
	db := dst.Bounds()
	res := image.NewGray(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		si := src.PixOffset(b.Min.X, y)
		ri := res.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if (image.Point{X: x, Y: y}).In(db) {
				res.Pix[ri] = min(src.Pix[si], dst.Pix[dst.PixOffset(x, y)])
			}
			si++
			ri++
		}
	}
	return res
}
