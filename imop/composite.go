package imop

import (
	"image"
)

// SrcIn composites the source image with the mask used as backdrop alpha.
// The source colors are kept unchanged and the alpha channel is scaled by
// the mask, so only the masked region remains visible. Pixels outside of
// the mask bounds become transparent.
func SrcIn(src *image.NRGBA, mask *image.Gray) *image.NRGBA {
	b := src.Bounds()
	mb := mask.Bounds()
	dst := image.NewNRGBA(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		si := src.PixOffset(b.Min.X, y)
		di := dst.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			var ab uint32
			if (image.Point{X: x, Y: y}).In(mb) {
				ab = uint32(mask.Pix[mask.PixOffset(x, y)])
			}
			as := uint32(src.Pix[si+3])

			copy(dst.Pix[di:di+3], src.Pix[si:si+3])
			dst.Pix[di+3] = uint8((as*ab + 127) / 255)
			si += 4
			di += 4
		}
	}
	return dst
}
