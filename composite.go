package faceswap

import (
	"image"

	"github.com/esimov/faceswap/imop"
)

// MaskSet holds the masks derived from the reference face mask and the warped
// source face mask, together with the point the blended face is centered on.
type MaskSet struct {
	Intersection *image.Gray
	Eroded       *image.Gray
	Feather      *image.Gray
	Anchor       image.Point
}

// Intersect returns the pixel-wise minimum of the two masks.
func Intersect(a, b *image.Gray) *image.Gray {
	return imop.Darken(a, b)
}

// Erode shrinks the mask by blurring it with a size×size box filter and
// keeping only the pixels which stayed fully set.
func Erode(mask *image.Gray, size int) *image.Gray {
	out := boxBlur(mask, size)
	for i, v := range out.Pix {
		if v != 255 {
			out.Pix[i] = 0
		}
	}
	return out
}

// Feather softens the mask edges with a size×size box blur.
func Feather(mask *image.Gray, size int) *image.Gray {
	return boxBlur(mask, size)
}

// BlendAnchor returns the integer midpoint of the bounding box of the
// nonzero mask pixels, or ErrEmptyIntersection for an empty mask.
func BlendAnchor(mask *image.Gray) (image.Point, error) {
	r, ok := maskBounds(mask)
	if !ok {
		return image.Point{}, ErrEmptyIntersection
	}
	// r is exclusive; the midpoint is taken over the inclusive box.
	return image.Pt((r.Min.X+r.Max.X-1)/2, (r.Min.Y+r.Max.Y-1)/2), nil
}

// CombineMasks intersects the reference mask with the warped source mask,
// then erodes and feathers the result.
func CombineMasks(ref, warped *image.Gray, opts Options) (*MaskSet, error) {
	inter := Intersect(ref, warped)
	eroded := Erode(inter, opts.ErodeSize)

	anchor, err := BlendAnchor(eroded)
	if err != nil {
		return nil, err
	}
	return &MaskSet{
		Intersection: inter,
		Eroded:       eroded,
		Feather:      Feather(eroded, opts.FeatherSize),
		Anchor:       anchor,
	}, nil
}

// maskBounds returns the smallest rectangle holding every nonzero pixel.
func maskBounds(mask *image.Gray) (image.Rectangle, bool) {
	b := mask.Bounds()
	r := image.Rectangle{Min: b.Max, Max: b.Min}
	found := false

	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := mask.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.Pix[off] > 0 {
				found = true
				r.Min.X = min(r.Min.X, x)
				r.Min.Y = min(r.Min.Y, y)
				r.Max.X = max(r.Max.X, x+1)
				r.Max.Y = max(r.Max.Y, y+1)
			}
			off++
		}
	}
	return r, found
}
