package faceswap

import (
	"image"
)

// boxBlur applies a normalized k×k box filter over the mask. The image borders
// are mirrored without repeating the edge pixel (i.e. reflect-101),
// and the averages are rounded to the nearest integer.
func boxBlur(src *image.Gray, k int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	if w == 0 || h == 0 {
		return dst
	}
	if k <= 1 {
		for y := 0; y < h; y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return dst
	}
	r := k / 2
	area := uint32(k * k)

	// Horizontal pass: window sums of each row.
	rows := make([]uint32, w*h)
	for y := 0; y < h; y++ {
		line := src.Pix[y*src.Stride : y*src.Stride+w]
		for x := 0; x < w; x++ {
			var sum uint32
			for i := x - r; i <= x-r+k-1; i++ {
				sum += uint32(line[reflect101(i, w)])
			}
			rows[y*w+x] = sum
		}
	}

	// Vertical pass over the row sums, then normalize.
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var sum uint32
			for i := y - r; i <= y-r+k-1; i++ {
				sum += rows[reflect101(i, h)*w+x]
			}
			dst.Pix[y*dst.Stride+x] = uint8((sum + area/2) / area)
		}
	}
	return dst
}

// reflect101 maps an out of range index back into [0, n) by mirroring
// around the first and last elements: -1 -> 1, n -> n-2.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}
