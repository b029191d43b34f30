package faceswap

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlur_Reflect101(t *testing.T) {
	testCases := []struct {
		i, n, want int
	}{
		{i: 0, n: 5, want: 0},
		{i: 3, n: 5, want: 3},
		{i: -1, n: 5, want: 1},
		{i: -2, n: 5, want: 2},
		{i: 5, n: 5, want: 3},
		{i: 6, n: 5, want: 2},
		{i: -3, n: 2, want: 1},
		{i: 4, n: 1, want: 0},
	}

	for _, tc := range testCases {
		assert.Equalf(t, tc.want, reflect101(tc.i, tc.n), "reflect101(%d, %d)", tc.i, tc.n)
	}
}

func TestBlur_BoxBlur(t *testing.T) {
	assert := assert.New(t)

	img := image.NewGray(image.Rect(0, 0, 7, 7))
	img.SetGray(3, 3, grayOf(255))

	out := boxBlur(img, 3)
	// 255/9 rounds to 28 on the 3×3 neighbourhood, zero elsewhere.
	for y := 0; y < 7; y++ {
		for x := 0; x < 7; x++ {
			want := uint8(0)
			if x >= 2 && x <= 4 && y >= 2 && y <= 4 {
				want = 28
			}
			assert.Equalf(want, out.GrayAt(x, y).Y, "pixel (%d, %d)", x, y)
		}
	}
	// The source is left untouched.
	assert.Equal(1, maskArea(img))

	// A pixel on the border is mirrored without repeating the edge.
	edge := image.NewGray(image.Rect(0, 0, 5, 5))
	edge.SetGray(0, 2, grayOf(90))
	out = boxBlur(edge, 3)
	assert.Equal(uint8(10), out.GrayAt(0, 2).Y)
	assert.Equal(uint8(10), out.GrayAt(1, 2).Y)
}

func TestBlur_BoxBlurConstant(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 9, 6))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for _, k := range []int{1, 3, 5} {
		out := boxBlur(img, k)
		assert.Equal(t, img.Pix, out.Pix)
	}
}

func TestBlur_BoxBlurSubImage(t *testing.T) {
	parent := rectMask(30, 30, image.Rect(5, 5, 15, 15), 255)
	for i := range parent.Pix[:30] {
		parent.Pix[i] = 77
	}
	r := image.Rect(2, 3, 20, 22)
	sub := parent.SubImage(r).(*image.Gray)
	packed := rectMask(18, 19, image.Rect(3, 2, 13, 12), 255)

	for _, k := range []int{1, 3, 5} {
		got, want := boxBlur(sub, k), boxBlur(packed, k)
		require.Equal(t, r, got.Bounds())
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				require.Equal(t, want.GrayAt(x-2, y-3), got.GrayAt(x, y), "k=%d pixel (%d, %d)", k, x, y)
			}
		}
	}
	assert.Equal(t, 36, maskArea(Erode(sub, 5)))
}
