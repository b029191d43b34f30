package imop

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func grayOf(rect image.Rectangle, v uint8) *image.Gray {
	img := image.NewGray(rect)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestBlend_Darken(t *testing.T) {
	rect := image.Rect(0, 0, 1, 1)
	res := Darken(grayOf(rect, 200), grayOf(rect, 100))
	assert.Equal(t, uint8(100), res.Pix[0])

	res = Darken(grayOf(rect, 30), grayOf(rect, 100))
	assert.Equal(t, uint8(30), res.Pix[0])
}

func TestBlend_DarkenIsIntersection(t *testing.T) {
	rect := image.Rect(0, 0, 10, 10)
	a := image.NewGray(rect)
	b := image.NewGray(rect)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x < 6 {
				a.Pix[a.PixOffset(x, y)] = 255
			}
			if x >= 4 {
				b.Pix[b.PixOffset(x, y)] = 255
			}
		}
	}

	res := Darken(a, b)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			want := uint8(0)
			if x >= 4 && x < 6 {
				want = 255
			}
			assert.Equal(t, want, res.GrayAt(x, y).Y)
		}
	}
}

func TestBlend_DifferentBounds(t *testing.T) {
	a := grayOf(image.Rect(0, 0, 4, 4), 255)
	b := grayOf(image.Rect(0, 0, 2, 2), 255)

	res := Darken(a, b)
	assert.Equal(t, a.Bounds(), res.Bounds())
	assert.Equal(t, uint8(255), res.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(0), res.GrayAt(3, 3).Y)
}

func TestBlend_SubImages(t *testing.T) {
	assert := assert.New(t)

	a := grayOf(image.Rect(0, 0, 12, 12), 0)
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			a.Pix[a.PixOffset(x, y)] = uint8(10*x + y)
		}
	}
	b := grayOf(image.Rect(0, 0, 12, 12), 255)

	sa := a.SubImage(image.Rect(3, 4, 9, 10)).(*image.Gray)
	sb := b.SubImage(image.Rect(5, 2, 12, 8)).(*image.Gray)
	res := Darken(sa, sb)

	assert.Equal(sa.Bounds(), res.Bounds())
	// Covered by both, the pixel keeps the value of a at the same coordinates.
	assert.Equal(a.GrayAt(6, 5), res.GrayAt(6, 5))
	assert.Equal(a.GrayAt(8, 7), res.GrayAt(8, 7))
	// Outside of b the backdrop is zero.
	assert.Equal(uint8(0), res.GrayAt(4, 5).Y)
	assert.Equal(uint8(0), res.GrayAt(6, 9).Y)
}
