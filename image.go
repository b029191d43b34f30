package faceswap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/esimov/faceswap/utils"
	"golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned by Encode for an unknown output extension.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Decode decodes a JPEG, PNG, GIF, BMP or WebP image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("could not decode the image: %w", err)
	}
	return img, nil
}

// DecodeFile opens and decodes the image found at path.
func DecodeFile(path string) (image.Image, error) {
	ctype, err := utils.DetectContentType(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !strings.Contains(ctype, "image") {
		return nil, fmt.Errorf("%s: not an image file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open the image: %w", err)
	}
	defer file.Close()

	img, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Encode writes the image to w in the format given by the file extension.
// An empty extension defaults to JPEG.
func Encode(w io.Writer, ext string, img image.Image) error {
	switch strings.ToLower(ext) {
	case "", ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// imgToNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
func imgToNRGBA(img image.Image) *image.NRGBA {
	srcBounds := img.Bounds()
	if srcBounds.Min.X == 0 && srcBounds.Min.Y == 0 {
		if src0, ok := img.(*image.NRGBA); ok && src0.Stride == 4*srcBounds.Dx() {
			return src0
		}
	}
	srcMinX := srcBounds.Min.X
	srcMinY := srcBounds.Min.Y

	dstBounds := srcBounds.Sub(srcBounds.Min)
	dstW := dstBounds.Dx()
	dstH := dstBounds.Dy()
	dst := image.NewNRGBA(dstBounds)

	switch src := img.(type) {
	case *image.NRGBA:
		rowSize := srcBounds.Dx() * 4
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			si := src.PixOffset(srcMinX, srcMinY+dstY)
			copy(dst.Pix[di:di+rowSize], src.Pix[si:si+rowSize])
		}
	case *image.YCbCr:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				srcX := srcMinX + dstX
				srcY := srcMinY + dstY
				siy := src.YOffset(srcX, srcY)
				sic := src.COffset(srcX, srcY)
				r, g, b := color.YCbCrToRGB(src.Y[siy], src.Cb[sic], src.Cr[sic])
				dst.Pix[di+0] = r
				dst.Pix[di+1] = g
				dst.Pix[di+2] = b
				dst.Pix[di+3] = 0xff
				di += 4
			}
		}
	default:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				c := color.NRGBAModel.Convert(img.At(srcMinX+dstX, srcMinY+dstY)).(color.NRGBA)
				dst.Pix[di+0] = c.R
				dst.Pix[di+1] = c.G
				dst.Pix[di+2] = c.B
				dst.Pix[di+3] = c.A
				di += 4
			}
		}
	}

	return dst
}
