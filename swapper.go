package faceswap

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/esimov/faceswap/landmark"
	"go.uber.org/zap"
)

// SwapType selects the swapping behavior.
type SwapType int

// NormalSwap replaces the reference face with the source face,
// keeping the reference pose and lighting.
const NormalSwap SwapType = 0

// Options holds the tunable parameters of the swapping pipeline.
type Options struct {
	SwapType SwapType
	// SourceWidth is the width the source image is resized to before
	// landmark detection, keeping its aspect ratio. Zero disables it.
	SourceWidth int
	ErodeSize   int
	FeatherSize int
	Harmonize   HarmonizeOptions
	Poisson     PoissonOptions
}

// DefaultOptions returns the options the pipeline is tuned for.
func DefaultOptions() Options {
	return Options{
		SwapType:    NormalSwap,
		SourceWidth: 600,
		ErodeSize:   5,
		FeatherSize: 3,
		Harmonize: HarmonizeOptions{
			Masked:     true,
			KernelSize: 55,
			Epsilon:    1e-6,
		},
		Poisson: PoissonOptions{
			MaxIterations: 4000,
			Tolerance:     1e-5,
		},
	}
}

// Swapper transfers the face found in a source image onto
// the face found in a reference image.
type Swapper struct {
	Options

	// Detector locates the facial landmarks of both images.
	Detector landmark.Provider
	// ReferenceDetector, when set, is used for the reference image instead of Detector.
	ReferenceDetector landmark.Provider
	Logger            *zap.Logger
}

// NewSwapper returns a Swapper using the default options.
func NewSwapper(detector landmark.Provider) *Swapper {
	return &Swapper{
		Options:  DefaultOptions(),
		Detector: detector,
	}
}

func (s *Swapper) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Face is an image together with the landmarks of its first face.
type Face struct {
	Image     *image.NRGBA
	Landmarks landmark.Set
}

// Swap detects the faces of both images and returns the reference image with
// its face replaced by the source face. The returned image always has the
// size of the reference image.
//
// A *NoFaceError is returned when one of the images has no face; the source
// image is always inspected first.
func (s *Swapper) Swap(src, ref image.Image) (*image.NRGBA, error) {
	face, err := s.SourceFace(src)
	if err != nil {
		return nil, err
	}
	return s.SwapOnto(face, ref)
}

// SourceFace prepares the source image and locates its face. The result can
// be reused to swap the same face onto several reference images.
//
// The landmarks are detected on the original image and scaled along with it
// when the image is resized to the configured source width.
func (s *Swapper) SourceFace(src image.Image) (*Face, error) {
	if s.SwapType != NormalSwap {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSwapType, s.SwapType)
	}
	img := imgToNRGBA(src)

	lm, err := s.Detector.Detect(img)
	if err != nil {
		return nil, detectError(err, RoleSource)
	}

	resized := s.resizeSource(img)
	if rb, b := resized.Bounds(), img.Bounds(); rb != b {
		lm = lm.Scale(float64(rb.Dx())/float64(b.Dx()), float64(rb.Dy())/float64(b.Dy()))
	}
	s.logger().Debug("source face found",
		zap.Stringer("size", resized.Bounds().Size()),
		zap.Stringer("bounds", lm.Bounds()),
	)
	return &Face{Image: resized, Landmarks: lm}, nil
}

// SwapOnto locates the face of the reference image and replaces it with face.
func (s *Swapper) SwapOnto(face *Face, ref image.Image) (*image.NRGBA, error) {
	refImg := imgToNRGBA(ref)
	detector := s.ReferenceDetector
	if detector == nil {
		detector = s.Detector
	}
	refLm, err := detector.Detect(refImg)
	if err != nil {
		return nil, detectError(err, RoleReference)
	}
	return s.SwapFaces(face.Image, refImg, face.Landmarks, refLm)
}

// SwapFaces runs the swapping pipeline over images with known landmarks:
// the source face is aligned to the reference face, color corrected and
// blended into the reference image. The landmarks are given in the
// coordinates of their image and the result has the bounds of ref.
func (s *Swapper) SwapFaces(src, ref *image.NRGBA, srcLm, refLm landmark.Set) (*image.NRGBA, error) {
	if s.SwapType != NormalSwap {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSwapType, s.SwapType)
	}
	log := s.logger()

	// The masks and the warp start at the origin, so the images are moved there.
	refBounds := ref.Bounds()
	srcLm = srcLm.Translate(src.Bounds().Min.Mul(-1))
	refLm = refLm.Translate(refBounds.Min.Mul(-1))
	src, ref = imgToNRGBA(src), imgToNRGBA(ref)
	size := refBounds.Size()

	refMask := FaceMask(size, refLm)
	srcMask := FaceMask(src.Bounds().Size(), srcLm)
	log.Debug("face masks generated",
		zap.Int("sourceArea", maskArea(srcMask)),
		zap.Int("referenceArea", maskArea(refMask)),
	)

	m, err := NewAffine(srcLm, refLm)
	if err != nil {
		return nil, err
	}
	warped := m.Warp(src, size)
	warpedMask := m.WarpMask(srcMask, size)
	log.Debug("source face aligned", zap.Float64s("affine", m[:]))

	masks, err := CombineMasks(refMask, warpedMask, s.Options)
	if err != nil {
		return nil, err
	}
	log.Debug("masks combined",
		zap.Int("intersectionArea", maskArea(masks.Intersection)),
		zap.Int("erodedArea", maskArea(masks.Eroded)),
		zap.Stringer("anchor", masks.Anchor),
	)

	var hmask *image.Gray
	if s.Harmonize.Masked {
		hmask = masks.Feather
	}
	corrected := Harmonize(warped, ref, hmask, s.Harmonize)

	out, iters, err := seamlessClone(corrected, ref, masks.Feather, masks.Anchor, s.Poisson)
	if err != nil {
		return nil, err
	}
	log.Debug("seamless clone done", zap.Int("iterations", iters))

	out.Rect = refBounds
	return out, nil
}

// resizeSource scales the source image to the configured width.
func (s *Swapper) resizeSource(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	if s.SourceWidth <= 0 || b.Dx() == 0 || b.Dx() == s.SourceWidth {
		return img
	}
	h := max(1, b.Dy()*s.SourceWidth/b.Dx())
	return imaging.Resize(img, s.SourceWidth, h, imaging.Linear)
}

func detectError(err error, role Role) error {
	if errors.Is(err, landmark.ErrNoFace) {
		return &NoFaceError{Role: role}
	}
	return fmt.Errorf("%s landmark detection: %w", role, err)
}
