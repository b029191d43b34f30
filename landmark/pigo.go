package landmark

import (
	"fmt"
	"image"
	"math"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// meanShape is the 68 point mean face normalized to the unit square spanned
// by the outer landmarks. Shape regressors start from this template placed
// inside the detection window; the Pigo provider uses it as is.
var meanShape = [NumPoints][2]float64{
	{0.0792, 0.3392}, {0.0829, 0.4570}, {0.0968, 0.5756}, {0.1221, 0.6919},
	{0.1687, 0.8003}, {0.2398, 0.8957}, {0.3257, 0.9771}, {0.4223, 1.0433},
	{0.5318, 1.0608}, {0.6413, 1.0398}, {0.7381, 0.9723}, {0.8244, 0.8896},
	{0.8948, 0.7925}, {0.9394, 0.6815}, {0.9611, 0.5622}, {0.9706, 0.4418},
	{0.9712, 0.3221}, {0.1638, 0.2492}, {0.2178, 0.2043}, {0.2913, 0.1924},
	{0.3675, 0.2036}, {0.4393, 0.2331}, {0.5864, 0.2281}, {0.6602, 0.1959},
	{0.7375, 0.1824}, {0.8132, 0.1928}, {0.8708, 0.2353}, {0.5153, 0.3186},
	{0.5162, 0.3962}, {0.5171, 0.4738}, {0.5182, 0.5532}, {0.4337, 0.6041},
	{0.4755, 0.6208}, {0.5207, 0.6343}, {0.5659, 0.6188}, {0.6071, 0.6016},
	{0.2524, 0.3311}, {0.2987, 0.3026}, {0.3557, 0.3030}, {0.4037, 0.3387},
	{0.3525, 0.3500}, {0.2968, 0.3505}, {0.6313, 0.3341}, {0.6791, 0.2965},
	{0.7360, 0.2947}, {0.7829, 0.3213}, {0.7403, 0.3418}, {0.6850, 0.3437},
	{0.3532, 0.7462}, {0.4146, 0.7191}, {0.4777, 0.7068}, {0.5227, 0.7171},
	{0.5698, 0.7054}, {0.6352, 0.7157}, {0.6995, 0.7394}, {0.6394, 0.8052},
	{0.5764, 0.8354}, {0.5254, 0.8417}, {0.4764, 0.8375}, {0.4138, 0.8100},
	{0.3801, 0.7500}, {0.4780, 0.7451}, {0.5234, 0.7489}, {0.5711, 0.7433},
	{0.6724, 0.7442}, {0.5725, 0.7766}, {0.5240, 0.7834}, {0.4776, 0.7785},
}

// Pigo detects faces with the pigo cascade classifier and fits
// the mean face template into the first detection.
type Pigo struct {
	MinSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	// MinQuality discards the detections scoring below it.
	MinQuality float32
	Angle      float64

	classifier *pigo.Pigo
}

// NewPigo unpacks the cascade classifier and returns a provider
// initialized with the parameters commonly used for frontal faces.
func NewPigo(cascade []byte) (p *Pigo, err error) {
	// The header holds two reserved words, the tree depth and the tree count.
	if len(cascade) < 16 {
		return nil, fmt.Errorf("error unpacking the cascade file: truncated header")
	}
	// Unpack indexes the packet without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("error unpacking the cascade file: %v", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the cascade file: %v", err)
	}
	return &Pigo{
		MinSize:      60,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
		classifier:   classifier,
	}, nil
}

// LoadPigo reads the cascade classifier from path.
func LoadPigo(path string) (*Pigo, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read the cascade file: %w", err)
	}
	return NewPigo(cascade)
}

// Detect implements Provider.
func (p *Pigo) Detect(img image.Image) (Set, error) {
	b := img.Bounds()
	cols, rows := b.Dx(), b.Dy()

	cParams := pigo.CascadeParams{
		MinSize:     p.MinSize,
		MaxSize:     max(cols, rows),
		ShiftFactor: p.ShiftFactor,
		ScaleFactor: p.ScaleFactor,

		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.classifier.RunCascade(cParams, p.Angle)
	dets = p.classifier.ClusterDetections(dets, p.IoUThreshold)

	face, ok := firstFace(dets, p.MinQuality)
	if !ok {
		return Set{}, ErrNoFace
	}
	return fitTemplate(face, b.Min), nil
}

// firstFace returns the best scoring detection above the quality threshold.
func firstFace(dets []pigo.Detection, minQ float32) (pigo.Detection, bool) {
	var (
		best  pigo.Detection
		found bool
	)
	for _, d := range dets {
		if d.Q < minQ {
			continue
		}
		if !found || d.Q > best.Q {
			best, found = d, true
		}
	}
	return best, found
}

// fitTemplate places the mean shape into the square detection window.
// The template's height exceeds its width, so the window is shortened
// vertically to keep the chin close to the window's bottom edge.
func fitTemplate(d pigo.Detection, origin image.Point) Set {
	size := float64(d.Scale)
	left := float64(d.Col) - size/2
	top := float64(d.Row) - size/2
	return MeanFace(left+float64(origin.X), top+float64(origin.Y), size, size*0.95)
}

// MeanFace returns the mean face template scaled to w×h and translated to (x, y).
func MeanFace(x, y, w, h float64) Set {
	var s Set
	for i, pt := range meanShape {
		s[i] = image.Pt(
			int(math.Round(x+pt[0]*w)),
			int(math.Round(y+pt[1]*h)),
		)
	}
	return s
}
