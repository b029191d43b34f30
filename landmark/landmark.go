// Package landmark defines the 68 point facial landmark scheme used by the
// face swapper together with the providers able to produce it.
//
// The indexing follows the iBUG 300-W annotation: 0-16 jaw line, 17-21 and
// 22-26 the two eyebrows, 27-35 nose, 36-47 eyes and 48-67 mouth.
package landmark

import (
	"errors"
	"image"
)

// NumPoints is the number of points of a landmark set.
const NumPoints = 68

// Index ranges of the anatomical regions used by the swapper.
const (
	// JawStart and JawEnd delimit the jaw line (inclusive).
	JawStart = 0
	JawEnd   = 16

	// BrowArcStart and BrowArcEnd delimit the eyebrow arc traversed
	// from right to left (inclusive), closing the face contour.
	BrowArcStart = 26
	BrowArcEnd   = 18

	// Chin is the chin tip.
	Chin = 8
	// LeftBrow and RightBrow are the brow points used for alignment.
	LeftBrow  = 18
	RightBrow = 25
)

// AnchorTriple holds the correspondence points used to align two faces.
var AnchorTriple = [3]int{LeftBrow, Chin, RightBrow}

// ErrNoFace is returned by a Provider when the image contains no face.
var ErrNoFace = errors.New("no face found")

// Set is an ordered set of facial landmarks in image coordinates.
type Set [NumPoints]image.Point

// Provider locates the facial landmarks of the first face found in an image.
// It returns ErrNoFace when no face could be detected.
type Provider interface {
	Detect(img image.Image) (Set, error)
}

// Contour returns the closed face outline: the jaw line followed by
// the eyebrow arc in reverse order.
func (s Set) Contour() []image.Point {
	pts := make([]image.Point, 0, (JawEnd-JawStart+1)+(BrowArcStart-BrowArcEnd+1))
	for i := JawStart; i <= JawEnd; i++ {
		pts = append(pts, s[i])
	}
	for i := BrowArcStart; i >= BrowArcEnd; i-- {
		pts = append(pts, s[i])
	}
	return pts
}

// Anchors returns the three alignment points.
func (s Set) Anchors() [3]image.Point {
	var pts [3]image.Point
	for i, idx := range AnchorTriple {
		pts[i] = s[idx]
	}
	return pts
}

// Bounds returns the smallest rectangle containing every landmark.
func (s Set) Bounds() image.Rectangle {
	r := image.Rectangle{Min: s[0], Max: s[0]}
	for _, p := range s[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

// Scale returns a copy of the set with the coordinates multiplied by fx and fy.
func (s Set) Scale(fx, fy float64) Set {
	var out Set
	for i, p := range s {
		out[i] = image.Pt(int(float64(p.X)*fx+0.5), int(float64(p.Y)*fy+0.5))
	}
	return out
}

// Translate returns a copy of the set moved by d.
func (s Set) Translate(d image.Point) Set {
	for i := range s {
		s[i] = s[i].Add(d)
	}
	return s
}

// Fixed is a Provider returning a preset landmark set regardless of the image.
// A nil Set reports ErrNoFace.
type Fixed struct {
	Set *Set
}

// Detect implements Provider.
func (f Fixed) Detect(image.Image) (Set, error) {
	if f.Set == nil {
		return Set{}, ErrNoFace
	}
	return *f.Set, nil
}
