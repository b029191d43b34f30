package faceswap

import (
	"errors"
	"fmt"

	"github.com/esimov/faceswap/landmark"
)

var (
	// ErrSingularAlignment is returned when the alignment points of a face are
	// collinear, so no affine transform maps one face onto the other.
	ErrSingularAlignment = errors.New("degenerate alignment: anchor points are collinear")

	// ErrEmptyIntersection is returned when the reference face and the aligned
	// source face do not overlap.
	ErrEmptyIntersection = errors.New("no overlapping face region found")

	// ErrUnsupportedSwapType is returned for swap types without a defined behavior.
	ErrUnsupportedSwapType = errors.New("unsupported swap type")
)

// Role identifies which of the two input images an error refers to.
type Role int

const (
	RoleSource Role = iota
	RoleReference
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleReference:
		return "reference"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// NoFaceError reports that the landmark provider found no face in one of the images.
type NoFaceError struct {
	Role Role
}

func (e *NoFaceError) Error() string {
	return fmt.Sprintf("no face found in the %s image", e.Role)
}

// Unwrap makes errors.Is(err, landmark.ErrNoFace) hold.
func (e *NoFaceError) Unwrap() error {
	return landmark.ErrNoFace
}
