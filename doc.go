/*
Package faceswap transfers the face found in a source photograph onto the face
found in a reference photograph, keeping the pose, the background and the
lighting of the reference image.

The source face is aligned to the reference face with an affine transform
computed from three landmark correspondences, its colors are rescaled to match
the reference illumination, and the aligned face is blended into the reference
image by solving the Poisson equation inside the common face region, so no
hard seam is left at the mask border.

The package provides a command line interface supporting various flags.
To check the supported commands type:

	$ faceswap --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"fmt"

		"github.com/esimov/faceswap"
		"github.com/esimov/faceswap/landmark"
	)

	func main() {
		detector, err := landmark.LoadPigo("facefinder")
		if err != nil {
			// handle the error
		}
		sw := faceswap.NewSwapper(detector)

		out, err := sw.Swap(src, ref)
		if err != nil {
			fmt.Printf("Error swapping faces: %s", err.Error())
		}
	}
*/
package faceswap
