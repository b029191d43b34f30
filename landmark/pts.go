package landmark

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadPts parses a landmark set stored in the iBUG .pts format:
//
//	version: 1
//	n_points: 68
//	{
//	x y
//	...
//	}
//
// Fractional coordinates are rounded to the nearest pixel.
func ReadPts(r io.Reader) (Set, error) {
	var (
		set     Set
		count   = -1
		inBody  bool
		idx     int
		lineNum int
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "version:"):
			continue
		case strings.HasPrefix(line, "n_points:"):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "n_points:")))
			if err != nil {
				return Set{}, fmt.Errorf("line %d: invalid point count: %w", lineNum, err)
			}
			if n != NumPoints {
				return Set{}, fmt.Errorf("expected %d points, got %d", NumPoints, n)
			}
			count = n
		case line == "{":
			inBody = true
		case line == "}":
			inBody = false
		case inBody:
			if idx >= NumPoints {
				return Set{}, fmt.Errorf("line %d: too many points", lineNum)
			}
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return Set{}, fmt.Errorf("line %d: expected two coordinates", lineNum)
			}
			x, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return Set{}, fmt.Errorf("line %d: %w", lineNum, err)
			}
			y, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return Set{}, fmt.Errorf("line %d: %w", lineNum, err)
			}
			set[idx].X = int(math.Round(x))
			set[idx].Y = int(math.Round(y))
			idx++
		default:
			return Set{}, fmt.Errorf("line %d: unexpected content %q", lineNum, line)
		}
	}
	if err := sc.Err(); err != nil {
		return Set{}, err
	}
	if count < 0 {
		return Set{}, fmt.Errorf("missing n_points header")
	}
	if idx != NumPoints {
		return Set{}, fmt.Errorf("expected %d points, got %d", NumPoints, idx)
	}
	return set, nil
}

// WritePts serializes the landmark set in the iBUG .pts format.
func WritePts(w io.Writer, s Set) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "version: 1\nn_points: %d\n{\n", NumPoints)
	for _, p := range s {
		fmt.Fprintf(bw, "%d %d\n", p.X, p.Y)
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// LoadPts reads the landmark annotation file found at path.
func LoadPts(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return Set{}, err
	}
	defer f.Close()

	s, err := ReadPts(f)
	if err != nil {
		return Set{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Sidecar returns a Fixed provider loaded from the annotation file stored
// next to the image, i.e. photo.jpg -> photo.pts. A missing annotation
// file means the image has no face.
func Sidecar(imagePath string) (Fixed, error) {
	ptsPath := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".pts"
	if _, err := os.Stat(ptsPath); os.IsNotExist(err) {
		return Fixed{}, nil
	}
	s, err := LoadPts(ptsPath)
	if err != nil {
		return Fixed{}, err
	}
	return Fixed{Set: &s}, nil
}
