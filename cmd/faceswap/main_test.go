package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/esimov/faceswap/landmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFace(t *testing.T, dir, name string, c color.NRGBA, lm *landmark.Set) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 160, 160))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, 255
	}
	path := filepath.Join(dir, name+".png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	if lm != nil {
		f, err := os.Create(filepath.Join(dir, name+".pts"))
		require.NoError(t, err)
		require.NoError(t, landmark.WritePts(f, *lm))
		require.NoError(t, f.Close())
	}
	return path
}

func TestCmd_Flags(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "missing source", args: []string{"-r", "ref.png"}},
		{name: "missing cascade", args: []string{"-s", "src.png", "-r", "ref.png"}},
		{name: "unknown provider", args: []string{"-s", "src.png", "-r", "ref.png", "--landmarks", "dlib"}},
		{name: "missing cascade file", args: []string{"-s", "src.png", "-r", "ref.png", "--cascade", "missing"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(tc.args)
			assert.Error(t, cmd.Execute())
		})
	}
}

func TestCmd_SwapWithAnnotations(t *testing.T) {
	dir := t.TempDir()
	lm := landmark.MeanFace(20, 20, 120, 120)
	src := writeFace(t, dir, "src", color.NRGBA{R: 220, G: 170, B: 140}, &lm)
	ref := writeFace(t, dir, "ref", color.NRGBA{R: 150, G: 110, B: 90}, &lm)
	noFace := writeFace(t, dir, "empty", color.NRGBA{R: 10, G: 10, B: 10}, nil)

	out := filepath.Join(dir, "out.png")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"-s", src, "-r", ref, "-o", out, "--landmarks", "pts", "--width", "0"})
	require.NoError(t, cmd.Execute())
	assert.FileExists(t, out)

	// No face in the reference: success without output.
	out = filepath.Join(dir, "none.png")
	cmd = newRootCmd()
	cmd.SetArgs([]string{"-s", src, "-r", noFace, "-o", out, "--landmarks", "pts"})
	require.NoError(t, cmd.Execute())
	assert.NoFileExists(t, out)

	// No face in the source is an error naming the source.
	cmd = newRootCmd()
	cmd.SetArgs([]string{"-s", noFace, "-r", ref, "-o", out, "--landmarks", "pts"})
	err := cmd.Execute()
	assert.ErrorContains(t, err, noFace)
	assert.NoFileExists(t, out)

	// Reserved swap types are rejected.
	cmd = newRootCmd()
	cmd.SetArgs([]string{"-s", src, "-r", ref, "-o", out, "--landmarks", "pts", "--type", "2"})
	assert.Error(t, cmd.Execute())
	assert.NoFileExists(t, out)
}
