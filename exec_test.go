package faceswap

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/esimov/faceswap/landmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// writeFace stores the image and, when lm is set, its .pts annotation.
func writeFace(t *testing.T, path string, img image.Image, lm *landmark.Set) {
	t.Helper()

	writePNG(t, path, img)
	if lm == nil {
		return
	}
	f, err := os.Create(path[:len(path)-len(filepath.Ext(path))] + ".pts")
	require.NoError(t, err)
	require.NoError(t, landmark.WritePts(f, *lm))
	require.NoError(t, f.Close())
}

func testOps(src, ref, out string) (*Ops, *bytes.Buffer) {
	var stderr bytes.Buffer
	sw := NewSwapper(nil)
	sw.SourceWidth = 0

	return &Ops{
		Source:    src,
		Reference: ref,
		Output:    out,
		Workers:   2,
		Sidecars:  true,
		Quiet:     true,
		Stderr:    &stderr,
		Swapper:   sw,
	}, &stderr
}

func TestExec_Swap(t *testing.T) {
	dir := t.TempDir()
	src, ref := sourceFace(), referenceFace()
	writeFace(t, filepath.Join(dir, "src.png"), src.img, &src.lm)
	writeFace(t, filepath.Join(dir, "ref.png"), ref.img, &ref.lm)
	out := filepath.Join(dir, "out.png")

	op, stderr := testOps(filepath.Join(dir, "src.png"), filepath.Join(dir, "ref.png"), out)
	stats, err := op.Execute()
	require.NoError(t, err)
	assert.Equal(t, Stats{Swapped: 1}, stats)
	assert.Contains(t, stderr.String(), "out.png")

	img, err := DecodeFile(out)
	require.NoError(t, err)
	assert.Equal(t, ref.img.Bounds(), img.Bounds())
}

func TestExec_NoFaceInSource(t *testing.T) {
	dir := t.TempDir()
	src, ref := sourceFace(), referenceFace()
	srcPath := filepath.Join(dir, "src.png")
	writeFace(t, srcPath, src.img, nil)
	writeFace(t, filepath.Join(dir, "ref.png"), ref.img, &ref.lm)
	out := filepath.Join(dir, "out.png")

	op, _ := testOps(srcPath, filepath.Join(dir, "ref.png"), out)
	_, err := op.Execute()

	var nfe *NoFaceError
	require.True(t, errors.As(err, &nfe))
	assert.Equal(t, RoleSource, nfe.Role)
	assert.Contains(t, err.Error(), srcPath)
	assert.NoFileExists(t, out)
}

func TestExec_NoFaceInReference(t *testing.T) {
	dir := t.TempDir()
	src, ref := sourceFace(), referenceFace()
	writeFace(t, filepath.Join(dir, "src.png"), src.img, &src.lm)
	writeFace(t, filepath.Join(dir, "ref.png"), ref.img, nil)
	out := filepath.Join(dir, "out.png")

	op, stderr := testOps(filepath.Join(dir, "src.png"), filepath.Join(dir, "ref.png"), out)
	stats, err := op.Execute()
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 1}, stats)
	assert.Contains(t, stderr.String(), "No face found in the reference image")
	assert.NoFileExists(t, out)
}

func TestExec_SameImage(t *testing.T) {
	dir := t.TempDir()
	src := sourceFace()
	path := filepath.Join(dir, "face.png")
	writeFace(t, path, src.img, &src.lm)
	out := filepath.Join(dir, "out.png")

	op, _ := testOps(path, path, out)
	_, err := op.Execute()
	require.NoError(t, err)

	img, err := DecodeFile(out)
	require.NoError(t, err)
	assert.LessOrEqual(t, maxPixelDiff(src.img, imgToNRGBA(img)), 2)
}

func TestExec_UnsupportedOutput(t *testing.T) {
	dir := t.TempDir()
	src, ref := sourceFace(), referenceFace()
	writeFace(t, filepath.Join(dir, "src.png"), src.img, &src.lm)
	writeFace(t, filepath.Join(dir, "ref.png"), ref.img, &ref.lm)
	out := filepath.Join(dir, "out.tiff")

	op, _ := testOps(filepath.Join(dir, "src.png"), filepath.Join(dir, "ref.png"), out)
	_, err := op.Execute()
	assert.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestExec_MissingInput(t *testing.T) {
	dir := t.TempDir()
	src := sourceFace()
	writeFace(t, filepath.Join(dir, "src.png"), src.img, &src.lm)
	missing := filepath.Join(dir, "missing.png")

	op, _ := testOps(filepath.Join(dir, "src.png"), missing, filepath.Join(dir, "out.png"))
	_, err := op.Execute()
	assert.ErrorContains(t, err, missing)
	assert.NoFileExists(t, filepath.Join(dir, "out.png"))

	op = &Ops{Source: "a.png", Reference: "b.png", Output: "c.png", Swapper: NewSwapper(nil)}
	_, err = op.Execute()
	assert.Error(t, err)
}

func TestExec_Batch(t *testing.T) {
	dir := t.TempDir()
	src, ref := sourceFace(), referenceFace()
	srcPath := filepath.Join(dir, "src.png")
	writeFace(t, srcPath, src.img, &src.lm)

	refs := filepath.Join(dir, "refs")
	require.NoError(t, os.MkdirAll(filepath.Join(refs, "sub"), 0755))
	writeFace(t, filepath.Join(refs, "a.png"), ref.img, &ref.lm)
	writeFace(t, filepath.Join(refs, "sub", "b.png"), ref.img, &ref.lm)
	writeFace(t, filepath.Join(refs, "c.png"), ref.img, nil)
	require.NoError(t, os.WriteFile(filepath.Join(refs, "notes.txt"), []byte("skip me"), 0644))

	out := filepath.Join(dir, "out")
	op, stderr := testOps(srcPath, refs, out)
	stats, err := op.Execute()
	require.NoError(t, err)

	assert.Equal(t, Stats{Swapped: 2, Skipped: 1}, stats)
	assert.FileExists(t, filepath.Join(out, "a.png"))
	assert.FileExists(t, filepath.Join(out, "sub", "b.png"))
	assert.NoFileExists(t, filepath.Join(out, "c.png"))
	assert.Contains(t, stderr.String(), "swapped")
}

func TestExec_BatchNoFaceInSource(t *testing.T) {
	dir := t.TempDir()
	src, ref := sourceFace(), referenceFace()
	srcPath := filepath.Join(dir, "src.png")
	writeFace(t, srcPath, src.img, nil)

	refs := filepath.Join(dir, "refs")
	require.NoError(t, os.Mkdir(refs, 0755))
	writeFace(t, filepath.Join(refs, "a.png"), ref.img, &ref.lm)

	op, _ := testOps(srcPath, refs, filepath.Join(dir, "out"))
	_, err := op.Execute()

	var nfe *NoFaceError
	require.True(t, errors.As(err, &nfe))
	assert.Equal(t, RoleSource, nfe.Role)
	assert.NoFileExists(t, filepath.Join(dir, "out", "a.png"))
}

func TestExec_WalkDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.PNG", "c.txt", "d.gif", "e"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	done := make(chan interface{})
	defer close(done)

	paths, errc := walkDir(done, dir, validExtensions)
	var got []string
	for p := range paths {
		got = append(got, filepath.Base(p))
	}
	require.NoError(t, <-errc)

	sort.Strings(got)
	assert.Equal(t, []string{"a.jpg", "b.PNG", "d.gif"}, got)
}
