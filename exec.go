package faceswap

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/esimov/faceswap/landmark"
	"github.com/esimov/faceswap/utils"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// PipeName is the file name that indicates stdin/stdout is being used.
const PipeName = "-"

// validExtensions lists the reference files picked up in batch mode.
var validExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"}

// Ops describes a face swapping job. Reference may be a single image or
// a directory, in which case every image found under it is processed
// and the results are written into the Output directory.
type Ops struct {
	Source, Reference, Output string
	Workers                   int
	// Sidecars reads the landmarks of each image from the .pts annotation
	// file stored next to it instead of running the detector.
	Sidecars bool
	// Quiet hides the spinner and the progress bar.
	Quiet bool
	// Stderr receives the status messages. Defaults to os.Stderr.
	Stderr io.Writer

	Swapper *Swapper
}

// Stats summarizes the outcome of an execution.
type Stats struct {
	Swapped int
	// Skipped counts the reference images without a face.
	Skipped int
	Failed  int
}

// result holds the outcome of swapping the face onto a single reference image.
type result struct {
	path string
	err  error
}

// Execute runs the face swapping job. A reference image without a face is
// not an error: it is reported, counted as skipped and no output is written.
func (op *Ops) Execute() (Stats, error) {
	if op.Swapper == nil || (op.Swapper.Detector == nil && !op.Sidecars) {
		return Stats{}, errors.New("no landmark detector configured")
	}
	if op.Source == PipeName && op.Reference == PipeName {
		return Stats{}, errors.New("only one of the source and the reference can be read from stdin")
	}
	now := time.Now()

	var (
		stats Stats
		err   error
	)
	if op.isBatch() {
		stats, err = op.batch()
	} else {
		stats, err = op.single()
	}
	if err == nil {
		fmt.Fprintf(op.stderr(), "\nExecution time: %s\n",
			utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage),
		)
	}
	return stats, err
}

// isBatch reports whether the reference points to a directory.
func (op *Ops) isBatch() bool {
	if op.Reference == PipeName || utils.IsValidUrl(op.Reference) {
		return false
	}
	fi, err := os.Stat(op.Reference)
	return err == nil && fi.IsDir()
}

func (op *Ops) single() (Stats, error) {
	if op.Output != PipeName {
		ext := strings.ToLower(filepath.Ext(op.Output))
		if ext != "" && !isValidExtension(ext, []string{".jpg", ".jpeg", ".png", ".bmp"}) {
			return Stats{}, fmt.Errorf("%v file type not supported", ext)
		}
	}

	spinner := utils.NewSpinner(
		utils.StatusLine("⇢ swapping faces...", "", utils.DefaultMessage),
		80*time.Millisecond, true,
	)
	spinner.SetWriter(op.stderr())

	if !op.Quiet {
		spinner.Start()
		// Capture CTRL-C signal and restore back the cursor visibility.
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signalChan)

		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-signalChan:
				spinner.RestoreCursor()
				os.Exit(1)
			case <-stop:
			}
		}()
	}

	stats, err := op.swapSingle()
	if !op.Quiet {
		if err != nil {
			spinner.StopMsg = utils.StatusLine("swapping faces failed...", "✘", utils.ErrorMessage) + "\n"
		} else {
			spinner.StopMsg = utils.StatusLine("⇢", "done ✔", utils.SuccessMessage) + "\n"
		}
		spinner.Stop()
	}
	if err != nil {
		return stats, err
	}

	switch {
	case stats.Skipped > 0:
		fmt.Fprintf(op.stderr(), "%s %s\n",
			utils.DecorateText("No face found in the reference image:", utils.StatusMessage),
			utils.DecorateText(op.Reference, utils.DefaultMessage),
		)
	case op.Output != PipeName:
		fmt.Fprintf(op.stderr(), "\nThe image has been saved as: %s %s\n",
			utils.DecorateText(filepath.Base(op.Output), utils.SuccessMessage),
			utils.DefaultColor,
		)
	}
	return stats, nil
}

func (op *Ops) swapSingle() (Stats, error) {
	face, err := op.sourceFace()
	if err != nil {
		return Stats{}, err
	}

	ref, err := op.loadImage(op.Reference)
	if err != nil {
		return Stats{}, err
	}
	out, err := op.swapOnto(face, op.Reference, ref)
	if err != nil {
		var nfe *NoFaceError
		if errors.As(err, &nfe) && nfe.Role == RoleReference {
			return Stats{Skipped: 1}, nil
		}
		return Stats{}, err
	}

	// The output is only created after the swap succeeded.
	if err := writeImage(op.Output, out); err != nil {
		return Stats{}, err
	}
	return Stats{Swapped: 1}, nil
}

// batch swaps the source face onto every image found in the reference directory.
func (op *Ops) batch() (Stats, error) {
	var stats Stats

	if op.Output == PipeName {
		return stats, errors.New("batch mode requires a destination directory")
	}
	if err := os.MkdirAll(op.Output, 0755); err != nil {
		return stats, fmt.Errorf("unable to create the destination directory %s: %w", op.Output, err)
	}
	face, err := op.sourceFace()
	if err != nil {
		return stats, err
	}

	// Limit the concurrently running workers to maxWorkers.
	workers := op.Workers
	if workers <= 0 || workers > maxWorkers {
		workers = min(runtime.NumCPU(), maxWorkers)
	}

	barWriter := op.stderr()
	if op.Quiet {
		barWriter = io.Discard
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("⚡ Swapping faces"),
		progressbar.OptionSetWriter(barWriter),
		progressbar.OptionShowCount(),
	)

	ch := make(chan result)
	done := make(chan interface{})
	defer close(done)

	paths, errc := walkDir(done, op.Reference, validExtensions)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			op.consumer(face, ch, done, paths)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	var failures []result
	for res := range ch {
		_ = bar.Add(1)

		var nfe *NoFaceError
		switch {
		case res.err == nil:
			stats.Swapped++
		case errors.As(res.err, &nfe) && nfe.Role == RoleReference:
			stats.Skipped++
		default:
			stats.Failed++
			failures = append(failures, res)
		}
	}
	_ = bar.Finish()

	fmt.Fprintf(op.stderr(), "\n%s\n", utils.BatchSummary(stats.Swapped, stats.Skipped, stats.Failed))
	for _, f := range failures {
		fmt.Fprintf(op.stderr(), "\t%s: %s\n",
			utils.DecorateText(f.path, utils.DefaultMessage),
			utils.DecorateText(f.err.Error(), utils.ErrorMessage),
		)
	}

	if err := <-errc; err != nil {
		return stats, err
	}
	return stats, nil
}

// consumer reads the path names from the paths channel and swaps the source
// face onto each of the reference images.
func (op *Ops) consumer(
	face *Face,
	res chan<- result,
	done <-chan interface{},
	paths <-chan string,
) {
	for path := range paths {
		err := op.swapFile(face, path)

		select {
		case <-done:
			return
		case res <- result{
			path: path,
			err:  err,
		}:
		}
	}
}

// swapFile swaps the face onto the reference image found at path and writes
// the result into the destination directory, preserving the relative path.
func (op *Ops) swapFile(face *Face, path string) error {
	ref, err := op.loadImage(path)
	if err != nil {
		return err
	}
	out, err := op.swapOnto(face, path, ref)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(op.Reference, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	dst := filepath.Join(op.Output, rel)
	// GIF has no encoder among the output formats.
	if strings.EqualFold(filepath.Ext(dst), ".gif") {
		dst = strings.TrimSuffix(dst, filepath.Ext(dst)) + ".png"
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return writeImage(dst, out)
}

// sourceFace loads the source image and locates its face.
func (op *Ops) sourceFace() (*Face, error) {
	src, err := op.loadImage(op.Source)
	if err != nil {
		return nil, err
	}

	sw := *op.Swapper
	if op.Sidecars {
		if sw.Detector, err = sidecar(op.Source); err != nil {
			return nil, err
		}
	}
	face, err := sw.SourceFace(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.Source, err)
	}
	return face, nil
}

// swapOnto swaps the face onto the reference image loaded from path.
func (op *Ops) swapOnto(face *Face, path string, ref image.Image) (*image.NRGBA, error) {
	sw := *op.Swapper
	if op.Sidecars {
		p, err := sidecar(path)
		if err != nil {
			return nil, err
		}
		sw.ReferenceDetector = p
	}

	out, err := sw.SwapOnto(face, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sw.logger().Debug("reference processed", zap.String("path", path))
	return out, nil
}

// loadImage reads the image from a local file, an URL or the stdin pipe.
func (op *Ops) loadImage(path string) (image.Image, error) {
	switch {
	case utils.IsValidUrl(path):
		f, err := utils.DownloadImage(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load the image %s: %w", path, err)
		}
		defer os.Remove(f.Name())
		defer f.Close()

		img, err := Decode(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return img, nil
	case path == PipeName:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		return Decode(os.Stdin)
	default:
		return DecodeFile(path)
	}
}

func (op *Ops) stderr() io.Writer {
	if op.Stderr == nil {
		return os.Stderr
	}
	return op.Stderr
}

// sidecar returns the landmark provider backed by the annotation file of the image.
func sidecar(path string) (landmark.Provider, error) {
	if path == PipeName || utils.IsValidUrl(path) {
		return nil, fmt.Errorf("%s: landmark annotations require a local image file", path)
	}
	p, err := landmark.Sidecar(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// writeImage encodes the image to the file at path or to stdout. The file is
// removed when the encoding fails.
func writeImage(path string, img image.Image) error {
	if path == PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for stdout")
		}
		return Encode(os.Stdout, "", img)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create the destination file: %w", err)
	}
	if err := Encode(f, filepath.Ext(path), img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each regular file to a new channel.
// It finishes in case the done channel is getting closed.
func walkDir(
	done <-chan interface{},
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() {
				return nil
			}
			if !isValidExtension(strings.ToLower(filepath.Ext(f.Name())), srcExts) {
				return nil
			}

			select {
			case <-done:
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}

// isValidExtension checks for the supported extensions.
func isValidExtension(ext string, extensions []string) bool {
	for _, ex := range extensions {
		if ex == ext {
			return true
		}
	}
	return false
}
