package main

import (
	"errors"
	"fmt"
	"log"
	"runtime"

	"github.com/esimov/faceswap"
	"github.com/esimov/faceswap/landmark"
	"github.com/esimov/faceswap/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const helpBanner = `
┌─┐┌─┐┌─┐┌─┐┌─┐┬ ┬┌─┐┌─┐
├┤ ├─┤│  ├┤ └─┐│││├─┤├─┘
└  ┴ ┴└─┘└─┘└─┘└┴┘┴ ┴┴

Swap the face of a reference image with the face of a source image.
    Version: %s
`

// Version indicates the current build version.
var Version string

type flags struct {
	source    string
	reference string
	output    string
	swapType  int
	cascade   string
	landmarks string
	angle     float64
	width     int
	unmasked  bool
	workers   int
	debug     bool
}

func main() {
	log.SetFlags(0)

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(utils.ErrorReport(err))
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "faceswap",
		Short:         "Swap the face of a reference image with the face of a source image",
		Long:          fmt.Sprintf(helpBanner, Version),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.source, "source", "s", "", "Source image providing the face (path, URL or - for stdin)")
	fl.StringVarP(&f.reference, "reference", "r", "", "Reference image receiving the face (path, URL, - for stdin or a directory)")
	fl.StringVarP(&f.output, "out", "o", faceswap.PipeName, "Destination image, or directory when the reference is a directory")
	fl.IntVar(&f.swapType, "type", int(faceswap.NormalSwap), "Face swap type")
	fl.StringVar(&f.cascade, "cascade", "", "Pigo face detection cascade file")
	fl.StringVar(&f.landmarks, "landmarks", "pigo", "Landmark provider: pigo or pts (reads <image>.pts annotations)")
	fl.Float64Var(&f.angle, "angle", 0.0, "Plane rotated faces angle")
	fl.IntVar(&f.width, "width", faceswap.DefaultOptions().SourceWidth, "Width the source image is resized to, 0 keeps the original size")
	fl.BoolVar(&f.unmasked, "unmasked", false, "Correct the colors per pixel instead of using the face means")
	fl.IntVar(&f.workers, "conc", runtime.NumCPU(), "Number of files to process concurrently")
	fl.BoolVar(&f.debug, "debug", false, "Log the pipeline stages")

	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("reference")

	return cmd
}

func run(f flags) error {
	sw := faceswap.NewSwapper(nil)
	sw.SwapType = faceswap.SwapType(f.swapType)
	sw.SourceWidth = f.width
	sw.Harmonize.Masked = !f.unmasked

	if f.debug {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
		sw.Logger = logger
	}

	op := &faceswap.Ops{
		Source:    f.source,
		Reference: f.reference,
		Output:    f.output,
		Workers:   f.workers,
		Swapper:   sw,
	}

	switch f.landmarks {
	case "pigo":
		if f.cascade == "" {
			return errors.New("please specify a face classifier with the --cascade flag")
		}
		detector, err := landmark.LoadPigo(f.cascade)
		if err != nil {
			return err
		}
		detector.Angle = f.angle
		sw.Detector = detector
	case "pts":
		op.Sidecars = true
	default:
		return fmt.Errorf("unsupported landmark provider: %q", f.landmarks)
	}

	// A reference without a face is not an error: nothing is written.
	stats, err := op.Execute()
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d reference images could not be processed",
			stats.Failed, stats.Swapped+stats.Skipped+stats.Failed)
	}
	return nil
}
