// Command skewtest runs skew estimation and bounds detection on a single
// image and prints the measurements. Debug tool for tuning thresholds.
package main

import (
	"flag"
	"fmt"
	"os"

	"scan-normalizer/internal/bounds"
	"scan-normalizer/internal/config"
	"scan-normalizer/internal/deskew"
	"scan-normalizer/internal/pagesize"
	"scan-normalizer/internal/raster"
)

func main() {
	imagePath := flag.String("image", "", "Path to page raster (TIFF, PNG, JPEG, or BMP)")
	maxSide := flag.Int("preview", 0, "Preview size cap (0 = default)")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: skewtest -image <path> [-preview 1600]")
		os.Exit(1)
	}

	tune := config.DefaultTuning()
	if *maxSide > 0 {
		tune.PreviewMaxSide = *maxSide
	}

	src, err := raster.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %s image: %dx%d pixels", src.Format, src.Width, src.Height)
	if src.DensityDPI > 0 {
		fmt.Printf(" (%.0f dpi from metadata)", src.DensityDPI)
	}
	fmt.Println()

	preview := src.BuildPreview(tune.PreviewMaxSide)
	fmt.Printf("Preview: %dx%d (scale %.3f)\n", preview.Width, preview.Height, preview.Scale)

	skew := deskew.EstimateSkew(preview, tune.GradientNoiseFloor, tune.MaxSkewDegrees)
	fmt.Printf("\nSkew: %+.3f degrees (confidence %.3f)\n", skew.AngleDegrees, skew.Confidence)

	rotated := preview.Rotate(skew.AngleDegrees)
	state, err := bounds.New(tune).Run(rotated)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bounds detection failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nBorder: mean %.1f std %.2f (gradient %.1f/%.2f, band %dpx)\n",
		state.Stats.Mean, state.Stats.Std, state.Stats.GradientMean, state.Stats.GradientStd, state.Stats.BandPx)
	fmt.Printf("Intensity box: %+v\n", state.IntensityBox)
	fmt.Printf("Edge box:      %+v\n", state.EdgeBox)
	fmt.Printf("Mask box:      %+v\n", state.MaskBox)
	fmt.Printf("Final box:     %+v (pad %dpx, coverage %.3f)\n", state.Box, state.PadPx, state.Coverage)
	fmt.Printf("Dark fraction: %.4f\n", state.DarkFraction)
	if state.Shadow.Present {
		fmt.Printf("Shadow: %s, %dpx wide, confidence %.3f, darkness %.1f\n",
			state.Shadow.Side, state.Shadow.WidthPx, state.Shadow.Confidence, state.Shadow.Darkness)
	} else {
		fmt.Println("Shadow: none")
	}

	inf := pagesize.Infer(src.Width, src.Height, src.DensityDPI, tune.SizeMatchTolerance, tune.FallbackDPI)
	fmt.Printf("\nPhysical size: %.1fx%.1f mm, %.1f dpi (%s", inf.Size.Width, inf.Size.Height, inf.DPI, inf.Provenance)
	if inf.Matched != "" {
		fmt.Printf(", matched %s", inf.Matched)
	}
	fmt.Println(")")
}
