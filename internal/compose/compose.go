// Package compose produces the final output raster: it rotates the
// full-resolution source by the estimated skew angle, crops to the detected
// bounds rescaled from preview space, and re-encodes with the effective DPI
// stamped into the output metadata.
package compose

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"gocv.io/x/gocv"

	"scan-normalizer/internal/bounds"
	"scan-normalizer/internal/raster"
	"scan-normalizer/pkg/geometry"
)

// Result describes the written output raster.
type Result struct {
	Path    string
	CropBox geometry.RectInt // final crop in full-resolution coordinates
}

// Render rotates src by angleDegrees, crops to previewBox rescaled by
// previewScale, and writes a PNG with dpi stamped as its pixel density.
func Render(src *raster.Source, angleDegrees float64, previewBox geometry.RectInt, previewScale, dpi float64, outPath string) (*Result, error) {
	if dpi <= 0 {
		return nil, fmt.Errorf("%w: non-positive dpi %.2f", bounds.ErrComputation, dpi)
	}

	cropBox := MapToFullRes(previewBox, previewScale, src.Width, src.Height)
	if cropBox.Empty() {
		return nil, fmt.Errorf("%w: empty crop box after rescale", bounds.ErrComputation)
	}

	mat, err := imageToMat(src.Image)
	if err != nil {
		return nil, fmt.Errorf("converting source: %w", err)
	}
	defer mat.Close()

	current := mat
	if angleDegrees != 0 {
		rotated := rotateSameSize(mat, angleDegrees)
		defer rotated.Close()
		current = rotated
	}

	roi := current.Region(image.Rect(cropBox.X, cropBox.Y, cropBox.Right(), cropBox.Bottom()))
	defer roi.Close()

	encoded, err := gocv.IMEncode(".png", roi)
	if err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	defer encoded.Close()

	stamped, err := StampPNGDensity(encoded.GetBytes(), dpi)
	if err != nil {
		return nil, fmt.Errorf("stamping density: %w", err)
	}

	if err := os.WriteFile(outPath, stamped, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", outPath, err)
	}

	return &Result{Path: outPath, CropBox: cropBox}, nil
}

// MapToFullRes rescales a preview-space box to full-resolution coordinates
// and clamps it to the raster frame.
func MapToFullRes(box geometry.RectInt, scale float64, width, height int) geometry.RectInt {
	if scale <= 0 {
		scale = 1
	}
	return box.Scale(scale).ClampTo(width, height)
}

// rotateSameSize rotates about the image center keeping the canvas size,
// filling uncovered corners with white to match the preview rotation.
func rotateSameSize(mat gocv.Mat, angleDegrees float64) gocv.Mat {
	w := mat.Cols()
	h := mat.Rows()
	center := image.Point{X: w / 2, Y: h / 2}
	// gocv rotates counter-clockwise for positive angles; the estimator
	// reports content rotation, so rotate by the same angle to undo it.
	rotMat := gocv.GetRotationMatrix2D(center, angleDegrees, 1.0)
	defer rotMat.Close()

	rotated := gocv.NewMat()
	gocv.WarpAffineWithParams(mat, &rotated, rotMat, image.Point{X: w, Y: h},
		gocv.InterpolationLinear, gocv.BorderConstant,
		color.RGBA{R: 255, G: 255, B: 255, A: 255})
	return rotated
}

// imageToMat converts a decoded Go image to a 3-channel Mat.
func imageToMat(img image.Image) (gocv.Mat, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return gocv.Mat{}, fmt.Errorf("zero-dimension image")
	}
	return gocv.ImageToMatRGB(img)
}
