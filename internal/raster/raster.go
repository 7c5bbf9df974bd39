// Package raster provides source raster access: decoding, pixel-density
// hints, and the downsampled grayscale preview the analysis stages run on.
package raster

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrDecode marks an unreadable or zero-dimension source raster. Fatal to
// the page it belongs to, never to the run.
var ErrDecode = errors.New("raster decode failed")

// Source is a decoded source raster plus the metadata the pipeline needs.
// The full-resolution image is retained for the final crop; analysis runs on
// the Preview built from it.
type Source struct {
	Path       string
	Format     string  // sniffed container format, e.g. "tiff"
	Image      image.Image
	Width      int
	Height     int
	DensityDPI float64 // 0 when no usable density metadata was found
}

// Load decodes the raster at path and extracts a density hint where the
// container carries one.
func Load(path string) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrDecode, path, err)
	}
	defer file.Close()

	// Sniff the container before handing the stream to image.Decode so an
	// unreadable file reports its real format in the error.
	head := make([]byte, 262)
	n, _ := file.Read(head)
	kind, _ := filetype.Match(head[:n])
	if _, err := file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("%w: rewinding %s: %v", ErrDecode, path, err)
	}

	img, format, err := image.Decode(file)
	if err != nil {
		name := kind.Extension
		if name == "" {
			name = "unknown"
		}
		return nil, fmt.Errorf("%w: %s (%s): %v", ErrDecode, path, name, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: %s has zero dimensions", ErrDecode, path)
	}

	src := &Source{
		Path:   path,
		Format: format,
		Image:  img,
		Width:  w,
		Height: h,
	}

	// Density hints live in container headers, not in image.Decode output.
	switch format {
	case "tiff":
		if dpi, err := extractTIFFDensity(path); err == nil {
			src.DensityDPI = dpi
		}
	case "jpeg":
		if dpi, err := extractJFIFDensity(path); err == nil {
			src.DensityDPI = dpi
		}
	}

	return src, nil
}

// SupportedFormats returns the raster extensions the loader accepts.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg", ".bmp"}
}

// IsSupportedFormat checks if the given path has a supported raster format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
