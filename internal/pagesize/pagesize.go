// Package pagesize provides the standard page size registry and physical
// size inference for scanned rasters.
package pagesize

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"scan-normalizer/pkg/geometry"
)

// Provenance records which tier of the inference produced the reported DPI.
type Provenance string

const (
	// FromMetadata means a trusted density hint from the container.
	FromMetadata Provenance = "metadata"
	// FromAspectMatch means a geometric match against a standard page size.
	FromAspectMatch Provenance = "inferred"
	// FromFallback means the caller-supplied default DPI.
	FromFallback Provenance = "fallback"
)

// Standard is a named standard page size in millimetres, portrait oriented.
type Standard struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width_mm"`
	Height float64 `json:"height_mm"`
}

// Validate checks the standard for usable dimensions.
func (s Standard) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("page size name is required")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("page size %s dimensions must be positive", s.Name)
	}
	return nil
}

// Registry of known page sizes
var registry []Standard

// Register adds a page size to the registry, replacing an existing entry
// with the same name.
func Register(std Standard) {
	for i, existing := range registry {
		if existing.Name == std.Name {
			registry[i] = std
			return
		}
	}
	registry = append(registry, std)
}

// List returns all registered page sizes.
func List() []Standard {
	out := make([]Standard, len(registry))
	copy(out, registry)
	return out
}

// LoadFromFile extends the registry from a JSON file holding an array of
// standards.
func LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var sizes []Standard
	if err := json.Unmarshal(data, &sizes); err != nil {
		return fmt.Errorf("parsing page size table: %w", err)
	}
	for _, std := range sizes {
		if err := std.Validate(); err != nil {
			return fmt.Errorf("invalid page size table: %w", err)
		}
		Register(std)
	}
	return nil
}

func init() {
	// Register built-in page sizes
	Register(Standard{Name: "A6", Width: 105, Height: 148})
	Register(Standard{Name: "A5", Width: 148, Height: 210})
	Register(Standard{Name: "A4", Width: 210, Height: 297})
	Register(Standard{Name: "A3", Width: 297, Height: 420})
	Register(Standard{Name: "B5", Width: 176, Height: 250})
	Register(Standard{Name: "B4", Width: 250, Height: 353})
	Register(Standard{Name: "Letter", Width: 215.9, Height: 279.4})
	Register(Standard{Name: "Legal", Width: 215.9, Height: 355.6})
	Register(Standard{Name: "Tabloid", Width: 279.4, Height: 431.8})
}

// Inference is the result of physical size inference for one raster.
type Inference struct {
	Size       geometry.Size // physical size in mm
	DPI        float64
	Provenance Provenance
	Matched    string // matched standard name, only for FromAspectMatch
}

const mmPerInch = 25.4

// Infer derives the physical page size and effective DPI from pixel
// dimensions and an optional density hint. Three tiers, in trust order:
// real container metadata, geometric match against the standard table, and
// the always-succeeding fallback DPI.
func Infer(widthPx, heightPx int, densityDPI, matchTolerance, fallbackDPI float64) Inference {
	if densityDPI > 1 {
		return Inference{
			Size: geometry.Size{
				Width:  float64(widthPx) / densityDPI * mmPerInch,
				Height: float64(heightPx) / densityDPI * mmPerInch,
			},
			DPI:        densityDPI,
			Provenance: FromMetadata,
		}
	}

	if std, size, ok := matchStandard(widthPx, heightPx, matchTolerance); ok {
		return Inference{
			Size:       size,
			DPI:        float64(widthPx) / (size.Width / mmPerInch),
			Provenance: FromAspectMatch,
			Matched:    std.Name,
		}
	}

	return Inference{
		Size: geometry.Size{
			Width:  float64(widthPx) / fallbackDPI * mmPerInch,
			Height: float64(heightPx) / fallbackDPI * mmPerInch,
		},
		DPI:        fallbackDPI,
		Provenance: FromFallback,
	}
}

// matchStandard scores every registered size in both orientations against
// the pixel aspect ratio and returns the best match within tolerance,
// oriented to match the raster.
func matchStandard(widthPx, heightPx int, tolerance float64) (Standard, geometry.Size, bool) {
	if widthPx <= 0 || heightPx <= 0 {
		return Standard{}, geometry.Size{}, false
	}
	pxRatio := float64(widthPx) / float64(heightPx)

	bestScore := math.Inf(1)
	var bestStd Standard
	var bestSize geometry.Size

	for _, std := range registry {
		orientations := []geometry.Size{
			{Width: std.Width, Height: std.Height},
			{Width: std.Height, Height: std.Width},
		}
		for _, size := range orientations {
			score := math.Abs(pxRatio - size.Width/size.Height)
			if score < bestScore {
				bestScore = score
				bestStd = std
				bestSize = size
			}
		}
	}

	if bestScore > tolerance {
		return Standard{}, geometry.Size{}, false
	}
	return bestStd, bestSize, true
}
