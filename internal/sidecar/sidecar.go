// Package sidecar writes the per-page JSON measurement record consumed by
// the review and export tooling. The field layout is a stable contract;
// additions are fine, renames are not.
package sidecar

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"scan-normalizer/internal/bounds"
	"scan-normalizer/internal/normalize"
	"scan-normalizer/pkg/geometry"
)

// Version identifies the record layout.
const Version = "1.0"

// layoutProfile is fixed: this engine only emits single-page layouts.
const layoutProfile = "single-page"

// Record is the full per-page sidecar document.
type Record struct {
	Version    string        `json:"version"`
	PageID     string        `json:"pageId"`
	Source     SourceInfo    `json:"source"`
	Dimensions Dimensions    `json:"dimensions"`
	DPI        int           `json:"dpi"`
	Norm       Normalization `json:"normalization"`
	Elements   []Element     `json:"elements"`
	Layout     string        `json:"layoutProfile"`
	Metrics    Metrics       `json:"metrics"`
	Decisions  Decisions     `json:"decisions"`
	RunID      string        `json:"normalizationRunId"`
}

// SourceInfo identifies the input raster.
type SourceInfo struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// Dimensions is the physical page size.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Unit   string  `json:"unit"`
}

// Normalization holds the geometric outcome.
type Normalization struct {
	CropBox   geometry.RectInt `json:"cropBox"`
	PageMask  geometry.RectInt `json:"pageMask"`
	DPISource string           `json:"dpiSource"`
	Bleed     float64          `json:"bleed"`
	Trim      float64          `json:"trim"`
	Scale     float64          `json:"scale"`
	SkewAngle float64          `json:"skewAngle"`
	Warp      Warp             `json:"warp"`
	Shadow    bounds.Shadow    `json:"shadow"`
}

// Warp describes the geometric correction model. Only rigid rotation is
// implemented, so the residual is always zero.
type Warp struct {
	Method   string  `json:"method"`
	Residual float64 `json:"residual"`
}

// Element is one detected page element. Normalization emits a single
// synthetic page_bounds element; the element-recognition subsystem appends
// its own when it runs.
type Element struct {
	Type string           `json:"type"`
	Box  geometry.RectInt `json:"box"`
}

// Metrics are the per-page quality measurements.
type Metrics struct {
	DeskewConfidence float64 `json:"deskewConfidence"`
	ShadowScore      float64 `json:"shadowScore"`
	MaskCoverage     float64 `json:"maskCoverage"`
	BackgroundStd    float64 `json:"backgroundStd"`
	DarkFraction     float64 `json:"darkFraction"`
}

// Decisions is the accept/review outcome.
type Decisions struct {
	Accepted  bool              `json:"accepted"`
	Notes     []string          `json:"notes"`
	Overrides map[string]string `json:"overrides"`
}

// FromResult assembles a Record from a page result and the run id.
func FromResult(r *normalize.Result, runID string) *Record {
	return &Record{
		Version: Version,
		PageID:  r.PageID,
		Source: SourceInfo{
			Path:     r.Source.Path,
			Checksum: r.Source.Checksum,
		},
		Dimensions: Dimensions{
			Width:  r.Size.Width,
			Height: r.Size.Height,
			Unit:   "mm",
		},
		DPI: int(math.Round(r.DPI)),
		Norm: Normalization{
			CropBox:   r.CropBox,
			PageMask:  r.MaskBox,
			DPISource: string(r.DPISource),
			Bleed:     r.BleedMM,
			Trim:      r.TrimMM,
			Scale:     r.PreviewScale,
			SkewAngle: r.SkewAngle,
			Warp:      Warp{Method: "rotate", Residual: 0},
			Shadow:    r.Shadow,
		},
		Elements: []Element{
			{Type: "page_bounds", Box: r.CropBox},
		},
		Layout: layoutProfile,
		Metrics: Metrics{
			DeskewConfidence: r.Stats.SkewConfidence,
			ShadowScore:      r.Stats.ShadowScore,
			MaskCoverage:     r.Stats.MaskCoverage,
			BackgroundStd:    r.Stats.BackgroundStd,
			DarkFraction:     r.Stats.DarkFraction,
		},
		Decisions: Decisions{
			Accepted:  r.Decision.Accepted,
			Notes:     r.Decision.Notes,
			Overrides: r.Decision.Overrides,
		},
		RunID: runID,
	}
}

// Write persists the record next to the page output, named by page id.
func Write(rec *Record, dir string) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling sidecar for %s: %w", rec.PageID, err)
	}
	path := filepath.Join(dir, rec.PageID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing sidecar %s: %w", path, err)
	}
	return path, nil
}
