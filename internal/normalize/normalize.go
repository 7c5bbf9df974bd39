// Package normalize sequences the per-page pipeline: decode, preview, skew
// estimation, bounds detection, and final crop composition, assembling one
// immutable Result per page. It is invoked once per page by the run
// orchestrator; failures stay local to the page that raised them.
package normalize

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"scan-normalizer/internal/bounds"
	"scan-normalizer/internal/compose"
	"scan-normalizer/internal/config"
	"scan-normalizer/internal/deskew"
	"scan-normalizer/internal/pagesize"
	"scan-normalizer/internal/raster"
	"scan-normalizer/pkg/geometry"
)

// ErrMissingEstimate marks a page with no rough-bounds estimate. The page is
// skipped and recorded; siblings are unaffected.
var ErrMissingEstimate = errors.New("no bounds estimate for page")

const mmPerInch = 25.4

// PageSource identifies one page of the corpus. Created by corpus discovery;
// immutable input to the pipeline.
type PageSource struct {
	ID       string `json:"pageId"`
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// BoundsEstimate is the rough per-page estimate supplied by the upstream
// estimator, consumed read-only.
type BoundsEstimate struct {
	PageID     string           `json:"pageId"`
	WidthPx    int              `json:"widthPx"`
	HeightPx   int              `json:"heightPx"`
	BleedPx    float64          `json:"bleedPx"`
	TrimPx     float64          `json:"trimPx"`
	PageBox    geometry.RectInt `json:"pageBox"`
	ContentBox geometry.RectInt `json:"contentBox"`
}

// Stats are the derived per-page measurements reported alongside the crop.
type Stats struct {
	BackgroundMean float64 `json:"backgroundMean"`
	BackgroundStd  float64 `json:"backgroundStd"`
	MaskCoverage   float64 `json:"maskCoverage"`
	SkewConfidence float64 `json:"skewConfidence"`
	ShadowScore    float64 `json:"shadowScore"`

	// DarkFraction is the share of preview pixels under the dark threshold,
	// a cheap signal for ink density and inverted scans.
	DarkFraction float64 `json:"darkFraction"`
}

// Result is the full normalization outcome for one page. Immutable once
// assembled.
type Result struct {
	PageID     string
	Source     PageSource
	OutputPath string

	// CropBox and MaskBox are in full-resolution source coordinates.
	CropBox geometry.RectInt
	MaskBox geometry.RectInt

	Size      geometry.Size // physical size, mm
	DPI       float64
	DPISource pagesize.Provenance

	BleedMM float64
	TrimMM  float64

	// PreviewScale is the analysis downscale factor (full = preview * scale).
	PreviewScale float64

	SkewAngle float64
	Shadow    bounds.Shadow
	Stats     Stats
	Decision  Decision
}

// Normalizer runs the page pipeline with a fixed tuning.
type Normalizer struct {
	tune config.Tuning
	log  *logrus.Entry
}

// New creates a Normalizer. log may be nil for callers that want a silent
// pipeline, e.g. tests and debug tools.
func New(tune config.Tuning, log *logrus.Entry) *Normalizer {
	if log == nil {
		silent := logrus.New()
		silent.SetLevel(logrus.PanicLevel)
		log = logrus.NewEntry(silent)
	}
	return &Normalizer{tune: tune, log: log}
}

// Page normalizes one page: decode, preview, deskew, bounds, compose. The
// output raster is written to outDir keyed by the page id, so concurrent
// pages never collide. No retries; any stage failure propagates to the
// caller as a page-level failure.
func (n *Normalizer) Page(src PageSource, est *BoundsEstimate, outDir string) (*Result, error) {
	if est == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingEstimate, src.ID)
	}

	rs, err := raster.Load(src.Path)
	if err != nil {
		return nil, err
	}

	preview := rs.BuildPreview(n.tune.PreviewMaxSide)
	skew := deskew.EstimateSkew(preview, n.tune.GradientNoiseFloor, n.tune.MaxSkewDegrees)
	n.log.WithFields(logrus.Fields{
		"page":       src.ID,
		"angle":      skew.AngleDegrees,
		"confidence": skew.Confidence,
	}).Debug("skew estimated")

	rotated := preview.Rotate(skew.AngleDegrees)

	state, err := bounds.New(n.tune).Run(rotated)
	if err != nil {
		return nil, err
	}

	inf := pagesize.Infer(rs.Width, rs.Height, rs.DensityDPI, n.tune.SizeMatchTolerance, n.tune.FallbackDPI)
	n.log.WithFields(logrus.Fields{
		"page":   src.ID,
		"dpi":    inf.DPI,
		"source": inf.Provenance,
	}).Debug("physical size inferred")

	outPath := filepath.Join(outDir, src.ID+".png")
	rendered, err := compose.Render(rs, skew.AngleDegrees, state.Box, preview.Scale, inf.DPI, outPath)
	if err != nil {
		return nil, err
	}

	stats := Stats{
		BackgroundMean: state.Stats.Mean,
		BackgroundStd:  state.Stats.Std,
		MaskCoverage:   state.Coverage,
		SkewConfidence: skew.Confidence,
		ShadowScore:    state.Shadow.Confidence,
		DarkFraction:   state.DarkFraction,
	}

	return &Result{
		PageID:       src.ID,
		Source:       src,
		OutputPath:   rendered.Path,
		CropBox:      rendered.CropBox,
		MaskBox:      compose.MapToFullRes(state.MaskBox, preview.Scale, rs.Width, rs.Height),
		Size:         inf.Size,
		DPI:          inf.DPI,
		DPISource:    inf.Provenance,
		BleedMM:      pxToMM(est.BleedPx, inf.DPI),
		TrimMM:       pxToMM(est.TrimPx, inf.DPI),
		PreviewScale: preview.Scale,
		SkewAngle:    skew.AngleDegrees,
		Shadow:       state.Shadow,
		Stats:        stats,
		Decision:     Decide(stats),
	}, nil
}

func pxToMM(px, dpi float64) float64 {
	if dpi <= 0 {
		return 0
	}
	return px / dpi * mmPerInch
}
