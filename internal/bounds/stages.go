package bounds

import (
	"errors"
	"fmt"
	"math"

	"scan-normalizer/internal/config"
	"scan-normalizer/internal/raster"
	"scan-normalizer/pkg/geometry"
)

// ErrComputation marks a degenerate geometry produced by a stage, e.g. a
// zero-area box after trimming and clamping. Fatal to the page, not the run.
var ErrComputation = errors.New("degenerate geometry")

// State is the box-plus-metadata record threaded through the stage chain.
type State struct {
	Preview *raster.Preview
	Stats   BorderStats
	Shadow  Shadow

	// IntensityBox and EdgeBox are the two independent estimates.
	IntensityBox geometry.RectInt
	EdgeBox      geometry.RectInt

	// Box is the working box: union, then shadow-trimmed, then padded.
	Box geometry.RectInt

	// MaskBox is the pre-padding box, frozen after the shadow trim.
	MaskBox geometry.RectInt

	// DarkFraction is the share of preview pixels under the dark threshold.
	DarkFraction float64

	// PadPx is the adaptive padding applied by the final stage.
	PadPx int

	// Coverage is the final box area over the preview area.
	Coverage float64
}

// Stage is one named step of the bounds chain.
type Stage struct {
	Name  string
	Apply func(*State) error
}

// Estimator runs the ordered stage chain over a rotated preview.
type Estimator struct {
	tune config.Tuning
}

// New creates an Estimator with the given tuning.
func New(tune config.Tuning) *Estimator {
	return &Estimator{tune: tune}
}

// Stages returns the ordered chain. Exposed so individual stages can be
// golden-tested against known previews.
func (e *Estimator) Stages() []Stage {
	return []Stage{
		{Name: "border-stats", Apply: e.borderStats},
		{Name: "shadow-detect", Apply: e.shadowDetect},
		{Name: "intensity-mask", Apply: e.intensityMask},
		{Name: "edge-mask", Apply: e.edgeMask},
		{Name: "union", Apply: e.union},
		{Name: "shadow-trim", Apply: e.shadowTrim},
		{Name: "pad-expand", Apply: e.padExpand},
	}
}

// Run executes the chain on a preview that has already been rotated upright.
func (e *Estimator) Run(p *raster.Preview) (*State, error) {
	state := &State{Preview: p}
	for _, stage := range e.Stages() {
		if err := stage.Apply(state); err != nil {
			return nil, fmt.Errorf("bounds stage %s: %w", stage.Name, err)
		}
	}
	return state, nil
}

func (e *Estimator) borderStats(s *State) error {
	s.Stats = SampleBorder(s.Preview, e.tune.BorderBandRatio)
	return nil
}

func (e *Estimator) shadowDetect(s *State) error {
	s.Shadow = DetectShadow(s.Preview, e.tune.ShadowStripRatio, e.tune.ShadowMinDelta, e.tune.ShadowMeanRatio)
	return nil
}

func (e *Estimator) intensityMask(s *State) error {
	threshold := s.Stats.DarkThreshold(e.tune.IntensitySigmaScale, e.tune.IntensityMinOffset)
	box, hits := e.scanProjection(s.Preview, func(p *raster.Preview, x, y int) bool {
		return float64(p.At(x, y)) < threshold
	})
	s.IntensityBox = box
	total := s.Preview.Width * s.Preview.Height
	if total > 0 {
		s.DarkFraction = float64(hits) / float64(total)
	}
	return nil
}

func (e *Estimator) edgeMask(s *State) error {
	threshold := s.Stats.EdgeThreshold(e.tune.EdgeSigmaScale, e.tune.EdgeMinThreshold)
	box, _ := e.scanProjection(s.Preview, func(p *raster.Preview, x, y int) bool {
		gx, gy := p.SobelAt(x, y)
		return math.Hypot(gx, gy) > threshold
	})
	s.EdgeBox = box
	return nil
}

func (e *Estimator) union(s *State) error {
	s.Box = s.IntensityBox.Union(s.EdgeBox)
	if s.Box.Empty() {
		return fmt.Errorf("%w: empty union box", ErrComputation)
	}
	return nil
}

func (e *Estimator) shadowTrim(s *State) error {
	if s.Shadow.Present && s.Shadow.Confidence >= e.tune.ShadowTrimConfidence {
		trim := int(math.Round(e.tune.ShadowTrimFraction * float64(s.Shadow.WidthPx)))
		switch s.Shadow.Side {
		case SideLeft:
			s.Box.X += trim
			s.Box.Width -= trim
		case SideRight:
			s.Box.Width -= trim
		}
	}
	s.Box = s.Box.ClampTo(s.Preview.Width, s.Preview.Height)
	if s.Box.Empty() {
		return fmt.Errorf("%w: box consumed by shadow trim", ErrComputation)
	}
	s.MaskBox = s.Box
	return nil
}

func (e *Estimator) padExpand(s *State) error {
	shorter := min(s.Preview.Width, s.Preview.Height)
	pad := int(math.Round(e.tune.PadShortSideRatio * float64(shorter)))
	if pad < e.tune.PadMinPixels {
		pad = e.tune.PadMinPixels
	}
	s.PadPx = pad
	s.Box = s.Box.Expand(pad).ClampTo(s.Preview.Width, s.Preview.Height)
	if s.Box.Empty() {
		return fmt.Errorf("%w: empty box after padding", ErrComputation)
	}
	area := s.Preview.Width * s.Preview.Height
	if area > 0 {
		s.Coverage = float64(s.Box.Area()) / float64(area)
	}
	return nil
}

// scanProjection counts qualifying pixels per row and column, then scans
// inward from each edge until a line's count exceeds RowHitRatio of the
// opposite dimension. When nothing qualifies the full frame is returned:
// a blank page has nothing to crop away.
func (e *Estimator) scanProjection(p *raster.Preview, hit func(*raster.Preview, int, int) bool) (geometry.RectInt, int) {
	rowCounts := make([]int, p.Height)
	colCounts := make([]int, p.Width)
	total := 0
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			if hit(p, x, y) {
				rowCounts[y]++
				colCounts[x]++
				total++
			}
		}
	}

	rowNeed := int(e.tune.RowHitRatio * float64(p.Width))
	colNeed := int(e.tune.RowHitRatio * float64(p.Height))

	top, bottom := scanInward(rowCounts, rowNeed)
	left, right := scanInward(colCounts, colNeed)
	if top < 0 || left < 0 {
		return geometry.RectInt{X: 0, Y: 0, Width: p.Width, Height: p.Height}, total
	}
	return geometry.NewRectInt(left, top, right+1, bottom+1), total
}

// scanInward returns the first and last index whose count exceeds need, or
// (-1, -1) when no line qualifies.
func scanInward(counts []int, need int) (first, last int) {
	first, last = -1, -1
	for i, c := range counts {
		if c > need {
			first = i
			break
		}
	}
	if first < 0 {
		return -1, -1
	}
	for i := len(counts) - 1; i >= first; i-- {
		if counts[i] > need {
			last = i
			break
		}
	}
	return first, last
}
