package bounds

import (
	"gonum.org/v1/gonum/stat"

	"scan-normalizer/internal/raster"
)

// Side identifies which page edge a shadow sits on.
type Side string

const (
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideTop    Side = "top"
	SideBottom Side = "bottom"
	SideNone   Side = "none"
)

// Shadow describes a detected spine or edge shadow.
type Shadow struct {
	Present    bool    `json:"present"`
	Side       Side    `json:"side"`
	WidthPx    int     `json:"width_px"`
	Confidence float64 `json:"confidence"` // delta over global mean, capped at 1
	Darkness   float64 `json:"darkness"`   // raw intensity delta
}

// DetectShadow compares left and right margin-strip intensity against the
// global mean of the rotated preview. A strip darker than the global mean by
// more than max(minDelta, meanRatio*globalMean) flags a shadow on that side.
// Only vertical (left/right) shadows are detected; binding gutters do not
// produce horizontal ones in practice.
func DetectShadow(p *raster.Preview, stripRatio, minDelta, meanRatio float64) Shadow {
	if p.Width == 0 || p.Height == 0 {
		return Shadow{Side: SideNone}
	}
	strip := int(float64(p.Width) * stripRatio)
	if strip < 1 {
		strip = 1
	}
	if strip > p.Width {
		strip = p.Width
	}

	all := make([]float64, 0, p.Width*p.Height)
	left := make([]float64, 0, strip*p.Height)
	right := make([]float64, 0, strip*p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			v := float64(p.At(x, y))
			all = append(all, v)
			if x < strip {
				left = append(left, v)
			}
			if x >= p.Width-strip {
				right = append(right, v)
			}
		}
	}

	globalMean := stat.Mean(all, nil)
	leftDelta := globalMean - stat.Mean(left, nil)
	rightDelta := globalMean - stat.Mean(right, nil)

	required := minDelta
	if scaled := meanRatio * globalMean; scaled > required {
		required = scaled
	}

	delta := leftDelta
	side := SideLeft
	if rightDelta > leftDelta {
		delta = rightDelta
		side = SideRight
	}

	if delta <= required {
		return Shadow{Side: SideNone}
	}

	confidence := 0.0
	if globalMean > 0 {
		confidence = delta / globalMean
		if confidence > 1 {
			confidence = 1
		}
	}

	return Shadow{
		Present:    true,
		Side:       side,
		WidthPx:    strip,
		Confidence: confidence,
		Darkness:   delta,
	}
}
