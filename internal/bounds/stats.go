// Package bounds locates the content bounding box of a rotated page preview.
// Two independent projection estimates (intensity mask, gradient edge mask)
// are unioned, trimmed where a spine shadow intrudes, and expanded by
// adaptive padding. The chain is an ordered list of named stages so each
// step can be tested in isolation.
package bounds

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"scan-normalizer/internal/raster"
)

// BorderStats models the blank-margin intensity distribution of a page,
// sampled from a thin band around all four edges of the rotated preview.
type BorderStats struct {
	Mean float64
	Std  float64

	// GradientMean and GradientStd describe the Sobel magnitude noise in the
	// same band, used to derive the edge threshold.
	GradientMean float64
	GradientStd  float64

	// BandPx is the sampled band width in pixels.
	BandPx int
}

// SampleBorder measures intensity and gradient statistics over a margin band
// whose width is bandRatio of the shorter preview dimension (at least 1px).
func SampleBorder(p *raster.Preview, bandRatio float64) BorderStats {
	shorter := min(p.Width, p.Height)
	band := int(float64(shorter) * bandRatio)
	if band < 1 {
		band = 1
	}

	var intensities, gradients []float64
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			inBand := x < band || x >= p.Width-band || y < band || y >= p.Height-band
			if !inBand {
				continue
			}
			intensities = append(intensities, float64(p.At(x, y)))
			gx, gy := p.SobelAt(x, y)
			gradients = append(gradients, math.Hypot(gx, gy))
		}
	}

	mean, std := stat.MeanStdDev(intensities, nil)
	gMean, gStd := stat.MeanStdDev(gradients, nil)
	// Empty or single-pixel bands yield NaN from the sample estimators.
	if mean != mean {
		mean = 0
	}
	if std != std {
		std = 0
	}
	if gMean != gMean {
		gMean = 0
	}
	if gStd != gStd {
		gStd = 0
	}

	return BorderStats{
		Mean:         mean,
		Std:          std,
		GradientMean: gMean,
		GradientStd:  gStd,
		BandPx:       band,
	}
}

// DarkThreshold derives the adaptive foreground threshold: pixels darker
// than this count as content. Floored at 0.
func (s BorderStats) DarkThreshold(sigmaScale, minOffset float64) float64 {
	t := s.Mean - sigmaScale*s.Std
	if alt := s.Mean - minOffset; alt < t {
		t = alt
	}
	if t < 0 {
		t = 0
	}
	return t
}

// EdgeThreshold derives the gradient magnitude above which a pixel counts as
// a content edge. Floored at minThreshold.
func (s BorderStats) EdgeThreshold(sigmaScale, minThreshold float64) float64 {
	t := s.GradientMean + sigmaScale*s.GradientStd
	if t < minThreshold {
		t = minThreshold
	}
	return t
}
