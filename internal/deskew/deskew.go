// Package deskew estimates the rotational skew of a scanned page from a
// gradient-orientation histogram. Dominant text baselines and rule lines
// produce a sharp peak in the histogram; a magnitude-weighted window around
// the peak smooths away bucket quantization.
package deskew

import (
	"math"

	"scan-normalizer/internal/raster"
)

// numBuckets covers -90..+90 degrees at one-degree resolution.
const numBuckets = 181

// peakWindow is the half-width of the weighted average around the peak.
const peakWindow = 3

// confidenceNorm scales the peak's accumulated magnitude into a confidence.
// Per interior pixel, so preview size does not change the scale.
const confidenceNorm = 4.0

// Estimate holds the skew estimation result for one page.
type Estimate struct {
	// AngleDegrees is the estimated rotation of page content relative to the
	// raster axes, clamped to the configured maximum.
	AngleDegrees float64

	// Confidence is the normalized strength of the histogram peak in [0, 1].
	Confidence float64
}

// EstimateSkew computes the gradient-orientation histogram over the preview
// and extracts the dominant rotation angle. noiseFloor discards weak
// gradients; maxDegrees clamps the result.
//
// The estimate is a pure function of the pixel content: identical previews
// always produce identical results.
func EstimateSkew(p *raster.Preview, noiseFloor, maxDegrees float64) Estimate {
	if p.Width < 3 || p.Height < 3 {
		return Estimate{}
	}

	var hist [numBuckets]float64
	for y := 1; y < p.Height-1; y++ {
		for x := 1; x < p.Width-1; x++ {
			gx, gy := p.SobelAt(x, y)
			mag := math.Hypot(gx, gy)
			if mag < noiseFloor {
				continue
			}
			angle := math.Atan2(gy, gx) * 180 / math.Pi
			// Gradient orientation is 180-degree periodic; fold into [-90, 90].
			if angle > 90 {
				angle -= 180
			} else if angle < -90 {
				angle += 180
			}
			bucket := int(math.Round(angle)) + 90
			if bucket < 0 {
				bucket = 0
			} else if bucket >= numBuckets {
				bucket = numBuckets - 1
			}
			hist[bucket] += mag
		}
	}

	peak := 0
	for i := 1; i < numBuckets; i++ {
		if hist[i] > hist[peak] {
			peak = i
		}
	}
	if hist[peak] == 0 {
		return Estimate{}
	}

	// Magnitude-weighted average of the window around the peak. Trades a
	// little bias for much reduced quantization noise.
	var weightSum, angleSum float64
	for i := peak - peakWindow; i <= peak+peakWindow; i++ {
		if i < 0 || i >= numBuckets {
			continue
		}
		weightSum += hist[i]
		angleSum += hist[i] * float64(i-90)
	}
	orientation := angleSum / weightSum

	angle := deviationFromAxis(orientation)
	if angle > maxDegrees {
		angle = maxDegrees
	} else if angle < -maxDegrees {
		angle = -maxDegrees
	}

	interior := float64((p.Width - 2) * (p.Height - 2))
	confidence := hist[peak] / (interior * confidenceNorm)
	if confidence > 1 {
		confidence = 1
	}

	return Estimate{AngleDegrees: angle, Confidence: confidence}
}

// deviationFromAxis maps a gradient orientation to the rotation of page
// content relative to its nearest cardinal axis (-90, 0, or +90 degrees).
func deviationFromAxis(orientation float64) float64 {
	best := orientation
	for _, axis := range [...]float64{-90, 0, 90} {
		if d := orientation - axis; math.Abs(d) < math.Abs(best) {
			best = d
		}
	}
	return best
}
