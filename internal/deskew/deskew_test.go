package deskew

import (
	"math"
	"testing"

	"scan-normalizer/internal/raster"
)

// stripedPreview draws dark antialiased lines across a white frame at the
// given slope (degrees), spaced 12px apart. Soft stroke edges keep the
// gradient orientations fractional, the way downsampled scans look; hard
// stair-stepped strokes would alias all their mass into the axis bucket.
func stripedPreview(size int, slopeDegrees float64) *raster.Preview {
	pix := make([]uint8, size*size)
	for i := range pix {
		pix[i] = 255
	}
	slope := math.Tan(slopeDegrees * math.Pi / 180)
	for base := 10; base < size-10; base += 12 {
		for x := 0; x < size; x++ {
			center := float64(base) + slope*float64(x)
			for yy := int(center) - 2; yy <= int(center)+3; yy++ {
				if yy < 0 || yy >= size {
					continue
				}
				cover := 1.5 - math.Abs(float64(yy)-center)
				if cover <= 0 {
					continue
				}
				if cover > 1 {
					cover = 1
				}
				v := uint8(255 - math.Round(cover*225))
				if v < pix[yy*size+x] {
					pix[yy*size+x] = v
				}
			}
		}
	}
	return raster.NewPreview(pix, size, size, 1)
}

func TestEstimateSkewLevelLines(t *testing.T) {
	p := stripedPreview(200, 0)
	est := EstimateSkew(p, 24, 8)
	if math.Abs(est.AngleDegrees) > 0.5 {
		t.Errorf("level lines reported skew %f", est.AngleDegrees)
	}
	if est.Confidence <= 0 {
		t.Error("expected positive confidence for strong line pattern")
	}
}

func TestEstimateSkewTiltedLines(t *testing.T) {
	// Lines sloping down to the right are content rotated clockwise on
	// screen; the estimate must come back positive, not just the right
	// magnitude.
	want := 3.0
	p := stripedPreview(200, want)
	est := EstimateSkew(p, 24, 8)
	if math.Abs(est.AngleDegrees-want) > 1.2 {
		t.Errorf("angle = %f, want near +%f", est.AngleDegrees, want)
	}
}

func TestRotateByEstimateLevelsContent(t *testing.T) {
	// Rotating the preview by the estimated angle must remove the skew, not
	// double it: the residual estimate on the rotated preview has to shrink.
	p := stripedPreview(200, 4)
	first := EstimateSkew(p, 24, 8)
	if first.AngleDegrees < 2 {
		t.Fatalf("fixture too weak: first estimate %f", first.AngleDegrees)
	}

	leveled := p.Rotate(first.AngleDegrees)
	residual := EstimateSkew(leveled, 24, 8)
	if math.Abs(residual.AngleDegrees) > 1.5 {
		t.Errorf("residual after correction = %f, want near 0 (first %f)",
			residual.AngleDegrees, first.AngleDegrees)
	}
	if math.Abs(residual.AngleDegrees) >= math.Abs(first.AngleDegrees) {
		t.Errorf("correction made skew worse: %f -> %f",
			first.AngleDegrees, residual.AngleDegrees)
	}
}

func TestEstimateSkewClampsToMax(t *testing.T) {
	// Steep diagonal content far beyond the clamp.
	p := stripedPreview(200, 25)
	est := EstimateSkew(p, 24, 8)
	if math.Abs(est.AngleDegrees) > 8 {
		t.Errorf("angle %f exceeds clamp", est.AngleDegrees)
	}
}

func TestEstimateSkewBlankPreview(t *testing.T) {
	pix := make([]uint8, 100*100)
	for i := range pix {
		pix[i] = 255
	}
	p := raster.NewPreview(pix, 100, 100, 1)
	est := EstimateSkew(p, 24, 8)
	if est.AngleDegrees != 0 || est.Confidence != 0 {
		t.Errorf("blank preview produced %+v", est)
	}
}

func TestEstimateSkewTinyPreview(t *testing.T) {
	p := raster.NewPreview(make([]uint8, 4), 2, 2, 1)
	if est := EstimateSkew(p, 24, 8); est != (Estimate{}) {
		t.Errorf("tiny preview produced %+v", est)
	}
}

func TestEstimateSkewDeterministic(t *testing.T) {
	p := stripedPreview(160, 2)
	a := EstimateSkew(p, 24, 8)
	b := EstimateSkew(p, 24, 8)
	if a != b {
		t.Errorf("estimates differ: %+v vs %+v", a, b)
	}
}

func TestEstimateSkewConfidenceBounded(t *testing.T) {
	// Dense high-contrast checker pattern pushes the histogram hard; the
	// confidence must still cap at 1.
	size := 120
	pix := make([]uint8, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/2+y/2)%2 == 0 {
				pix[y*size+x] = 255
			}
		}
	}
	p := raster.NewPreview(pix, size, size, 1)
	est := EstimateSkew(p, 24, 8)
	if est.Confidence < 0 || est.Confidence > 1 {
		t.Errorf("confidence %f out of [0,1]", est.Confidence)
	}
}
