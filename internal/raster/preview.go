package raster

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"scan-normalizer/pkg/geometry"
)

// Preview is the downsampled grayscale buffer the analysis stages run on.
// It is owned by the single page invocation that built it and is discarded
// when that invocation returns.
type Preview struct {
	Pix    []uint8
	Width  int
	Height int

	// Scale is the factor from preview coordinates back to full resolution
	// (full = preview * Scale).
	Scale float64
}

// BuildPreview downsamples the source so the longer side does not exceed
// maxSide, converting to 8-bit grayscale. Sources already below the cap are
// converted at 1:1.
func (s *Source) BuildPreview(maxSide int) *Preview {
	w, h := s.Width, s.Height
	scale := 1.0
	if longer := max(w, h); longer > maxSide {
		scale = float64(longer) / float64(maxSide)
		w = int(math.Round(float64(s.Width) / scale))
		h = int(math.Round(float64(s.Height) / scale))
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(gray, gray.Bounds(), s.Image, s.Image.Bounds(), xdraw.Src, nil)

	return &Preview{
		Pix:    gray.Pix,
		Width:  w,
		Height: h,
		Scale:  scale,
	}
}

// NewPreview wraps a pre-built grayscale buffer. Used by synthetic tests and
// debug tools.
func NewPreview(pix []uint8, width, height int, scale float64) *Preview {
	return &Preview{Pix: pix, Width: width, Height: height, Scale: scale}
}

// At returns the intensity at (x, y). Out-of-range coordinates read as
// white, matching the rotation background fill.
func (p *Preview) At(x, y int) uint8 {
	if x < 0 || x >= p.Width || y < 0 || y >= p.Height {
		return 255
	}
	return p.Pix[y*p.Width+x]
}

// Rotate returns a copy of the preview rotated by the given angle (degrees)
// about its center, bilinear-sampled, with white filling the uncovered
// corners. Positive angles rotate content counter-clockwise on screen, the
// same convention as the full-resolution warp, so rotating by the estimated
// skew angle levels the page. The output keeps the input dimensions.
func (p *Preview) Rotate(degrees float64) *Preview {
	if degrees == 0 {
		out := make([]uint8, len(p.Pix))
		copy(out, p.Pix)
		return &Preview{Pix: out, Width: p.Width, Height: p.Height, Scale: p.Scale}
	}

	cx := float64(p.Width) / 2
	cy := float64(p.Height) / 2
	// RotationAbout is clockwise in image coordinates (y grows downward);
	// negate so positive angles match the warp direction.
	forward := geometry.RotationAbout(-degrees, cx, cy)
	inv, ok := forward.Inverse()
	if !ok {
		inv = geometry.AffineTransform{A: 1, D: 1}
	}

	out := make([]uint8, p.Width*p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			src := inv.Apply(geometry.Point{X: float64(x), Y: float64(y)})
			out[y*p.Width+x] = p.sampleBilinear(src.X, src.Y)
		}
	}
	return &Preview{Pix: out, Width: p.Width, Height: p.Height, Scale: p.Scale}
}

// SobelAt computes the 3x3 Sobel gradient at (x, y). Reads beyond the frame
// clamp to the nearest edge pixel, so the outer rows and columns of a
// non-white margin never fabricate an edge response.
func (p *Preview) SobelAt(x, y int) (gx, gy float64) {
	if p.Width == 0 || p.Height == 0 {
		return 0, 0
	}
	tl := p.atClamped(x-1, y-1)
	tc := p.atClamped(x, y-1)
	tr := p.atClamped(x+1, y-1)
	ml := p.atClamped(x-1, y)
	mr := p.atClamped(x+1, y)
	bl := p.atClamped(x-1, y+1)
	bc := p.atClamped(x, y+1)
	br := p.atClamped(x+1, y+1)

	gx = (tr + 2*mr + br) - (tl + 2*ml + bl)
	gy = (bl + 2*bc + br) - (tl + 2*tc + tr)
	return gx, gy
}

// atClamped reads the intensity at (x, y) with coordinates clamped to the
// frame.
func (p *Preview) atClamped(x, y int) float64 {
	if x < 0 {
		x = 0
	} else if x >= p.Width {
		x = p.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.Height {
		y = p.Height - 1
	}
	return float64(p.Pix[y*p.Width+x])
}

// sampleBilinear samples the preview at a fractional coordinate. Samples
// outside the frame read as white.
func (p *Preview) sampleBilinear(x, y float64) uint8 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	v00 := float64(p.At(x0, y0))
	v10 := float64(p.At(x0+1, y0))
	v01 := float64(p.At(x0, y0+1))
	v11 := float64(p.At(x0+1, y0+1))

	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	v := top*(1-fy) + bottom*fy

	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(math.Round(v))
}
