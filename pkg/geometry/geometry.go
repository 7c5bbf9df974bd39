// Package geometry provides the geometric value types shared by the
// normalization pipeline: pixel rectangles, physical sizes, and the affine
// math needed to track crop boxes through rotation and rescaling.
package geometry

import (
	"math"
)

// Point represents a 2D point with floating-point coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RectInt is an axis-aligned pixel rectangle. X/Y is the top-left corner.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRectInt creates a RectInt from two corner coordinates. The corners may
// be given in any order.
func NewRectInt(x0, y0, x1, y1 int) RectInt {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Right returns the exclusive right edge coordinate.
func (r RectInt) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge coordinate.
func (r RectInt) Bottom() int { return r.Y + r.Height }

// Area returns the rectangle area in pixels.
func (r RectInt) Area() int {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Empty reports whether the rectangle has no area.
func (r RectInt) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Union returns the smallest rectangle containing both rectangles. An empty
// rectangle does not contribute.
func (r RectInt) Union(other RectInt) RectInt {
	if r.Empty() {
		return other
	}
	if other.Empty() {
		return r
	}
	x0 := min(r.X, other.X)
	y0 := min(r.Y, other.Y)
	x1 := max(r.Right(), other.Right())
	y1 := max(r.Bottom(), other.Bottom())
	return RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// ClampTo clips the rectangle to the frame [0,width)x[0,height).
func (r RectInt) ClampTo(width, height int) RectInt {
	x0 := max(0, r.X)
	y0 := max(0, r.Y)
	x1 := min(width, r.Right())
	y1 := min(height, r.Bottom())
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Expand grows the rectangle by pad pixels on every side.
func (r RectInt) Expand(pad int) RectInt {
	return RectInt{
		X:      r.X - pad,
		Y:      r.Y - pad,
		Width:  r.Width + 2*pad,
		Height: r.Height + 2*pad,
	}
}

// ContainsRect reports whether other lies fully inside r.
func (r RectInt) ContainsRect(other RectInt) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.Right() <= r.Right() && other.Bottom() <= r.Bottom()
}

// Scale multiplies all coordinates by factor, rounding outward so the scaled
// rectangle never loses covered pixels.
func (r RectInt) Scale(factor float64) RectInt {
	x0 := int(math.Floor(float64(r.X) * factor))
	y0 := int(math.Floor(float64(r.Y) * factor))
	x1 := int(math.Ceil(float64(r.Right()) * factor))
	y1 := int(math.Ceil(float64(r.Bottom()) * factor))
	return RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Size holds a physical page size in millimetres.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AspectRatio returns the long-side over short-side ratio, orientation
// independent. Returns 0 for degenerate sizes.
func (s Size) AspectRatio() float64 {
	a, b := s.Width, s.Height
	if a <= 0 || b <= 0 {
		return 0
	}
	if a < b {
		a, b = b, a
	}
	return a / b
}

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// RotationAbout returns a rotation by the given angle (degrees, positive =
// counter-clockwise) about the point (cx, cy).
func RotationAbout(degrees, cx, cy float64) AffineTransform {
	rad := degrees * math.Pi / 180
	cos := math.Cos(rad)
	sin := math.Sin(rad)
	return AffineTransform{
		A: cos, B: -sin, TX: cx - cos*cx + sin*cy,
		C: sin, D: cos, TY: cy - sin*cx - cos*cy,
	}
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p Point) Point {
	return Point{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Inverse returns the inverse transform, if it exists.
func (t AffineTransform) Inverse() (AffineTransform, bool) {
	det := t.A*t.D - t.B*t.C
	if math.Abs(det) < 1e-10 {
		return AffineTransform{}, false
	}
	invDet := 1.0 / det
	return AffineTransform{
		A:  t.D * invDet,
		B:  -t.B * invDet,
		TX: (t.B*t.TY - t.D*t.TX) * invDet,
		C:  -t.C * invDet,
		D:  t.A * invDet,
		TY: (t.C*t.TX - t.A*t.TY) * invDet,
	}, true
}

// TransformRect returns the axis-aligned bounding box of the four transformed
// corners of r.
func (t AffineTransform) TransformRect(r RectInt) RectInt {
	corners := [4]Point{
		{X: float64(r.X), Y: float64(r.Y)},
		{X: float64(r.Right()), Y: float64(r.Y)},
		{X: float64(r.Right()), Y: float64(r.Bottom())},
		{X: float64(r.X), Y: float64(r.Bottom())},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		p := t.Apply(c)
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return NewRectInt(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	)
}
