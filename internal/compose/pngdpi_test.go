package compose

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"testing"

	"scan-normalizer/pkg/geometry"
)

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestStampPNGDensityRoundTrip(t *testing.T) {
	data := encodeTestPNG(t, 16, 16)
	stamped, err := StampPNGDensity(data, 300)
	if err != nil {
		t.Fatalf("StampPNGDensity: %v", err)
	}

	dpi, ok := ReadPNGDensity(stamped)
	if !ok {
		t.Fatal("no pHYs chunk found")
	}
	// 300 DPI -> 11811 px/m -> 300.0 within rounding.
	if math.Abs(dpi-300) > 0.05 {
		t.Errorf("dpi = %f, want ~300", dpi)
	}

	// The stamped stream must still decode.
	img, err := png.Decode(bytes.NewReader(stamped))
	if err != nil {
		t.Fatalf("stamped PNG no longer decodes: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("decoded width = %d", img.Bounds().Dx())
	}
}

func TestStampPNGDensityReplacesExisting(t *testing.T) {
	data := encodeTestPNG(t, 8, 8)
	first, err := StampPNGDensity(data, 150)
	if err != nil {
		t.Fatal(err)
	}
	second, err := StampPNGDensity(first, 600)
	if err != nil {
		t.Fatal(err)
	}

	dpi, ok := ReadPNGDensity(second)
	if !ok || math.Abs(dpi-600) > 0.05 {
		t.Errorf("dpi = %f ok=%v, want ~600", dpi, ok)
	}
	// Exactly one pHYs chunk must remain.
	count := bytes.Count(second, []byte("pHYs"))
	if count != 1 {
		t.Errorf("pHYs chunks = %d, want 1", count)
	}
}

func TestStampPNGDensityRejectsGarbage(t *testing.T) {
	if _, err := StampPNGDensity([]byte("definitely not a png"), 300); err == nil {
		t.Error("expected error for non-PNG data")
	}
	if _, err := StampPNGDensity(encodeTestPNG(t, 4, 4), 0); err == nil {
		t.Error("expected error for zero dpi")
	}
}

func TestReadPNGDensityPlainPNG(t *testing.T) {
	if _, ok := ReadPNGDensity(encodeTestPNG(t, 4, 4)); ok {
		t.Error("plain PNG should report no density")
	}
}

func TestMapToFullRes(t *testing.T) {
	tests := []struct {
		name  string
		box   geometry.RectInt
		scale float64
		w, h  int
		check func(t *testing.T, got geometry.RectInt)
	}{
		{
			name:  "unit scale passes through",
			box:   geometry.RectInt{X: 10, Y: 20, Width: 30, Height: 40},
			scale: 1, w: 100, h: 100,
			check: func(t *testing.T, got geometry.RectInt) {
				want := geometry.RectInt{X: 10, Y: 20, Width: 30, Height: 40}
				if got != want {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name:  "scales up and clamps",
			box:   geometry.RectInt{X: 0, Y: 0, Width: 60, Height: 60},
			scale: 4, w: 200, h: 200,
			check: func(t *testing.T, got geometry.RectInt) {
				if got.Right() > 200 || got.Bottom() > 200 {
					t.Errorf("escapes frame: %+v", got)
				}
				if got.Width != 200 {
					t.Errorf("width = %d, want clamped 200", got.Width)
				}
			},
		},
		{
			name:  "zero scale treated as identity",
			box:   geometry.RectInt{X: 5, Y: 5, Width: 10, Height: 10},
			scale: 0, w: 50, h: 50,
			check: func(t *testing.T, got geometry.RectInt) {
				if got.X != 5 || got.Width != 10 {
					t.Errorf("got %+v", got)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, MapToFullRes(tt.box, tt.scale, tt.w, tt.h))
		})
	}
}
