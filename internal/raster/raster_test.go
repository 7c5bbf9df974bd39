package raster

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 230
	}
	path := filepath.Join(dir, "page.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDecodesPNG(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), 120, 90)
	src, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src.Width != 120 || src.Height != 90 {
		t.Errorf("dimensions = %dx%d", src.Width, src.Height)
	}
	if src.Format != "png" {
		t.Errorf("format = %q", src.Format)
	}
	if src.DensityDPI != 0 {
		t.Errorf("plain PNG should have no density hint, got %f", src.DensityDPI)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(path, []byte("not an image at all"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.png"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestIsSupportedFormat(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"scan_001.tif", true},
		{"scan_001.TIFF", true},
		{"page.png", true},
		{"page.jpeg", true},
		{"page.bmp", true},
		{"notes.txt", false},
		{"page.webp", false},
	}
	for _, tt := range tests {
		if got := IsSupportedFormat(tt.path); got != tt.want {
			t.Errorf("IsSupportedFormat(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestBuildPreviewCapsLongerSide(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 800, 400))
	src := &Source{Image: img, Width: 800, Height: 400}

	p := src.BuildPreview(200)
	if p.Width != 200 {
		t.Errorf("preview width = %d, want 200", p.Width)
	}
	if p.Height != 100 {
		t.Errorf("preview height = %d, want 100", p.Height)
	}
	if p.Scale != 4.0 {
		t.Errorf("scale = %f, want 4.0", p.Scale)
	}
}

func TestBuildPreviewKeepsSmallSources(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 50, 40))
	src := &Source{Image: img, Width: 50, Height: 40}

	p := src.BuildPreview(200)
	if p.Width != 50 || p.Height != 40 || p.Scale != 1.0 {
		t.Errorf("small preview altered: %dx%d scale %f", p.Width, p.Height, p.Scale)
	}
}

func TestBuildPreviewConvertsToLuma(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	src := &Source{Image: img, Width: 4, Height: 4}
	p := src.BuildPreview(200)
	if p.At(2, 2) < 250 {
		t.Errorf("white pixel converted to %d", p.At(2, 2))
	}
}

func TestPreviewAtOutOfRangeReadsWhite(t *testing.T) {
	p := NewPreview(make([]uint8, 4), 2, 2, 1)
	if p.At(-1, 0) != 255 || p.At(0, 5) != 255 {
		t.Error("out-of-range reads should be white")
	}
}

func TestRotateZeroIsIdentityCopy(t *testing.T) {
	pix := []uint8{10, 20, 30, 40}
	p := NewPreview(pix, 2, 2, 1)
	r := p.Rotate(0)
	for i := range pix {
		if r.Pix[i] != pix[i] {
			t.Fatalf("pixel %d changed: %d != %d", i, r.Pix[i], pix[i])
		}
	}
	// Must be a copy, not an alias.
	r.Pix[0] = 99
	if p.Pix[0] == 99 {
		t.Error("Rotate(0) aliases source buffer")
	}
}

func TestRotateFillsCornersWhite(t *testing.T) {
	// All-black preview rotated far enough that corners fall outside.
	size := 40
	pix := make([]uint8, size*size)
	p := NewPreview(pix, size, size, 1)
	r := p.Rotate(8)
	if r.At(0, 0) != 255 {
		t.Errorf("corner should be background white, got %d", r.At(0, 0))
	}
	// Center stays black.
	if r.At(size/2, size/2) != 0 {
		t.Errorf("center should remain black, got %d", r.At(size/2, size/2))
	}
}

func TestRotatePositiveAngleIsCounterClockwise(t *testing.T) {
	// A dark dot right of center must move up the frame under a positive
	// rotation, matching the warp convention the crop box is measured
	// against.
	size := 100
	pix := make([]uint8, size*size)
	for i := range pix {
		pix[i] = 255
	}
	p := NewPreview(pix, size, size, 1)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			p.Pix[(50+dy)*size+(80+dx)] = 0
		}
	}

	r := p.Rotate(10)
	darkX, darkY, darkV := 0, 0, uint8(255)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if v := r.At(x, y); v < darkV {
				darkV = v
				darkX, darkY = x, y
			}
		}
	}
	if darkV > 128 {
		t.Fatal("dot lost during rotation")
	}
	if darkY >= 50 {
		t.Errorf("dot at (%d, %d): moved down, positive rotation must move it up", darkX, darkY)
	}
	if darkX <= 50 {
		t.Errorf("dot at (%d, %d): crossed center, rotation too large", darkX, darkY)
	}
}

func TestSobelAtClampsAtFrameEdge(t *testing.T) {
	// A uniform non-white preview has no gradients anywhere, including the
	// outermost rows and columns.
	pix := make([]uint8, 16)
	for i := range pix {
		pix[i] = 200
	}
	p := NewPreview(pix, 4, 4, 1)
	for _, corner := range [][2]int{{0, 0}, {3, 0}, {0, 3}, {3, 3}} {
		gx, gy := p.SobelAt(corner[0], corner[1])
		if gx != 0 || gy != 0 {
			t.Errorf("SobelAt(%d, %d) = (%f, %f), want zero on uniform frame",
				corner[0], corner[1], gx, gy)
		}
	}
}

func TestRotateIsDeterministic(t *testing.T) {
	size := 32
	pix := make([]uint8, size*size)
	for i := range pix {
		pix[i] = uint8((i * 37) % 251)
	}
	p := NewPreview(pix, size, size, 1)
	a := p.Rotate(3.5)
	b := p.Rotate(3.5)
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("rotation not deterministic at %d", i)
		}
	}
}
