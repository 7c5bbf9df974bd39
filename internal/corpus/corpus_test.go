package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"scan-normalizer/internal/normalize"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.png"), []byte("png-b"))
	writeFile(t, filepath.Join(dir, "a.tiff"), []byte("tiff-a"))
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("skip me"))
	writeFile(t, filepath.Join(dir, "sub", "c.jpg"), []byte("jpg-c"))

	pages, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(pages))
	}
	// Sorted by path: a.tiff, b.png, sub/c.jpg.
	if pages[0].ID != "a" || pages[1].ID != "b" || pages[2].ID != "c" {
		t.Errorf("ids = %s %s %s", pages[0].ID, pages[1].ID, pages[2].ID)
	}
	for _, p := range pages {
		if len(p.Checksum) != 64 {
			t.Errorf("page %s checksum %q is not sha256 hex", p.ID, p.Checksum)
		}
	}
}

func TestDiscoverDeterministicChecksums(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "page.png"), []byte("fixed bytes"))

	first, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Checksum != second[0].Checksum || first[0].ID != second[0].ID {
		t.Error("repeated discovery disagrees")
	}
}

func TestDiscoverDuplicateStems(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x", "scan.png"), []byte("one"))
	writeFile(t, filepath.Join(dir, "y", "scan.png"), []byte("two"))

	pages, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d", len(pages))
	}
	if pages[0].ID == pages[1].ID {
		t.Errorf("duplicate ids: %s", pages[0].ID)
	}
}

func TestPageID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/scans/Page 001.tiff", "page-001"},
		{"/scans/intro_v2.png", "intro_v2"},
		{"/scans/ß.png", "-"},
	}
	for _, tt := range tests {
		if got := pageID(tt.path); got != tt.want {
			t.Errorf("pageID(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestLoadEstimates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "estimates.json")
	writeFile(t, path, []byte(`[
		{"pageId": "p1", "widthPx": 2480, "heightPx": 3508, "bleedPx": 35, "trimPx": 12},
		{"pageId": "p2"}
	]`))

	ests, err := LoadEstimates(path)
	if err != nil {
		t.Fatalf("LoadEstimates: %v", err)
	}
	if len(ests) != 2 {
		t.Fatalf("estimates = %d, want 2", len(ests))
	}
	if ests["p1"].WidthPx != 2480 || ests["p1"].BleedPx != 35 {
		t.Errorf("p1 = %+v", ests["p1"])
	}
	if _, ok := ests["p3"]; ok {
		t.Error("phantom estimate p3")
	}
}

func TestLoadEstimatesRejectsMissingID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	writeFile(t, path, []byte(`[{"widthPx": 100}]`))
	if _, err := LoadEstimates(path); err == nil {
		t.Error("expected error for estimate with no pageId")
	}
}

func TestSynthesizeEstimates(t *testing.T) {
	pages := []normalize.PageSource{{ID: "a"}, {ID: "b"}}
	existing := map[string]*normalize.BoundsEstimate{
		"a": {PageID: "a", BleedPx: 10},
	}

	out := SynthesizeEstimates(pages, existing)
	if len(out) != 2 {
		t.Fatalf("estimates = %d, want 2", len(out))
	}
	if out["a"].BleedPx != 10 {
		t.Error("existing estimate was replaced")
	}
	if out["b"] == nil || out["b"].PageID != "b" {
		t.Errorf("synthesized b = %+v", out["b"])
	}
}
