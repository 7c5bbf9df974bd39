// Package corpus discovers the pages of a scan corpus: it walks the input
// directory for supported rasters, checksums each file, and assigns stable
// page ids. It also loads the rough-bounds estimate file the upstream
// estimator produces.
package corpus

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scan-normalizer/internal/normalize"
	"scan-normalizer/internal/raster"
)

// Discover walks dir for supported raster files and returns one PageSource
// per file, sorted by path. Page ids derive from the file stem, so repeated
// runs over the same corpus assign the same ids.
func Discover(dir string) ([]normalize.PageSource, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if raster.IsSupportedFormat(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(paths)

	pages := make([]normalize.PageSource, 0, len(paths))
	seen := make(map[string]int)
	for _, path := range paths {
		sum, err := checksumFile(path)
		if err != nil {
			return nil, fmt.Errorf("checksumming %s: %w", path, err)
		}

		id := pageID(path)
		// Duplicate stems across subdirectories get a numeric suffix; the
		// sorted walk keeps the assignment stable.
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id = fmt.Sprintf("%s-%d", id, n+1)
		} else {
			seen[id] = 1
		}

		pages = append(pages, normalize.PageSource{
			ID:       id,
			Path:     path,
			Checksum: sum,
		})
	}
	return pages, nil
}

// pageID derives a page id from the file stem, lowercased with path-hostile
// characters replaced.
func pageID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.ToLower(stem)
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "page"
	}
	return b.String()
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// LoadEstimates reads the rough-bounds estimate file: a JSON array of
// per-page estimates keyed by pageId.
func LoadEstimates(path string) (map[string]*normalize.BoundsEstimate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading estimates %s: %w", path, err)
	}

	var list []normalize.BoundsEstimate
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing estimates %s: %w", path, err)
	}

	out := make(map[string]*normalize.BoundsEstimate, len(list))
	for i := range list {
		est := &list[i]
		if est.PageID == "" {
			return nil, fmt.Errorf("estimates %s: entry %d has no pageId", path, i)
		}
		out[est.PageID] = est
	}
	return out, nil
}

// SynthesizeEstimates fills in a zero-margin full-frame estimate for every
// page missing one. Used by the assume-full-frame run mode.
func SynthesizeEstimates(pages []normalize.PageSource, existing map[string]*normalize.BoundsEstimate) map[string]*normalize.BoundsEstimate {
	out := make(map[string]*normalize.BoundsEstimate, len(pages))
	for id, est := range existing {
		out[id] = est
	}
	for _, p := range pages {
		if _, ok := out[p.ID]; !ok {
			out[p.ID] = &normalize.BoundsEstimate{PageID: p.ID}
		}
	}
	return out
}
