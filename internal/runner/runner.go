// Package runner drives a whole-corpus normalization run: it discovers
// pages, fans them out over a bounded worker pool, isolates per-page
// failures, and writes the per-page sidecar records. One page failing never
// aborts its siblings; only systemic failures (unwritable output) kill the
// run.
package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"scan-normalizer/internal/bounds"
	"scan-normalizer/internal/config"
	"scan-normalizer/internal/corpus"
	"scan-normalizer/internal/normalize"
	"scan-normalizer/internal/pagesize"
	"scan-normalizer/internal/raster"
	"scan-normalizer/internal/sidecar"
)

// Failure records one failed or skipped page.
type Failure struct {
	PageID  string `json:"pageId"`
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

// Summary is the outcome of one corpus run.
type Summary struct {
	RunID    string
	Pages    int
	Results  *normalize.ResultSet
	Failures []Failure
}

// Runner executes corpus runs with a fixed configuration.
type Runner struct {
	cfg *config.Run
	log *logrus.Logger
}

// New creates a Runner. log may be nil, in which case a default logger is
// used.
func New(cfg *config.Run, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.New()
	}
	return &Runner{cfg: cfg, log: log}
}

// Run processes every page of the input directory. The returned error is
// non-nil only for systemic failures; per-page failures land in the summary.
func (r *Runner) Run() (*Summary, error) {
	if err := ensureWritableDir(r.cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}

	if r.cfg.SizeTablePath != "" {
		if err := pagesize.LoadFromFile(r.cfg.SizeTablePath); err != nil {
			return nil, fmt.Errorf("size table: %w", err)
		}
	}

	pages, err := corpus.Discover(r.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("discovering pages: %w", err)
	}

	estimates := map[string]*normalize.BoundsEstimate{}
	if r.cfg.EstimatesPath != "" {
		estimates, err = corpus.LoadEstimates(r.cfg.EstimatesPath)
		if err != nil {
			return nil, err
		}
	}
	if r.cfg.AssumeFullFrame {
		estimates = corpus.SynthesizeEstimates(pages, estimates)
	}

	runID := newRunID()
	r.log.WithFields(logrus.Fields{
		"run":     runID,
		"pages":   len(pages),
		"workers": r.workers(),
	}).Info("starting normalization run")

	summary := &Summary{
		RunID:   runID,
		Pages:   len(pages),
		Results: normalize.NewResultSet(),
	}

	var mu sync.Mutex
	record := func(f Failure) {
		mu.Lock()
		summary.Failures = append(summary.Failures, f)
		mu.Unlock()
	}

	norm := normalize.New(r.cfg.Tuning, logrus.NewEntry(r.log))

	jobs := make(chan normalize.PageSource)
	var wg sync.WaitGroup
	for i := 0; i < r.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range jobs {
				r.processPage(norm, page, estimates[page.ID], runID, summary, record)
			}
		}()
	}
	for _, page := range pages {
		jobs <- page
	}
	close(jobs)
	wg.Wait()

	r.log.WithFields(logrus.Fields{
		"run":       runID,
		"completed": summary.Results.Len(),
		"failed":    len(summary.Failures),
	}).Info("run finished")
	return summary, nil
}

func (r *Runner) processPage(norm *normalize.Normalizer, page normalize.PageSource, est *normalize.BoundsEstimate, runID string, summary *Summary, record func(Failure)) {
	result, err := norm.Page(page, est, r.cfg.OutputDir)
	if err != nil {
		record(Failure{PageID: page.ID, Phase: classifyPhase(err), Message: err.Error()})
		color.Red("  ✗ %s: %v", page.ID, err)
		r.log.WithFields(logrus.Fields{"page": page.ID, "phase": classifyPhase(err)}).Warn(err)
		return
	}

	rec := sidecar.FromResult(result, runID)
	if _, err := sidecar.Write(rec, r.cfg.OutputDir); err != nil {
		record(Failure{PageID: page.ID, Phase: "sidecar", Message: err.Error()})
		color.Red("  ✗ %s: %v", page.ID, err)
		return
	}

	summary.Results.Add(result)
	if result.Decision.Accepted {
		color.Green("  ✓ %s  %.0f dpi (%s)  skew %+.2f°", page.ID, result.DPI, result.DPISource, result.SkewAngle)
	} else {
		color.Yellow("  ? %s  needs review: %v", page.ID, result.Decision.Notes)
	}
}

func (r *Runner) workers() int {
	if r.cfg.Workers > 0 {
		return r.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// classifyPhase maps a page error to the pipeline phase that raised it.
func classifyPhase(err error) string {
	switch {
	case errors.Is(err, normalize.ErrMissingEstimate):
		return "estimate"
	case errors.Is(err, raster.ErrDecode):
		return "decode"
	case errors.Is(err, bounds.ErrComputation):
		return "bounds"
	default:
		return "compose"
	}
}

// ensureWritableDir creates the directory if needed and proves it accepts
// writes. An unwritable output directory is fatal to the whole run.
func ensureWritableDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("no output directory configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".writecheck")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return err
	}
	return os.Remove(probe)
}

func newRunID() string {
	return "run-" + time.Now().UTC().Format("20060102-150405")
}
