// Package config defines the run configuration and analysis tuning values.
//
// Tuning is a plain value handed into every pipeline invocation. Nothing in
// this package is a process-wide singleton, so concurrent runs and tests can
// carry distinct tuning without interference.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Tuning holds the numeric thresholds of the analysis pipeline. The defaults
// are empirically chosen starting points, not physical constants; validate
// changes against a reference corpus before shipping them.
type Tuning struct {
	// PreviewMaxSide caps the longer side of the analysis preview in pixels.
	PreviewMaxSide int `mapstructure:"preview_max_side" json:"preview_max_side"`

	// MaxSkewDegrees clamps the estimated skew angle to ±this value.
	MaxSkewDegrees float64 `mapstructure:"max_skew_degrees" json:"max_skew_degrees"`

	// GradientNoiseFloor discards Sobel magnitudes below this value when
	// accumulating the orientation histogram.
	GradientNoiseFloor float64 `mapstructure:"gradient_noise_floor" json:"gradient_noise_floor"`

	// BorderBandRatio is the margin band width sampled for background
	// statistics, as a fraction of the shorter preview dimension.
	BorderBandRatio float64 `mapstructure:"border_band_ratio" json:"border_band_ratio"`

	// IntensitySigmaScale and IntensityMinOffset derive the adaptive dark
	// threshold: min(mean - sigmaScale*std, mean - minOffset), floored at 0.
	IntensitySigmaScale float64 `mapstructure:"intensity_sigma_scale" json:"intensity_sigma_scale"`
	IntensityMinOffset  float64 `mapstructure:"intensity_min_offset" json:"intensity_min_offset"`

	// EdgeSigmaScale and EdgeMinThreshold derive the gradient edge threshold:
	// max(mean + sigmaScale*std, minThreshold).
	EdgeSigmaScale   float64 `mapstructure:"edge_sigma_scale" json:"edge_sigma_scale"`
	EdgeMinThreshold float64 `mapstructure:"edge_min_threshold" json:"edge_min_threshold"`

	// RowHitRatio is the fraction of the opposite dimension a row/column dark
	// (or edge) count must exceed before it counts as content.
	RowHitRatio float64 `mapstructure:"row_hit_ratio" json:"row_hit_ratio"`

	// ShadowStripRatio is the margin strip width probed for spine shadows,
	// as a fraction of the preview width.
	ShadowStripRatio float64 `mapstructure:"shadow_strip_ratio" json:"shadow_strip_ratio"`

	// ShadowMinDelta and ShadowMeanRatio set the darkening needed to flag a
	// shadow: max(minDelta, meanRatio * globalMean).
	ShadowMinDelta  float64 `mapstructure:"shadow_min_delta" json:"shadow_min_delta"`
	ShadowMeanRatio float64 `mapstructure:"shadow_mean_ratio" json:"shadow_mean_ratio"`

	// ShadowTrimFraction is how much of a confident shadow's width is trimmed
	// from the affected side of the unioned bounds.
	ShadowTrimFraction float64 `mapstructure:"shadow_trim_fraction" json:"shadow_trim_fraction"`

	// ShadowTrimConfidence is the minimum shadow confidence before trimming.
	ShadowTrimConfidence float64 `mapstructure:"shadow_trim_confidence" json:"shadow_trim_confidence"`

	// PadMinPixels and PadShortSideRatio set the adaptive crop padding:
	// max(minPixels, shortSideRatio * shorter preview dimension).
	PadMinPixels      int     `mapstructure:"pad_min_pixels" json:"pad_min_pixels"`
	PadShortSideRatio float64 `mapstructure:"pad_short_side_ratio" json:"pad_short_side_ratio"`

	// SizeMatchTolerance is the maximum aspect-ratio difference accepted when
	// matching a raster against a standard page size.
	SizeMatchTolerance float64 `mapstructure:"size_match_tolerance" json:"size_match_tolerance"`

	// FallbackDPI is assumed when no density metadata exists and no standard
	// size matches.
	FallbackDPI float64 `mapstructure:"fallback_dpi" json:"fallback_dpi"`
}

// DefaultTuning returns the tuning defaults.
func DefaultTuning() Tuning {
	return Tuning{
		PreviewMaxSide:       1600,
		MaxSkewDegrees:       8,
		GradientNoiseFloor:   24,
		BorderBandRatio:      0.04,
		IntensitySigmaScale:  0.45,
		IntensityMinOffset:   6,
		EdgeSigmaScale:       1.4,
		EdgeMinThreshold:     8,
		RowHitRatio:          0.003,
		ShadowStripRatio:     0.04,
		ShadowMinDelta:       8,
		ShadowMeanRatio:      0.08,
		ShadowTrimFraction:   0.75,
		ShadowTrimConfidence: 0.25,
		PadMinPixels:         6,
		PadShortSideRatio:    0.002,
		SizeMatchTolerance:   0.02,
		FallbackDPI:          300,
	}
}

// Validate checks the tuning for values that would break the pipeline.
func (t Tuning) Validate() error {
	if t.PreviewMaxSide < 64 {
		return fmt.Errorf("preview_max_side %d is too small", t.PreviewMaxSide)
	}
	if t.MaxSkewDegrees <= 0 || t.MaxSkewDegrees > 45 {
		return fmt.Errorf("max_skew_degrees %.2f out of range (0, 45]", t.MaxSkewDegrees)
	}
	if t.BorderBandRatio <= 0 || t.BorderBandRatio > 0.25 {
		return fmt.Errorf("border_band_ratio %.3f out of range (0, 0.25]", t.BorderBandRatio)
	}
	if t.ShadowStripRatio <= 0 || t.ShadowStripRatio > 0.25 {
		return fmt.Errorf("shadow_strip_ratio %.3f out of range (0, 0.25]", t.ShadowStripRatio)
	}
	if t.FallbackDPI <= 0 {
		return fmt.Errorf("fallback_dpi must be positive, got %.1f", t.FallbackDPI)
	}
	return nil
}

// Run holds the run-level configuration assembled from the config file,
// environment, and command-line flags.
type Run struct {
	InputDir  string `mapstructure:"input_dir" json:"input_dir"`
	OutputDir string `mapstructure:"output_dir" json:"output_dir"`

	// EstimatesPath points at the rough-bounds estimate file produced by the
	// upstream estimator. Empty means no estimates are available.
	EstimatesPath string `mapstructure:"estimates_path" json:"estimates_path"`

	// AssumeFullFrame synthesizes a full-frame estimate for every page that
	// lacks one instead of skipping it.
	AssumeFullFrame bool `mapstructure:"assume_full_frame" json:"assume_full_frame"`

	// Workers bounds page-level fan-out. Zero means GOMAXPROCS.
	Workers int `mapstructure:"workers" json:"workers"`

	// SizeTablePath optionally extends the standard page size registry.
	SizeTablePath string `mapstructure:"size_table_path" json:"size_table_path"`

	Tuning Tuning `mapstructure:"tuning" json:"tuning"`
}

// Load reads the run configuration. configPath may be empty, in which case
// viper searches for "normalizer.yaml" in the working directory. Environment
// variables with the SCANNORM prefix override file values, e.g.
// SCANNORM_OUTPUT_DIR overrides output_dir.
func Load(configPath string) (*Run, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("normalizer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SCANNORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Only a missing implicit config file is tolerable; an explicit path
		// that fails or a malformed file must stop the run, not silently
		// fall back to defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var run Run
	if err := v.Unmarshal(&run); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := run.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	return &run, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultTuning()
	// String keys need defaults registered or environment overrides never
	// reach Unmarshal.
	v.SetDefault("input_dir", "")
	v.SetDefault("output_dir", "")
	v.SetDefault("estimates_path", "")
	v.SetDefault("size_table_path", "")
	v.SetDefault("workers", 0)
	v.SetDefault("assume_full_frame", false)
	v.SetDefault("tuning.preview_max_side", def.PreviewMaxSide)
	v.SetDefault("tuning.max_skew_degrees", def.MaxSkewDegrees)
	v.SetDefault("tuning.gradient_noise_floor", def.GradientNoiseFloor)
	v.SetDefault("tuning.border_band_ratio", def.BorderBandRatio)
	v.SetDefault("tuning.intensity_sigma_scale", def.IntensitySigmaScale)
	v.SetDefault("tuning.intensity_min_offset", def.IntensityMinOffset)
	v.SetDefault("tuning.edge_sigma_scale", def.EdgeSigmaScale)
	v.SetDefault("tuning.edge_min_threshold", def.EdgeMinThreshold)
	v.SetDefault("tuning.row_hit_ratio", def.RowHitRatio)
	v.SetDefault("tuning.shadow_strip_ratio", def.ShadowStripRatio)
	v.SetDefault("tuning.shadow_min_delta", def.ShadowMinDelta)
	v.SetDefault("tuning.shadow_mean_ratio", def.ShadowMeanRatio)
	v.SetDefault("tuning.shadow_trim_fraction", def.ShadowTrimFraction)
	v.SetDefault("tuning.shadow_trim_confidence", def.ShadowTrimConfidence)
	v.SetDefault("tuning.pad_min_pixels", def.PadMinPixels)
	v.SetDefault("tuning.pad_short_side_ratio", def.PadShortSideRatio)
	v.SetDefault("tuning.size_match_tolerance", def.SizeMatchTolerance)
	v.SetDefault("tuning.fallback_dpi", def.FallbackDPI)
}
