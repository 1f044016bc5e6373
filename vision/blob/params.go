package blob

import (
	"math"

	"go.viam.com/stopsign/utils"
)

// Params configures multi-level blob extraction. Thresholds are heat map intensities; a cell is
// foreground at a level when its value is strictly greater than the level.
type Params struct {
	MinThreshold     float64 `json:"min_threshold" yaml:"min_threshold"`
	MaxThreshold     float64 `json:"max_threshold" yaml:"max_threshold"`
	ThresholdStep    float64 `json:"threshold_step" yaml:"threshold_step"`
	MinRepeatability int     `json:"min_repeatability" yaml:"min_repeatability"`

	MinDistBetweenBlobs float64 `json:"min_dist_between_blobs" yaml:"min_dist_between_blobs"`

	FilterByArea bool    `json:"filter_by_area" yaml:"filter_by_area"`
	MinArea      float64 `json:"min_area" yaml:"min_area"`
	MaxArea      float64 `json:"max_area" yaml:"max_area"`

	FilterByCircularity bool    `json:"filter_by_circularity" yaml:"filter_by_circularity"`
	MinCircularity      float64 `json:"min_circularity" yaml:"min_circularity"`
	MaxCircularity      float64 `json:"max_circularity" yaml:"max_circularity"`

	FilterByConvexity bool    `json:"filter_by_convexity" yaml:"filter_by_convexity"`
	MinConvexity      float64 `json:"min_convexity" yaml:"min_convexity"`
	MaxConvexity      float64 `json:"max_convexity" yaml:"max_convexity"`

	FilterByInertia bool    `json:"filter_by_inertia" yaml:"filter_by_inertia"`
	MinInertiaRatio float64 `json:"min_inertia_ratio" yaml:"min_inertia_ratio"`
	MaxInertiaRatio float64 `json:"max_inertia_ratio" yaml:"max_inertia_ratio"`

	FilterByColor bool  `json:"filter_by_color" yaml:"filter_by_color"`
	BlobColor     uint8 `json:"blob_color" yaml:"blob_color"`
}

// DefaultParams returns the settings used by the deployed detector: blobs of at least five
// cells, no shape or color filtering.
func DefaultParams() Params {
	return Params{
		MinThreshold:        50,
		MaxThreshold:        220,
		ThresholdStep:       10,
		MinRepeatability:    2,
		MinDistBetweenBlobs: 10,

		FilterByArea: true,
		MinArea:      5,
		MaxArea:      5000,

		MinCircularity: 0.8,
		MaxCircularity: math.MaxFloat32,

		MinConvexity: 0.95,
		MaxConvexity: math.MaxFloat32,

		MinInertiaRatio: 0.1,
		MaxInertiaRatio: math.MaxFloat32,

		BlobColor: 255,
	}
}

// Levels returns the threshold levels scanned, in increasing order.
func (p Params) Levels() []float64 {
	var levels []float64
	for t := p.MinThreshold; t < p.MaxThreshold; t += p.ThresholdStep {
		levels = append(levels, t)
	}
	return levels
}

// Validate checks that the bounds are consistent.
func (p Params) Validate() error {
	if p.ThresholdStep <= 0 {
		return utils.NewConfigurationError("threshold_step", "must be positive, got %v", p.ThresholdStep)
	}
	if p.MinThreshold < 0 || p.MaxThreshold > 256 || p.MinThreshold > p.MaxThreshold {
		return utils.NewConfigurationError("min_threshold",
			"threshold range [%v, %v) must lie within [0, 256]", p.MinThreshold, p.MaxThreshold)
	}
	if p.MinRepeatability < 1 {
		return utils.NewConfigurationError("min_repeatability", "must be at least 1, got %d", p.MinRepeatability)
	}
	if p.MinDistBetweenBlobs < 0 {
		return utils.NewConfigurationError("min_dist_between_blobs", "must not be negative, got %v", p.MinDistBetweenBlobs)
	}
	bounds := []struct {
		name     string
		enabled  bool
		min, max float64
	}{
		{"area", p.FilterByArea, p.MinArea, p.MaxArea},
		{"circularity", p.FilterByCircularity, p.MinCircularity, p.MaxCircularity},
		{"convexity", p.FilterByConvexity, p.MinConvexity, p.MaxConvexity},
		{"inertia_ratio", p.FilterByInertia, p.MinInertiaRatio, p.MaxInertiaRatio},
	}
	for _, b := range bounds {
		if !b.enabled {
			continue
		}
		if b.min < 0 || b.min > b.max || math.IsNaN(b.min) || math.IsNaN(b.max) {
			return utils.NewConfigurationError("min_"+b.name, "bounds [%v, %v] are inconsistent", b.min, b.max)
		}
	}
	if p.FilterByColor && p.BlobColor != 0 && p.BlobColor != 255 {
		return utils.NewConfigurationError("blob_color", "must be 0 or 255, got %d", p.BlobColor)
	}
	return nil
}
