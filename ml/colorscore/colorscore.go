// Package colorscore scores windows by how much of them is covered by stop-sign red. It needs
// no model file, which makes it useful for demos and for checking a deployment end to end.
package colorscore

import (
	"context"

	"github.com/lucasb-eyer/go-colorful"
	"gorgonia.org/tensor"

	"go.viam.com/stopsign/ml"
	"go.viam.com/stopsign/utils"
)

// Config controls what counts as red. Hue bounds are in degrees; a pixel is red when its hue is
// at most MaxHue or at least MinWrapHue.
type Config struct {
	MaxHue        float64
	MinWrapHue    float64
	MinSaturation float64
	MinValue      float64
	// FullScaleFraction is the red pixel fraction that scores 1.
	FullScaleFraction float64
}

// DefaultConfig returns thresholds tuned for saturated sign red.
func DefaultConfig() Config {
	return Config{
		MaxHue:            20,
		MinWrapHue:        340,
		MinSaturation:     0.45,
		MinValue:          0.3,
		FullScaleFraction: 0.5,
	}
}

// Validate checks the thresholds.
func (cfg Config) Validate() error {
	if cfg.FullScaleFraction <= 0 || cfg.FullScaleFraction > 1 {
		return utils.NewConfigurationError("red_fraction", "must be in (0, 1], got %v", cfg.FullScaleFraction)
	}
	if cfg.MaxHue < 0 || cfg.MinWrapHue > 360 || cfg.MaxHue > cfg.MinWrapHue {
		return utils.NewConfigurationError("hue", "bounds %v..%v are inconsistent", cfg.MaxHue, cfg.MinWrapHue)
	}
	if cfg.MinSaturation < 0 || cfg.MinSaturation > 1 || cfg.MinValue < 0 || cfg.MinValue > 1 {
		return utils.NewConfigurationError("saturation", "saturation and value bounds must be within [0, 1]")
	}
	return nil
}

// Classifier is a BatchClassifier scoring the red pixel fraction of each window.
type Classifier struct {
	cfg Config
}

var _ ml.BatchClassifier = (*Classifier)(nil)

// NewClassifier returns a classifier for the given thresholds.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg}, nil
}

// IsRed reports whether the pixel counts toward the score.
func (c *Classifier) IsRed(r, g, b uint8) bool {
	col := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	h, s, v := col.Hsv()
	if s < c.cfg.MinSaturation || v < c.cfg.MinValue {
		return false
	}
	return h <= c.cfg.MaxHue || h >= c.cfg.MinWrapHue
}

// Score returns the score of a single window.
func (c *Classifier) Score(window []uint8) float64 {
	n := len(window) / 3
	if n == 0 {
		return 0
	}
	red := 0
	for i := 0; i < n; i++ {
		if c.IsRed(window[i*3], window[i*3+1], window[i*3+2]) {
			red++
		}
	}
	score := float64(red) / float64(n) / c.cfg.FullScaleFraction
	if score > 1 {
		return 1
	}
	return score
}

// ClassifyBatch scores windows in parallel; each goroutine writes only its own range.
func (c *Classifier) ClassifyBatch(ctx context.Context, batch *tensor.Dense) ([]float64, error) {
	windows, err := ml.UnpackBatch(batch)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, windows.N)
	err = utils.GroupWorkParallel(ctx, windows.N, func(ctx context.Context, groupNum, from, to int) error {
		for i := from; i < to; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			scores[i] = c.Score(windows.Window(i))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}
