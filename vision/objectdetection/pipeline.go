// Package objectdetection runs the sliding-window stop sign detector: it slices an image into
// windows, scores them in one classifier call, turns the scores into a heat map and reports the
// centers of the blobs found in it as normalized points.
package objectdetection

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/stopsign/logging"
	"go.viam.com/stopsign/ml"
	"go.viam.com/stopsign/rimage"
	"go.viam.com/stopsign/utils"
	"go.viam.com/stopsign/vision/blob"
	"go.viam.com/stopsign/vision/heatmap"
	"go.viam.com/stopsign/vision/window"
)

// Config holds the window geometry and blob extraction settings of a pipeline.
type Config struct {
	WindowSize     int
	Stride         int
	Blob           blob.Params
	Postprocessors []Postprocessor
}

// DefaultConfig returns 16 pixel windows every 4 pixels with the default blob settings.
func DefaultConfig() Config {
	return Config{
		WindowSize: 16,
		Stride:     4,
		Blob:       blob.DefaultParams(),
	}
}

// Validate checks the window geometry and the blob settings.
func (cfg Config) Validate() error {
	if cfg.WindowSize <= 0 {
		return utils.NewConfigurationError("window_size", "must be positive, got %d", cfg.WindowSize)
	}
	if cfg.Stride <= 0 {
		return utils.NewConfigurationError("stride", "must be positive, got %d", cfg.Stride)
	}
	return cfg.Blob.Validate()
}

// Result is everything one pipeline run produced. Rows and Cols are the window grid dimensions,
// which are also the heat map dimensions.
type Result struct {
	Rows          int
	Cols          int
	Probabilities *heatmap.ProbabilityGrid
	HeatMap       *heatmap.HeatMap
	Blobs         []blob.Blob
	Points        []NormalizedPoint
}

// Pipeline detects stop signs in single images. It keeps no state between images and may be
// used from several goroutines if its classifier allows that.
type Pipeline struct {
	cfg        Config
	classifier ml.BatchClassifier
	logger     logging.Logger
}

// NewPipeline validates the configuration and returns a pipeline scoring windows with classifier.
func NewPipeline(cfg Config, classifier ml.BatchClassifier, logger logging.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if classifier == nil {
		return nil, errors.New("pipeline must have a classifier")
	}
	return &Pipeline{cfg: cfg, classifier: classifier, logger: logger}, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Detect runs every stage on img. An image smaller than one window yields an empty result
// without calling the classifier.
func (p *Pipeline) Detect(ctx context.Context, img *rimage.RGB) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, "objectdetection::Pipeline::Detect")
	defer span.End()

	if img == nil {
		return nil, errors.New("no image to detect on")
	}
	grid, err := window.NewGrid(img, p.cfg.WindowSize, p.cfg.Stride)
	if err != nil {
		return nil, err
	}
	res := &Result{Rows: grid.Rows, Cols: grid.Cols, Points: []NormalizedPoint{}}
	if grid.Empty() {
		p.logger.Debugw("image smaller than window, nothing to classify",
			"width", img.Width, "height", img.Height, "window_size", p.cfg.WindowSize)
		res.Probabilities, _ = heatmap.Unflatten(nil, 0, 0)
		res.HeatMap = heatmap.Build(res.Probabilities)
		return res, nil
	}

	scores, err := p.classify(ctx, grid)
	if err != nil {
		return nil, err
	}
	res.Probabilities, err = heatmap.Unflatten(scores, grid.Rows, grid.Cols)
	if err != nil {
		return nil, err
	}
	res.HeatMap = heatmap.Build(res.Probabilities)

	res.Blobs, err = p.extract(ctx, res.HeatMap)
	if err != nil {
		return nil, err
	}
	for _, b := range res.Blobs {
		pt, err := Normalize(b.Center, res.Rows, res.Cols)
		if err != nil {
			return nil, err
		}
		res.Points = append(res.Points, pt)
	}
	return res, nil
}

func (p *Pipeline) classify(ctx context.Context, grid *window.Grid) ([]float64, error) {
	ctx, span := trace.StartSpan(ctx, "objectdetection::Pipeline::classify")
	defer span.End()

	scores, err := p.classifier.ClassifyBatch(ctx, grid.Batch())
	if err != nil {
		return nil, errors.Wrap(err, "classifier failed")
	}
	if err := ml.CheckScores(scores, grid.Len()); err != nil {
		return nil, err
	}
	return scores, nil
}

func (p *Pipeline) extract(ctx context.Context, hm *heatmap.HeatMap) ([]blob.Blob, error) {
	_, span := trace.StartSpan(ctx, "objectdetection::Pipeline::extract")
	defer span.End()

	blobs, err := blob.Detect(hm, p.cfg.Blob)
	if err != nil {
		return nil, err
	}
	for _, post := range p.cfg.Postprocessors {
		blobs = post(blobs)
	}
	summary := hm.Stats(uint8(math.Min(p.cfg.Blob.MinThreshold, 255)))
	p.logger.Debugw("heat map", "rows", hm.Rows, "cols", hm.Cols,
		"max", summary.Max, "mean", summary.Mean, "hot", summary.Hot, "blobs", len(blobs))
	return blobs, nil
}
