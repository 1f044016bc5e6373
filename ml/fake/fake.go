// Package fake provides function-backed classifiers for tests and demos.
package fake

import (
	"context"

	"go.uber.org/atomic"
	"gorgonia.org/tensor"

	"go.viam.com/stopsign/ml"
)

// Classifier is a fake BatchClassifier. ClassifyBatchFunc replaces the whole call when set;
// otherwise ScoreFunc is applied to every window in order.
type Classifier struct {
	ClassifyBatchFunc func(ctx context.Context, batch *tensor.Dense) ([]float64, error)
	ScoreFunc         func(index int, window []uint8, size int) float64

	calls   atomic.Int64
	windows atomic.Int64
}

var _ ml.BatchClassifier = (*Classifier)(nil)

// NewFixed returns a classifier that ignores the pixels and returns scores as given.
func NewFixed(scores []float64) *Classifier {
	return &Classifier{
		ClassifyBatchFunc: func(ctx context.Context, batch *tensor.Dense) ([]float64, error) {
			out := make([]float64, len(scores))
			copy(out, scores)
			return out, nil
		},
	}
}

// NewConstant returns a classifier scoring every window with p.
func NewConstant(p float64) *Classifier {
	return &Classifier{ScoreFunc: func(int, []uint8, int) float64 { return p }}
}

// ClassifyBatch calls the injected ClassifyBatchFunc or scores windows with ScoreFunc.
func (c *Classifier) ClassifyBatch(ctx context.Context, batch *tensor.Dense) ([]float64, error) {
	c.calls.Inc()
	if batch != nil && len(batch.Shape()) > 0 {
		c.windows.Add(int64(batch.Shape()[0]))
	}
	if c.ClassifyBatchFunc != nil {
		return c.ClassifyBatchFunc(ctx, batch)
	}
	windows, err := ml.UnpackBatch(batch)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, windows.N)
	if c.ScoreFunc == nil {
		return scores, nil
	}
	for i := range scores {
		scores[i] = c.ScoreFunc(i, windows.Window(i), windows.Size)
	}
	return scores, nil
}

// Calls reports how many times ClassifyBatch ran.
func (c *Classifier) Calls() int {
	return int(c.calls.Load())
}

// Windows reports how many windows were submitted in total.
func (c *Classifier) Windows() int {
	return int(c.windows.Load())
}
