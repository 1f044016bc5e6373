// Package ml defines the contract between the detection pipeline and the model that scores
// windows, along with tensor helpers shared by classifier implementations.
package ml

import (
	"context"
	"io"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gorgonia.org/tensor"

	"go.viam.com/stopsign/utils"
)

// BatchClassifier scores square RGB windows. The batch is a uint8 tensor of shape
// (N, size, size, 3); the result holds N probabilities in the same order as the windows.
// Implementations may parallelize internally but must keep that order.
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, batch *tensor.Dense) ([]float64, error)
}

// ClassifierFunc adapts a plain function to a BatchClassifier.
type ClassifierFunc func(ctx context.Context, batch *tensor.Dense) ([]float64, error)

// ClassifyBatch calls f.
func (f ClassifierFunc) ClassifyBatch(ctx context.Context, batch *tensor.Dense) ([]float64, error) {
	return f(ctx, batch)
}

// Close releases the classifier if it holds resources.
func Close(c BatchClassifier) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// WindowBatch is an unpacked view over a window batch tensor.
type WindowBatch struct {
	N    int
	Size int
	Pix  []uint8
}

// UnpackBatch checks the shape and type of a window batch and exposes its backing samples.
func UnpackBatch(batch *tensor.Dense) (WindowBatch, error) {
	if batch == nil {
		return WindowBatch{}, errors.New("nil window batch")
	}
	shape := batch.Shape()
	if len(shape) != 4 || shape[1] != shape[2] || shape[3] != 3 {
		return WindowBatch{}, errors.Errorf("window batch must have shape (N, size, size, 3), got %v", shape)
	}
	pix, ok := batch.Data().([]uint8)
	if !ok {
		return WindowBatch{}, utils.NewUnexpectedTypeError([]uint8{}, batch.Data())
	}
	return WindowBatch{N: shape[0], Size: shape[1], Pix: pix}, nil
}

// WindowLen is the number of samples in one window.
func (b WindowBatch) WindowLen() int {
	return b.Size * b.Size * 3
}

// Window returns the samples of window i without copying.
func (b WindowBatch) Window(i int) []uint8 {
	n := b.WindowLen()
	return b.Pix[i*n : (i+1)*n]
}

// CheckScores verifies that a classifier returned one usable score per window.
func CheckScores(scores []float64, n int) error {
	if len(scores) != n {
		return utils.NewShapeMismatchError("classifier output", n, len(scores))
	}
	for i, s := range scores {
		if math.IsNaN(s) {
			return &utils.InvalidScoreError{Index: i, Value: s}
		}
	}
	return nil
}

// OutputKind says how to read a model's raw scores.
type OutputKind string

// Output kinds.
const (
	// OutputProbability scores are probabilities already.
	OutputProbability OutputKind = "probability"
	// OutputLogits scores go through a sigmoid.
	OutputLogits OutputKind = "logits"
)

// Validate accepts the known kinds and the empty kind, which reads as OutputProbability.
func (k OutputKind) Validate() error {
	switch k {
	case "", OutputProbability, OutputLogits:
		return nil
	default:
		return errors.Errorf("unknown output kind %q, expected %q or %q", k, OutputProbability, OutputLogits)
	}
}

// ToProbabilities maps raw model scores to probabilities. Every score is mapped on its own, so
// the result for one window does not depend on the rest of the batch.
func ToProbabilities(kind OutputKind, raw []float64) ([]float64, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if kind != OutputLogits || len(raw) == 0 {
		return raw, nil
	}
	return stats.Sigmoid(raw)
}

// number interface for converting between numbers.
type number interface {
	constraints.Integer | constraints.Float
}

// convertNumberSlice converts any number slice into another number slice.
func convertNumberSlice[T1, T2 number](t1 []T1) []T2 {
	t2 := make([]T2, len(t1))
	for i := range t1 {
		t2[i] = T2(t1[i])
	}
	return t2
}

// ConvertToFloat64Slice converts the backing data of a model output into float64s.
func ConvertToFloat64Slice(slice interface{}) ([]float64, error) {
	switch v := slice.(type) {
	case []float64:
		return v, nil
	case []float32:
		return convertNumberSlice[float32, float64](v), nil
	case []int:
		return convertNumberSlice[int, float64](v), nil
	case []int8:
		return convertNumberSlice[int8, float64](v), nil
	case []int16:
		return convertNumberSlice[int16, float64](v), nil
	case []int32:
		return convertNumberSlice[int32, float64](v), nil
	case []int64:
		return convertNumberSlice[int64, float64](v), nil
	case []uint8:
		return convertNumberSlice[uint8, float64](v), nil
	case []uint16:
		return convertNumberSlice[uint16, float64](v), nil
	case []uint32:
		return convertNumberSlice[uint32, float64](v), nil
	case []uint64:
		return convertNumberSlice[uint64, float64](v), nil
	default:
		return nil, errors.Errorf("dont know how to convert slice of %T into a []float64", slice)
	}
}
