//go:build no_tflite || no_cgo

package inference

import (
	"context"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"go.viam.com/stopsign/logging"
)

// ErrTFLiteNotSupported is returned when the binary was built without TFLite support.
var ErrTFLiteNotSupported = errors.New("tflite classifier not supported on this build")

// TFLiteClassifier is unavailable on this build.
type TFLiteClassifier struct{}

// TFLiteInfo is unavailable on this build.
type TFLiteInfo struct {
	InputHeight     int
	InputWidth      int
	InputChannels   int
	InputTensorType string
	OutputType      string
}

// NewTFLiteClassifier always fails on this build.
func NewTFLiteClassifier(cfg Config, logger logging.Logger) (*TFLiteClassifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrTFLiteNotSupported
}

// Info returns an empty description.
func (c *TFLiteClassifier) Info() TFLiteInfo {
	return TFLiteInfo{}
}

// ClassifyBatch always fails on this build.
func (c *TFLiteClassifier) ClassifyBatch(ctx context.Context, batch *tensor.Dense) ([]float64, error) {
	return nil, ErrTFLiteNotSupported
}

// Close does nothing.
func (c *TFLiteClassifier) Close() error {
	return nil
}
