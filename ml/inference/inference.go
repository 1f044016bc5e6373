// Package inference provides model-backed window classifiers.
package inference

import (
	"image"
	"runtime"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"go.viam.com/stopsign/ml"
	"go.viam.com/stopsign/rimage"
)

// ErrNoModelPath is returned when a model-backed classifier is built without a model file.
var ErrNoModelPath = errors.New("model path is required")

// Config describes a model-backed classifier. Output says whether the model emits
// probabilities or logits; it applies to every score the model produces.
type Config struct {
	ModelPath  string
	NumThreads int
	Output     ml.OutputKind
}

// Validate checks the settings that do not need the model file.
func (cfg Config) Validate() error {
	if cfg.ModelPath == "" {
		return ErrNoModelPath
	}
	return cfg.Output.Validate()
}

func (cfg Config) numThreads() int {
	if cfg.NumThreads <= 0 {
		return runtime.NumCPU()
	}
	return cfg.NumThreads
}

// prepareWindow returns the window samples laid out for a model input of the given size.
// Windows that already match are returned as is.
func prepareWindow(window []uint8, size, inHeight, inWidth int) ([]uint8, error) {
	if inHeight == size && inWidth == size {
		return window, nil
	}
	img, err := rimage.NewRGBFromPix(size, size, window)
	if err != nil {
		return nil, err
	}
	resized := resize.Resize(uint(inWidth), uint(inHeight), img, resize.Bilinear)
	out := rimage.ConvertToRGB(resized)
	if out.Bounds() != image.Rect(0, 0, inWidth, inHeight) {
		return nil, errors.Errorf("resized window is %v, expected %dx%d", out.Bounds(), inWidth, inHeight)
	}
	return out.Pix, nil
}
