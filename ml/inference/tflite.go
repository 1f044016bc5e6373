//go:build !no_tflite && !no_cgo

package inference

import (
	"context"
	"sync"

	tflite "github.com/mattn/go-tflite"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"go.viam.com/stopsign/logging"
	"go.viam.com/stopsign/ml"
)

// TFLiteClassifier scores windows with a binary TFLite classifier. The interpreter is not
// safe for concurrent use, so windows are invoked one at a time.
type TFLiteClassifier struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	info        *TFLiteInfo
	output      ml.OutputKind
	logger      logging.Logger
}

// TFLiteInfo describes the input and output tensors of a loaded model.
type TFLiteInfo struct {
	InputHeight     int
	InputWidth      int
	InputChannels   int
	InputTensorType string
	OutputType      string
}

// NewTFLiteClassifier loads the model and allocates its tensors.
func NewTFLiteClassifier(cfg Config, logger logging.Logger) (*TFLiteClassifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model := tflite.NewModelFromFile(cfg.ModelPath)
	if model == nil {
		return nil, errors.Errorf("failed to load tflite model from %q", cfg.ModelPath)
	}

	options := tflite.NewInterpreterOptions()
	if options == nil {
		model.Delete()
		return nil, errors.New("interpreter options failed to be created")
	}
	options.SetNumThread(cfg.numThreads())
	options.SetErrorReporter(func(msg string, userData interface{}) {
		logger.Warnw("tflite", "msg", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New("failed to create interpreter")
	}
	c := &TFLiteClassifier{model: model, options: options, interpreter: interpreter, output: cfg.Output, logger: logger}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		c.Close()
		return nil, errors.New("failed to allocate tensors")
	}

	info, err := c.readInfo()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.info = info
	return c, nil
}

func (c *TFLiteClassifier) readInfo() (*TFLiteInfo, error) {
	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, errors.New("model has no input tensor")
	}
	if input.NumDims() != 4 || input.Dim(3) != 3 {
		return nil, errors.Errorf("model input must be (1, h, w, 3), got %d dims", input.NumDims())
	}
	switch input.Type() {
	case tflite.Float32, tflite.UInt8:
	default:
		return nil, errors.Errorf("unsupported model input type %v", input.Type())
	}
	if c.interpreter.GetOutputTensorCount() < 1 {
		return nil, errors.New("model has no output tensor")
	}
	output := c.interpreter.GetOutputTensor(0)
	switch output.Type() {
	case tflite.Float32, tflite.UInt8:
	default:
		return nil, errors.Errorf("unsupported model output type %v", output.Type())
	}
	return &TFLiteInfo{
		InputHeight:     input.Dim(1),
		InputWidth:      input.Dim(2),
		InputChannels:   input.Dim(3),
		InputTensorType: input.Type().String(),
		OutputType:      output.Type().String(),
	}, nil
}

// Info returns the tensor layout of the loaded model.
func (c *TFLiteClassifier) Info() TFLiteInfo {
	return *c.info
}

// ClassifyBatch invokes the model once per window and returns the first output value of each.
func (c *TFLiteClassifier) ClassifyBatch(ctx context.Context, batch *tensor.Dense) ([]float64, error) {
	windows, err := ml.UnpackBatch(batch)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interpreter == nil {
		return nil, errors.New("classifier is closed")
	}

	scores := make([]float64, windows.N)
	for i := 0; i < windows.N; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sample, err := prepareWindow(windows.Window(i), windows.Size, c.info.InputHeight, c.info.InputWidth)
		if err != nil {
			return nil, errors.Wrapf(err, "window %d", i)
		}
		score, err := c.invoke(sample)
		if err != nil {
			return nil, errors.Wrapf(err, "window %d", i)
		}
		scores[i] = score
	}
	return ml.ToProbabilities(c.output, scores)
}

func (c *TFLiteClassifier) invoke(sample []uint8) (float64, error) {
	input := c.interpreter.GetInputTensor(0)
	switch input.Type() {
	case tflite.Float32:
		dst := input.Float32s()
		if len(dst) != len(sample) {
			return 0, errors.Errorf("model input holds %d values, window has %d", len(dst), len(sample))
		}
		for j, v := range sample {
			dst[j] = float32(v)
		}
	case tflite.UInt8:
		dst := input.UInt8s()
		if len(dst) != len(sample) {
			return 0, errors.Errorf("model input holds %d values, window has %d", len(dst), len(sample))
		}
		copy(dst, sample)
	default:
		return 0, errors.Errorf("unsupported model input type %v", input.Type())
	}

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return 0, errors.New("invoke failed")
	}

	output := c.interpreter.GetOutputTensor(0)
	var raw interface{}
	switch output.Type() {
	case tflite.Float32:
		raw = output.Float32s()
	case tflite.UInt8:
		raw = output.UInt8s()
	default:
		return 0, errors.Errorf("unsupported model output type %v", output.Type())
	}
	values, err := ml.ConvertToFloat64Slice(raw)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, errors.New("empty model output")
	}
	if output.Type() == tflite.UInt8 {
		// quantized outputs span [0, 255]
		return values[0] / 255, nil
	}
	return values[0], nil
}

// Close deletes the interpreter and the model.
func (c *TFLiteClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.options != nil {
		c.options.Delete()
		c.options = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}
