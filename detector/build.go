package detector

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/stopsign/config"
	"go.viam.com/stopsign/logging"
	"go.viam.com/stopsign/ml"
	"go.viam.com/stopsign/ml/colorscore"
	"go.viam.com/stopsign/ml/inference"
	"go.viam.com/stopsign/publish"
	"go.viam.com/stopsign/rimage/imagesource"
	"go.viam.com/stopsign/vision/objectdetection"
)

// NewClassifier builds the classifier selected by cfg. Close it with ml.Close.
func NewClassifier(cfg config.ClassifierConfig, logger logging.Logger) (ml.BatchClassifier, error) {
	switch cfg.Type {
	case config.ClassifierTFLite:
		c, err := inference.NewTFLiteClassifier(cfg.InferenceConfig(), logger.Sublogger("tflite"))
		if err != nil {
			return nil, err
		}
		info := c.Info()
		logger.Infow("loaded tflite model", "path", cfg.ModelPath, "output", cfg.Output,
			"input", []int{info.InputHeight, info.InputWidth, info.InputChannels},
			"input_type", info.InputTensorType, "output_type", info.OutputType)
		return c, nil
	case config.ClassifierColor:
		c, err := colorscore.NewClassifier(cfg.ColorConfig())
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.Errorf("unknown classifier type %q", cfg.Type)
	}
}

// NewPipeline validates cfg and builds its classifier and pipeline.
func NewPipeline(cfg *config.Config, logger logging.Logger) (*objectdetection.Pipeline, ml.BatchClassifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	classifier, err := NewClassifier(cfg.Classifier, logger)
	if err != nil {
		return nil, nil, err
	}
	pipeline, err := objectdetection.NewPipeline(cfg.Pipeline(), classifier, logger.Sublogger("pipeline"))
	if err != nil {
		return nil, nil, multierr.Combine(err, ml.Close(classifier))
	}
	return pipeline, classifier, nil
}

// NewFromConfig wires a whole service from cfg. The returned classifier must be closed once the
// service has stopped.
func NewFromConfig(cfg *config.Config, logger logging.Logger) (*Service, ml.BatchClassifier, error) {
	pipeline, classifier, err := NewPipeline(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	source := imagesource.NewDirSource(cfg.Watch.Dir, logger.Sublogger("source"))
	source.Pattern = cfg.Watch.Pattern
	source.PollInterval = cfg.Watch.PollInterval.Duration
	source.RemoveStale = cfg.Watch.RemoveStale

	publisher := publish.NewFilePublisher(cfg.Publish.Path, logger.Sublogger("publish"))
	publisher.Separator = cfg.Publish.Separator

	svc := New(source, pipeline, publisher, logger)
	svc.DebugDir = cfg.DebugDir
	return svc, classifier, nil
}
