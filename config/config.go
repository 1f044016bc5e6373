// Package config defines the detector's configuration file.
package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go.viam.com/stopsign/logging"
	"go.viam.com/stopsign/ml"
	"go.viam.com/stopsign/ml/colorscore"
	"go.viam.com/stopsign/ml/inference"
	"go.viam.com/stopsign/publish"
	"go.viam.com/stopsign/rimage/imagesource"
	"go.viam.com/stopsign/utils"
	"go.viam.com/stopsign/vision/blob"
	"go.viam.com/stopsign/vision/objectdetection"
)

// Classifier types.
const (
	ClassifierTFLite = "tflite"
	ClassifierColor  = "color"
)

// Config is the whole detector configuration.
type Config struct {
	WindowSize int `json:"window_size" yaml:"window_size"`
	Stride     int `json:"stride" yaml:"stride"`
	// ImageWidth and ImageHeight optionally declare the expected input size so that a window
	// that can never fit is rejected up front.
	ImageWidth  int `json:"image_width,omitempty" yaml:"image_width,omitempty"`
	ImageHeight int `json:"image_height,omitempty" yaml:"image_height,omitempty"`

	Blob       blob.Params      `json:"blob" yaml:"blob"`
	Filter     FilterConfig     `json:"filter" yaml:"filter"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier"`
	Watch      WatchConfig      `json:"watch" yaml:"watch"`
	Publish    PublishConfig    `json:"publish" yaml:"publish"`
	DebugDir   string           `json:"debug_dir,omitempty" yaml:"debug_dir,omitempty"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// ClassifierConfig selects and configures the window classifier.
type ClassifierConfig struct {
	Type        string  `json:"type" yaml:"type"`
	ModelPath   string  `json:"model_path,omitempty" yaml:"model_path,omitempty"`
	NumThreads  int     `json:"num_threads,omitempty" yaml:"num_threads,omitempty"`
	RedFraction float64 `json:"red_fraction,omitempty" yaml:"red_fraction,omitempty"`
	// Output is "probability" or "logits" and applies to every score of a tflite model.
	Output ml.OutputKind `json:"output,omitempty" yaml:"output,omitempty"`
}

// FilterConfig prunes the extracted blobs before they are published. Zero disables a filter.
type FilterConfig struct {
	MinArea          float64 `json:"min_area,omitempty" yaml:"min_area,omitempty"`
	MinRepeatability int     `json:"min_repeatability,omitempty" yaml:"min_repeatability,omitempty"`
	MaxDetections    int     `json:"max_detections,omitempty" yaml:"max_detections,omitempty"`
}

// WatchConfig describes where images come from.
type WatchConfig struct {
	Dir          string   `json:"dir" yaml:"dir"`
	Pattern      string   `json:"pattern" yaml:"pattern"`
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval"`
	RemoveStale  bool     `json:"remove_stale" yaml:"remove_stale"`
}

// PublishConfig describes where detections go.
type PublishConfig struct {
	Path      string `json:"path" yaml:"path"`
	Separator string `json:"separator" yaml:"separator"`
}

// LogConfig configures logging. File enables a rotating log file next to stdout.
type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
}

// Default returns the configuration of the deployed detector.
func Default() *Config {
	pipeline := objectdetection.DefaultConfig()
	return &Config{
		WindowSize: pipeline.WindowSize,
		Stride:     pipeline.Stride,
		Blob:       pipeline.Blob,
		Classifier: ClassifierConfig{
			Type:        ClassifierTFLite,
			RedFraction: colorscore.DefaultConfig().FullScaleFraction,
			Output:      ml.OutputProbability,
		},
		Watch: WatchConfig{
			Dir:          imagesource.DefaultDir,
			Pattern:      imagesource.DefaultPattern,
			PollInterval: Duration{imagesource.DefaultPollInterval},
			RemoveStale:  true,
		},
		Publish: PublishConfig{
			Path:      publish.DefaultPath,
			Separator: publish.DefaultSeparator,
		},
		Log: LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3},
	}
}

// Read loads a configuration file on top of the defaults. Environment variables in the file are
// expanded. Files ending in .yaml or .yml are YAML; everything else is JSON. The result is not
// validated, so callers may apply overrides first.
func Read(path string) (*Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(buf)
	default:
		return FromJSON(buf)
	}
}

// FromJSON parses a JSON configuration on top of the defaults.
func FromJSON(data []byte) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	return cfg, nil
}

// FromYAML parses a YAML configuration on top of the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Pipeline().Validate(); err != nil {
		return err
	}
	if c.ImageWidth < 0 || c.ImageHeight < 0 {
		return utils.NewConfigurationError("image_width", "expected image size must not be negative")
	}
	if (c.ImageWidth > 0 && c.WindowSize > c.ImageWidth) || (c.ImageHeight > 0 && c.WindowSize > c.ImageHeight) {
		return utils.NewConfigurationError("window_size",
			"window of %d pixels does not fit in a %dx%d image", c.WindowSize, c.ImageWidth, c.ImageHeight)
	}
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	if err := c.Classifier.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	if err := c.Publish.Validate(); err != nil {
		return err
	}
	if _, err := logging.LevelFromString(c.Log.Level); err != nil {
		return utils.NewConfigurationError("log.level", "%v", err)
	}
	return nil
}

// Validate checks the classifier settings.
func (c ClassifierConfig) Validate() error {
	switch c.Type {
	case ClassifierTFLite:
		if c.ModelPath == "" {
			return utils.NewConfigurationError("classifier.model_path", "required for classifier type %q", c.Type)
		}
		if c.NumThreads < 0 {
			return utils.NewConfigurationError("classifier.num_threads", "must not be negative, got %d", c.NumThreads)
		}
		if err := c.Output.Validate(); err != nil {
			return utils.NewConfigurationError("classifier.output", "%v", err)
		}
	case ClassifierColor:
		return c.ColorConfig().Validate()
	default:
		return utils.NewConfigurationError("classifier.type", "unknown classifier %q, expected %q or %q",
			c.Type, ClassifierTFLite, ClassifierColor)
	}
	return nil
}

// Validate rejects negative limits.
func (f FilterConfig) Validate() error {
	if f.MinArea < 0 {
		return utils.NewConfigurationError("filter.min_area", "must not be negative, got %v", f.MinArea)
	}
	if f.MinRepeatability < 0 {
		return utils.NewConfigurationError("filter.min_repeatability", "must not be negative, got %d", f.MinRepeatability)
	}
	if f.MaxDetections < 0 {
		return utils.NewConfigurationError("filter.max_detections", "must not be negative, got %d", f.MaxDetections)
	}
	return nil
}

// Postprocessors returns the enabled filters: area, then repeatability, then the count cap.
func (f FilterConfig) Postprocessors() []objectdetection.Postprocessor {
	var out []objectdetection.Postprocessor
	if f.MinArea > 0 {
		out = append(out, objectdetection.NewAreaFilter(f.MinArea))
	}
	if f.MinRepeatability > 0 {
		out = append(out, objectdetection.NewRepeatabilityFilter(f.MinRepeatability))
	}
	if f.MaxDetections > 0 {
		out = append(out, objectdetection.NewMaxCountFilter(f.MaxDetections))
	}
	return out
}

// Validate checks the acquisition settings.
func (w WatchConfig) Validate() error {
	if w.Dir == "" {
		return utils.NewConfigurationError("watch.dir", "required")
	}
	if w.Pattern == "" {
		return utils.NewConfigurationError("watch.pattern", "required")
	}
	if _, err := filepath.Match(w.Pattern, ""); err != nil {
		return utils.NewConfigurationError("watch.pattern", "%v", err)
	}
	if w.PollInterval.Duration <= 0 {
		return utils.NewConfigurationError("watch.poll_interval", "must be positive, got %v", w.PollInterval)
	}
	return nil
}

// Validate checks the output settings.
func (p PublishConfig) Validate() error {
	if p.Path == "" {
		return utils.NewConfigurationError("publish.path", "required")
	}
	if p.Separator == "" || strings.ContainsAny(p.Separator, "\r\n") {
		return utils.NewConfigurationError("publish.separator", "must be a non-empty single line, got %q", p.Separator)
	}
	return nil
}

// BlobParams returns the blob extraction settings.
func (c *Config) BlobParams() blob.Params {
	return c.Blob
}

// Pipeline returns the detection pipeline settings.
func (c *Config) Pipeline() objectdetection.Config {
	return objectdetection.Config{
		WindowSize:     c.WindowSize,
		Stride:         c.Stride,
		Blob:           c.BlobParams(),
		Postprocessors: c.Filter.Postprocessors(),
	}
}

// ColorConfig returns the color classifier thresholds.
func (c ClassifierConfig) ColorConfig() colorscore.Config {
	cfg := colorscore.DefaultConfig()
	if c.RedFraction != 0 {
		cfg.FullScaleFraction = c.RedFraction
	}
	return cfg
}

// InferenceConfig returns the model classifier settings.
func (c ClassifierConfig) InferenceConfig() inference.Config {
	return inference.Config{ModelPath: c.ModelPath, NumThreads: c.NumThreads, Output: c.Output}
}

// ExpandPaths replaces a leading ~ in every path setting with the user's home directory.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.Classifier.ModelPath, &c.Watch.Dir, &c.Publish.Path, &c.DebugDir, &c.Log.File} {
		expanded, err := utils.ExpandHomeDir(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}
