// Package cli contains the stopsign command line application.
package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/stopsign/config"
	"go.viam.com/stopsign/detector"
	"go.viam.com/stopsign/logging"
	"go.viam.com/stopsign/ml"
	"go.viam.com/stopsign/publish"
	"go.viam.com/stopsign/rimage"
	"go.viam.com/stopsign/rimage/imagesource"
	"go.viam.com/stopsign/vision/objectdetection"
)

const (
	configFlag  = "config"
	debugFlag   = "debug"
	modelFlag   = "model"
	publishFlag = "publish"
	outFlag     = "out"
	clearFlag   = "clear"

	metadataConfig = "config"
	metadataLogger = "logger"
	metadataCloser = "closer"
)

// NewApp returns the stopsign application writing command output to out and logs to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app := &cli.App{
		Name:            "stopsign",
		Usage:           "find stop signs in simulator frames",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  modelFlag,
				Usage: "use the TFLite model at `PATH` as the window classifier",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "watch for frames and publish stop sign positions until interrupted",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  clearFlag,
						Usage: "delete frames left over from an earlier run before starting",
					},
				},
				Action: RunAction,
			},
			{
				Name:      "detect",
				Usage:     "detect stop signs in one image and print their positions",
				ArgsUsage: "<image>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  publishFlag,
						Usage: "also publish the positions to `FILE`",
					},
				},
				Action: DetectAction,
			},
			{
				Name:      "heatmap",
				Usage:     "write the heat map and an annotated copy of one image",
				ArgsUsage: "<image>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     outFlag,
						Usage:    "write images into `DIR`",
						Required: true,
					},
				},
				Action: HeatMapAction,
			},
			{
				Name:   "version",
				Usage:  "print version info for this program",
				Action: VersionAction,
			},
		},
	}
	app.Writer = out
	app.ErrWriter = errOut
	app.Metadata = map[string]interface{}{}
	return app
}

// setup loads the configuration and builds the logger shared by every command.
func setup(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String(configFlag); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return err
		}
	}
	if model := c.String(modelFlag); model != "" {
		cfg.Classifier.Type = config.ClassifierTFLite
		cfg.Classifier.ModelPath = model
	}
	if err := cfg.ExpandPaths(); err != nil {
		return err
	}

	level, err := logging.LevelFromString(cfg.Log.Level)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	if c.Bool(debugFlag) {
		level = logging.DEBUG
	}
	logger := logging.New("stopsign", level, logging.NewWriterAppender(c.App.ErrWriter))
	if cfg.Log.File != "" {
		appender, closer := logging.NewFileAppender(logging.FileAppenderConfig{
			Filename:   cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		logger.AddAppender(appender)
		c.App.Metadata[metadataCloser] = closer
	}
	logging.ReplaceGlobal(logger)

	c.App.Metadata[metadataConfig] = cfg
	c.App.Metadata[metadataLogger] = logger
	return nil
}

func teardown(c *cli.Context) error {
	var err error
	if logger, ok := c.App.Metadata[metadataLogger].(logging.Logger); ok {
		// stdout and stderr cannot be synced on every platform
		//nolint:errcheck
		logger.Sync()
	}
	if closer, ok := c.App.Metadata[metadataCloser].(io.Closer); ok {
		err = closer.Close()
	}
	return err
}

func configFrom(c *cli.Context) (*config.Config, logging.Logger) {
	cfg, ok := c.App.Metadata[metadataConfig].(*config.Config)
	if !ok {
		cfg = config.Default()
	}
	logger, ok := c.App.Metadata[metadataLogger].(logging.Logger)
	if !ok {
		logger = logging.Global()
	}
	return cfg, logger
}

// RunAction runs the detector service until SIGINT or SIGTERM.
func RunAction(c *cli.Context) (err error) {
	cfg, logger := configFrom(c)
	if c.Bool(clearFlag) {
		stale := imagesource.NewDirSource(cfg.Watch.Dir, logger)
		stale.Pattern = cfg.Watch.Pattern
		if err := stale.RemoveAll(); err != nil {
			return errors.Wrap(err, "cannot clear stale frames")
		}
	}
	svc, classifier, err := detector.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, ml.Close(classifier))
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infow("watching for frames", "dir", cfg.Watch.Dir, "pattern", cfg.Watch.Pattern, "publish", cfg.Publish.Path)
	err = svc.Run(ctx)
	stats := svc.Stats()
	logger.Infow("stopped", "processed", stats.Processed, "failed", stats.Failed, "dropped", stats.Dropped)
	return err
}

// detectFile runs the configured pipeline on the image named by the first argument.
func detectFile(c *cli.Context) (*objectdetection.Pipeline, *rimage.RGB, *objectdetection.Result, error) {
	if c.NArg() != 1 {
		return nil, nil, nil, errors.Errorf("expected exactly one image argument, got %d", c.NArg())
	}
	cfg, logger := configFrom(c)
	pipeline, classifier, err := detector.NewPipeline(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	img, err := rimage.ReadRGBFromFile(c.Args().First())
	if err != nil {
		return nil, nil, nil, multierr.Combine(err, ml.Close(classifier))
	}
	res, err := pipeline.Detect(c.Context, img)
	if closeErr := ml.Close(classifier); closeErr != nil {
		logger.Warnw("cannot close classifier", "error", closeErr)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return pipeline, img, res, nil
}

// DetectAction prints the detections in one image.
func DetectAction(c *cli.Context) error {
	_, _, res, err := detectFile(c)
	if err != nil {
		return err
	}
	cfg, logger := configFrom(c)
	out := &publish.WriterPublisher{W: c.App.Writer, Separator: cfg.Publish.Separator}
	if err := out.Publish(c.Context, res.Points); err != nil {
		return err
	}
	if path := c.String(publishFlag); path != "" {
		publisher := publish.NewFilePublisher(path, logger)
		publisher.Separator = cfg.Publish.Separator
		return publisher.Publish(c.Context, res.Points)
	}
	return nil
}

// HeatMapAction writes the debug images for one image.
func HeatMapAction(c *cli.Context) error {
	pipeline, img, res, err := detectFile(c)
	if err != nil {
		return err
	}
	dir := c.String(outFlag)
	if err := objectdetection.WriteDebugImages(dir, img, res, pipeline.Config()); err != nil {
		return err
	}
	if !res.HeatMap.Empty() {
		fmt.Fprintln(c.App.Writer, filepath.Join(dir, objectdetection.HeatMapFileName))
	}
	fmt.Fprintln(c.App.Writer, filepath.Join(dir, objectdetection.OverlayFileName))
	return nil
}

// VersionAction prints the module version and the vcs revision it was built from.
func VersionAction(c *cli.Context) error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return errors.New("error reading build info")
	}
	if c.Bool(debugFlag) {
		fmt.Fprintf(c.App.Writer, "%s", info.String())
	}
	settings := make(map[string]string, len(info.Settings))
	for _, setting := range info.Settings {
		settings[setting.Key] = setting.Value
	}
	version := "?"
	if rev, ok := settings["vcs.revision"]; ok {
		version = rev
		if len(version) > 8 {
			version = version[:8]
		}
		if settings["vcs.modified"] == "true" {
			version += "+"
		}
	}
	fmt.Fprintf(c.App.Writer, "version %s %s\n", version, info.Main.Version)
	return nil
}
