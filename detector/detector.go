// Package detector runs the stop sign detector as a service: one goroutine acquires images and
// hands the newest to another that runs the pipeline and publishes the result.
package detector

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"go.viam.com/stopsign/logging"
	"go.viam.com/stopsign/publish"
	"go.viam.com/stopsign/rimage/imagesource"
	"go.viam.com/stopsign/utils"
	"go.viam.com/stopsign/vision/objectdetection"
)

// A Source delivers frames into a mailbox until ctx is done.
type Source interface {
	Run(ctx context.Context, out *imagesource.Latest[imagesource.Frame]) error
}

// Stats counts what the service did with the frames it saw.
type Stats struct {
	Processed int64
	Failed    int64
	Dropped   int64
}

// Service connects a Source, a Pipeline and a Publisher.
type Service struct {
	source    Source
	pipeline  *objectdetection.Pipeline
	publisher publish.Publisher
	logger    logging.Logger

	// DebugDir, when set, receives heat map and overlay images for every frame.
	DebugDir string

	frames    *imagesource.Latest[imagesource.Frame]
	processed atomic.Int64
	failed    atomic.Int64
}

// New returns a service. Nothing runs until Run is called.
func New(source Source, pipeline *objectdetection.Pipeline, publisher publish.Publisher, logger logging.Logger) *Service {
	return &Service{
		source:    source,
		pipeline:  pipeline,
		publisher: publisher,
		logger:    logger,
		frames:    imagesource.NewLatest[imagesource.Frame](),
	}
}

// Run acquires and processes frames until ctx is done or the source fails. A frame that fails
// to process is logged and skipped; nothing is published for it.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return errors.Wrap(s.source.Run(ctx, s.frames), "image source failed")
	})
	g.Go(func() error {
		for {
			frame, err := s.frames.Get(ctx)
			if err != nil {
				return nil
			}
			if _, err := s.ProcessOnce(ctx, frame); err != nil {
				s.logger.Warnw("skipping frame", "path", frame.Path, "error", err)
			}
		}
	})
	return g.Wait()
}

// ProcessOnce runs the pipeline on one frame and publishes the detections.
func (s *Service) ProcessOnce(ctx context.Context, frame imagesource.Frame) (*objectdetection.Result, error) {
	runID := uuid.New().String()
	logger := s.logger.Sublogger(runID[:8])
	logger.Debugw("processing frame", "run", runID, "path", frame.Path)

	res, err := s.pipeline.Detect(ctx, frame.Image)
	if err != nil {
		s.failed.Inc()
		return nil, errors.Wrapf(err, "detection failed for %q", frame.Path)
	}
	if s.DebugDir != "" {
		dir, err := utils.SafeJoinDir(s.DebugDir, runID)
		if err == nil {
			err = objectdetection.WriteDebugImages(dir, frame.Image, res, s.pipeline.Config())
		}
		if err != nil {
			logger.Warnw("cannot write debug images", "dir", dir, "error", err)
		}
	}
	if err := s.publisher.Publish(ctx, res.Points); err != nil {
		s.failed.Inc()
		return nil, errors.Wrapf(err, "publish failed for %q", frame.Path)
	}
	s.processed.Inc()
	logger.Infow("published detections", "run", runID, "path", frame.Path,
		"rows", res.Rows, "cols", res.Cols, "count", len(res.Points))
	return res, nil
}

// Stats returns the counters so far.
func (s *Service) Stats() Stats {
	return Stats{
		Processed: s.processed.Load(),
		Failed:    s.failed.Load(),
		Dropped:   s.frames.Dropped(),
	}
}
