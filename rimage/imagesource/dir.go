package imagesource

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/stopsign/logging"
	"go.viam.com/stopsign/rimage"
)

// Defaults matching the simulator that drops frames into /tmp.
const (
	DefaultDir          = "/tmp"
	DefaultPattern      = "sim*.png"
	DefaultPollInterval = 50 * time.Millisecond
)

// Frame is one decoded image picked up from disk.
type Frame struct {
	Path    string
	ModTime time.Time
	Image   *rimage.RGB
}

// DirSource watches a directory for images matching a glob pattern and delivers only the newest
// one each time it looks. With RemoveStale set every match is deleted once the newest has been
// read, so the producer's files never pile up.
type DirSource struct {
	Dir          string
	Pattern      string
	PollInterval time.Duration
	RemoveStale  bool
	Clock        clock.Clock
	Logger       logging.Logger

	lastPath string
	lastMod  time.Time
}

// NewDirSource returns a source with the default pattern and poll interval.
func NewDirSource(dir string, logger logging.Logger) *DirSource {
	return &DirSource{
		Dir:          dir,
		Pattern:      DefaultPattern,
		PollInterval: DefaultPollInterval,
		RemoveStale:  true,
		Clock:        clock.New(),
		Logger:       logger,
	}
}

type match struct {
	path    string
	modTime time.Time
}

// matches lists the regular files matching the pattern, newest first. Files with the same
// modification time are ordered by name, the greatest name first.
func (s *DirSource) matches() ([]match, error) {
	paths, err := filepath.Glob(filepath.Join(s.Dir, s.Pattern))
	if err != nil {
		return nil, errors.Wrapf(err, "bad pattern %q", s.Pattern)
	}
	out := make([]match, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			// removed between glob and stat
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		out = append(out, match{path: p, modTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].modTime.Equal(out[j].modTime) {
			return out[i].modTime.After(out[j].modTime)
		}
		return out[i].path > out[j].path
	})
	return out, nil
}

// RemoveAll deletes every file matching the pattern.
func (s *DirSource) RemoveAll() error {
	found, err := s.matches()
	if err != nil {
		return err
	}
	return removeMatches(found)
}

func removeMatches(found []match) error {
	var err error
	for _, m := range found {
		if rmErr := os.Remove(m.path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Combine(err, rmErr)
		}
	}
	return err
}

// Poll looks once and returns the newest image, or nil when there is nothing new. A newest file
// that cannot be decoded yet, typically because it is still being written, is left in place for
// the next poll.
func (s *DirSource) Poll() (*Frame, error) {
	found, err := s.matches()
	if err != nil || len(found) == 0 {
		return nil, err
	}
	newest := found[0]
	if !s.RemoveStale && newest.path == s.lastPath && newest.modTime.Equal(s.lastMod) {
		return nil, nil
	}
	img, err := rimage.ReadRGBFromFile(newest.path)
	if err != nil {
		s.Logger.Debugw("cannot decode image yet", "path", newest.path, "error", err)
		return nil, nil
	}
	s.lastPath, s.lastMod = newest.path, newest.modTime
	if s.RemoveStale {
		if err := removeMatches(found); err != nil {
			s.Logger.Warnw("failed to remove consumed images", "error", err)
		}
	}
	return &Frame{Path: newest.path, ModTime: newest.modTime, Image: img}, nil
}

// Run polls on every tick and on every file event in Dir until ctx is done, putting new frames
// into out. If the directory cannot be watched it falls back to polling alone.
func (s *DirSource) Run(ctx context.Context, out *Latest[Frame]) error {
	clk := s.Clock
	if clk == nil {
		clk = clock.New()
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer func() {
			if err := watcher.Close(); err != nil {
				s.Logger.Debugw("failed to close watcher", "error", err)
			}
		}()
		err = watcher.Add(s.Dir)
	}
	if err != nil {
		s.Logger.Warnw("cannot watch directory, polling only", "dir", s.Dir, "error", err)
	} else {
		events, watchErrors = watcher.Events, watcher.Errors
	}

	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	poll := func() {
		frame, err := s.Poll()
		if err != nil {
			s.Logger.Warnw("failed to list images", "dir", s.Dir, "error", err)
			return
		}
		if frame == nil {
			return
		}
		if out.Put(*frame) {
			s.Logger.Debugw("replaced unprocessed frame", "path", frame.Path)
		}
	}

	poll()
	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			poll()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ok, _ := filepath.Match(s.Pattern, filepath.Base(ev.Name)); ok {
				poll()
			}
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			s.Logger.Warnw("directory watch error", "dir", s.Dir, "error", err)
		}
	}
}
