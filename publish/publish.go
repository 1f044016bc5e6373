// Package publish hands detection results to consumers outside the process.
package publish

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/stopsign/logging"
	"go.viam.com/stopsign/utils"
	"go.viam.com/stopsign/vision/objectdetection"
)

const (
	// DefaultPath is where consumers expect the latest detections.
	DefaultPath = "/tmp/sign_positions.csv"
	// DefaultSeparator separates x and y on each line.
	DefaultSeparator = ","

	// FileMode is the mode of published files; consumers run as other users.
	FileMode os.FileMode = 0o644

	tempSuffix = ".tmp"
)

// A Publisher makes the points detected in one image available to consumers. Each publish
// replaces the previous one.
type Publisher interface {
	Publish(ctx context.Context, points []objectdetection.NormalizedPoint) error
}

// Format renders one "x<sep>y" line per point.
func Format(points []objectdetection.NormalizedPoint, sep string) []byte {
	if len(points) == 0 {
		return nil
	}
	lines := lo.Map(points, func(p objectdetection.NormalizedPoint, _ int) string {
		return strconv.FormatFloat(p.X, 'g', -1, 64) + sep + strconv.FormatFloat(p.Y, 'g', -1, 64)
	})
	return []byte(strings.Join(lines, "\n") + "\n")
}

// FilePublisher writes points to a file that readers never see half written. Each publish goes
// to a temporary file in the same directory, which is synced and then renamed over Path.
type FilePublisher struct {
	Path      string
	Separator string
	Logger    logging.Logger

	mu sync.Mutex
	// beforeRename runs after the temporary file is complete; an error aborts the publish.
	beforeRename func(tmpPath string) error
}

var _ Publisher = (*FilePublisher)(nil)

// NewFilePublisher returns a publisher writing comma separated points to path.
func NewFilePublisher(path string, logger logging.Logger) *FilePublisher {
	return &FilePublisher{Path: path, Separator: DefaultSeparator, Logger: logger}
}

// Publish atomically replaces the file at Path. On failure the previous file is left untouched
// and the temporary file is removed.
func (p *FilePublisher) Publish(ctx context.Context, points []objectdetection.NormalizedPoint) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	sep := p.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	dir, base := filepath.Split(p.Path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*"+tempSuffix)
	if err != nil {
		return errors.Wrapf(err, "cannot create temporary file for %q", p.Path)
	}
	tmpPath := tmp.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			err = multierr.Combine(err, tmp.Close())
		}
		utils.RemoveFileNoError(tmpPath)
	}()

	if err := tmp.Chmod(FileMode); err != nil {
		return errors.Wrapf(err, "cannot set mode of %q", tmpPath)
	}
	if _, err := tmp.Write(Format(points, sep)); err != nil {
		return errors.Wrapf(err, "cannot write %q", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrapf(err, "cannot sync %q", tmpPath)
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "cannot close %q", tmpPath)
	}
	if p.beforeRename != nil {
		if err := p.beforeRename(tmpPath); err != nil {
			return err
		}
	}
	if err := os.Rename(tmpPath, p.Path); err != nil {
		return errors.Wrapf(err, "cannot publish %q", p.Path)
	}
	if p.Logger != nil {
		p.Logger.Debugw("published detections", "path", p.Path, "count", len(points))
	}
	return nil
}

// WriterPublisher writes each publish to W, one line per point.
type WriterPublisher struct {
	W         io.Writer
	Separator string
}

// Publish writes the points. An empty list writes nothing.
func (p *WriterPublisher) Publish(ctx context.Context, points []objectdetection.NormalizedPoint) error {
	sep := p.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	_, err := p.W.Write(Format(points, sep))
	return err
}

// ReadPoints parses a file written by FilePublisher. A missing file is an error; an empty
// file holds no points.
func ReadPoints(path, sep string) ([]objectdetection.NormalizedPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePoints(data, sep)
}

// ParsePoints parses "x<sep>y" lines. Blank lines are ignored. A whitespace separator accepts
// any run of spaces or tabs between the values.
func ParsePoints(data []byte, sep string) ([]objectdetection.NormalizedPoint, error) {
	if sep == "" {
		sep = DefaultSeparator
	}
	points := []objectdetection.NormalizedPoint{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var fields []string
		if strings.TrimSpace(sep) == "" {
			fields = strings.Fields(line)
		} else {
			fields = strings.Split(line, sep)
		}
		if len(fields) != 2 {
			return nil, errors.Errorf("line %d: expected 2 fields but got %d", lineNum, len(fields))
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
		points = append(points, objectdetection.NormalizedPoint{X: x, Y: y})
	}
	return points, scanner.Err()
}
