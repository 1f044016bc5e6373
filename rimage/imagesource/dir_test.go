package imagesource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/stopsign/logging"
	"go.viam.com/stopsign/rimage"
)

func writeFrame(t *testing.T, dir, name string, width int, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	test.That(t, rimage.WriteImageToFile(path, rimage.NewRGB(width, 4)), test.ShouldBeNil)
	test.That(t, os.Chtimes(path, mod, mod), test.ShouldBeNil)
	return path
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	test.That(t, err, test.ShouldBeNil)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestPollPicksNewestAndRemovesAll(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeFrame(t, dir, "sim1.png", 5, base)
	newest := writeFrame(t, dir, "sim2.png", 7, base.Add(time.Second))
	writeFrame(t, dir, "sim3.png", 9, base.Add(-time.Second))
	writeFrame(t, dir, "other.png", 11, base.Add(time.Minute))

	src := NewDirSource(dir, logging.NewTestLogger(t))
	frame, err := src.Poll()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame, test.ShouldNotBeNil)
	test.That(t, frame.Path, test.ShouldEqual, newest)
	test.That(t, frame.Image.Width, test.ShouldEqual, 7)
	test.That(t, names(t, dir), test.ShouldResemble, []string{"other.png"})

	frame, err = src.Poll()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame, test.ShouldBeNil)
}

func TestPollTiesByName(t *testing.T) {
	dir := t.TempDir()
	mod := time.Now().Add(-time.Hour)
	writeFrame(t, dir, "sim_a.png", 5, mod)
	writeFrame(t, dir, "sim_b.png", 6, mod)

	src := NewDirSource(dir, logging.NewTestLogger(t))
	frame, err := src.Poll()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filepath.Base(frame.Path), test.ShouldEqual, "sim_b.png")
}

func TestPollKeepStale(t *testing.T) {
	dir := t.TempDir()
	mod := time.Now().Add(-time.Hour)
	writeFrame(t, dir, "sim1.png", 5, mod)

	src := NewDirSource(dir, logging.NewTestLogger(t))
	src.RemoveStale = false
	frame, err := src.Poll()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame, test.ShouldNotBeNil)

	// the same file is not delivered twice
	frame, err = src.Poll()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame, test.ShouldBeNil)

	writeFrame(t, dir, "sim1.png", 6, mod.Add(time.Second))
	frame, err = src.Poll()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Image.Width, test.ShouldEqual, 6)
	test.That(t, names(t, dir), test.ShouldResemble, []string{"sim1.png"})
}

func TestPollRetriesPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim9.png")
	test.That(t, os.WriteFile(path, []byte("\x89PNG\r\n"), 0o644), test.ShouldBeNil)
	writeFrame(t, dir, "sim1.png", 5, time.Now().Add(-time.Hour))

	src := NewDirSource(dir, logging.NewTestLogger(t))
	frame, err := src.Poll()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame, test.ShouldBeNil)
	test.That(t, names(t, dir), test.ShouldResemble, []string{"sim1.png", "sim9.png"})

	writeFrame(t, dir, "sim9.png", 8, time.Now())
	frame, err = src.Poll()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Image.Width, test.ShouldEqual, 8)
	test.That(t, names(t, dir), test.ShouldBeEmpty)
}

func TestRemoveAll(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "sim1.png", 5, time.Now())
	writeFrame(t, dir, "sim2.png", 5, time.Now())
	writeFrame(t, dir, "keep.png", 5, time.Now())

	src := NewDirSource(dir, logging.NewTestLogger(t))
	test.That(t, src.RemoveAll(), test.ShouldBeNil)
	test.That(t, names(t, dir), test.ShouldResemble, []string{"keep.png"})

	src.Pattern = "["
	test.That(t, src.RemoveAll(), test.ShouldNotBeNil)
}

func TestRunDeliversNewestFrame(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	src := NewDirSource(dir, logging.NewTestLogger(t))
	src.Clock = mock

	out := NewLatest[Frame]()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, out)
	}()

	writeFrame(t, dir, "sim1.png", 5, time.Now())

	var frame Frame
	received := false
	for i := 0; i < 200 && !received; i++ {
		mock.Add(src.PollInterval)
		select {
		case frame = <-out.C():
			received = true
		case <-time.After(10 * time.Millisecond):
		}
	}
	test.That(t, received, test.ShouldBeTrue)
	test.That(t, filepath.Base(frame.Path), test.ShouldEqual, "sim1.png")

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
}
