package objectdetection

import (
	"context"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/stopsign/logging"
	"go.viam.com/stopsign/ml/fake"
	"go.viam.com/stopsign/rimage"
)

func TestWriteDebugImages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stride = 16
	cfg.Blob.MinArea = 1
	p, err := NewPipeline(cfg, fake.NewFixed([]float64{0, 0, 1, 0}), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	img := rimage.NewRGB(32, 32)
	res, err := p.Detect(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Blobs, test.ShouldHaveLength, 1)

	dir := filepath.Join(t.TempDir(), "debug")
	test.That(t, WriteDebugImages(dir, img, res, cfg), test.ShouldBeNil)

	hm, err := rimage.ReadImageFromFile(filepath.Join(dir, HeatMapFileName))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hm.Bounds().Dx(), test.ShouldEqual, 32)
	test.That(t, hm.Bounds().Dy(), test.ShouldEqual, 32)

	overlay, err := rimage.ReadRGBFromFile(filepath.Join(dir, OverlayFileName))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, overlay.Width, test.ShouldEqual, 32)
	// the crosshair sits on the center of window (1, 0)
	r, _, _ := overlay.RGBAt(8, 24)
	test.That(t, r, test.ShouldBeGreaterThan, 0)

	empty := &Result{HeatMap: nil}
	test.That(t, HeatMapImage(empty, cfg), test.ShouldBeNil)
}
