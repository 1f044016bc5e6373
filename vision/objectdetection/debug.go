package objectdetection

import (
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"go.viam.com/stopsign/rimage"
)

// Debug image file names written by WriteDebugImages.
const (
	HeatMapFileName = "heatmap.png"
	OverlayFileName = "overlay.png"
)

// HeatMapImage renders the heat map scaled up by the stride so that it lines up with the source
// image. It returns nil for an empty heat map.
func HeatMapImage(res *Result, cfg Config) image.Image {
	if res.HeatMap == nil || res.HeatMap.Empty() {
		return nil
	}
	gray := res.HeatMap.Gray()
	return imaging.Resize(gray, res.Cols*cfg.Stride, res.Rows*cfg.Stride, imaging.NearestNeighbor)
}

// Overlay draws a circle and a crosshair on the source image for every blob.
func Overlay(img image.Image, res *Result, cfg Config) image.Image {
	dc := gg.NewContextForImage(img)
	for i, b := range res.Blobs {
		center := ImagePoint(b.Center, cfg.WindowSize, cfg.Stride)
		radius := math.Max(b.Radius*float64(cfg.Stride), float64(cfg.WindowSize)/2)
		rimage.DrawCircleEmpty(dc, center.X, center.Y, radius, rimage.Red, 2)
		rimage.DrawCrosshair(dc, center.X, center.Y, 3, rimage.Red, 1)
		label := fmt.Sprintf("%d: %.2f,%.2f", i, res.Points[i].X, res.Points[i].Y)
		rimage.DrawString(dc, label, image.Pt(int(center.X+radius), int(center.Y-radius)), rimage.Green, 10)
	}
	return dc.Image()
}

// WriteDebugImages writes the heat map and the annotated source image into dir.
func WriteDebugImages(dir string, img image.Image, res *Result, cfg Config) error {
	if hm := HeatMapImage(res, cfg); hm != nil {
		if err := rimage.WriteImageToFile(filepath.Join(dir, HeatMapFileName), hm); err != nil {
			return errors.Wrap(err, "cannot write heat map")
		}
	}
	if err := rimage.WriteImageToFile(filepath.Join(dir, OverlayFileName), Overlay(img, res, cfg)); err != nil {
		return errors.Wrap(err, "cannot write overlay")
	}
	return nil
}
