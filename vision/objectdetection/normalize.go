package objectdetection

import (
	"github.com/golang/geo/r2"

	"go.viam.com/stopsign/utils"
)

// NormalizedPoint is a blob center as a fraction of the heat map's width (X) and height (Y).
type NormalizedPoint struct {
	X float64
	Y float64
}

// Normalize divides a heat map position by the map's width (cols) and height (rows).
func Normalize(center r2.Point, rows, cols int) (NormalizedPoint, error) {
	if rows <= 0 {
		return NormalizedPoint{}, utils.NewShapeMismatchError("heat map rows", 1, rows)
	}
	if cols <= 0 {
		return NormalizedPoint{}, utils.NewShapeMismatchError("heat map columns", 1, cols)
	}
	return NormalizedPoint{X: center.X / float64(cols), Y: center.Y / float64(rows)}, nil
}

// Denormalize maps a normalized point back into heat map space.
func Denormalize(p NormalizedPoint, rows, cols int) r2.Point {
	return r2.Point{X: p.X * float64(cols), Y: p.Y * float64(rows)}
}

// ImagePoint maps a heat map position to source image pixels. The center of heat map cell
// (c, r) maps to the center of window (r, c).
func ImagePoint(center r2.Point, size, stride int) r2.Point {
	half := float64(size) / 2
	return r2.Point{
		X: (center.X-0.5)*float64(stride) + half,
		Y: (center.Y-0.5)*float64(stride) + half,
	}
}
