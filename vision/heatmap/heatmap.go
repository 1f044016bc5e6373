// Package heatmap turns a row-major list of window scores into a 2-D probability grid and its
// 8-bit heat map.
package heatmap

import (
	"image"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stopsign/utils"
)

// ProbabilityGrid holds one classifier score per window, indexed by window row and column.
// Values are stored as returned by the classifier.
type ProbabilityGrid struct {
	Rows, Cols int
	data       *mat.Dense
}

// Unflatten lays scores out row-major: scores[r*cols+c] lands at (r, c).
func Unflatten(scores []float64, rows, cols int) (*ProbabilityGrid, error) {
	if rows < 0 || cols < 0 || len(scores) != rows*cols {
		return nil, utils.NewShapeMismatchError("probability grid", rows*cols, len(scores))
	}
	g := &ProbabilityGrid{Rows: rows, Cols: cols}
	if rows > 0 && cols > 0 {
		backing := make([]float64, len(scores))
		copy(backing, scores)
		g.data = mat.NewDense(rows, cols, backing)
	}
	return g, nil
}

// At returns the score of window (r, c).
func (g *ProbabilityGrid) At(r, c int) float64 {
	return g.data.At(r, c)
}

// Flatten returns the scores in row-major order.
func (g *ProbabilityGrid) Flatten() []float64 {
	out := make([]float64, 0, g.Rows*g.Cols)
	if g.data == nil {
		return out
	}
	for r := 0; r < g.Rows; r++ {
		out = append(out, g.data.RawRowView(r)...)
	}
	return out
}

// HeatMap is the 8-bit rendering of a probability grid.
type HeatMap struct {
	Rows, Cols int
	Pix        []uint8
}

// ToUint8 maps a probability to floor(p*255), clamped to [0, 255].
func ToUint8(p float64) uint8 {
	v := math.Floor(p * 255)
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// Build renders every cell of the grid with ToUint8.
func Build(g *ProbabilityGrid) *HeatMap {
	hm := &HeatMap{Rows: g.Rows, Cols: g.Cols, Pix: make([]uint8, g.Rows*g.Cols)}
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			hm.Pix[r*g.Cols+c] = ToUint8(g.At(r, c))
		}
	}
	return hm
}

// At returns the value at (r, c).
func (hm *HeatMap) At(r, c int) uint8 {
	return hm.Pix[r*hm.Cols+c]
}

// Empty reports whether the map has no cells.
func (hm *HeatMap) Empty() bool {
	return hm.Rows == 0 || hm.Cols == 0
}

// Gray returns the heat map as a grayscale image sharing no memory with hm.
func (hm *HeatMap) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, hm.Cols, hm.Rows))
	copy(img.Pix, hm.Pix)
	return img
}

// Summary describes the distribution of heat map values.
type Summary struct {
	Max  float64
	Mean float64
	Hot  int
}

// Stats summarizes the values; Hot counts cells above threshold.
func (hm *HeatMap) Stats(threshold uint8) Summary {
	if len(hm.Pix) == 0 {
		return Summary{}
	}
	data := make(stats.Float64Data, len(hm.Pix))
	hot := 0
	for i, v := range hm.Pix {
		data[i] = float64(v)
		if v > threshold {
			hot++
		}
	}
	// errors only occur for empty input
	maxVal, _ := data.Max()
	mean, _ := data.Mean()
	return Summary{Max: maxVal, Mean: mean, Hot: hot}
}
