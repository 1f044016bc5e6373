// Package window cuts an image into a regular grid of square, possibly overlapping windows.
//
// Windows are numbered row-major: every column of grid row 0, then every column of grid row 1,
// and so on. Batches handed to a classifier and the score vectors coming back both use this
// order, which is what lets a flat score vector be reshaped straight into the grid.
package window

import (
	"image"

	"gorgonia.org/tensor"

	"go.viam.com/stopsign/rimage"
	"go.viam.com/stopsign/utils"
)

// Grid describes the windows of one image. Window (r, c) covers
// image[r*Stride : r*Stride+Size, c*Stride : c*Stride+Size].
type Grid struct {
	Rows   int
	Cols   int
	Size   int
	Stride int

	img *rimage.RGB
}

// GridDims returns the number of window rows and columns that fit in a height x width image.
// Windows that would run past the edge are dropped, so an image smaller than one window has
// zero rows and columns.
func GridDims(height, width, size, stride int) (rows, cols int) {
	if size <= 0 || stride <= 0 || height < size || width < size {
		return 0, 0
	}
	return (height-size)/stride + 1, (width-size)/stride + 1
}

// NewGrid lays a grid over img. The image is shared, not copied, and must not be modified while
// the grid is in use. An image smaller than the window gives an empty grid rather than an error.
func NewGrid(img *rimage.RGB, size, stride int) (*Grid, error) {
	if size <= 0 {
		return nil, utils.NewConfigurationError("window_size", "must be positive, got %d", size)
	}
	if stride <= 0 {
		return nil, utils.NewConfigurationError("stride", "must be positive, got %d", stride)
	}
	rows, cols := GridDims(img.Height, img.Width, size, stride)
	return &Grid{Rows: rows, Cols: cols, Size: size, Stride: stride, img: img}, nil
}

// Len is the number of windows in the grid.
func (g *Grid) Len() int {
	return g.Rows * g.Cols
}

// Empty reports whether the grid has no windows.
func (g *Grid) Empty() bool {
	return g.Len() == 0
}

// Index returns the row-major position of window (r, c).
func (g *Grid) Index(r, c int) int {
	return r*g.Cols + c
}

// Cell is the inverse of Index.
func (g *Grid) Cell(i int) (r, c int) {
	return i / g.Cols, i % g.Cols
}

// Origin returns the top left pixel of window (r, c).
func (g *Grid) Origin(r, c int) image.Point {
	return image.Point{X: c * g.Stride, Y: r * g.Stride}
}

// WindowLen is the number of samples in one window.
func (g *Grid) WindowLen() int {
	return g.Size * g.Size * rimage.Channels
}

// Window returns a contiguous Size x Size x 3 copy of window (r, c).
func (g *Grid) Window(r, c int) []uint8 {
	out := make([]uint8, g.WindowLen())
	g.copyWindow(out, r, c)
	return out
}

func (g *Grid) copyWindow(dst []uint8, r, c int) {
	origin := g.Origin(r, c)
	rowLen := g.Size * rimage.Channels
	for y := 0; y < g.Size; y++ {
		start := g.img.PixOffset(origin.X, origin.Y+y)
		copy(dst[y*rowLen:(y+1)*rowLen], g.img.Pix[start:start+rowLen])
	}
}

// Batch packs every window into one contiguous uint8 tensor of shape (Len, Size, Size, 3) in
// row-major window order. It returns nil for an empty grid.
func (g *Grid) Batch() *tensor.Dense {
	if g.Empty() {
		return nil
	}
	winLen := g.WindowLen()
	backing := make([]uint8, g.Len()*winLen)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			i := g.Index(r, c)
			g.copyWindow(backing[i*winLen:(i+1)*winLen], r, c)
		}
	}
	return tensor.New(
		tensor.WithShape(g.Len(), g.Size, g.Size, rimage.Channels),
		tensor.WithBacking(backing),
	)
}
