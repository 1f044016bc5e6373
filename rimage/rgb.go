// Package rimage holds the image representation shared by the detection pipeline along with
// decoding, encoding and drawing helpers.
package rimage

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Channels is the number of samples stored per pixel.
const Channels = 3

// RGB is an 8-bit, three channel image. Pixels are stored row-major with interleaved channels,
// so the sample for channel ch of pixel (x, y) lives at Pix[(y*Width+x)*3+ch].
type RGB struct {
	Pix    []uint8
	Width  int
	Height int
}

// NewRGB returns a black image of the given size.
func NewRGB(width, height int) *RGB {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &RGB{
		Pix:    make([]uint8, width*height*Channels),
		Width:  width,
		Height: height,
	}
}

// NewRGBFromPix wraps an existing buffer without copying it.
func NewRGBFromPix(width, height int, pix []uint8) (*RGB, error) {
	if width < 0 || height < 0 {
		return nil, errors.Errorf("invalid image size %dx%d", width, height)
	}
	if len(pix) != width*height*Channels {
		return nil, errors.Errorf("expected %d samples for a %dx%d image but got %d",
			width*height*Channels, width, height, len(pix))
	}
	return &RGB{Pix: pix, Width: width, Height: height}, nil
}

// ConvertToRGB copies any image into an RGB, dropping alpha. The result always starts at (0, 0).
func ConvertToRGB(img image.Image) *RGB {
	switch v := img.(type) {
	case *RGB:
		return v
	case *image.NRGBA:
		if v.Rect.Min == (image.Point{}) {
			return fromNRGBA(v)
		}
	}
	return fromNRGBA(imaging.Clone(img))
}

func fromNRGBA(src *image.NRGBA) *RGB {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := NewRGB(w, h)
	for y := 0; y < h; y++ {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		dstRow := out.Pix[y*w*Channels : (y+1)*w*Channels]
		for x := 0; x < w; x++ {
			dstRow[x*3] = srcRow[x*4]
			dstRow[x*3+1] = srcRow[x*4+1]
			dstRow[x*3+2] = srcRow[x*4+2]
		}
	}
	return out
}

// PixOffset returns the index of the first sample of pixel (x, y).
func (i *RGB) PixOffset(x, y int) int {
	return (y*i.Width + x) * Channels
}

// In reports whether (x, y) is inside the image.
func (i *RGB) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.Width && y < i.Height
}

// RGBAt returns the samples of pixel (x, y).
func (i *RGB) RGBAt(x, y int) (r, g, b uint8) {
	off := i.PixOffset(x, y)
	return i.Pix[off], i.Pix[off+1], i.Pix[off+2]
}

// SetRGB sets the samples of pixel (x, y).
func (i *RGB) SetRGB(x, y int, r, g, b uint8) {
	off := i.PixOffset(x, y)
	i.Pix[off], i.Pix[off+1], i.Pix[off+2] = r, g, b
}

// ColorModel implements image.Image.
func (i *RGB) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements image.Image.
func (i *RGB) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.Width, i.Height)
}

// At implements image.Image.
func (i *RGB) At(x, y int) color.Color {
	if !i.In(x, y) {
		return color.NRGBA{}
	}
	r, g, b := i.RGBAt(x, y)
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
