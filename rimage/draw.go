package rimage

import (
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	// Red is the marker color used for detections.
	Red = color.NRGBA{R: 255, A: 255}
	// Green is the marker color used for labels.
	Green = color.NRGBA{G: 255, A: 255}
)

// labelFont is parsed on first use; the embedded Go font always parses.
var labelFont = sync.OnceValue(func() *truetype.Font {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
	return f
})

// DrawString writes text with its top left corner at p, wrapping at the right edge of dc.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(labelFont(), &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawStringWrapped(text, float64(p.X), float64(p.Y), 0, 0, float64(dc.Width()-p.X), 1, gg.AlignLeft)
}

// DrawCircleEmpty strokes a circle outline centered at (x, y).
func DrawCircleEmpty(dc *gg.Context, x, y, radius float64, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawCircle(x, y, radius)
	dc.Stroke()
}

// DrawCrosshair draws a plus sign centered at (x, y).
func DrawCrosshair(dc *gg.Context, x, y, halfLength float64, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawLine(x-halfLength, y, x+halfLength, y)
	dc.Stroke()
	dc.DrawLine(x, y-halfLength, x, y+halfLength)
	dc.Stroke()
}
