package render

import (
	"fmt"
	"image/color"
	"math"
	"unicode/utf16"

	"github.com/menta2k/layout-viewer/pkg/types"
)

// Palette holds the label colors
var Palette = []color.NRGBA{
	{0xef, 0x44, 0x44, 0xff}, // red
	{0x3b, 0x82, 0xf6, 0xff}, // blue
	{0x10, 0xb9, 0x81, 0xff}, // green
	{0xf5, 0x9e, 0x42, 0xff}, // orange
	{0xa8, 0x55, 0xf7, 0xff}, // purple
	{0xea, 0xb3, 0x08, 0xff}, // yellow
	{0x14, 0xb8, 0xa6, 0xff}, // teal
	{0x63, 0x66, 0xf1, 0xff}, // indigo
	{0xf4, 0x3f, 0x5e, 0xff}, // pink
	{0x84, 0xcc, 0x16, 0xff}, // lime
}

// Normalize returns the box as left/top/width/height
func Normalize(b types.BBox) types.Rect {
	return b.Normalize()
}

// LabelColor picks the palette color of a label. The hash is the usual
// 31-multiplier string hash over UTF-16 code units with 32-bit shifts, so
// colors match the ones a browser computes for the same label.
func LabelColor(label string) color.NRGBA {
	if label == "" {
		label = "bbox"
	}

	var h float64

	for _, c := range utf16.Encode([]rune(label)) {
		h = float64(c) + float64(int32(int64(h))<<5) - h
	}

	return Palette[int(math.Mod(math.Abs(h), float64(len(Palette))))]
}

// Hex formats a color as #rrggbb
func Hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Fit returns the scale that fits an iw x ih image into vw x vh keeping the
// aspect ratio. An unset (<= 0) side does not constrain; with neither set the
// scale is 1.
func Fit(iw, ih, vw, vh int) float64 {
	if iw <= 0 || ih <= 0 {
		return 1
	}

	sx := math.Inf(1)
	sy := math.Inf(1)

	if vw > 0 {
		sx = float64(vw) / float64(iw)
	}

	if vh > 0 {
		sy = float64(vh) / float64(ih)
	}

	s := math.Min(sx, sy)

	if math.IsInf(s, 1) {
		return 1
	}

	return s
}

// Transform maps source-image coordinates onto the output surface
type Transform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Point maps a single source point
func (t Transform) Point(x, y float64) (float64, float64) {
	return x*t.Scale + t.OffsetX, y*t.Scale + t.OffsetY
}

// Inverse maps a surface point back into source coordinates
func (t Transform) Inverse(x, y float64) (float64, float64) {
	if t.Scale == 0 {
		return 0, 0
	}

	return (x - t.OffsetX) / t.Scale, (y - t.OffsetY) / t.Scale
}

// Apply maps a normalized rect
func (t Transform) Apply(r types.Rect) types.Rect {
	left, top := t.Point(r.Left, r.Top)

	return types.Rect{
		Left:   left,
		Top:    top,
		Width:  r.Width * t.Scale,
		Height: r.Height * t.Scale,
	}
}
