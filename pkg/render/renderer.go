package render

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/layout-viewer/pkg/types"
)

// Options control a single render
type Options struct {
	// Width and Height bound the output; zero means unconstrained
	Width  int
	Height int

	// MaxWidth and MaxHeight cap the output whatever Width and Height say;
	// zero means no cap
	MaxWidth  int
	MaxHeight int

	Viewport Viewport

	ShowBoxes bool

	// Stroke is the outline width in output pixels, 0 picks one from the size
	Stroke int

	Background color.NRGBA
}

// DefaultOptions shows boxes on a white background with a reset viewport
func DefaultOptions() Options {
	return Options{
		Viewport:   NewViewport(),
		ShowBoxes:  true,
		Background: color.NRGBA{255, 255, 255, 255},
	}
}

// Renderer draws images with their layout regions
type Renderer struct {
	face font.Face
}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{
		face: basicfont.Face7x13,
	}
}

// Layout returns the output size and the source-to-output transform
func (r *Renderer) Layout(iw, ih int, opts Options) (int, int, Transform) {
	fit := Fit(iw, ih, opts.Width, opts.Height)

	if opts.MaxWidth > 0 && float64(iw)*fit > float64(opts.MaxWidth) {
		fit = float64(opts.MaxWidth) / float64(iw)
	}

	if opts.MaxHeight > 0 && float64(ih)*fit > float64(opts.MaxHeight) {
		fit = float64(opts.MaxHeight) / float64(ih)
	}

	w := max(1, int(math.Round(float64(iw)*fit)))
	h := max(1, int(math.Round(float64(ih)*fit)))

	return w, h, opts.Viewport.Transform(fit)
}

// Render draws img fitted into the output with the viewport applied and,
// when enabled, the region outlines and label tags. Neither img nor regions
// are modified.
func (r *Renderer) Render(img image.Image, regions []types.Region, opts Options) *image.NRGBA {
	bounds := img.Bounds()
	w, h, t := r.Layout(bounds.Dx(), bounds.Dy(), opts)

	bg := opts.Background
	if bg.A == 0 {
		bg = color.NRGBA{255, 255, 255, 255}
	}

	canvas := imaging.New(w, h, bg)
	canvas = r.drawImage(canvas, img, t)

	if !opts.ShowBoxes {
		return canvas
	}

	stroke := opts.Stroke
	if stroke <= 0 {
		stroke = int(math.Max(2, 0.004*float64(min(w, h))))
	}

	for _, region := range regions {
		if region.Box == nil {
			continue
		}

		rect := Normalize(*region.Box)
		if rect.Empty() {
			continue
		}

		c := LabelColor(region.Label)
		out := t.Apply(rect)

		drawRect(canvas, out, c, stroke)

		if region.Label != "" {
			r.drawTag(canvas, region.Label, out, c)
		}
	}

	return canvas
}

// drawImage pastes the visible part of img, scaled by t, onto canvas
func (r *Renderer) drawImage(canvas *image.NRGBA, img image.Image, t Transform) *image.NRGBA {
	bounds := img.Bounds()
	cw, ch := canvas.Bounds().Dx(), canvas.Bounds().Dy()

	// visible source window
	x0, y0 := t.Inverse(0, 0)
	x1, y1 := t.Inverse(float64(cw), float64(ch))

	src := image.Rect(
		int(math.Floor(x0)), int(math.Floor(y0)),
		int(math.Ceil(x1)), int(math.Ceil(y1)),
	).Intersect(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	if src.Empty() {
		return canvas
	}

	dw := int(math.Round(float64(src.Dx()) * t.Scale))
	dh := int(math.Round(float64(src.Dy()) * t.Scale))

	if dw <= 0 || dh <= 0 {
		return canvas
	}

	part := imaging.Crop(img, src.Add(bounds.Min))
	part = imaging.Resize(part, dw, dh, imaging.Lanczos)

	px, py := t.Point(float64(src.Min.X), float64(src.Min.Y))

	return imaging.Overlay(canvas, part, image.Pt(int(math.Round(px)), int(math.Round(py))), 1.0)
}

func (r *Renderer) drawTag(canvas *image.NRGBA, label string, box types.Rect, c color.NRGBA) {
	metrics := r.face.Metrics()

	tw := font.MeasureString(r.face, label).Ceil() + 6
	th := (metrics.Ascent + metrics.Descent).Ceil() + 4

	x := int(math.Round(box.Left))
	y := int(math.Round(box.Top)) - th

	// no room above the box: put the tag inside it
	if y < 0 {
		y = int(math.Round(box.Top))
	}

	fillRect(canvas, image.Rect(x, y, x+tw, y+th), c)

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.White),
		Face: r.face,
		Dot:  fixed.P(x+3, y+2+metrics.Ascent.Ceil()),
	}

	d.DrawString(label)
}

func drawRect(img *image.NRGBA, r types.Rect, c color.NRGBA, stroke int) {
	x0 := int(math.Round(r.Left))
	y0 := int(math.Round(r.Top))
	x1 := int(math.Round(r.Right()))
	y1 := int(math.Round(r.Bottom()))

	if x1 <= x0 {
		x1 = x0 + 1
	}

	if y1 <= y0 {
		y1 = y0 + 1
	}

	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		drawHLine(img, y, r.Min.X, r.Max.X, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()

	if y < b.Min.Y || y >= b.Max.Y {
		return
	}

	if x0 > x1 {
		x0, x1 = x1, x0
	}

	x0 = max(x0, b.Min.X)
	x1 = min(x1, b.Max.X)

	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()

	if x < b.Min.X || x >= b.Max.X {
		return
	}

	if y0 > y1 {
		y0, y1 = y1, y0
	}

	y0 = max(y0, b.Min.Y)
	y1 = min(y1, b.Max.Y)

	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
