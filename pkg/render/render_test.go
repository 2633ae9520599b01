package render

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/menta2k/layout-viewer/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestNormalizeAnyCornerOrder(t *testing.T) {
	boxes := []types.BBox{
		{X1: 10, Y1: 20, X2: 30, Y2: 60},
		{X1: 30, Y1: 60, X2: 10, Y2: 20},
		{X1: 30, Y1: 20, X2: 10, Y2: 60},
		{X1: 10, Y1: 60, X2: 30, Y2: 20},
	}

	for _, b := range boxes {
		r := Normalize(b)
		assert.Equal(t, types.Rect{Left: 10, Top: 20, Width: 20, Height: 40}, r)
		assert.LessOrEqual(t, r.Left, r.Right())
		assert.LessOrEqual(t, r.Top, r.Bottom())
	}
}

func TestLabelColor(t *testing.T) {
	assert.Equal(t, LabelColor("bbox"), LabelColor(""))
	assert.Equal(t, "#6366f1", Hex(LabelColor("a")))

	for _, label := range []string{"heading", "table", "image", "Überschrift", "a much longer label with spaces"} {
		c := LabelColor(label)
		assert.Equal(t, c, LabelColor(label))
		assert.Contains(t, Palette, c)
	}

	seen := map[color.NRGBA]bool{}
	for _, c := range Palette {
		seen[c] = true
	}
	assert.GreaterOrEqual(t, len(seen), 10)
}

func TestFit(t *testing.T) {
	tests := []struct {
		iw, ih, vw, vh int
		want           float64
	}{
		{200, 100, 100, 100, 0.5},
		{200, 100, 0, 0, 1},
		{200, 100, 0, 50, 0.5},
		{50, 50, 100, 0, 2},
		{0, 10, 100, 100, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Fit(tt.iw, tt.ih, tt.vw, tt.vh))
	}
}

func TestTransformApply(t *testing.T) {
	tr := Transform{Scale: 2, OffsetX: 5, OffsetY: -5}

	got := tr.Apply(types.Rect{Left: 10, Top: 10, Width: 3, Height: 4})
	assert.Equal(t, types.Rect{Left: 25, Top: 15, Width: 6, Height: 8}, got)

	x, y := tr.Inverse(25, 15)
	assert.Equal(t, 10.0, x)
	assert.Equal(t, 10.0, y)
}

func TestViewport(t *testing.T) {
	v := NewViewport()

	v.ZoomBy(100)
	assert.Equal(t, 5.0, v.Scale)

	v.ZoomBy(0.0001)
	assert.Equal(t, 0.5, v.Scale)

	v.Reset()
	v.ZoomAt(2, 10, 10)
	assert.Equal(t, 2.0, v.Scale)

	// content point under the cursor does not move
	tr := v.Transform(1)
	x, y := tr.Inverse(10, 10)
	assert.InDelta(t, 10, x, 1e-9)
	assert.InDelta(t, 10, y, 1e-9)

	v.Pan(7, -3)
	assert.Equal(t, -3.0, v.X)
	assert.Equal(t, -13.0, v.Y)

	v.Reset()
	assert.Equal(t, NewViewport(), v)

	custom := Viewport{Scale: 1, MinScale: 1, MaxScale: 2}
	custom.ZoomBy(10)
	assert.Equal(t, 2.0, custom.Scale)
}

func TestRenderBoxes(t *testing.T) {
	r := NewRenderer()
	img := uniform(100, 50, color.NRGBA{255, 255, 255, 255})

	regions := []types.Region{
		{Kind: "text", Label: "a", Box: &types.BBox{X1: 40, Y1: 30, X2: 10, Y2: 10}},
	}

	opts := DefaultOptions()
	opts.Width = 200
	opts.Stroke = 2

	out := r.Render(img, regions, opts)
	require.Equal(t, 200, out.Bounds().Dx())
	require.Equal(t, 100, out.Bounds().Dy())

	indigo := LabelColor("a")

	// box maps to (20,20)-(80,60)
	assert.Equal(t, indigo, out.NRGBAAt(50, 20))
	assert.Equal(t, indigo, out.NRGBAAt(50, 59))
	assert.Equal(t, indigo, out.NRGBAAt(20, 40))
	assert.Equal(t, indigo, out.NRGBAAt(79, 40))

	inside := out.NRGBAAt(50, 40)
	assert.Greater(t, inside.G, uint8(250))

	// label tag sits above the box
	assert.Equal(t, indigo, out.NRGBAAt(21, 18))

	// the region was not touched
	assert.Equal(t, 40.0, regions[0].Box.X1)
}

func TestRenderSkipsEmptyBoxes(t *testing.T) {
	r := NewRenderer()
	img := uniform(60, 40, color.NRGBA{200, 200, 200, 255})

	opts := DefaultOptions()

	plain := r.Render(img, nil, opts)
	skipped := r.Render(img, []types.Region{
		{Label: "flat", Box: &types.BBox{X1: 10, Y1: 10, X2: 10, Y2: 30}},
		{Label: "line", Box: &types.BBox{X1: 10, Y1: 10, X2: 30, Y2: 10}},
		{Label: "none"},
	}, opts)

	assert.True(t, bytes.Equal(plain.Pix, skipped.Pix))
}

func TestRenderHiddenBoxes(t *testing.T) {
	r := NewRenderer()
	img := uniform(60, 40, color.NRGBA{255, 255, 255, 255})

	opts := DefaultOptions()
	opts.ShowBoxes = false

	out := r.Render(img, []types.Region{{Label: "a", Box: &types.BBox{X1: 0, Y1: 0, X2: 30, Y2: 30}}}, opts)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(0, 0))
}

func TestRenderViewport(t *testing.T) {
	r := NewRenderer()

	img := image.NewNRGBA(image.Rect(0, 0, 100, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			c := color.NRGBA{255, 0, 0, 255}
			if x >= 50 {
				c = color.NRGBA{0, 0, 255, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	opts := DefaultOptions()
	opts.ShowBoxes = false
	opts.Viewport.SetScale(2)
	opts.Viewport.Pan(-100, 0)

	out := r.Render(img, nil, opts)
	assert.Equal(t, 100, out.Bounds().Dx())

	px := out.NRGBAAt(10, 10)
	assert.Greater(t, px.B, uint8(200))
	assert.Less(t, px.R, uint8(50))

	opts.Viewport.Reset()
	out = r.Render(img, nil, opts)
	assert.Greater(t, out.NRGBAAt(10, 10).R, uint8(200))
}

func TestLayoutCapped(t *testing.T) {
	r := NewRenderer()

	w, h, tr := r.Layout(100, 100, Options{Width: 200000, Height: 200000, MaxWidth: 4096, MaxHeight: 4096, Viewport: NewViewport()})
	assert.Equal(t, 4096, w)
	assert.Equal(t, 4096, h)
	assert.InDelta(t, 40.96, tr.Scale, 1e-9)

	// unconstrained output of a large source is capped too
	w, h, _ = r.Layout(20000, 10000, Options{MaxWidth: 4096, MaxHeight: 1024, Viewport: NewViewport()})
	assert.Equal(t, 2048, w)
	assert.Equal(t, 1024, h)
}

func TestLayoutRounds(t *testing.T) {
	w, h, tr := NewRenderer().Layout(333, 101, Options{Width: 100, Viewport: NewViewport()})
	assert.Equal(t, 100, w)
	assert.Equal(t, int(math.Round(101*100.0/333)), h)
	assert.InDelta(t, 100.0/333, tr.Scale, 1e-9)
}
