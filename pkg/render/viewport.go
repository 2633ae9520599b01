package render

import "math"

const (
	DefaultMinScale = 0.5
	DefaultMaxScale = 5
)

// Viewport is the interactive zoom and pan state on top of the fitted image
type Viewport struct {
	Scale float64 `json:"scale"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`

	MinScale float64 `json:"-"`
	MaxScale float64 `json:"-"`
}

// NewViewport returns a reset viewport with the default zoom bounds
func NewViewport() Viewport {
	return Viewport{
		Scale: 1,

		MinScale: DefaultMinScale,
		MaxScale: DefaultMaxScale,
	}
}

func (v *Viewport) bounds() (float64, float64) {
	lo, hi := v.MinScale, v.MaxScale

	if lo <= 0 {
		lo = DefaultMinScale
	}

	if hi <= 0 {
		hi = DefaultMaxScale
	}

	if lo > hi {
		lo, hi = hi, lo
	}

	return lo, hi
}

func (v *Viewport) clamp(s float64) float64 {
	if math.IsNaN(s) || s == 0 {
		s = 1
	}

	lo, hi := v.bounds()

	return math.Max(lo, math.Min(hi, s))
}

// SetScale sets the zoom, clamped to the bounds
func (v *Viewport) SetScale(s float64) {
	v.Scale = v.clamp(s)
}

// ZoomBy multiplies the zoom by factor
func (v *Viewport) ZoomBy(factor float64) {
	v.SetScale(v.scale() * factor)
}

// ZoomAt zooms by factor keeping the surface point (px, py) fixed
func (v *Viewport) ZoomAt(factor, px, py float64) {
	old := v.scale()
	v.SetScale(old * factor)

	// the content point under (px, py) stays under it
	v.X = px - (px-v.X)*v.Scale/old
	v.Y = py - (py-v.Y)*v.Scale/old
}

// Pan moves the content by (dx, dy) surface pixels
func (v *Viewport) Pan(dx, dy float64) {
	v.X += dx
	v.Y += dy
}

// Reset restores scale 1 and no translation
func (v *Viewport) Reset() {
	v.Scale = 1
	v.X = 0
	v.Y = 0
}

// Transform composes the viewport with the fit scale of the image
func (v Viewport) Transform(fit float64) Transform {
	return Transform{
		Scale:   fit * v.scale(),
		OffsetX: v.X,
		OffsetY: v.Y,
	}
}

func (v *Viewport) scale() float64 {
	if v.Scale == 0 {
		return 1
	}

	return v.Scale
}
