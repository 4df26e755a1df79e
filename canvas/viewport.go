package canvas

// Zoom limits and wheel step factors.
const (
	DefaultMinZoom = 0.1
	DefaultMaxZoom = 5.0
	WheelZoomIn    = 1.05
	WheelZoomOut   = 0.95
)

// ViewTransform maps world coordinates to screen coordinates:
// screen = world*zoom + pan.
type ViewTransform struct {
	pan     Point
	zoom    float64
	minZoom float64
	maxZoom float64
}

// NewViewTransform returns the identity transform clamped to
// [minZoom, maxZoom]. Invalid limits fall back to the defaults.
func NewViewTransform(minZoom, maxZoom float64) *ViewTransform {
	if minZoom <= 0 {
		minZoom = DefaultMinZoom
	}
	if maxZoom < minZoom {
		maxZoom = DefaultMaxZoom
		if maxZoom < minZoom {
			maxZoom = minZoom
		}
	}
	return &ViewTransform{zoom: 1, minZoom: minZoom, maxZoom: maxZoom}
}

// ViewState is the serializable pan/zoom pair.
type ViewState struct {
	Pan  Point   `json:"pan"`
	Zoom float64 `json:"zoom"`
}

// State returns the current pan and zoom.
func (v *ViewTransform) State() ViewState {
	return ViewState{Pan: v.pan, Zoom: v.zoom}
}

// Zoom returns the current zoom factor.
func (v *ViewTransform) Zoom() float64 { return v.zoom }

// PanOffset returns the current pan in screen pixels.
func (v *ViewTransform) PanOffset() Point { return v.pan }

// Limits returns the zoom range.
func (v *ViewTransform) Limits() (min, max float64) { return v.minZoom, v.maxZoom }

// Set replaces pan and zoom; zoom is clamped.
func (v *ViewTransform) Set(pan Point, zoom float64) {
	v.pan = pan
	v.zoom = v.clamp(zoom)
}

// Reset returns to zero pan and zoom 1 (clamped).
func (v *ViewTransform) Reset() {
	v.Set(Point{}, 1)
}

// Pan shifts the view by dx, dy screen pixels.
func (v *ViewTransform) Pan(dx, dy float64) {
	v.pan = v.pan.Add(Pt(dx, dy))
}

// ZoomAt multiplies the zoom by factor while keeping the world point under
// screenPoint fixed on screen.
func (v *ViewTransform) ZoomAt(screenPoint Point, factor float64) {
	if factor <= 0 {
		return
	}
	newZoom := v.clamp(v.zoom * factor)
	if newZoom == v.zoom {
		return
	}
	world := v.ScreenToWorld(screenPoint)
	v.zoom = newZoom
	v.pan = screenPoint.Sub(world.Scale(newZoom))
}

// Wheel applies one wheel tick at screenPoint: scrolling up (deltaY < 0)
// zooms in by 5%, scrolling down zooms out by 5%.
func (v *ViewTransform) Wheel(screenPoint Point, deltaY float64) {
	switch {
	case deltaY < 0:
		v.ZoomAt(screenPoint, WheelZoomIn)
	case deltaY > 0:
		v.ZoomAt(screenPoint, WheelZoomOut)
	}
}

// WorldToScreen maps a world point to screen space.
func (v *ViewTransform) WorldToScreen(p Point) Point {
	return p.Scale(v.zoom).Add(v.pan)
}

// ScreenToWorld maps a screen point to world space.
func (v *ViewTransform) ScreenToWorld(p Point) Point {
	return p.Sub(v.pan).Scale(1 / v.zoom)
}

func (v *ViewTransform) clamp(z float64) float64 {
	if z < v.minZoom {
		return v.minZoom
	}
	if z > v.maxZoom {
		return v.maxZoom
	}
	return z
}
