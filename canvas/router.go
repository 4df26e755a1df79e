package canvas

import (
	"fmt"
	"math"
	"strings"
)

// Routing defaults, in screen pixels.
const (
	DefaultStraightThreshold = 50
	DefaultBendOffset        = 30
	DefaultMidX              = 400
	DefaultMidY              = 300
	DefaultMarkerRadius      = 10
)

// Segment is one cubic Bézier piece of a path.
type Segment struct {
	From Point `json:"from"`
	C1   Point `json:"c1"`
	C2   Point `json:"c2"`
	To   Point `json:"to"`
}

// At evaluates the segment at t in [0, 1].
func (s Segment) At(t float64) Point {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	c := 3 * u * t * t
	d := t * t * t
	return Point{
		X: a*s.From.X + b*s.C1.X + c*s.C2.X + d*s.To.X,
		Y: a*s.From.Y + b*s.C1.Y + c*s.C2.Y + d*s.To.Y,
	}
}

// RouteRegime names which routing rule produced a path.
type RouteRegime string

const (
	RegimeHorizontal RouteRegime = "horizontal"
	RegimeVertical   RouteRegime = "vertical"
	RegimeDiagonal   RouteRegime = "diagonal"
)

// Path is a smooth curve between two screen points. The same path is used
// for the stroke and for the delete marker at its midpoint.
type Path struct {
	Regime   RouteRegime `json:"regime"`
	Segments []Segment   `json:"segments"`
}

// Start returns the first point of the path.
func (p Path) Start() Point {
	if len(p.Segments) == 0 {
		return Point{}
	}
	return p.Segments[0].From
}

// End returns the last point of the path.
func (p Path) End() Point {
	if len(p.Segments) == 0 {
		return Point{}
	}
	return p.Segments[len(p.Segments)-1].To
}

// Midpoint returns the point halfway along the path's parameterization:
// the junction of a two-segment path, or t=0.5 of a single segment.
func (p Path) Midpoint() Point {
	switch len(p.Segments) {
	case 0:
		return Point{}
	case 1:
		return p.Segments[0].At(0.5)
	}
	if len(p.Segments)%2 == 0 {
		return p.Segments[len(p.Segments)/2].From
	}
	return p.Segments[len(p.Segments)/2].At(0.5)
}

// SVG renders the path as an SVG "d" attribute.
func (p Path) SVG() string {
	if len(p.Segments) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "M %g %g", p.Segments[0].From.X, p.Segments[0].From.Y)
	for _, s := range p.Segments {
		fmt.Fprintf(&b, " C %g %g, %g %g, %g %g", s.C1.X, s.C1.Y, s.C2.X, s.C2.Y, s.To.X, s.To.Y)
	}
	return b.String()
}

// HitMarker reports whether pt falls on the circular delete marker of
// the given radius at the path's midpoint.
func (p Path) HitMarker(pt Point, radius float64) bool {
	return p.Midpoint().Distance(pt) <= radius
}

// EdgeRouter computes edge paths. Near-horizontal and near-vertical
// connections bend to one side so they do not run straight through the
// nodes between them; everything else is an S-curve through the midpoint.
type EdgeRouter struct {
	// StraightThreshold is the |Δ| under which a connection counts as
	// near-horizontal (Δy) or near-vertical (Δx).
	StraightThreshold float64
	// BendOffset is how far a bent path leaves the straight line.
	BendOffset float64
	// MidX decides left/right bends: a start left of MidX bends left.
	MidX float64
	// MidY decides up/down bends: a start below MidY bends up.
	MidY float64
	// MarkerRadius is the radius of the delete marker.
	MarkerRadius float64
}

// NewEdgeRouter returns a router with the default thresholds.
func NewEdgeRouter() EdgeRouter {
	return EdgeRouter{
		StraightThreshold: DefaultStraightThreshold,
		BendOffset:        DefaultBendOffset,
		MidX:              DefaultMidX,
		MidY:              DefaultMidY,
		MarkerRadius:      DefaultMarkerRadius,
	}
}

// Route returns the path from start to end.
func (r EdgeRouter) Route(start, end Point) Path {
	dx := end.X - start.X
	dy := end.Y - start.Y

	switch {
	case math.Abs(dy) < r.StraightThreshold:
		// Screen y grows downwards; bending up means a smaller y.
		bendY := max(start.Y, end.Y) + r.BendOffset
		if start.Y > r.MidY {
			bendY = min(start.Y, end.Y) - r.BendOffset
		}
		return Path{Regime: RegimeHorizontal, Segments: []Segment{{
			From: start,
			C1:   Pt(start.X+dx/3, bendY),
			C2:   Pt(start.X+2*dx/3, bendY),
			To:   end,
		}}}

	case math.Abs(dx) < r.StraightThreshold:
		bendX := max(start.X, end.X) + r.BendOffset
		if start.X < r.MidX {
			bendX = min(start.X, end.X) - r.BendOffset
		}
		return Path{Regime: RegimeVertical, Segments: []Segment{{
			From: start,
			C1:   Pt(bendX, start.Y+dy/3),
			C2:   Pt(bendX, start.Y+2*dy/3),
			To:   end,
		}}}
	}

	mid := Pt(start.X+dx/2, start.Y+dy/2)
	return Path{Regime: RegimeDiagonal, Segments: []Segment{
		{From: start, C1: Pt(mid.X, start.Y), C2: Pt(mid.X, start.Y), To: mid},
		{From: mid, C1: Pt(mid.X, end.Y), C2: Pt(mid.X, end.Y), To: end},
	}}
}

// EdgePath is the render geometry of one edge.
type EdgePath struct {
	EdgeID string `json:"edgeId"`
	Path   Path   `json:"path"`
	SVG    string `json:"svg"`
	Marker Point  `json:"marker"`
}

// RouteEdges routes every edge of the model under v. Edges whose ports no
// longer resolve are skipped.
func (r EdgeRouter) RouteEdges(m *GraphModel, v *ViewTransform, ports PortResolver) []EdgePath {
	out := make([]EdgePath, 0, m.EdgeCount())
	for _, e := range m.Edges() {
		src, ok := m.Node(e.Source)
		if !ok {
			continue
		}
		dst, ok := m.Node(e.Target)
		if !ok {
			continue
		}
		sp, ok := ports.ResolvePort(src, e.SourcePortID, v)
		if !ok {
			continue
		}
		tp, ok := ports.ResolvePort(dst, e.TargetPortID, v)
		if !ok {
			tp = ports.CenterPort(dst, v)
		}
		path := r.Route(sp.Screen, tp.Screen)
		out = append(out, EdgePath{
			EdgeID: e.ID,
			Path:   path,
			SVG:    path.SVG(),
			Marker: path.Midpoint(),
		})
	}
	return out
}

// EdgeAt returns the id of the edge whose delete marker is under pt.
func (r EdgeRouter) EdgeAt(paths []EdgePath, pt Point) (string, bool) {
	for i := len(paths) - 1; i >= 0; i-- {
		if paths[i].Path.HitMarker(pt, r.MarkerRadius) {
			return paths[i].EdgeID, true
		}
	}
	return "", false
}
