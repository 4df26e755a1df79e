package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeRouter_Regimes(t *testing.T) {
	r := NewEdgeRouter()

	tests := []struct {
		name       string
		start, end Point
		regime     RouteRegime
		c1, c2     Point
	}{
		{
			name:   "near horizontal above mid bends down",
			start:  Pt(100, 100),
			end:    Pt(400, 120),
			regime: RegimeHorizontal,
			c1:     Pt(200, 150),
			c2:     Pt(300, 150),
		},
		{
			name:   "near horizontal below mid bends up",
			start:  Pt(100, 400),
			end:    Pt(400, 410),
			regime: RegimeHorizontal,
			c1:     Pt(200, 370),
			c2:     Pt(300, 370),
		},
		{
			name:   "start exactly on mid y bends down",
			start:  Pt(0, 300),
			end:    Pt(300, 300),
			regime: RegimeHorizontal,
			c1:     Pt(100, 330),
			c2:     Pt(200, 330),
		},
		{
			name:   "near vertical left of mid bends left",
			start:  Pt(100, 100),
			end:    Pt(120, 400),
			regime: RegimeVertical,
			c1:     Pt(70, 200),
			c2:     Pt(70, 300),
		},
		{
			name:   "near vertical right of mid bends right",
			start:  Pt(500, 100),
			end:    Pt(510, 400),
			regime: RegimeVertical,
			c1:     Pt(540, 200),
			c2:     Pt(540, 300),
		},
		{
			name:   "both deltas small counts as horizontal",
			start:  Pt(100, 100),
			end:    Pt(130, 130),
			regime: RegimeHorizontal,
			c1:     Pt(110, 160),
			c2:     Pt(120, 160),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := r.Route(tt.start, tt.end)
			assert.Equal(t, tt.regime, p.Regime)
			require.Len(t, p.Segments, 1)
			assert.Equal(t, tt.start, p.Start())
			assert.Equal(t, tt.end, p.End())
			assert.InDelta(t, tt.c1.X, p.Segments[0].C1.X, 1e-9)
			assert.InDelta(t, tt.c1.Y, p.Segments[0].C1.Y, 1e-9)
			assert.InDelta(t, tt.c2.X, p.Segments[0].C2.X, 1e-9)
			assert.InDelta(t, tt.c2.Y, p.Segments[0].C2.Y, 1e-9)
		})
	}
}

func TestEdgeRouter_ThresholdIsExclusive(t *testing.T) {
	r := NewEdgeRouter()
	p := r.Route(Pt(0, 0), Pt(300, 50))
	assert.Equal(t, RegimeDiagonal, p.Regime)
}

func TestEdgeRouter_Diagonal(t *testing.T) {
	p := NewEdgeRouter().Route(Pt(0, 0), Pt(400, 200))

	assert.Equal(t, RegimeDiagonal, p.Regime)
	require.Len(t, p.Segments, 2)
	assert.Equal(t, Pt(200, 100), p.Midpoint())
	assert.Equal(t, "M 0 0 C 200 0, 200 0, 200 100 C 200 200, 200 200, 400 200", p.SVG())
	assert.True(t, p.HitMarker(Pt(205, 104), 10))
	assert.False(t, p.HitMarker(Pt(215, 100), 10))
}

func TestEdgeRouter_SingleSegmentMidpoint(t *testing.T) {
	p := NewEdgeRouter().Route(Pt(100, 100), Pt(400, 100))
	mid := p.Midpoint()
	assert.InDelta(t, 250, mid.X, 1e-9)
	assert.InDelta(t, 137.5, mid.Y, 1e-9)
}

func TestEdgeRouter_RouteEdges(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.Load(
		[]Node{
			{ID: "a", Kind: KindTrigger, Position: Pt(0, 0)},
			{ID: "b", Kind: KindTrigger, Position: Pt(300, 0)},
			{ID: "l", Kind: KindLLM, Position: Pt(0, 400)},
		},
		[]Edge{
			{ID: "ab", Source: "a", Target: "b", SourcePortID: "a-output", TargetPortID: "b-input"},
			{ID: "al", Source: "a", Target: "l", SourcePortID: "a-output", TargetPortID: "l"},
			{ID: "bad", Source: "b", Target: "a", SourcePortID: "b-nowhere", TargetPortID: "a-input"},
		},
	))
	v := NewViewTransform(DefaultMinZoom, DefaultMaxZoom)
	r := NewEdgeRouter()

	paths := r.RouteEdges(m, v, NewPortResolver())
	require.Len(t, paths, 2, "edges with unresolvable source ports are skipped")

	assert.Equal(t, "ab", paths[0].EdgeID)
	assert.Equal(t, Pt(192, 60), paths[0].Path.Start())
	assert.Equal(t, Pt(300, 60), paths[0].Path.End())
	assert.Equal(t, paths[0].Path.SVG(), paths[0].SVG)

	assert.Equal(t, "al", paths[1].EdgeID)
	assert.Equal(t, Pt(96, 440), paths[1].Path.End(), "portless target renders at its center")

	id, ok := r.EdgeAt(paths, paths[1].Marker)
	require.True(t, ok)
	assert.Equal(t, "al", id)

	_, ok = r.EdgeAt(paths, Pt(-500, -500))
	assert.False(t, ok)
}
