package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGesture_BackgroundPans(t *testing.T) {
	e := newTestEditor()
	before := e.History().Len()

	require.True(t, e.PointerDown(Target{Kind: TargetBackground}, Pt(100, 100)))
	e.PointerMove(Pt(110, 90))
	e.PointerMove(Pt(130, 80))
	assert.False(t, e.PointerUp(Target{Kind: TargetBackground}, Pt(140, 80)))

	assert.Equal(t, Pt(40, -20), e.View().PanOffset())
	assert.Equal(t, before, e.History().Len())
}

func TestGesture_MoveCommitsOnceOnRelease(t *testing.T) {
	e := newTestEditor()
	e.View().Set(Point{}, 2)
	n, _ := e.AddNode(KindTrigger, Pt(10, 10))
	before := e.History().Len()

	require.True(t, e.PointerDown(Target{Kind: TargetNode, NodeID: n.ID}, Pt(40, 40)))
	assert.Equal(t, n.ID, e.Model().Selected())

	for i := 1; i <= 10; i++ {
		e.PointerMove(Pt(40+float64(i)*10, 40))
	}
	moved, _ := e.Model().Node(n.ID)
	assert.Equal(t, Pt(60, 10), moved.Position, "screen delta is divided by zoom")
	assert.Equal(t, before, e.History().Len(), "moves are visual only")

	require.True(t, e.PointerUp(Target{Kind: TargetNode, NodeID: n.ID}, Pt(140, 40)))
	assert.Equal(t, before+1, e.History().Len())

	require.True(t, e.Undo())
	back, _ := e.Model().Node(n.ID)
	assert.Equal(t, Pt(10, 10), back.Position)
}

func TestGesture_ClickWithoutMovingDoesNotCommit(t *testing.T) {
	e := newTestEditor()
	n, _ := e.AddNode(KindTrigger, Pt(0, 0))
	before := e.History().Len()

	e.PointerDown(Target{Kind: TargetNode, NodeID: n.ID}, Pt(20, 20))
	assert.False(t, e.PointerUp(Target{Kind: TargetNode, NodeID: n.ID}, Pt(20, 20)))
	assert.Equal(t, before, e.History().Len())
}

func TestGesture_CancelRevertsMove(t *testing.T) {
	e := newTestEditor()
	n, _ := e.AddNode(KindTrigger, Pt(0, 0))

	e.PointerDown(Target{Kind: TargetNode, NodeID: n.ID}, Pt(20, 20))
	e.PointerMove(Pt(220, 220))
	e.CancelGesture()

	got, _ := e.Model().Node(n.ID)
	assert.Equal(t, Pt(0, 0), got.Position)
	assert.Empty(t, e.State().Gesture)
}

func TestGesture_ConnectToNode(t *testing.T) {
	e := newTestEditor()
	a, _ := e.AddNode(KindTrigger, Pt(0, 0))
	b, _ := e.AddNode(KindOutput, Pt(400, 0))
	l, _ := e.AddNode(KindLLM, Pt(400, 300))

	src := PortID(a.ID, RoleOutput)
	require.True(t, e.PointerDown(Target{Kind: TargetPort, NodeID: a.ID, PortID: src}, Pt(192, 60)))
	e.PointerMove(Pt(300, 70))

	s := e.State()
	assert.Equal(t, "connect", s.Gesture)
	require.NotNil(t, s.Draft)
	assert.Equal(t, Pt(192, 60), s.Draft.From)
	assert.Equal(t, Pt(300, 70), s.Draft.To)
	assert.NotNil(t, e.Geometry().Draft)

	require.True(t, e.PointerUp(Target{Kind: TargetNode, NodeID: b.ID}, Pt(450, 50)))
	edges := e.Model().Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, PortID(b.ID, RoleInput), edges[0].TargetPortID)

	require.True(t, e.PointerDown(Target{Kind: TargetPort, NodeID: a.ID, PortID: src}, Pt(192, 60)))
	require.True(t, e.PointerUp(Target{Kind: TargetNode, NodeID: l.ID}, Pt(450, 330)))
	edges = e.Model().Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, l.ID, edges[1].TargetPortID, "portless targets are addressed by node id")
}

func TestGesture_ConnectDroppedOnNothingLeavesNoTrace(t *testing.T) {
	e := newTestEditor()
	a, _ := e.AddNode(KindTrigger, Pt(0, 0))
	snap := e.Model().Snapshot()
	before := e.History().Len()

	src := PortID(a.ID, RoleOutput)
	require.True(t, e.PointerDown(Target{Kind: TargetPort, NodeID: a.ID, PortID: src}, Pt(192, 60)))
	e.PointerMove(Pt(500, 500))
	assert.False(t, e.PointerUp(Target{Kind: TargetBackground}, Pt(500, 500)))

	assert.Equal(t, snap, e.Model().Snapshot())
	assert.Equal(t, before, e.History().Len())
	assert.Nil(t, e.State().Draft)

	require.True(t, e.PointerDown(Target{Kind: TargetPort, NodeID: a.ID, PortID: src}, Pt(192, 60)))
	assert.False(t, e.PointerUp(Target{Kind: TargetNode, NodeID: a.ID}, Pt(50, 50)), "dropping on the source is a self loop")
	assert.Equal(t, snap, e.Model().Snapshot())
}

func TestGesture_InputPortDoesNotStartConnect(t *testing.T) {
	e := newTestEditor()
	a, _ := e.AddNode(KindTrigger, Pt(0, 0))
	assert.False(t, e.PointerDown(Target{Kind: TargetPort, NodeID: a.ID, PortID: PortID(a.ID, RoleInput)}, Pt(0, 60)))
	assert.Empty(t, e.State().Gesture)
}

func TestGesture_EdgeMarkerDeletes(t *testing.T) {
	e := newTestEditor()
	a, _ := e.AddNode(KindTrigger, Pt(0, 0))
	b, _ := e.AddNode(KindOutput, Pt(400, 300))
	edge, ok := e.Connect(a.ID, PortID(a.ID, RoleOutput), b.ID, PortID(b.ID, RoleInput))
	require.True(t, ok)

	marker := e.Geometry().Edges[0].Marker
	target := e.HitTarget(marker)
	require.Equal(t, TargetEdge, target.Kind)
	assert.Equal(t, edge.ID, target.EdgeID)

	require.True(t, e.PointerDown(target, marker))
	assert.Zero(t, e.Model().EdgeCount())
}

func TestEditor_HitTarget(t *testing.T) {
	e := newTestEditor()
	a, _ := e.AddNode(KindTrigger, Pt(0, 0))

	assert.Equal(t, Target{Kind: TargetPort, NodeID: a.ID, PortID: PortID(a.ID, RoleInput)}, e.HitTarget(Pt(2, 61)))
	assert.Equal(t, Target{Kind: TargetNode, NodeID: a.ID}, e.HitTarget(Pt(96, 30)))
	assert.Equal(t, Target{Kind: TargetBackground}, e.HitTarget(Pt(900, 900)))
}

func TestEditor_Shortcuts(t *testing.T) {
	e := newTestEditor()
	n, _ := e.AddNode(KindTrigger, Pt(0, 0))

	assert.False(t, e.Shortcut(Key{Name: "Delete"}), "nothing selected")
	require.True(t, e.Select(n.ID))
	require.True(t, e.Shortcut(Key{Name: "Backspace"}))
	assert.Zero(t, e.Model().NodeCount())

	require.True(t, e.Shortcut(Key{Name: "z", Ctrl: true}))
	assert.Equal(t, 1, e.Model().NodeCount())

	require.True(t, e.Shortcut(Key{Name: "Z", Meta: true, Shift: true}))
	assert.Zero(t, e.Model().NodeCount())

	require.True(t, e.Shortcut(Key{Name: "z", Meta: true}))
	require.True(t, e.Shortcut(Key{Name: "y", Ctrl: true}))
	assert.Zero(t, e.Model().NodeCount())

	assert.False(t, e.Shortcut(Key{Name: "Delete", Ctrl: true}))
	assert.False(t, e.Shortcut(Key{Name: "q", Ctrl: true}))
}
