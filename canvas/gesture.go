package canvas

import "strings"

// TargetKind classifies what lies under the pointer.
type TargetKind string

const (
	TargetBackground TargetKind = "background"
	TargetNode       TargetKind = "node"
	TargetPort       TargetKind = "port"
	TargetEdge       TargetKind = "edge"
)

// Target is the thing a pointer event lands on.
type Target struct {
	Kind   TargetKind `json:"kind"`
	NodeID string     `json:"nodeId,omitempty"`
	PortID string     `json:"portId,omitempty"`
	EdgeID string     `json:"edgeId,omitempty"`
}

// Draft is the provisional line of a connect gesture in screen space.
type Draft struct {
	SourceID     string `json:"sourceId"`
	SourcePortID string `json:"sourcePortId"`
	From         Point  `json:"from"`
	To           Point  `json:"to"`
}

type gestureKind string

const (
	gesturePan     gestureKind = "pan"
	gestureMove    gestureKind = "move"
	gestureConnect gestureKind = "connect"
)

type gesture struct {
	kind gestureKind
	last Point

	nodeID     string
	startPos   Point
	startWorld Point

	draft Draft
}

// HitTarget classifies a screen point: ports first, then edge delete
// markers, then nodes (topmost first), else the background.
func (e *Editor) HitTarget(screenPoint Point) Target {
	nodes := e.model.Nodes()
	if p, ok := e.ports.HitTest(nodes, e.view, screenPoint); ok {
		return Target{Kind: TargetPort, NodeID: p.NodeID, PortID: p.ID}
	}
	if id, ok := e.router.EdgeAt(e.router.RouteEdges(e.model, e.view, e.ports), screenPoint); ok {
		return Target{Kind: TargetEdge, EdgeID: id}
	}
	world := e.view.ScreenToWorld(screenPoint)
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Contains(world) {
			return Target{Kind: TargetNode, NodeID: nodes[i].ID}
		}
	}
	return Target{Kind: TargetBackground}
}

// PointerDown starts a gesture. Background starts a pan, a node starts a
// move and selects it, an output port starts a connect. A click on an
// edge's delete marker removes the edge. Any gesture already running is
// cancelled first.
func (e *Editor) PointerDown(target Target, screenPoint Point) bool {
	e.CancelGesture()

	switch target.Kind {
	case TargetBackground:
		e.gesture = &gesture{kind: gesturePan, last: screenPoint}
		return true

	case TargetNode:
		n, ok := e.model.Node(target.NodeID)
		if !ok {
			return false
		}
		_ = e.model.Select(n.ID)
		e.gesture = &gesture{
			kind:       gestureMove,
			nodeID:     n.ID,
			startPos:   n.Position,
			startWorld: e.view.ScreenToWorld(screenPoint),
		}
		return true

	case TargetPort:
		n, ok := e.model.Node(target.NodeID)
		if !ok {
			return false
		}
		p, ok := e.ports.ResolvePort(n, target.PortID, e.view)
		if !ok || p.Direction != PortOutput {
			return false
		}
		e.gesture = &gesture{
			kind: gestureConnect,
			draft: Draft{
				SourceID:     n.ID,
				SourcePortID: p.ID,
				From:         p.Screen,
				To:           screenPoint,
			},
		}
		return true

	case TargetEdge:
		return e.DeleteEdge(target.EdgeID)
	}
	return false
}

// PointerMove advances the running gesture. Moves update the model
// visually without committing.
func (e *Editor) PointerMove(screenPoint Point) {
	g := e.gesture
	if g == nil {
		return
	}
	switch g.kind {
	case gesturePan:
		d := screenPoint.Sub(g.last)
		e.view.Pan(d.X, d.Y)
		g.last = screenPoint
	case gestureMove:
		delta := e.view.ScreenToWorld(screenPoint).Sub(g.startWorld)
		_ = e.model.MoveNode(g.nodeID, g.startPos.Add(delta))
	case gestureConnect:
		g.draft.To = screenPoint
	}
}

// PointerUp finishes the running gesture. A move commits one history
// entry when the node actually moved. A connect adds the edge when
// released on another node or its input port; anywhere else the draft is
// dropped. It reports whether the document changed.
func (e *Editor) PointerUp(target Target, screenPoint Point) bool {
	g := e.gesture
	if g == nil {
		return false
	}
	e.PointerMove(screenPoint)
	e.gesture = nil

	switch g.kind {
	case gestureMove:
		n, ok := e.model.Node(g.nodeID)
		if !ok || n.Position == g.startPos {
			return false
		}
		e.commit()
		return true

	case gestureConnect:
		targetID, targetPort, ok := e.dropTarget(target, g.draft.SourceID)
		if !ok {
			return false
		}
		_, ok = e.Connect(g.draft.SourceID, g.draft.SourcePortID, targetID, targetPort)
		return ok
	}
	return false
}

// dropTarget maps the release target of a connect gesture to a node id and
// target port id.
func (e *Editor) dropTarget(target Target, sourceID string) (string, string, bool) {
	if target.NodeID == "" || target.NodeID == sourceID {
		return "", "", false
	}
	n, ok := e.model.Node(target.NodeID)
	if !ok {
		return "", "", false
	}
	switch target.Kind {
	case TargetPort:
		return n.ID, target.PortID, true
	case TargetNode:
		if e.ports.HasInput(n) {
			return n.ID, PortID(n.ID, RoleInput), true
		}
		return n.ID, n.ID, true
	}
	return "", "", false
}

// CancelGesture abandons the running gesture. A half-finished move is
// reverted to the last committed state; pans keep their effect.
func (e *Editor) CancelGesture() {
	g := e.gesture
	if g == nil {
		return
	}
	e.gesture = nil
	if g.kind == gestureMove {
		_ = e.model.MoveNode(g.nodeID, g.startPos)
	}
}

// Key is a keyboard chord.
type Key struct {
	Name  string `json:"name"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
	Shift bool   `json:"shift,omitempty"`
}

// Shortcut applies a keyboard shortcut: Ctrl/Cmd+Z undoes,
// Ctrl/Cmd+Shift+Z and Ctrl/Cmd+Y redo, Delete and Backspace remove the
// selected node. It reports whether anything happened.
func (e *Editor) Shortcut(k Key) bool {
	mod := k.Ctrl || k.Meta
	switch name := strings.ToLower(k.Name); {
	case mod && name == "z" && k.Shift:
		return e.Redo()
	case mod && name == "z":
		return e.Undo()
	case mod && name == "y":
		return e.Redo()
	case !mod && (name == "delete" || name == "backspace"):
		sel := e.model.Selected()
		if sel == "" {
			return false
		}
		return e.DeleteNode(sel)
	}
	return false
}
