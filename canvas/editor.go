package canvas

import (
	"fmt"

	"go.uber.org/zap"
)

// QuickCreateGap is the vertical distance between an agent's auxiliary
// port line and a node spawned from it.
const QuickCreateGap = 100

// Editor is the command layer over a GraphModel. Each successful mutation
// commits exactly one history entry before returning. View changes and
// in-progress gestures never enter history.
type Editor struct {
	model   *GraphModel
	view    *ViewTransform
	history *History
	ports   PortResolver
	router  EdgeRouter
	ids     *IDGenerator
	logger  *zap.Logger

	capacity         int
	minZoom, maxZoom float64
	gesture          *gesture
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithLogger sets the editor's logger.
func WithLogger(logger *zap.Logger) EditorOption {
	return func(e *Editor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHistoryCapacity bounds the undo stack.
func WithHistoryCapacity(n int) EditorOption {
	return func(e *Editor) { e.capacity = n }
}

// WithZoomRange sets the zoom clamp.
func WithZoomRange(minZoom, maxZoom float64) EditorOption {
	return func(e *Editor) { e.minZoom, e.maxZoom = minZoom, maxZoom }
}

// WithIDGenerator sets the id source for new nodes and edges.
func WithIDGenerator(ids *IDGenerator) EditorOption {
	return func(e *Editor) {
		if ids != nil {
			e.ids = ids
		}
	}
}

// WithRouter replaces the edge router.
func WithRouter(r EdgeRouter) EditorOption {
	return func(e *Editor) { e.router = r }
}

// WithPortResolver replaces the port resolver.
func WithPortResolver(r PortResolver) EditorOption {
	return func(e *Editor) { e.ports = r }
}

// NewEditor creates an editor over an empty document and commits it as the
// first history entry.
func NewEditor(opts ...EditorOption) *Editor {
	e := &Editor{
		ports:    NewPortResolver(),
		router:   NewEdgeRouter(),
		logger:   zap.NewNop(),
		capacity: DefaultHistoryCapacity,
		minZoom:  DefaultMinZoom,
		maxZoom:  DefaultMaxZoom,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ids == nil {
		e.ids = NewIDGenerator()
	}
	e.logger = e.logger.With(zap.String("component", "canvas_editor"))
	e.model = NewGraphModel(e.ids)
	e.view = NewViewTransform(e.minZoom, e.maxZoom)
	e.history = NewHistory(e.capacity)
	e.commit()
	return e
}

// Model returns the underlying model. Mutating it directly bypasses
// history.
func (e *Editor) Model() *GraphModel { return e.model }

// View returns the view transform.
func (e *Editor) View() *ViewTransform { return e.view }

// History returns the undo stack.
func (e *Editor) History() *History { return e.history }

// commit records the model. A move still in flight is uncommitted state
// and is reverted first.
func (e *Editor) commit() {
	if e.gesture != nil && e.gesture.kind == gestureMove {
		e.CancelGesture()
	}
	e.history.Commit(e.model.Snapshot())
}

// reject logs a refused operation. Refusals are not surfaced as errors to
// the UI; callers see false.
func (e *Editor) reject(op string, err error) {
	e.logger.Debug("operation rejected", zap.String("op", op), zap.Error(err))
}

// AddNode places a new node with default data.
func (e *Editor) AddNode(kind NodeKind, position Point) (Node, bool) {
	n, err := e.addNode(kind, position)
	return n, err == nil
}

func (e *Editor) addNode(kind NodeKind, position Point) (Node, error) {
	n, err := e.model.AddNode(kind, position)
	if err != nil {
		e.reject("add_node", err)
		return Node{}, err
	}
	e.commit()
	return n, nil
}

// addNodeWithData adds a node and applies initial data in one history
// entry. If the data is rejected the node is not added.
func (e *Editor) addNodeWithData(kind NodeKind, position Point, data map[string]any) (Node, error) {
	if len(data) == 0 {
		return e.addNode(kind, position)
	}
	before := e.model.Snapshot()
	n, err := e.model.AddNode(kind, position)
	if err == nil {
		_, err = e.model.UpdateNode(n.ID, data)
	}
	if err != nil {
		e.model.Restore(before)
		e.reject("add_node", err)
		return Node{}, err
	}
	e.commit()
	n, _ = e.model.Node(n.ID)
	return n, nil
}

// UpdateNode merges partial into a node's data. An update that changes
// nothing does not commit.
func (e *Editor) UpdateNode(id string, partial map[string]any) bool {
	return e.updateNode(id, partial) == nil
}

func (e *Editor) updateNode(id string, partial map[string]any) error {
	if n, ok := e.model.Node(id); ok {
		if unknown := unknownNodeDataKeys(n.Data, partial); len(unknown) > 0 {
			e.logger.Debug("ignored unknown node data keys",
				zap.String("node_id", id),
				zap.String("kind", string(n.Kind)),
				zap.Strings("keys", unknown))
		}
	}
	changed, err := e.model.UpdateNode(id, partial)
	if err != nil {
		e.reject("update_node", err)
		return err
	}
	if changed {
		e.commit()
	}
	return nil
}

// DeleteNode removes a node and its edges.
func (e *Editor) DeleteNode(id string) bool {
	return e.deleteNode(id) == nil
}

func (e *Editor) deleteNode(id string) error {
	if err := e.model.DeleteNode(id); err != nil {
		e.reject("delete_node", err)
		return err
	}
	e.commit()
	return nil
}

// DuplicateNode copies a node without its edges.
func (e *Editor) DuplicateNode(id string) (Node, bool) {
	n, err := e.duplicateNode(id)
	return n, err == nil
}

func (e *Editor) duplicateNode(id string) (Node, error) {
	n, err := e.model.DuplicateNode(id)
	if err != nil {
		e.reject("duplicate_node", err)
		return Node{}, err
	}
	e.commit()
	return n, nil
}

// MoveNode sets a node's position and commits.
func (e *Editor) MoveNode(id string, position Point) bool {
	return e.moveNode(id, position) == nil
}

func (e *Editor) moveNode(id string, position Point) error {
	n, ok := e.model.Node(id)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		e.reject("move_node", err)
		return err
	}
	if n.Position == position {
		return nil
	}
	_ = e.model.MoveNode(id, position)
	e.commit()
	return nil
}

// Connect adds an edge from a source port to a target. targetPortID may be
// a declared input port or the target node's id for kinds without ports.
func (e *Editor) Connect(sourceID, sourcePortID, targetID, targetPortID string) (Edge, bool) {
	edge, err := e.connect(Edge{
		Source:       sourceID,
		Target:       targetID,
		SourcePortID: sourcePortID,
		TargetPortID: targetPortID,
	})
	return edge, err == nil
}

// ConnectEdge adds a fully described edge.
func (e *Editor) ConnectEdge(edge Edge) (Edge, bool) {
	out, err := e.connect(edge)
	return out, err == nil
}

func (e *Editor) connect(edge Edge) (Edge, error) {
	// <id>-center and <id> name the same port
	if edge.TargetPortID != "" && edge.TargetPortID == PortID(edge.Target, RoleCenter) {
		edge.TargetPortID = edge.Target
	}
	if err := e.checkPorts(edge); err != nil {
		e.reject("connect", err)
		return Edge{}, err
	}
	added, err := e.model.AddEdge(edge)
	if err != nil {
		e.reject("connect", err)
		return Edge{}, err
	}
	e.commit()
	return added, nil
}

// checkPorts rejects edges whose ports do not belong to their nodes.
// Empty port ids are allowed and render at the node center.
func (e *Editor) checkPorts(edge Edge) error {
	if edge.SourcePortID != "" {
		src, ok := e.model.Node(edge.Source)
		if !ok {
			return fmt.Errorf("%w: source %s", ErrNodeNotFound, edge.Source)
		}
		p, ok := e.ports.ResolvePort(src, edge.SourcePortID, e.view)
		if !ok || p.Direction != PortOutput {
			return fmt.Errorf("%w: %s is not an output of %s", ErrInvalidPort, edge.SourcePortID, edge.Source)
		}
	}
	if edge.TargetPortID != "" {
		dst, ok := e.model.Node(edge.Target)
		if !ok {
			return fmt.Errorf("%w: target %s", ErrNodeNotFound, edge.Target)
		}
		p, ok := e.ports.ResolveTarget(dst, edge.TargetPortID, e.view)
		if !ok || p.Direction != PortInput {
			return fmt.Errorf("%w: %s is not an input of %s", ErrInvalidPort, edge.TargetPortID, edge.Target)
		}
	}
	return nil
}

// DeleteEdge removes an edge.
func (e *Editor) DeleteEdge(id string) bool {
	return e.deleteEdge(id) == nil
}

func (e *Editor) deleteEdge(id string) error {
	if err := e.model.DeleteEdge(id); err != nil {
		e.reject("delete_edge", err)
		return err
	}
	e.commit()
	return nil
}

// QuickCreate activates an agent's auxiliary port: it spawns the bound
// node kind below the port and connects the port to the new node by id.
// Node and edge land in a single history entry.
func (e *Editor) QuickCreate(portID string) (Node, Edge, bool) {
	n, edge, err := e.quickCreate(portID)
	return n, edge, err == nil
}

func (e *Editor) quickCreate(portID string) (Node, Edge, error) {
	owner, port, ok := e.findPort(portID)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrInvalidPort, portID)
		e.reject("quick_create", err)
		return Node{}, Edge{}, err
	}
	kind, ok := port.QuickCreate.NodeKind()
	if !ok {
		err := fmt.Errorf("%w: %s has no quick-create binding", ErrInvalidPort, portID)
		e.reject("quick_create", err)
		return Node{}, Edge{}, err
	}

	size := NodeSize(kind)
	pos := Pt(
		owner.Position.X+port.Local.X-size.Width/2,
		owner.Position.Y+port.Local.Y+QuickCreateGap,
	)
	before := e.model.Snapshot()
	n, err := e.model.AddNode(kind, pos)
	if err != nil {
		e.reject("quick_create", err)
		return Node{}, Edge{}, err
	}
	edge, err := e.model.AddEdge(Edge{
		Source:       owner.ID,
		Target:       n.ID,
		SourcePortID: port.ID,
		TargetPortID: n.ID,
		Kind:         port.QuickCreate.EdgeKind(),
		DataType:     port.DataType,
	})
	if err != nil {
		e.model.Restore(before)
		e.reject("quick_create", err)
		return Node{}, Edge{}, err
	}
	e.commit()
	return n, edge, nil
}

// findPort locates a declared port by id across all nodes.
func (e *Editor) findPort(portID string) (Node, Port, bool) {
	for _, n := range e.model.Nodes() {
		for _, p := range e.ports.Resolve(n, e.view) {
			if p.ID == portID {
				return n, p, true
			}
		}
	}
	return Node{}, Port{}, false
}

// Select marks a node as selected. Selection is not history.
func (e *Editor) Select(id string) bool {
	if err := e.model.Select(id); err != nil {
		e.reject("select", err)
		return false
	}
	return true
}

// Reset clears the document and commits the empty state.
func (e *Editor) Reset() {
	e.CancelGesture()
	e.model.Reset()
	e.commit()
}

// Load replaces the document. On error nothing changes.
func (e *Editor) Load(nodes []Node, edges []Edge) error {
	e.CancelGesture()
	if err := e.model.Load(nodes, edges); err != nil {
		e.reject("load", err)
		return err
	}
	e.commit()
	e.logger.Debug("document loaded",
		zap.Int("nodes", e.model.NodeCount()),
		zap.Int("edges", e.model.EdgeCount()),
	)
	return nil
}

// Undo restores the previous committed state.
func (e *Editor) Undo() bool {
	e.CancelGesture()
	s, ok := e.history.Undo()
	if !ok {
		return false
	}
	e.history.Apply(func() { e.model.Restore(s) })
	return true
}

// Redo restores the next committed state.
func (e *Editor) Redo() bool {
	e.CancelGesture()
	s, ok := e.history.Redo()
	if !ok {
		return false
	}
	e.history.Apply(func() { e.model.Restore(s) })
	return true
}

// Pan shifts the view.
func (e *Editor) Pan(dx, dy float64) {
	e.view.Pan(dx, dy)
}

// ZoomAt scales the view about a screen point.
func (e *Editor) ZoomAt(screenPoint Point, factor float64) {
	e.view.ZoomAt(screenPoint, factor)
}

// Wheel applies one wheel step at the cursor.
func (e *Editor) Wheel(screenPoint Point, deltaY float64) {
	e.view.Wheel(screenPoint, deltaY)
}

// State is a read-only view of the editor for rendering.
type State struct {
	Nodes    []Node    `json:"nodes"`
	Edges    []Edge    `json:"edges"`
	View     ViewState `json:"view"`
	Selected string    `json:"selected,omitempty"`
	CanUndo  bool      `json:"canUndo"`
	CanRedo  bool      `json:"canRedo"`
	Gesture  string    `json:"gesture,omitempty"`
	Draft    *Draft    `json:"draft,omitempty"`
}

// State returns the current document, view and history flags.
func (e *Editor) State() State {
	s := State{
		Nodes:    e.model.Nodes(),
		Edges:    e.model.Edges(),
		View:     e.view.State(),
		Selected: e.model.Selected(),
		CanUndo:  e.history.CanUndo(),
		CanRedo:  e.history.CanRedo(),
	}
	if e.gesture != nil {
		s.Gesture = string(e.gesture.kind)
		if e.gesture.kind == gestureConnect {
			d := e.gesture.draft
			s.Draft = &d
		}
	}
	return s
}

// Geometry is the derived render geometry of one frame.
type Geometry struct {
	Ports []Port     `json:"ports"`
	Edges []EdgePath `json:"edges"`
	Draft *EdgePath  `json:"draft,omitempty"`
}

// Geometry resolves every port and routes every edge under the current
// view.
func (e *Editor) Geometry() Geometry {
	g := Geometry{Ports: []Port{}}
	for _, n := range e.model.Nodes() {
		g.Ports = append(g.Ports, e.ports.Resolve(n, e.view)...)
	}
	g.Edges = e.router.RouteEdges(e.model, e.view, e.ports)
	if e.gesture != nil && e.gesture.kind == gestureConnect {
		path := e.router.Route(e.gesture.draft.From, e.gesture.draft.To)
		g.Draft = &EdgePath{Path: path, SVG: path.SVG(), Marker: path.Midpoint()}
	}
	return g
}

// Validate runs the structural checks over the current document.
func (e *Editor) Validate() Report {
	return Validate(e.model.Nodes(), e.model.Edges())
}
