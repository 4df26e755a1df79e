package canvas

import (
	"fmt"
	"reflect"
)

// DuplicateOffset is how far a duplicated node is shifted from its source
// on both axes.
const DuplicateOffset = 100

// GraphModel owns the nodes and edges of one document. Every method either
// applies completely or leaves the model untouched. Values handed out are
// copies; mutating them does not affect the model.
type GraphModel struct {
	nodes    []Node
	edges    []Edge
	selected string
	ids      *IDGenerator
}

// NewGraphModel creates an empty model. A nil generator uses the wall clock.
func NewGraphModel(ids *IDGenerator) *GraphModel {
	if ids == nil {
		ids = NewIDGenerator()
	}
	return &GraphModel{ids: ids}
}

// Node returns a copy of the node with the given id.
func (m *GraphModel) Node(id string) (Node, bool) {
	i := m.nodeIndex(id)
	if i < 0 {
		return Node{}, false
	}
	return m.nodes[i].Clone(), true
}

// Nodes returns copies of all nodes in insertion order.
func (m *GraphModel) Nodes() []Node {
	out := make([]Node, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Edges returns copies of all edges in insertion order.
func (m *GraphModel) Edges() []Edge {
	out := make([]Edge, len(m.edges))
	copy(out, m.edges)
	return out
}

// Edge returns the edge with the given id.
func (m *GraphModel) Edge(id string) (Edge, bool) {
	i := m.edgeIndex(id)
	if i < 0 {
		return Edge{}, false
	}
	return m.edges[i], true
}

// NodeCount returns the number of nodes.
func (m *GraphModel) NodeCount() int { return len(m.nodes) }

// EdgeCount returns the number of edges.
func (m *GraphModel) EdgeCount() int { return len(m.edges) }

// AddNode places a node of kind at position with the kind's default data.
func (m *GraphModel) AddNode(kind NodeKind, position Point) (Node, error) {
	if !kind.Valid() {
		return Node{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	n := Node{
		ID:       m.nextNodeID(kind),
		Kind:     kind,
		Position: position,
		Data:     DefaultNodeData(kind),
	}
	m.nodes = append(m.nodes, n)
	return n.Clone(), nil
}

// UpdateNode shallow-merges partial into the node's data. changed reports
// whether the stored data differs afterwards. A malformed tool "parameters"
// value is discarded and the remaining keys still apply.
func (m *GraphModel) UpdateNode(id string, partial map[string]any) (changed bool, err error) {
	i := m.nodeIndex(id)
	if i < 0 {
		return false, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	current := m.nodes[i].Data
	if current.Kind() == KindTool {
		partial, _ = sanitizeToolParameters(partial)
	}
	if len(partial) == 0 {
		return false, nil
	}
	merged, err := mergeNodeData(current, partial)
	if err != nil {
		return false, fmt.Errorf("update node %s: %w", id, err)
	}
	if reflect.DeepEqual(current, merged) {
		return false, nil
	}
	m.nodes[i].Data = merged
	return true, nil
}

// MoveNode sets the world position of a node.
func (m *GraphModel) MoveNode(id string, position Point) error {
	i := m.nodeIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	m.nodes[i].Position = position
	return nil
}

// DeleteNode removes a node and every edge touching it. The selection is
// cleared when it pointed at the node.
func (m *GraphModel) DeleteNode(id string) error {
	i := m.nodeIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	m.nodes = append(m.nodes[:i], m.nodes[i+1:]...)

	kept := m.edges[:0]
	for _, e := range m.edges {
		if !e.Touches(id) {
			kept = append(kept, e)
		}
	}
	m.edges = kept

	if m.selected == id {
		m.selected = ""
	}
	return nil
}

// DuplicateNode clones a node under a new id, offset by DuplicateOffset on
// both axes. Edges are not copied.
func (m *GraphModel) DuplicateNode(id string) (Node, error) {
	i := m.nodeIndex(id)
	if i < 0 {
		return Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	n := m.nodes[i].Clone()
	n.ID = m.nextNodeID(n.Kind)
	n.Position = n.Position.Add(Pt(DuplicateOffset, DuplicateOffset))
	m.nodes = append(m.nodes, n)
	return n.Clone(), nil
}

// AddEdge inserts e after checking it. Self-loops, edges with an unknown
// end and edges identical to an existing one are rejected without changing
// the model. An empty or already used id is replaced by a fresh one.
func (m *GraphModel) AddEdge(e Edge) (Edge, error) {
	if e.Source == e.Target {
		return Edge{}, fmt.Errorf("%w: %s", ErrSelfLoop, e.Source)
	}
	if m.nodeIndex(e.Source) < 0 {
		return Edge{}, fmt.Errorf("%w: source %s", ErrNodeNotFound, e.Source)
	}
	if m.nodeIndex(e.Target) < 0 {
		return Edge{}, fmt.Errorf("%w: target %s", ErrNodeNotFound, e.Target)
	}
	e.applyDefaults()
	if !e.Kind.Valid() {
		return Edge{}, fmt.Errorf("%w: kind %q", ErrInvalidEdge, e.Kind)
	}
	for _, existing := range m.edges {
		if existing.SameLink(e) {
			return Edge{}, fmt.Errorf("%w: %s", ErrDuplicateEdge, existing.ID)
		}
	}
	if e.ID == "" || m.edgeIndex(e.ID) >= 0 {
		e.ID = m.nextEdgeID()
	}
	m.edges = append(m.edges, e)
	return e, nil
}

// DeleteEdge removes the edge with the given id.
func (m *GraphModel) DeleteEdge(id string) error {
	i := m.edgeIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	m.edges = append(m.edges[:i], m.edges[i+1:]...)
	return nil
}

// Reset empties the model.
func (m *GraphModel) Reset() {
	m.nodes = nil
	m.edges = nil
	m.selected = ""
}

// Load replaces the model's contents. Node ids must be unique and every
// edge must reference loaded nodes; identical edges collapse into one.
// On error the previous contents are kept.
func (m *GraphModel) Load(nodes []Node, edges []Edge) error {
	loaded := make([]Node, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node without id", ErrInvalidDocument)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
		}
		if !n.Kind.Valid() {
			return fmt.Errorf("%w: node %s kind %q", ErrUnknownKind, n.ID, n.Kind)
		}
		n = n.Clone()
		if n.Data == nil {
			n.Data = DefaultNodeData(n.Kind)
		} else if n.Data.Kind() != n.Kind {
			return fmt.Errorf("%w: node %s is %s but carries %s data", ErrInvalidNodeData, n.ID, n.Kind, n.Data.Kind())
		}
		seen[n.ID] = true
		loaded = append(loaded, n)
	}

	loadedEdges := make([]Edge, 0, len(edges))
	edgeIDs := make(map[string]bool, len(edges))
outer:
	for _, e := range edges {
		if !seen[e.Source] || !seen[e.Target] {
			return fmt.Errorf("%w: edge %s references unknown node", ErrNodeNotFound, e.ID)
		}
		e.applyDefaults()
		if !e.Kind.Valid() {
			return fmt.Errorf("%w: edge %s kind %q", ErrInvalidEdge, e.ID, e.Kind)
		}
		for _, prev := range loadedEdges {
			if prev.SameLink(e) {
				continue outer
			}
		}
		if e.ID != "" {
			if edgeIDs[e.ID] {
				return fmt.Errorf("%w: duplicate edge id %s", ErrInvalidEdge, e.ID)
			}
			edgeIDs[e.ID] = true
		}
		loadedEdges = append(loadedEdges, e)
	}
	for i := range loadedEdges {
		for loadedEdges[i].ID == "" {
			id := m.ids.Next("edge")
			if !edgeIDs[id] {
				edgeIDs[id] = true
				loadedEdges[i].ID = id
			}
		}
	}

	m.nodes = loaded
	m.edges = loadedEdges
	m.selected = ""
	return nil
}

// Select marks a node as selected. An empty id clears the selection.
func (m *GraphModel) Select(id string) error {
	if id != "" && m.nodeIndex(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	m.selected = id
	return nil
}

// Selected returns the selected node id, or "" when nothing is selected.
func (m *GraphModel) Selected() string {
	return m.selected
}

// Snapshot returns an immutable copy of the nodes and edges.
func (m *GraphModel) Snapshot() Snapshot {
	return Snapshot{Nodes: m.Nodes(), Edges: m.Edges()}
}

// Restore replaces the contents with a snapshot. Snapshots come from this
// model's history and are trusted.
func (m *GraphModel) Restore(s Snapshot) {
	c := s.Clone()
	m.nodes = c.Nodes
	m.edges = c.Edges
	if m.selected != "" && m.nodeIndex(m.selected) < 0 {
		m.selected = ""
	}
}

func (m *GraphModel) nodeIndex(id string) int {
	for i := range m.nodes {
		if m.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *GraphModel) edgeIndex(id string) int {
	for i := range m.edges {
		if m.edges[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *GraphModel) nextNodeID(kind NodeKind) string {
	for {
		id := m.ids.Next(string(kind))
		if m.nodeIndex(id) < 0 {
			return id
		}
	}
}

func (m *GraphModel) nextEdgeID() string {
	for {
		id := m.ids.Next("edge")
		if m.edgeIndex(id) < 0 {
			return id
		}
	}
}
