package canvas

import "fmt"

// NodeKind identifies what a node does in the workflow.
type NodeKind string

const (
	KindAgent        NodeKind = "agent"
	KindOrchestrator NodeKind = "orchestrator"
	KindLLM          NodeKind = "llm"
	KindTool         NodeKind = "tool"
	KindMemory       NodeKind = "memory"
	KindTrigger      NodeKind = "trigger"
	KindOutput       NodeKind = "output"
)

// NodeKinds lists every kind in palette order.
var NodeKinds = []NodeKind{
	KindTrigger,
	KindAgent,
	KindOrchestrator,
	KindLLM,
	KindTool,
	KindMemory,
	KindOutput,
}

// ParseNodeKind converts a wire value into a NodeKind.
func ParseNodeKind(s string) (NodeKind, error) {
	k := NodeKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case KindAgent, KindOrchestrator, KindLLM, KindTool, KindMemory, KindTrigger, KindOutput:
		return true
	}
	return false
}

const nodeWidth = 192

// NodeSize returns the fixed render size of a kind. All port geometry is
// derived from it.
func NodeSize(kind NodeKind) Size {
	switch kind {
	case KindAgent, KindOrchestrator:
		return Size{Width: nodeWidth, Height: 128}
	case KindLLM, KindTool, KindMemory:
		return Size{Width: nodeWidth, Height: 80}
	default:
		return Size{Width: nodeWidth, Height: 120}
	}
}

// Node is a typed, positioned unit in the workflow graph. Position is the
// world-space top-left corner.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Position Point    `json:"position"`
	Data     NodeData `json:"data"`
}

// Size returns the node's render size.
func (n Node) Size() Size {
	return NodeSize(n.Kind)
}

// Center returns the world-space center of the node's bounding box.
func (n Node) Center() Point {
	s := n.Size()
	return n.Position.Add(Pt(s.Width/2, s.Height/2))
}

// Contains reports whether the world point p lies inside the node.
func (n Node) Contains(p Point) bool {
	s := n.Size()
	return p.X >= n.Position.X && p.X <= n.Position.X+s.Width &&
		p.Y >= n.Position.Y && p.Y <= n.Position.Y+s.Height
}

// Clone returns a deep copy; the copy shares nothing with n.
func (n Node) Clone() Node {
	c := n
	if n.Data != nil {
		c.Data = cloneNodeData(n.Data)
	}
	return c
}
