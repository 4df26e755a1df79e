package canvas

// EdgeKind classifies what flows along an edge.
type EdgeKind string

const (
	EdgeData    EdgeKind = "data"
	EdgeControl EdgeKind = "control"
	EdgeMemory  EdgeKind = "memory"
)

// DefaultDataType is the data type of an edge that does not name one.
const DefaultDataType = "any"

// Valid reports whether k is a known edge kind.
func (k EdgeKind) Valid() bool {
	switch k {
	case EdgeData, EdgeControl, EdgeMemory:
		return true
	}
	return false
}

// Edge is a directed link from a source port to a target port. When the
// target declares no input port, TargetPortID equals Target and the edge
// renders at the target's center.
type Edge struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	SourcePortID string   `json:"sourcePortId"`
	TargetPortID string   `json:"targetPortId"`
	Kind         EdgeKind `json:"kind"`
	DataType     string   `json:"dataType"`
}

// Touches reports whether nodeID is either end of e.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// SameLink reports whether e and o connect the same ports of the same nodes.
func (e Edge) SameLink(o Edge) bool {
	return e.Source == o.Source && e.SourcePortID == o.SourcePortID &&
		e.Target == o.Target && e.TargetPortID == o.TargetPortID
}

func (e *Edge) applyDefaults() {
	if e.Kind == "" {
		e.Kind = EdgeData
	}
	if e.DataType == "" {
		e.DataType = DefaultDataType
	}
}
