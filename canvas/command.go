package canvas

import (
	"errors"
	"fmt"
)

// Op names a serializable editor command.
type Op string

const (
	OpAddNode       Op = "add_node"
	OpUpdateNode    Op = "update_node"
	OpDeleteNode    Op = "delete_node"
	OpDuplicateNode Op = "duplicate_node"
	OpConnect       Op = "connect"
	OpDeleteEdge    Op = "delete_edge"
	OpMoveNode      Op = "move_node"
	OpQuickCreate   Op = "quick_create"
	OpSelect        Op = "select"
	OpPan           Op = "pan"
	OpZoom          Op = "zoom"
	OpWheel         Op = "wheel"
	OpUndo          Op = "undo"
	OpRedo          Op = "redo"
	OpReset         Op = "reset"
	OpShortcut      Op = "shortcut"
	OpPointerDown   Op = "pointer_down"
	OpPointerMove   Op = "pointer_move"
	OpPointerUp     Op = "pointer_up"
	OpCancel        Op = "cancel"
)

// Ops lists every op Dispatch understands.
var Ops = []Op{
	OpAddNode, OpUpdateNode, OpDeleteNode, OpDuplicateNode, OpConnect,
	OpDeleteEdge, OpMoveNode, OpQuickCreate, OpSelect, OpPan, OpZoom,
	OpWheel, OpUndo, OpRedo, OpReset, OpShortcut, OpPointerDown,
	OpPointerMove, OpPointerUp, OpCancel,
}

// Command is the wire form of one editor operation. Only the fields the
// op needs are read.
type Command struct {
	Op Op `json:"op"`

	Kind         NodeKind       `json:"kind,omitempty"`
	NodeID       string         `json:"nodeId,omitempty"`
	EdgeID       string         `json:"edgeId,omitempty"`
	PortID       string         `json:"portId,omitempty"`
	Position     *Point         `json:"position,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Source       string         `json:"source,omitempty"`
	Target       string         `json:"target,omitempty"`
	SourcePortID string         `json:"sourcePortId,omitempty"`
	TargetPortID string         `json:"targetPortId,omitempty"`
	EdgeKind     EdgeKind       `json:"edgeKind,omitempty"`
	DataType     string         `json:"dataType,omitempty"`

	// Point is a screen point for zoom, wheel and pointer ops.
	Point  *Point  `json:"point,omitempty"`
	Delta  *Point  `json:"delta,omitempty"`
	Factor float64 `json:"factor,omitempty"`
	DeltaY float64 `json:"deltaY,omitempty"`
	Key    *Key    `json:"key,omitempty"`
	// On is the pointer target; when nil it is hit-tested from Point.
	On *Target `json:"on,omitempty"`
}

// Outcome reports what a dispatched command did.
type Outcome struct {
	Op      Op     `json:"op"`
	Applied bool   `json:"applied"`
	NodeID  string `json:"nodeId,omitempty"`
	EdgeID  string `json:"edgeId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Dispatch applies c. Malformed commands return an error wrapping
// ErrUnknownCommand or ErrInvalidCommand. Commands the model refuses are
// not errors: the Outcome is not Applied and carries the reason.
func (e *Editor) Dispatch(c Command) (Outcome, error) {
	out := Outcome{Op: c.Op}
	refused := func(err error) (Outcome, error) {
		out.Reason = err.Error()
		return out, nil
	}
	applied := func(ok bool) (Outcome, error) {
		out.Applied = ok
		return out, nil
	}

	switch c.Op {
	case OpAddNode:
		if c.Position == nil {
			return out, missing(c.Op, "position")
		}
		kind, err := ParseNodeKind(string(c.Kind))
		if err != nil {
			return out, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		n, err := e.addNodeWithData(kind, *c.Position, c.Data)
		if err != nil {
			return refused(err)
		}
		out.NodeID = n.ID
		return applied(true)

	case OpUpdateNode:
		if c.NodeID == "" {
			return out, missing(c.Op, "nodeId")
		}
		out.NodeID = c.NodeID
		if err := e.updateNode(c.NodeID, c.Data); err != nil {
			return refused(err)
		}
		return applied(true)

	case OpDeleteNode:
		if c.NodeID == "" {
			return out, missing(c.Op, "nodeId")
		}
		out.NodeID = c.NodeID
		if err := e.deleteNode(c.NodeID); err != nil {
			return refused(err)
		}
		return applied(true)

	case OpDuplicateNode:
		if c.NodeID == "" {
			return out, missing(c.Op, "nodeId")
		}
		n, err := e.duplicateNode(c.NodeID)
		if err != nil {
			return refused(err)
		}
		out.NodeID = n.ID
		return applied(true)

	case OpMoveNode:
		if c.NodeID == "" || c.Position == nil {
			return out, missing(c.Op, "nodeId and position")
		}
		out.NodeID = c.NodeID
		if err := e.moveNode(c.NodeID, *c.Position); err != nil {
			return refused(err)
		}
		return applied(true)

	case OpConnect:
		if c.Source == "" || c.Target == "" {
			return out, missing(c.Op, "source and target")
		}
		edge, err := e.connect(Edge{
			Source:       c.Source,
			Target:       c.Target,
			SourcePortID: c.SourcePortID,
			TargetPortID: c.TargetPortID,
			Kind:         c.EdgeKind,
			DataType:     c.DataType,
		})
		if err != nil {
			return refused(err)
		}
		out.EdgeID = edge.ID
		return applied(true)

	case OpDeleteEdge:
		if c.EdgeID == "" {
			return out, missing(c.Op, "edgeId")
		}
		out.EdgeID = c.EdgeID
		if err := e.deleteEdge(c.EdgeID); err != nil {
			return refused(err)
		}
		return applied(true)

	case OpQuickCreate:
		if c.PortID == "" {
			return out, missing(c.Op, "portId")
		}
		n, edge, err := e.quickCreate(c.PortID)
		if err != nil {
			return refused(err)
		}
		out.NodeID, out.EdgeID = n.ID, edge.ID
		return applied(true)

	case OpSelect:
		out.NodeID = c.NodeID
		if err := e.model.Select(c.NodeID); err != nil {
			return refused(err)
		}
		return applied(true)

	case OpPan:
		if c.Delta == nil {
			return out, missing(c.Op, "delta")
		}
		e.Pan(c.Delta.X, c.Delta.Y)
		return applied(true)

	case OpZoom:
		if c.Point == nil || c.Factor <= 0 {
			return out, missing(c.Op, "point and positive factor")
		}
		e.ZoomAt(*c.Point, c.Factor)
		return applied(true)

	case OpWheel:
		if c.Point == nil {
			return out, missing(c.Op, "point")
		}
		e.Wheel(*c.Point, c.DeltaY)
		return applied(true)

	case OpUndo:
		return applied(e.Undo())

	case OpRedo:
		return applied(e.Redo())

	case OpReset:
		e.Reset()
		return applied(true)

	case OpShortcut:
		if c.Key == nil {
			return out, missing(c.Op, "key")
		}
		return applied(e.Shortcut(*c.Key))

	case OpPointerDown, OpPointerUp:
		if c.Point == nil {
			return out, missing(c.Op, "point")
		}
		target := e.pointerTarget(c)
		out.NodeID, out.EdgeID = target.NodeID, target.EdgeID
		if c.Op == OpPointerDown {
			return applied(e.PointerDown(target, *c.Point))
		}
		return applied(e.PointerUp(target, *c.Point))

	case OpPointerMove:
		if c.Point == nil {
			return out, missing(c.Op, "point")
		}
		e.PointerMove(*c.Point)
		return applied(true)

	case OpCancel:
		e.CancelGesture()
		return applied(true)
	}
	return out, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Op)
}

func (e *Editor) pointerTarget(c Command) Target {
	if c.On != nil {
		return *c.On
	}
	return e.HitTarget(*c.Point)
}

func missing(op Op, what string) error {
	return fmt.Errorf("%w: %s requires %s", ErrInvalidCommand, op, what)
}

// IsCommandError reports whether err comes from a malformed command rather
// than a refused operation.
func IsCommandError(err error) bool {
	return errors.Is(err, ErrUnknownCommand) || errors.Is(err, ErrInvalidCommand)
}
