package canvas

import "fmt"

// PortDirection says whether a port accepts or emits connections.
type PortDirection string

const (
	PortInput  PortDirection = "input"
	PortOutput PortDirection = "output"
)

// Port roles. Orchestrator outputs are numbered agent1, agent2, ...
const (
	RoleInput  = "input"
	RoleOutput = "output"
	RoleLLM    = "llm"
	RoleMemory = "memory"
	RoleTools  = "tools"
	RoleCenter = "center"
)

// AuxPortGap is the distance between a node's bottom edge and the line its
// auxiliary ports sit on.
const AuxPortGap = 20

// orchestratorOutputs is the number of agentN ports on an orchestrator.
const orchestratorOutputs = 3

// QuickCreateBinding names the node an auxiliary port spawns when
// activated. The caller resolves it; ports never carry behaviour.
type QuickCreateBinding int

const (
	QuickCreateNone QuickCreateBinding = iota
	QuickCreateLLM
	QuickCreateMemory
	QuickCreateTool
)

// String returns the wire name of the binding.
func (b QuickCreateBinding) String() string {
	switch b {
	case QuickCreateLLM:
		return "llm"
	case QuickCreateMemory:
		return "memory"
	case QuickCreateTool:
		return "tool"
	}
	return ""
}

// MarshalText encodes the binding by name.
func (b QuickCreateBinding) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// NodeKind returns the kind of node the binding creates.
func (b QuickCreateBinding) NodeKind() (NodeKind, bool) {
	switch b {
	case QuickCreateLLM:
		return KindLLM, true
	case QuickCreateMemory:
		return KindMemory, true
	case QuickCreateTool:
		return KindTool, true
	}
	return "", false
}

// EdgeKind returns the kind of the edge the binding creates.
func (b QuickCreateBinding) EdgeKind() EdgeKind {
	switch b {
	case QuickCreateMemory:
		return EdgeMemory
	case QuickCreateTool:
		return EdgeControl
	}
	return EdgeData
}

// Port is a derived connection point. It is never stored: Local is the
// offset from the node's top-left corner in node units, Screen the
// position under the current view.
type Port struct {
	ID          string             `json:"id"`
	NodeID      string             `json:"nodeId"`
	Role        string             `json:"role"`
	Direction   PortDirection      `json:"direction"`
	Local       Point              `json:"local"`
	Screen      Point              `json:"screen"`
	DataType    string             `json:"dataType"`
	QuickCreate QuickCreateBinding `json:"quickCreate,omitempty"`
}

// PortID builds the deterministic id of a node's port.
func PortID(nodeID, role string) string {
	return nodeID + "-" + role
}

// PortResolver derives the ports of nodes under a view.
type PortResolver struct {
	// HitRadius is the screen distance within which a pointer hits a port.
	HitRadius float64
}

// NewPortResolver returns a resolver with a 10px hit radius.
func NewPortResolver() PortResolver {
	return PortResolver{HitRadius: 10}
}

// LocalPorts returns the ports a node declares, with Screen unset.
func (r PortResolver) LocalPorts(n Node) []Port {
	s := n.Size()
	mk := func(role string, dir PortDirection, local Point, dataType string, qc QuickCreateBinding) Port {
		return Port{
			ID:          PortID(n.ID, role),
			NodeID:      n.ID,
			Role:        role,
			Direction:   dir,
			Local:       local,
			DataType:    dataType,
			QuickCreate: qc,
		}
	}
	auxY := s.Height + AuxPortGap

	switch n.Kind {
	case KindTrigger, KindOutput:
		return []Port{
			mk(RoleInput, PortInput, Pt(0, s.Height/2), DefaultDataType, QuickCreateNone),
			mk(RoleOutput, PortOutput, Pt(s.Width, s.Height/2), DefaultDataType, QuickCreateNone),
		}
	case KindAgent:
		return []Port{
			mk(RoleInput, PortInput, Pt(0, s.Height/2), DefaultDataType, QuickCreateNone),
			mk(RoleOutput, PortOutput, Pt(s.Width, s.Height/2), DefaultDataType, QuickCreateNone),
			mk(RoleLLM, PortOutput, Pt(s.Width/4, auxY), "llm", QuickCreateLLM),
			mk(RoleMemory, PortOutput, Pt(s.Width/2, auxY), "memory", QuickCreateMemory),
			mk(RoleTools, PortOutput, Pt(s.Width*3/4, auxY), "tool", QuickCreateTool),
		}
	case KindOrchestrator:
		ports := []Port{mk(RoleInput, PortInput, Pt(s.Width/2, 0), DefaultDataType, QuickCreateNone)}
		for i := 1; i <= orchestratorOutputs; i++ {
			x := s.Width * float64(i) / float64(orchestratorOutputs+1)
			ports = append(ports, mk(fmt.Sprintf("agent%d", i), PortOutput, Pt(x, auxY), "agent", QuickCreateNone))
		}
		return ports
	case KindLLM, KindTool, KindMemory:
		return nil
	}
	return nil
}

// Resolve returns the node's ports positioned in screen space.
func (r PortResolver) Resolve(n Node, v *ViewTransform) []Port {
	ports := r.LocalPorts(n)
	for i := range ports {
		ports[i].Screen = r.toScreen(n, ports[i].Local, v)
	}
	return ports
}

// CenterPort returns the synthetic port at the node's center, used for
// edges that target a node without an input port.
func (r PortResolver) CenterPort(n Node, v *ViewTransform) Port {
	s := n.Size()
	local := Pt(s.Width/2, s.Height/2)
	return Port{
		ID:        PortID(n.ID, RoleCenter),
		NodeID:    n.ID,
		Role:      RoleCenter,
		Direction: PortInput,
		Local:     local,
		Screen:    r.toScreen(n, local, v),
		DataType:  DefaultDataType,
	}
}

// ResolvePort finds portID on n. An id equal to the node id, or the
// center port id, resolves to the center port. Loaded documents may carry
// such ids for any node, so drawing uses this lenient form.
func (r PortResolver) ResolvePort(n Node, portID string, v *ViewTransform) (Port, bool) {
	for _, p := range r.Resolve(n, v) {
		if p.ID == portID {
			return p, true
		}
	}
	if portID == n.ID || portID == PortID(n.ID, RoleCenter) {
		return r.CenterPort(n, v), true
	}
	return Port{}, false
}

// ResolveTarget is ResolvePort for new connections: the center fallback
// only applies to nodes without a declared input, so one link has one
// port tuple.
func (r PortResolver) ResolveTarget(n Node, portID string, v *ViewTransform) (Port, bool) {
	p, ok := r.ResolvePort(n, portID, v)
	if !ok || (p.Role == RoleCenter && r.HasInput(n)) {
		return Port{}, false
	}
	return p, true
}

// HasInput reports whether n declares an input port.
func (r PortResolver) HasInput(n Node) bool {
	for _, p := range r.LocalPorts(n) {
		if p.Direction == PortInput {
			return true
		}
	}
	return false
}

// HitTest returns the port closest to screenPoint within HitRadius. Later
// nodes are drawn on top and win ties.
func (r PortResolver) HitTest(nodes []Node, v *ViewTransform, screenPoint Point) (Port, bool) {
	var (
		best     Port
		bestDist = r.HitRadius
		found    bool
	)
	for i := len(nodes) - 1; i >= 0; i-- {
		for _, p := range r.Resolve(nodes[i], v) {
			d := p.Screen.Distance(screenPoint)
			if d < bestDist || (!found && d <= bestDist) {
				best, bestDist, found = p, d, true
			}
		}
	}
	return best, found
}

func (r PortResolver) toScreen(n Node, local Point, v *ViewTransform) Point {
	return v.WorldToScreen(n.Position).Add(local.Scale(v.Zoom()))
}
