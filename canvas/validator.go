package canvas

import (
	"fmt"
	"strings"
)

// Severity ranks a validation issue. Errors block execution but never
// editing; warnings and infos are advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IssueCode identifies the check that produced an issue.
type IssueCode string

const (
	IssueOrphanNode      IssueCode = "orphan_node"
	IssueCycle           IssueCode = "cycle"
	IssuePartiallyLinked IssueCode = "partially_connected"
	IssueMissingField    IssueCode = "missing_field"
	IssueNoStartPoint    IssueCode = "no_start_point"
	IssueMultipleStarts  IssueCode = "multiple_start_points"
	IssueNoEndPoint      IssueCode = "no_end_point"
	IssueDanglingEdge    IssueCode = "dangling_edge"
)

// Issue is one diagnostic. NodeID is set when the issue concerns a single
// node.
type Issue struct {
	Severity Severity  `json:"severity"`
	Code     IssueCode `json:"code"`
	Message  string    `json:"message"`
	NodeID   string    `json:"nodeId,omitempty"`
}

// Report is the outcome of Validate.
type Report struct {
	Issues []Issue `json:"issues"`
}

// Valid reports whether no issue of any severity was found.
func (r Report) Valid() bool {
	return len(r.Issues) == 0
}

// ExecutionReady reports whether the graph has no errors.
func (r Report) ExecutionReady() bool {
	return len(r.Errors()) == 0
}

// Errors returns the error issues.
func (r Report) Errors() []Issue {
	return r.bySeverity(SeverityError)
}

// Warnings returns the warning issues.
func (r Report) Warnings() []Issue {
	return r.bySeverity(SeverityWarning)
}

func (r Report) bySeverity(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// Count returns the number of issues per severity.
func (r Report) Count() map[Severity]int {
	out := make(map[Severity]int, 3)
	for _, i := range r.Issues {
		out[i.Severity]++
	}
	return out
}

// Validate runs every structural check over a snapshot of the graph. The
// checks are independent and their issues accumulate; nothing is modified.
func Validate(nodes []Node, edges []Edge) Report {
	v := &validator{
		nodes:    nodes,
		known:    make(map[string]bool, len(nodes)),
		adj:      make(map[string][]string, len(nodes)),
		incoming: make(map[string]int, len(nodes)),
		outgoing: make(map[string]int, len(nodes)),
		touched:  make(map[string]bool, len(nodes)),
	}
	for _, n := range nodes {
		v.known[n.ID] = true
	}
	for _, e := range edges {
		if !v.known[e.Source] || !v.known[e.Target] {
			v.add(SeverityError, IssueDanglingEdge, fmt.Sprintf("edge %s references an unknown node", e.ID), "")
			continue
		}
		v.adj[e.Source] = append(v.adj[e.Source], e.Target)
		v.outgoing[e.Source]++
		v.incoming[e.Target]++
		v.touched[e.Source] = true
		v.touched[e.Target] = true
	}

	v.checkOrphans()
	v.checkCycles()
	v.checkConnectivity()
	v.checkRequiredFields()
	v.checkStartPoints()
	v.checkEndPoints()

	return Report{Issues: v.issues}
}

type validator struct {
	nodes    []Node
	known    map[string]bool
	adj      map[string][]string
	incoming map[string]int
	outgoing map[string]int
	touched  map[string]bool
	issues   []Issue
}

func (v *validator) add(sev Severity, code IssueCode, msg, nodeID string) {
	v.issues = append(v.issues, Issue{Severity: sev, Code: code, Message: msg, NodeID: nodeID})
}

func (v *validator) checkOrphans() {
	for _, n := range v.nodes {
		if !v.touched[n.ID] {
			v.add(SeverityWarning, IssueOrphanNode, "node is not connected", n.ID)
		}
	}
}

// checkCycles reports a single error when any back edge exists.
func (v *validator) checkCycles() {
	visited := make(map[string]bool, len(v.nodes))
	recStack := make(map[string]bool, len(v.nodes))
	for _, n := range v.nodes {
		if visited[n.ID] {
			continue
		}
		if at, found := v.hasCycleDFS(n.ID, visited, recStack); found {
			v.add(SeverityError, IssueCycle, "workflow contains cycles", at)
			return
		}
	}
}

// hasCycleDFS returns the node a back edge points at, if any.
func (v *validator) hasCycleDFS(id string, visited, recStack map[string]bool) (string, bool) {
	visited[id] = true
	recStack[id] = true
	for _, next := range v.adj[id] {
		if !visited[next] {
			if at, found := v.hasCycleDFS(next, visited, recStack); found {
				return at, true
			}
		} else if recStack[next] {
			return next, true
		}
	}
	recStack[id] = false
	return "", false
}

func (v *validator) checkConnectivity() {
	connected := 0
	for _, n := range v.nodes {
		if v.touched[n.ID] {
			connected++
		}
	}
	if connected > 0 && connected < len(v.nodes) {
		v.add(SeverityWarning, IssuePartiallyLinked,
			fmt.Sprintf("workflow is only partially connected (%d of %d nodes)", connected, len(v.nodes)), "")
	}
}

func (v *validator) checkRequiredFields() {
	for _, n := range v.nodes {
		switch d := n.Data.(type) {
		case *AgentData:
			if blank(d.Name) {
				v.add(SeverityError, IssueMissingField, "agent requires a name", n.ID)
			}
			if blank(d.SystemPrompt) {
				v.add(SeverityError, IssueMissingField, "agent requires a system prompt", n.ID)
			}
		case *LLMData:
			if blank(d.Provider) {
				v.add(SeverityError, IssueMissingField, "llm requires a provider", n.ID)
			}
			if blank(d.Model) {
				v.add(SeverityError, IssueMissingField, "llm requires a model", n.ID)
			}
		case *ToolData, *MemoryData, *TriggerData, *OutputData, *OrchestratorData:
		case nil:
			v.add(SeverityError, IssueMissingField, fmt.Sprintf("%s node has no configuration", n.Kind), n.ID)
		}
	}
}

func (v *validator) checkStartPoints() {
	starts := 0
	for _, n := range v.nodes {
		if v.incoming[n.ID] == 0 {
			starts++
		}
	}
	switch {
	case starts == 0:
		v.add(SeverityError, IssueNoStartPoint, "no start points found", "")
	case starts > 1:
		v.add(SeverityWarning, IssueMultipleStarts, fmt.Sprintf("multiple start points found (%d)", starts), "")
	}
}

// checkEndPoints only runs on a non-empty graph; an empty graph is already
// reported by the start-point check.
func (v *validator) checkEndPoints() {
	if len(v.nodes) == 0 {
		return
	}
	for _, n := range v.nodes {
		if v.outgoing[n.ID] == 0 {
			return
		}
	}
	v.add(SeverityWarning, IssueNoEndPoint, "no end points found", "")
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
