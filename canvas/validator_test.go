package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueCodes(r Report) []IssueCode {
	codes := make([]IssueCode, 0, len(r.Issues))
	for _, i := range r.Issues {
		codes = append(codes, i.Code)
	}
	return codes
}

func TestValidate_EmptyGraph(t *testing.T) {
	r := Validate(nil, nil)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, "no start points found", r.Issues[0].Message)
	assert.Equal(t, SeverityError, r.Issues[0].Severity)
	assert.False(t, r.Valid())
	assert.False(t, r.ExecutionReady())
}

func TestValidate_RingHasCycle(t *testing.T) {
	nodes := []Node{
		{ID: "A", Kind: KindTrigger, Data: DefaultNodeData(KindTrigger)},
		{ID: "B", Kind: KindTrigger, Data: DefaultNodeData(KindTrigger)},
		{ID: "C", Kind: KindTrigger, Data: DefaultNodeData(KindTrigger)},
	}
	edges := []Edge{
		{ID: "1", Source: "A", Target: "B"},
		{ID: "2", Source: "B", Target: "C"},
		{ID: "3", Source: "C", Target: "A"},
	}

	r := Validate(nodes, edges)
	assert.Contains(t, issueCodes(r), IssueCycle)
	assert.Contains(t, issueCodes(r), IssueNoStartPoint)
	assert.Contains(t, issueCodes(r), IssueNoEndPoint)
	for _, i := range r.Errors() {
		if i.Code == IssueCycle {
			assert.Equal(t, "workflow contains cycles", i.Message)
		}
	}
	assert.False(t, r.ExecutionReady())
}

func TestValidate_ChainHasNoIssues(t *testing.T) {
	m := newTestModel()
	chain(m, 3)

	r := Validate(m.Nodes(), m.Edges())
	assert.NotContains(t, issueCodes(r), IssueCycle)
	assert.True(t, r.Valid())
	assert.True(t, r.ExecutionReady())
}

func TestValidate_CycleBehindAcyclicPrefix(t *testing.T) {
	nodes := []Node{
		{ID: "S", Kind: KindTrigger},
		{ID: "A", Kind: KindOutput},
		{ID: "B", Kind: KindOutput},
	}
	edges := []Edge{
		{ID: "1", Source: "S", Target: "A"},
		{ID: "2", Source: "A", Target: "B"},
		{ID: "3", Source: "B", Target: "A"},
	}
	r := Validate(nodes, edges)
	assert.Contains(t, issueCodes(r), IssueCycle)
	assert.NotContains(t, issueCodes(r), IssueNoStartPoint)
}

func TestValidate_DiamondIsNotACycle(t *testing.T) {
	nodes := []Node{{ID: "A", Kind: KindTrigger}, {ID: "B", Kind: KindTrigger}, {ID: "C", Kind: KindTrigger}, {ID: "D", Kind: KindOutput}}
	edges := []Edge{
		{ID: "1", Source: "A", Target: "B"},
		{ID: "2", Source: "A", Target: "C"},
		{ID: "3", Source: "B", Target: "D"},
		{ID: "4", Source: "C", Target: "D"},
	}
	r := Validate(nodes, edges)
	assert.NotContains(t, issueCodes(r), IssueCycle)
}

func TestValidate_OrphansAndPartialConnectivity(t *testing.T) {
	m := newTestModel()
	chain(m, 2)
	lonely, err := m.AddNode(KindOutput, Pt(0, 500))
	require.NoError(t, err)

	r := Validate(m.Nodes(), m.Edges())

	var orphan *Issue
	for i := range r.Issues {
		if r.Issues[i].Code == IssueOrphanNode {
			orphan = &r.Issues[i]
		}
	}
	require.NotNil(t, orphan)
	assert.Equal(t, lonely.ID, orphan.NodeID)
	assert.Equal(t, SeverityWarning, orphan.Severity)
	assert.Contains(t, issueCodes(r), IssuePartiallyLinked)
	assert.Contains(t, issueCodes(r), IssueMultipleStarts)
	assert.True(t, r.ExecutionReady())
	assert.False(t, r.Valid())
}

func TestValidate_RequiredFields(t *testing.T) {
	nodes := []Node{
		{ID: "agent", Kind: KindAgent, Data: &AgentData{Name: " ", MaxConversations: 10}},
		{ID: "llm", Kind: KindLLM, Data: &LLMData{Provider: "openai"}},
	}
	edges := []Edge{{ID: "1", Source: "agent", Target: "llm"}}

	r := Validate(nodes, edges)
	var msgs []string
	for _, i := range r.Errors() {
		if i.Code == IssueMissingField {
			msgs = append(msgs, i.NodeID+": "+i.Message)
		}
	}
	assert.ElementsMatch(t, []string{
		"agent: agent requires a name",
		"agent: agent requires a system prompt",
		"llm: llm requires a model",
	}, msgs)
}

func TestValidate_CheckOrder(t *testing.T) {
	nodes := []Node{
		{ID: "A", Kind: KindAgent, Data: DefaultNodeData(KindAgent)},
		{ID: "B", Kind: KindTrigger, Data: DefaultNodeData(KindTrigger)},
	}
	r := Validate(nodes, nil)
	assert.Equal(t, []IssueCode{
		IssueOrphanNode,
		IssueOrphanNode,
		IssueMissingField,
		IssueMultipleStarts,
	}, issueCodes(r))
}

func TestValidate_DanglingEdge(t *testing.T) {
	nodes := []Node{{ID: "A", Kind: KindTrigger}}
	r := Validate(nodes, []Edge{{ID: "x", Source: "A", Target: "ghost"}})
	assert.Contains(t, issueCodes(r), IssueDanglingEdge)
}
