package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func portByRole(t *testing.T, ports []Port, role string) Port {
	t.Helper()
	for _, p := range ports {
		if p.Role == role {
			return p
		}
	}
	require.Failf(t, "port not found", "role %s", role)
	return Port{}
}

func TestPortResolver_GenericPortsUnderZoomAndPan(t *testing.T) {
	v := NewViewTransform(DefaultMinZoom, DefaultMaxZoom)
	v.Set(Pt(10, 20), 2)
	n := Node{ID: "out", Kind: KindOutput, Position: Pt(100, 100)}

	ports := NewPortResolver().Resolve(n, v)
	require.Len(t, ports, 2)

	in := portByRole(t, ports, RoleInput)
	assert.Equal(t, Pt(210, 340), in.Screen)
	assert.Equal(t, "out-input", in.ID)
	assert.Equal(t, PortInput, in.Direction)

	out := portByRole(t, ports, RoleOutput)
	assert.Equal(t, Pt(10+200+384, 340), out.Screen)
}

func TestPortResolver_AgentAuxiliaryPorts(t *testing.T) {
	v := NewViewTransform(DefaultMinZoom, DefaultMaxZoom)
	n := Node{ID: "a1", Kind: KindAgent, Position: Pt(0, 0)}

	ports := NewPortResolver().Resolve(n, v)
	require.Len(t, ports, 5)

	tests := []struct {
		role    string
		local   Point
		binding QuickCreateBinding
	}{
		{RoleInput, Pt(0, 64), QuickCreateNone},
		{RoleOutput, Pt(192, 64), QuickCreateNone},
		{RoleLLM, Pt(48, 148), QuickCreateLLM},
		{RoleMemory, Pt(96, 148), QuickCreateMemory},
		{RoleTools, Pt(144, 148), QuickCreateTool},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			p := portByRole(t, ports, tt.role)
			assert.Equal(t, tt.local, p.Local)
			assert.Equal(t, tt.local, p.Screen)
			assert.Equal(t, tt.binding, p.QuickCreate)
			assert.Equal(t, PortID("a1", tt.role), p.ID)
		})
	}
}

func TestPortResolver_Orchestrator(t *testing.T) {
	v := NewViewTransform(DefaultMinZoom, DefaultMaxZoom)
	n := Node{ID: "o", Kind: KindOrchestrator, Position: Pt(0, 0)}

	ports := NewPortResolver().Resolve(n, v)
	require.Len(t, ports, 4)
	assert.Equal(t, Pt(96, 0), portByRole(t, ports, RoleInput).Local)
	assert.Equal(t, Pt(48, 148), portByRole(t, ports, "agent1").Local)
	assert.Equal(t, Pt(96, 148), portByRole(t, ports, "agent2").Local)
	assert.Equal(t, Pt(144, 148), portByRole(t, ports, "agent3").Local)
}

func TestPortResolver_PortlessKindsUseCenter(t *testing.T) {
	r := NewPortResolver()
	v := NewViewTransform(DefaultMinZoom, DefaultMaxZoom)
	for _, kind := range []NodeKind{KindLLM, KindTool, KindMemory} {
		n := Node{ID: "x", Kind: kind, Position: Pt(10, 10)}
		assert.Empty(t, r.Resolve(n, v))
		assert.False(t, r.HasInput(n))

		p, ok := r.ResolvePort(n, "x", v)
		require.True(t, ok)
		assert.Equal(t, RoleCenter, p.Role)
		assert.Equal(t, Pt(10+96, 10+40), p.Screen)

		_, ok = r.ResolvePort(n, "x-input", v)
		assert.False(t, ok)
	}
}

func TestPortResolver_ResolveTarget(t *testing.T) {
	r := NewPortResolver()
	v := NewViewTransform(DefaultMinZoom, DefaultMaxZoom)

	out := Node{ID: "o", Kind: KindOutput}
	_, ok := r.ResolveTarget(out, "o-input", v)
	assert.True(t, ok)
	for _, alias := range []string{"o", "o-center"} {
		_, ok = r.ResolveTarget(out, alias, v)
		assert.False(t, ok, alias)
		_, ok = r.ResolvePort(out, alias, v)
		assert.True(t, ok, "drawing still falls back for %s", alias)
	}

	mem := Node{ID: "m", Kind: KindMemory}
	p, ok := r.ResolveTarget(mem, "m", v)
	require.True(t, ok)
	assert.Equal(t, RoleCenter, p.Role)
}

func TestPortResolver_HitTest(t *testing.T) {
	r := NewPortResolver()
	v := NewViewTransform(DefaultMinZoom, DefaultMaxZoom)
	nodes := []Node{
		{ID: "a", Kind: KindTrigger, Position: Pt(0, 0)},
		{ID: "b", Kind: KindTrigger, Position: Pt(192, 0)},
	}

	// a's output and b's input coincide at (192, 60); b is on top.
	p, ok := r.HitTest(nodes, v, Pt(193, 61))
	require.True(t, ok)
	assert.Equal(t, "b-input", p.ID)

	p, ok = r.HitTest(nodes, v, Pt(3, 58))
	require.True(t, ok)
	assert.Equal(t, "a-input", p.ID)

	_, ok = r.HitTest(nodes, v, Pt(100, 100))
	assert.False(t, ok)
}

func TestPortResolver_ScreenFormula(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := NewViewTransform(DefaultMinZoom, DefaultMaxZoom)
		v.Set(
			Pt(rapid.Float64Range(-300, 300).Draw(t, "panX"), rapid.Float64Range(-300, 300).Draw(t, "panY")),
			rapid.Float64Range(DefaultMinZoom, DefaultMaxZoom).Draw(t, "zoom"),
		)
		kind := rapid.SampledFrom(NodeKinds).Draw(t, "kind")
		n := Node{
			ID:       "n",
			Kind:     kind,
			Position: Pt(rapid.Float64Range(-1000, 1000).Draw(t, "x"), rapid.Float64Range(-1000, 1000).Draw(t, "y")),
		}
		for _, p := range NewPortResolver().Resolve(n, v) {
			want := v.WorldToScreen(n.Position.Add(p.Local))
			if p.Screen.Distance(want) > 1e-6 {
				t.Fatalf("%s: got %v want %v", p.ID, p.Screen, want)
			}
		}
	})
}
