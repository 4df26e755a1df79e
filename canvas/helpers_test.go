package canvas

import (
	"time"
)

var testEpoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// fixedIDs returns a generator whose clock never moves, so ids differ only
// by their sequence number.
func fixedIDs() *IDGenerator {
	return NewIDGeneratorWithClock(func() time.Time { return testEpoch })
}

func newTestModel() *GraphModel {
	return NewGraphModel(fixedIDs())
}

func newTestEditor(opts ...EditorOption) *Editor {
	return NewEditor(append([]EditorOption{WithIDGenerator(fixedIDs())}, opts...)...)
}

// chain builds n trigger nodes connected output to input in order.
func chain(m *GraphModel, n int) []Node {
	nodes := make([]Node, n)
	for i := range nodes {
		node, err := m.AddNode(KindTrigger, Pt(float64(i)*300, 0))
		if err != nil {
			panic(err)
		}
		nodes[i] = node
	}
	for i := 1; i < n; i++ {
		_, err := m.AddEdge(Edge{
			Source:       nodes[i-1].ID,
			Target:       nodes[i].ID,
			SourcePortID: PortID(nodes[i-1].ID, RoleOutput),
			TargetPortID: PortID(nodes[i].ID, RoleInput),
		})
		if err != nil {
			panic(err)
		}
	}
	return nodes
}
