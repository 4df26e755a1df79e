package canvas

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// applyRandomOp runs one of a few committing operations chosen by code
// and reports whether it changed the document.
func applyRandomOp(e *Editor, code int) bool {
	nodes := e.Model().Nodes()
	switch code {
	case 0:
		_, ok := e.AddNode(KindTrigger, Pt(float64(len(nodes))*50, 0))
		return ok
	case 1:
		_, ok := e.AddNode(KindAgent, Pt(0, float64(len(nodes))*50))
		return ok
	case 2:
		if len(nodes) == 0 {
			return false
		}
		return e.DeleteNode(nodes[0].ID)
	case 3:
		if len(nodes) < 2 {
			return false
		}
		_, ok := e.Connect(nodes[0].ID, "", nodes[len(nodes)-1].ID, "")
		return ok
	case 4:
		if len(nodes) == 0 {
			return false
		}
		return e.MoveNode(nodes[0].ID, nodes[0].Position.Add(Pt(7, 3)))
	}
	return false
}

func TestProperty_UndoRedoRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 40

	properties := gopter.NewProperties(parameters)

	properties.Property("undoing every commit restores each earlier state and redo replays them", prop.ForAll(
		func(codes []int) bool {
			e := newTestEditor()
			states := []Snapshot{e.Model().Snapshot()}
			for _, c := range codes {
				if applyRandomOp(e, c) {
					states = append(states, e.Model().Snapshot())
				}
			}

			for i := len(states) - 2; i >= 0; i-- {
				if !e.Undo() {
					t.Logf("undo %d refused", i)
					return false
				}
				if !reflect.DeepEqual(states[i], e.Model().Snapshot()) {
					t.Logf("state after undo to %d differs", i)
					return false
				}
			}
			if e.Undo() {
				return false
			}

			for i := 1; i < len(states); i++ {
				if !e.Redo() {
					return false
				}
				if !reflect.DeepEqual(states[i], e.Model().Snapshot()) {
					t.Logf("state after redo to %d differs", i)
					return false
				}
			}
			return !e.Redo()
		},
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}

func TestProperty_HistoryNeverExceedsCapacity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("len stays within capacity and position within len", prop.ForAll(
		func(capacity, commits int) bool {
			h := NewHistory(capacity)
			for i := 0; i < commits; i++ {
				h.Commit(snapshotWith(i % 3))
			}
			want := min(commits, capacity)
			return h.Len() == want && h.Position() == want-1
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}
