package history

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/causalmesh/go-causalmesh/codec"
	"github.com/causalmesh/go-causalmesh/common/types"
)

func opID(name string) types.OpID {
	return types.CalcHash32([]byte(name))
}

func node(name string, prev ...*Node) *Node {
	ids := make([]types.HistoryID, 0, len(prev))
	for _, p := range prev {
		ids = append(ids, p.ID)
	}
	return New(opID(name), ids)
}

// diamond returns root <- (left, right) <- top.
func diamond() (root, left, right, top *Node) {
	root = node("root")
	left = node("left", root)
	right = node("right", root)
	top = node("top", left, right)
	return root, left, right, top
}

func mustAdd(tb testing.TB, f *Fragment, nodes ...*Node) {
	tb.Helper()
	for _, n := range nodes {
		require.NoError(tb, f.Add(n))
	}
}

func sorted(ids ...types.HistoryID) []types.HistoryID {
	rst := slices.Clone(ids)
	types.SortHashes(rst)
	return rst
}

func TestNodeVerify(t *testing.T) {
	root, _, _, top := diamond()
	require.NoError(t, root.Verify())
	require.NoError(t, top.Verify())

	var decoded Node
	require.NoError(t, codec.Decode(codec.MustEncode(top), &decoded))
	require.NoError(t, decoded.Verify())

	forged := *top
	forged.OpID = opID("forged")
	require.ErrorIs(t, forged.Verify(), ErrInvalidNode)

	unsorted := *top
	unsorted.Prev = []types.HistoryID{top.Prev[1], top.Prev[0]}
	require.ErrorIs(t, unsorted.Verify(), ErrInvalidNode)

	empty := New(root.OpID, []types.HistoryID{})
	require.Nil(t, empty.Prev)
	require.Equal(t, root, empty)
}

func TestFragmentTerminalAndMissing(t *testing.T) {
	root, left, right, top := diamond()
	f := NewFragment()

	mustAdd(t, f, top)
	require.Equal(t, []types.HistoryID{top.ID}, f.Terminal())
	require.Equal(t, sorted(left.ID, right.ID), f.MissingPredecessors())

	mustAdd(t, f, left)
	require.Equal(t, []types.HistoryID{top.ID}, f.Terminal())
	require.Equal(t, sorted(right.ID, root.ID), f.MissingPredecessors())

	mustAdd(t, f, right, root)
	require.Empty(t, f.MissingPredecessors())
	require.True(t, f.IsTerminal(top.ID))
	require.False(t, f.IsTerminal(root.ID))

	f.Remove(top.ID)
	require.Equal(t, []types.HistoryID{left.ID, right.ID}, f.Terminal())
	f.Remove(root.ID)
	require.Equal(t, []types.HistoryID{root.ID}, f.MissingPredecessors())
	require.Equal(t, 2, f.Len())
}

func TestFragmentDuplicateOp(t *testing.T) {
	root := node("root")
	f := NewFragment()
	mustAdd(t, f, root)
	// same node twice is not a conflict
	mustAdd(t, f, root)

	forged := New(root.OpID, []types.HistoryID{opID("elsewhere")})
	require.ErrorIs(t, f.Add(forged), ErrDuplicateOp)
	require.Equal(t, 1, f.Len())
	require.Equal(t, root, f.GetByOpID(root.OpID))
}

func TestFragmentVerifyUniqueOps(t *testing.T) {
	root, left, right, top := diamond()
	require.True(t, FromNodes([]*Node{root, left, right, top}).VerifyUniqueOps())

	forged := New(left.OpID, []types.HistoryID{opID("elsewhere")})
	f := FromNodes([]*Node{root, left, forged})
	require.False(t, f.VerifyUniqueOps())
	f.Remove(forged.ID)
	require.True(t, f.VerifyUniqueOps())
}

// randomDAG creates n nodes, each with up to three random predecessors among
// earlier nodes.
func randomDAG(rng *rand.Rand, n int) []*Node {
	nodes := make([]*Node, 0, n)
	for i := range n {
		var prev []*Node
		if i > 0 {
			for range rng.IntN(4) {
				prev = append(prev, nodes[rng.IntN(i)])
			}
		}
		nodes = append(nodes, node(string(rune('a'+i%26))+string(rune('0'+i/26)), prev...))
	}
	return nodes
}

func TestFragmentAddRemoveRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	nodes := randomDAG(rng, 60)
	f := NewFragment()
	for i, n := range nodes {
		if i%3 == 0 {
			// leave gaps so that missing predecessors are exercised
			continue
		}
		mustAdd(t, f, n)
	}
	for _, i := range rng.Perm(len(nodes)) {
		n := nodes[i]
		if f.Has(n.ID) {
			continue
		}
		terminal := f.Terminal()
		missing := f.MissingPredecessors()

		mustAdd(t, f, n)
		f.Remove(n.ID)

		require.Equal(t, terminal, f.Terminal())
		require.Equal(t, missing, f.MissingPredecessors())
	}
}

func TestCausalClosure(t *testing.T) {
	root, left, right, top := diamond()
	f := NewFragment()
	mustAdd(t, f, root, left, right, top)

	all := f.CausalClosure(nil, 0, nil)
	require.Equal(t, []types.HistoryID{root.ID, left.ID, right.ID, top.ID}, all)

	// top requires both branches
	partial := f.CausalClosure([]types.HistoryID{root.ID}, 0, func(id types.HistoryID) bool {
		return false
	})
	require.Equal(t, []types.HistoryID{left.ID, right.ID, top.ID}, partial)

	limited := f.CausalClosure(nil, 2, nil)
	require.Equal(t, []types.HistoryID{root.ID, left.ID}, limited)

	excluded := f.CausalClosure(nil, 2, func(id types.HistoryID) bool { return id == root.ID })
	require.Equal(t, []types.HistoryID{left.ID, right.ID}, excluded)

	unreachable := NewFragment()
	mustAdd(t, unreachable, left, right, top)
	require.Empty(t, unreachable.CausalClosure(nil, 0, nil))
	require.Equal(t,
		[]types.HistoryID{left.ID, right.ID, top.ID},
		unreachable.CausalClosure([]types.HistoryID{root.ID}, 0, nil),
	)
}

func TestCausalClosureDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	f := NewFragment()
	mustAdd(t, f, randomDAG(rng, 80)...)
	first := f.CausalClosure(nil, 50, nil)
	for range 5 {
		if diff := cmp.Diff(first, f.CausalClosure(nil, 50, nil)); diff != "" {
			t.Fatalf("closure changed (-first +next):\n%s", diff)
		}
	}
	require.Len(t, first, 50)
}

func TestFilterByTerminalOpHistories(t *testing.T) {
	root, left, right, top := diamond()
	f := NewFragment()
	mustAdd(t, f, root, left, right, top)

	filtered := f.FilterByTerminalOpHistories([]types.HistoryID{left.ID})
	require.Equal(t, 2, filtered.Len())
	require.True(t, filtered.Has(root.ID))
	require.True(t, filtered.Has(left.ID))
	require.Equal(t, []types.HistoryID{left.ID}, filtered.Terminal())

	require.Zero(t, f.FilterByTerminalOpHistories([]types.HistoryID{opID("unknown")}).Len())
	require.Equal(t, 4, f.FilterByTerminalOpHistories([]types.HistoryID{top.ID}).Len())
}

func collect(f *Fragment, start []types.HistoryID, dir Direction, order Order) []types.HistoryID {
	var rst []types.HistoryID
	for n := range f.IterateFrom(start, dir, order) {
		rst = append(rst, n.ID)
	}
	return rst
}

func TestIterateFrom(t *testing.T) {
	root := node("root")
	a1 := node("a1", root)
	b1 := node("b1", root)
	a2 := node("a2", a1)
	f := NewFragment()
	mustAdd(t, f, root, a1, b1, a2)

	start := []types.HistoryID{root.ID}
	require.Equal(t, []types.HistoryID{root.ID, a1.ID, b1.ID, a2.ID}, collect(f, start, Forward, BreadthFirst))
	require.Equal(t, []types.HistoryID{root.ID, a1.ID, a2.ID, b1.ID}, collect(f, start, Forward, DepthFirst))
	require.Equal(t,
		[]types.HistoryID{a2.ID, a1.ID, root.ID},
		collect(f, []types.HistoryID{a2.ID}, Backward, BreadthFirst),
	)

	// restartable
	seq := f.IterateFrom(start, Forward, BreadthFirst)
	var first, second int
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	require.Equal(t, 4, first)
	require.Equal(t, first, second)

	// early stop
	for n := range seq {
		require.Equal(t, root.ID, n.ID)
		break
	}
}
