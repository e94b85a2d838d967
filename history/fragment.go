package history

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/causalmesh/go-causalmesh/common/types"
)

// ErrDuplicateOp is returned when a fragment already has a different history for the same op.
var ErrDuplicateOp = errors.New("duplicate history for op")

// Direction of a fragment traversal.
type Direction uint8

const (
	// Forward follows successors.
	Forward Direction = iota
	// Backward follows predecessors.
	Backward
)

// Order of a fragment traversal.
type Order uint8

const (
	// BreadthFirst visits nodes level by level.
	BreadthFirst Order = iota
	// DepthFirst visits a whole branch before its siblings.
	DepthFirst
)

type entry struct {
	node *Node
	seq  uint64
}

// Fragment is a partially known subgraph of the causal history.
//
// Terminal nodes have no successor inside the fragment. Missing predecessors
// are referenced by nodes of the fragment but are not part of it. Both sets
// are maintained on every Add and Remove.
//
// Fragment is not safe for concurrent use.
type Fragment struct {
	contents map[types.HistoryID]*entry
	byOp     map[types.OpID]map[types.HistoryID]struct{}
	// next maps a history id (present or not) to its successors present in the fragment.
	next     map[types.HistoryID]types.HashSet
	terminal types.HashSet
	missing  types.HashSet
	seq      uint64
}

// NewFragment creates an empty fragment.
func NewFragment() *Fragment {
	return &Fragment{
		contents: map[types.HistoryID]*entry{},
		byOp:     map[types.OpID]map[types.HistoryID]struct{}{},
		next:     map[types.HistoryID]types.HashSet{},
		terminal: types.HashSet{},
		missing:  types.HashSet{},
	}
}

// FromNodes builds a fragment out of untrusted nodes. Conflicting histories
// for the same op are kept, so VerifyUniqueOps must be consulted before the
// fragment is trusted.
func FromNodes(nodes []*Node) *Fragment {
	f := NewFragment()
	for _, n := range nodes {
		if _, exist := f.contents[n.ID]; exist {
			continue
		}
		f.insert(n)
	}
	return f
}

// Add inserts the node. Adding a node that is already present is a no-op.
func (f *Fragment) Add(n *Node) error {
	if _, exist := f.contents[n.ID]; exist {
		return nil
	}
	if other := f.GetByOpID(n.OpID); other != nil {
		return fmt.Errorf("%w: op %s has history %s, got %s",
			ErrDuplicateOp, n.OpID.ShortString(), other.ID.ShortString(), n.ID.ShortString())
	}
	f.insert(n)
	return nil
}

func (f *Fragment) insert(n *Node) {
	f.seq++
	f.contents[n.ID] = &entry{node: n, seq: f.seq}
	ops, exist := f.byOp[n.OpID]
	if !exist {
		ops = map[types.HistoryID]struct{}{}
		f.byOp[n.OpID] = ops
	}
	ops[n.ID] = struct{}{}
	for _, prev := range n.Prev {
		succ, exist := f.next[prev]
		if !exist {
			succ = types.HashSet{}
			f.next[prev] = succ
		}
		succ.Add(n.ID)
		delete(f.terminal, prev)
		if _, present := f.contents[prev]; !present {
			f.missing.Add(prev)
		}
	}
	delete(f.missing, n.ID)
	if len(f.next[n.ID]) == 0 {
		f.terminal.Add(n.ID)
	}
}

// Remove deletes the node. Removing an absent node is a no-op.
func (f *Fragment) Remove(id types.HistoryID) {
	e, exist := f.contents[id]
	if !exist {
		return
	}
	n := e.node
	delete(f.contents, id)
	if ops := f.byOp[n.OpID]; ops != nil {
		delete(ops, id)
		if len(ops) == 0 {
			delete(f.byOp, n.OpID)
		}
	}
	for _, prev := range n.Prev {
		succ := f.next[prev]
		delete(succ, id)
		if len(succ) != 0 {
			continue
		}
		delete(f.next, prev)
		if _, present := f.contents[prev]; present {
			f.terminal.Add(prev)
		} else {
			delete(f.missing, prev)
		}
	}
	delete(f.terminal, id)
	if len(f.next[id]) != 0 {
		f.missing.Add(id)
	}
}

// Has reports whether the node is in the fragment.
func (f *Fragment) Has(id types.HistoryID) bool {
	_, exist := f.contents[id]
	return exist
}

// Get returns the node or nil.
func (f *Fragment) Get(id types.HistoryID) *Node {
	if e, exist := f.contents[id]; exist {
		return e.node
	}
	return nil
}

// GetByOpID returns the earliest inserted node for the op, or nil.
func (f *Fragment) GetByOpID(opID types.OpID) *Node {
	var best *entry
	for id := range f.byOp[opID] {
		if e := f.contents[id]; best == nil || e.seq < best.seq {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	return best.node
}

// Len returns the number of nodes.
func (f *Fragment) Len() int {
	return len(f.contents)
}

// IsTerminal reports whether id is a terminal node of the fragment.
func (f *Fragment) IsTerminal(id types.HistoryID) bool {
	return f.terminal.Has(id)
}

// Terminal returns terminal node ids in insertion order.
func (f *Fragment) Terminal() []types.HistoryID {
	return f.sortBySeq(f.terminal)
}

// IsMissing reports whether id is referenced by the fragment but absent from it.
func (f *Fragment) IsMissing(id types.HistoryID) bool {
	return f.missing.Has(id)
}

// MissingPredecessors returns missing ids sorted lexicographically.
func (f *Fragment) MissingPredecessors() []types.HistoryID {
	return f.missing.Sorted()
}

// Nodes returns all nodes in insertion order.
func (f *Fragment) Nodes() []*Node {
	entries := make([]*entry, 0, len(f.contents))
	for _, e := range f.contents {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *entry) int { return cmp.Compare(a.seq, b.seq) })
	rst := make([]*Node, len(entries))
	for i, e := range entries {
		rst[i] = e.node
	}
	return rst
}

// Clone returns an independent copy with the same insertion order.
func (f *Fragment) Clone() *Fragment {
	cp := NewFragment()
	for _, n := range f.Nodes() {
		cp.insert(n)
	}
	return cp
}

// VerifyUniqueOps returns false if two nodes of the fragment share an op id.
func (f *Fragment) VerifyUniqueOps() bool {
	seen := make(map[types.OpID]types.HistoryID, len(f.contents))
	for id, e := range f.contents {
		if other, exist := seen[e.node.OpID]; exist && other != id {
			return false
		}
		seen[e.node.OpID] = id
	}
	return true
}

// CausalClosure walks the fragment forward from start and returns ids of
// nodes whose predecessors are all either in start or reached earlier.
// Excluded nodes are reached but neither returned nor counted against limit.
// Non-positive limit means no limit. Traversal is breadth first with ties
// broken by insertion order, so the result is stable for an unchanged fragment.
func (f *Fragment) CausalClosure(
	start []types.HistoryID,
	limit int,
	exclude func(types.HistoryID) bool,
) []types.HistoryID {
	reached := types.NewHashSet(start...)
	ready := func(n *Node) bool {
		for _, prev := range n.Prev {
			if !reached.Has(prev) {
				return false
			}
		}
		return true
	}
	var queue []*Node
	queued := types.HashSet{}
	for _, n := range f.Nodes() {
		if !reached.Has(n.ID) && ready(n) {
			queue = append(queue, n)
			queued.Add(n.ID)
		}
	}
	var rst []types.HistoryID
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if exclude == nil || !exclude(n.ID) {
			if limit > 0 && len(rst) >= limit {
				break
			}
			rst = append(rst, n.ID)
		}
		reached.Add(n.ID)
		for _, id := range f.sortBySeq(f.next[n.ID]) {
			succ := f.contents[id].node
			if queued.Has(id) || reached.Has(id) || !ready(succ) {
				continue
			}
			queue = append(queue, succ)
			queued.Add(id)
		}
	}
	return rst
}

// FilterByTerminalOpHistories returns a fragment with the nodes reachable
// backward from boundary, boundary included. Ids absent from the fragment are ignored.
func (f *Fragment) FilterByTerminalOpHistories(boundary []types.HistoryID) *Fragment {
	reachable := types.HashSet{}
	for n := range f.IterateFrom(boundary, Backward, BreadthFirst) {
		reachable.Add(n.ID)
	}
	filtered := NewFragment()
	for _, n := range f.Nodes() {
		if reachable.Has(n.ID) {
			filtered.insert(n)
		}
	}
	return filtered
}

// IterateFrom returns a lazy traversal starting at the start nodes that are
// present in the fragment. Every node is yielded at most once per iteration and
// the sequence can be ranged over again to restart the traversal.
func (f *Fragment) IterateFrom(start []types.HistoryID, dir Direction, order Order) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		visited := types.HashSet{}
		var pending []*Node
		push := func(id types.HistoryID) {
			e, exist := f.contents[id]
			if !exist || visited.Has(id) {
				return
			}
			visited.Add(id)
			pending = append(pending, e.node)
		}
		pop := func() *Node {
			var n *Node
			if order == BreadthFirst {
				n, pending = pending[0], pending[1:]
			} else {
				n, pending = pending[len(pending)-1], pending[:len(pending)-1]
			}
			return n
		}
		pushAll := func(ids []types.HistoryID) {
			if order == DepthFirst {
				// reversed, so that the earliest inserted neighbour is visited first
				for i := len(ids) - 1; i >= 0; i-- {
					push(ids[i])
				}
				return
			}
			for _, id := range ids {
				push(id)
			}
		}
		pushAll(start)
		for len(pending) > 0 {
			n := pop()
			if !yield(n) {
				return
			}
			pushAll(f.neighbours(n, dir))
		}
	}
}

func (f *Fragment) neighbours(n *Node, dir Direction) []types.HistoryID {
	if dir == Forward {
		return f.sortBySeq(f.next[n.ID])
	}
	present := types.HashSet{}
	for _, prev := range n.Prev {
		if f.Has(prev) {
			present.Add(prev)
		}
	}
	return f.sortBySeq(present)
}

// sortBySeq returns present ids of the set in insertion order.
func (f *Fragment) sortBySeq(set types.HashSet) []types.HistoryID {
	entries := make([]*entry, 0, len(set))
	for id := range set {
		if e, exist := f.contents[id]; exist {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b *entry) int { return cmp.Compare(a.seq, b.seq) })
	rst := make([]types.HistoryID, len(entries))
	for i, e := range entries {
		rst[i] = e.node.ID
	}
	return rst
}
