// Package history implements op-history nodes and fragments of the causal
// history DAG.
package history

import (
	"errors"
	"fmt"
	"slices"

	"github.com/causalmesh/go-causalmesh/common/types"
)

// ErrInvalidNode is returned when a node id doesn't match its content.
var ErrInvalidNode = errors.New("invalid op history")

//go:generate scalegen -types Node

// Node describes the position of one op in the causal history.
type Node struct {
	ID   types.HistoryID
	OpID types.OpID
	// Prev are history ids of the direct predecessors, sorted and unique.
	Prev []types.HistoryID `scale:"max=1024"`
}

// New creates a node for the op with the given predecessors.
func New(opID types.OpID, prev []types.HistoryID) *Node {
	var sorted []types.HistoryID
	if len(prev) > 0 {
		sorted = slices.Clone(prev)
		types.SortHashes(sorted)
		sorted = slices.Compact(sorted)
	}
	n := &Node{OpID: opID, Prev: sorted}
	n.ID = n.ComputeID()
	return n
}

// ComputeID hashes op id together with predecessor history ids.
func (n *Node) ComputeID() types.HistoryID {
	chunks := make([][]byte, 0, len(n.Prev)+1)
	chunks = append(chunks, n.OpID[:])
	for i := range n.Prev {
		chunks = append(chunks, n.Prev[i][:])
	}
	return types.CalcHash32(chunks...)
}

// Verify checks that the node is in canonical form and that its id matches the content.
func (n *Node) Verify() error {
	for i := 1; i < len(n.Prev); i++ {
		if n.Prev[i-1].Compare(n.Prev[i]) >= 0 {
			return fmt.Errorf("%w: %s predecessors are not sorted", ErrInvalidNode, n.ID.ShortString())
		}
	}
	if computed := n.ComputeID(); computed != n.ID {
		return fmt.Errorf("%w: declared %s computed %s", ErrInvalidNode, n.ID.ShortString(), computed.ShortString())
	}
	return nil
}

// IsRoot is true for the first ops of a mutable object.
func (n *Node) IsRoot() bool {
	return len(n.Prev) == 0
}
