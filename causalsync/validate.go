package causalsync

import (
	"errors"
	"fmt"

	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/object"
	"github.com/causalmesh/go-causalmesh/store"
)

var (
	errUnrequestedTerminal = errors.New("terminal history was not requested")
	errKnownHistory        = errors.New("history known to the requester was sent back")
	errConflictingHistory  = errors.New("conflicting history for op")
	errUnrequestedOp       = errors.New("op was not requested")
	errUnjustifiedOp       = errors.New("op does not follow the current state")
	errBadOmission         = errors.New("invalid omitted object")
)

// validateResponse checks the response against the request before any of it
// is trusted. On success the response fragment and the expected history of
// every promised op are recorded on the request.
func (s *Synchronizer) validateResponse(req *request) (CancelReason, error) {
	resp := req.response
	if int(resp.LiteralCount) > s.cfg.MaxLiteralsPerResponse {
		return CancelInvalidResponse, fmt.Errorf("%d literals over limit %d",
			resp.LiteralCount, s.cfg.MaxLiteralsPerResponse)
	}
	for seq := range req.buffer {
		if seq >= resp.LiteralCount {
			return CancelOutOfOrderLiteral, fmt.Errorf("literal %d of %d", seq, resp.LiteralCount)
		}
	}
	if len(resp.SendingOps) == 0 && len(resp.Omitted) > 0 {
		return CancelInvalidResponse, fmt.Errorf("%w: %d omitted objects without ops", errBadOmission, len(resp.Omitted))
	}
	nodes := make([]*history.Node, len(resp.History))
	for i := range resp.History {
		n := &resp.History[i]
		if err := n.Verify(); err != nil {
			return CancelInvalidResponse, err
		}
		nodes[i] = n
	}
	frag := history.FromNodes(nodes)
	if !frag.VerifyUniqueOps() {
		return CancelInvalidResponse, errConflictingHistory
	}
	requested := types.NewHashSet(req.msg.TerminalHistories...)
	for _, id := range frag.Terminal() {
		if !requested.Has(id) {
			return CancelInvalidResponse, fmt.Errorf("%w: %s", errUnrequestedTerminal, id.ShortString())
		}
	}
	known := types.NewHashSet(req.msg.StartingHistories...)
	for _, id := range req.msg.CurrentState {
		known.Add(id)
	}
	for _, n := range frag.Nodes() {
		if known.Has(n.ID) {
			return CancelInvalidResponse, fmt.Errorf("%w: %s", errKnownHistory, n.ID.ShortString())
		}
		if other := s.st.discovered.GetByOpID(n.OpID); other != nil && other.ID != n.ID {
			return CancelInvalidResponse, fmt.Errorf("%w %s: discovered %s, got %s", errConflictingHistory,
				n.OpID.ShortString(), other.ID.ShortString(), n.ID.ShortString())
		}
		stored, err := s.store.LoadHistoryByOpID(n.OpID)
		switch {
		case err == nil && stored.ID != n.ID:
			return CancelInvalidResponse, fmt.Errorf("%w %s: stored %s, got %s", errConflictingHistory,
				n.OpID.ShortString(), stored.ID.ShortString(), n.ID.ShortString())
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return CancelOther, err
		}
	}

	asked := make(map[types.OpID]types.HistoryID, len(req.msg.Ops))
	for i, id := range req.msg.Ops {
		asked[id] = req.opHistories[i]
	}
	reach := types.NewHashSet(req.msg.CurrentState...)
	seen := types.HashSet{}
	expected := make([]types.HistoryID, 0, len(resp.SendingOps))
	for _, id := range resp.SendingOps {
		if !seen.Add(id) {
			return CancelInvalidResponse, fmt.Errorf("op %s promised twice", id.ShortString())
		}
		if h, exist := asked[id]; exist {
			reach.Add(h)
			expected = append(expected, h)
			continue
		}
		if req.msg.Mode != ModeInferOps {
			return CancelInvalidResponse, fmt.Errorf("%w: %s", errUnrequestedOp, id.ShortString())
		}
		n := frag.GetByOpID(id)
		if n == nil {
			n = s.st.discovered.GetByOpID(id)
		}
		if n == nil {
			return CancelInvalidResponse, fmt.Errorf("%w: %s has no history", errUnrequestedOp, id.ShortString())
		}
		for _, prev := range n.Prev {
			if reach.Has(prev) || s.st.requested.Has(prev) || s.isStored(prev) {
				continue
			}
			return CancelInvalidResponse, fmt.Errorf("%w: %s after %s", errUnjustifiedOp,
				id.ShortString(), prev.ShortString())
		}
		reach.Add(n.ID)
		expected = append(expected, n.ID)
	}
	req.fragment = frag
	req.expected = expected
	return 0, nil
}

// validateOmissions checks that every omitted object is reachable from an
// object held locally and that the remote proved it holds the object.
// Verified objects are added to the request context.
func (s *Synchronizer) validateOmissions(req *request) error {
	for i := range req.response.Omitted {
		om := &req.response.Omitted[i]
		lit, err := s.followChain(om)
		if err != nil {
			return err
		}
		proof, err := object.OwnershipProof(lit, req.msg.OmissionSecret)
		if err != nil {
			return err
		}
		if proof != om.Proof {
			return fmt.Errorf("%w: wrong proof for %s", errBadOmission, om.Hash.ShortString())
		}
		req.context.AddStored(lit)
	}
	return nil
}

func (s *Synchronizer) followChain(om *OmittedObject) (*object.Literal, error) {
	if len(om.Chain) == 0 || om.Chain[len(om.Chain)-1] != om.Hash {
		return nil, fmt.Errorf("%w: chain of %s doesn't end at it", errBadOmission, om.Hash.ShortString())
	}
	head := om.Chain[0]
	if head != s.target {
		op, err := s.store.LoadOp(head)
		if err != nil {
			return nil, fmt.Errorf("%w: chain start %s: %w", errBadOmission, head.ShortString(), err)
		}
		if op.Target != s.target {
			return nil, fmt.Errorf("%w: chain start %s is an op of %s", errBadOmission,
				head.ShortString(), op.Target.ShortString())
		}
	}
	current, err := s.store.LoadLiteral(head)
	if err != nil {
		return nil, fmt.Errorf("%w: chain start %s: %w", errBadOmission, head.ShortString(), err)
	}
	for _, next := range om.Chain[1:] {
		if !current.HasDependency(next) {
			return nil, fmt.Errorf("%w: %s doesn't depend on %s", errBadOmission,
				current.Hash.ShortString(), next.ShortString())
		}
		if current, err = s.store.LoadLiteral(next); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errBadOmission, next.ShortString(), err)
		}
	}
	return current, nil
}
