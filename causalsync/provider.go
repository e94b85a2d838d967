package causalsync

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/log"
	"github.com/causalmesh/go-causalmesh/object"
	"github.com/causalmesh/go-causalmesh/p2p"
	"github.com/causalmesh/go-causalmesh/store"
)

// Provider serves requests of remotes from the local store.
type Provider struct {
	logger    *zap.Logger
	cfg       Config
	target    types.ObjectID
	agentID   string
	store     Store
	transport Transport

	mu sync.Mutex
	// active requests being streamed, true once cancelled.
	active map[RequestID]bool
}

// NewProvider creates a provider for the target.
func NewProvider(
	logger *zap.Logger,
	cfg Config,
	target types.ObjectID,
	agentID string,
	db Store,
	transport Transport,
) *Provider {
	return &Provider{
		logger:    logger.With(log.ZShortStringer("target", target)),
		cfg:       cfg,
		target:    target,
		agentID:   agentID,
		store:     db,
		transport: transport,
		active:    map[RequestID]bool{},
	}
}

// HandleMessage serves requests and cancellations sent by remotes.
func (p *Provider) HandleMessage(peer p2p.Peer, data []byte) error {
	msg, err := DecodeMessage(data)
	if err != nil {
		return err
	}
	switch m := msg.(type) {
	case *RequestMsg:
		p.serve(peer, m)
	case *CancelMsg:
		p.mu.Lock()
		if _, exist := p.active[m.ID]; exist {
			p.active[m.ID] = true
		}
		p.mu.Unlock()
		p.logger.Debug("request cancelled by remote",
			zap.Stringer("id", m.ID),
			zap.Stringer("peer", peer),
			zap.Stringer("reason", m.Reason),
			zap.String("detail", m.Detail),
		)
	default:
		return fmt.Errorf("%w: %s is not handled by the responder", ErrUnknownMessage, msg.Type())
	}
	return nil
}

func (p *Provider) send(peer p2p.Peer, msg Message) bool {
	data, err := EncodeMessage(msg)
	if err != nil {
		p.logger.Error("failed to encode", zap.Stringer("type", msg.Type()), zap.Error(err))
		return false
	}
	return p.transport.Send(peer, p.agentID, data)
}

func (p *Provider) reject(peer p2p.Peer, id RequestID, err error) {
	p.logger.Debug("rejecting request", zap.Stringer("id", id), zap.Stringer("peer", peer), zap.Error(err))
	servedRejects.Inc()
	detail := err.Error()
	if len(detail) > maxDetail {
		detail = detail[:maxDetail]
	}
	p.send(peer, &RejectMsg{ID: id, Detail: detail})
}

func (p *Provider) cancelled(id RequestID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[id]
}

func (p *Provider) serve(peer p2p.Peer, req *RequestMsg) {
	if req.Target != p.target {
		p.reject(peer, req.ID, fmt.Errorf("unknown target %s", req.Target.ShortString()))
		return
	}
	if len(req.TerminalHistories) == 0 && len(req.Ops) == 0 {
		p.reject(peer, req.ID, errors.New("empty request"))
		return
	}
	p.mu.Lock()
	if _, exist := p.active[req.ID]; exist {
		p.mu.Unlock()
		return
	}
	p.active[req.ID] = false
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.active, req.ID)
		p.mu.Unlock()
	}()

	resp, literals, err := p.buildResponse(req)
	if err != nil {
		p.reject(peer, req.ID, err)
		return
	}
	p.logger.Debug("serving request",
		zap.Stringer("id", req.ID),
		zap.Stringer("peer", peer),
		zap.Int("history", len(resp.History)),
		zap.Int("ops", len(resp.SendingOps)),
		zap.Int("literals", len(literals)),
		zap.Int("omitted", len(resp.Omitted)),
	)
	servedResponses.Inc()
	if !p.send(peer, resp) {
		return
	}
	for i, lit := range literals {
		if p.cancelled(req.ID) {
			servedCancelled.Inc()
			return
		}
		if !p.send(peer, &LiteralMsg{ID: req.ID, Sequence: uint32(i), Literal: *lit}) {
			return
		}
	}
}

func (p *Provider) loadHistory(id types.HistoryID) (*history.Node, bool, error) {
	node, err := p.store.LoadHistory(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return node, true, nil
}

// knownPast returns the ids together with the past of those held locally,
// bounded by MaxOmissionSearch.
func (p *Provider) knownPast(ids ...[]types.HistoryID) (types.HashSet, error) {
	known := types.HashSet{}
	var queue []types.HistoryID
	for _, set := range ids {
		for _, id := range set {
			if known.Add(id) {
				queue = append(queue, id)
			}
		}
	}
	for len(queue) > 0 && len(known) < p.cfg.MaxOmissionSearch {
		id := queue[0]
		queue = queue[1:]
		node, exist, err := p.loadHistory(id)
		if err != nil {
			return nil, err
		}
		if !exist {
			continue
		}
		for _, prev := range node.Prev {
			if known.Add(prev) {
				queue = append(queue, prev)
			}
		}
	}
	return known, nil
}

func (p *Provider) buildResponse(req *RequestMsg) (*ResponseMsg, []*object.Literal, error) {
	known, err := p.knownPast(req.StartingHistories, req.CurrentState)
	if err != nil {
		return nil, nil, err
	}
	resp := &ResponseMsg{ID: req.ID}

	// history, backward and breadth first from the requested terminals
	sending := history.NewFragment()
	visited := types.HashSet{}
	var queue []*history.Node
	push := func(id types.HistoryID) error {
		if known.Has(id) || !visited.Add(id) {
			return nil
		}
		node, exist, err := p.loadHistory(id)
		if err != nil || !exist {
			return err
		}
		queue = append(queue, node)
		return nil
	}
	for _, id := range req.TerminalHistories {
		if err := push(id); err != nil {
			return nil, nil, err
		}
	}
	for len(queue) > 0 && len(resp.History) < p.cfg.MaxHistoryPerResponse {
		node := queue[0]
		queue = queue[1:]
		resp.History = append(resp.History, *node)
		_ = sending.Add(node)
		for _, prev := range node.Prev {
			if err := push(prev); err != nil {
				return nil, nil, err
			}
		}
	}

	candidates := history.NewFragment()
	for _, id := range req.Ops {
		node, err := p.store.LoadHistoryByOpID(id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			continue
		case err != nil:
			return nil, nil, err
		}
		_ = candidates.Add(node)
	}
	requested := candidates.Nodes()
	if req.Mode == ModeInferOps {
		for _, node := range sending.Nodes() {
			_ = candidates.Add(node)
		}
	}
	// predecessors of requested ops are held by the requester or in flight to it
	start := known
	for _, node := range requested {
		for _, prev := range node.Prev {
			if !candidates.Has(prev) {
				start.Add(prev)
			}
		}
	}
	order := candidates.CausalClosure(start.Sorted(), p.cfg.MaxOpsPerRequest, nil)

	omit, err := p.newOmitter(req)
	if err != nil {
		return nil, nil, err
	}
	var literals []*object.Literal
	handled := types.HashSet{}
	for _, id := range order {
		node := candidates.Get(id)
		lits, omitted, err := p.collect(node.OpID, handled, omit)
		if err != nil {
			return nil, nil, err
		}
		if len(literals)+len(lits) > p.cfg.MaxLiteralsPerResponse {
			break
		}
		literals = append(literals, lits...)
		resp.Omitted = append(resp.Omitted, omitted...)
		resp.SendingOps = append(resp.SendingOps, node.OpID)
	}
	resp.LiteralCount = uint32(len(literals))
	return resp, literals, nil
}

// collect returns the op literal preceded by its resolvable dependencies that
// can't be omitted, dependencies first.
func (p *Provider) collect(
	opID types.OpID,
	handled types.HashSet,
	omit *omitter,
) ([]*object.Literal, []OmittedObject, error) {
	var (
		literals []*object.Literal
		omitted  []OmittedObject
		added    []types.Hash32
		visit    func(*object.Literal) error
	)
	visit = func(lit *object.Literal) error {
		for _, dep := range lit.Deps {
			if !dep.Kind.Resolvable() || !handled.Add(dep.Hash) {
				continue
			}
			added = append(added, dep.Hash)
			resolved, err := p.store.LoadLiteral(dep.Hash)
			if err != nil {
				return fmt.Errorf("dependency %s of %s: %w", dep.Hash.ShortString(), lit.Hash.ShortString(), err)
			}
			if chain := omit.chain(dep.Hash); chain != nil {
				proof, err := object.OwnershipProof(resolved, omit.secret)
				if err != nil {
					return err
				}
				omitted = append(omitted, OmittedObject{Hash: dep.Hash, Chain: chain, Proof: proof})
				continue
			}
			if err := visit(resolved); err != nil {
				return err
			}
			literals = append(literals, resolved)
		}
		return nil
	}
	lit, err := p.store.LoadLiteral(opID)
	if err != nil {
		return nil, nil, err
	}
	if err := visit(lit); err != nil {
		for _, h := range added {
			delete(handled, h)
		}
		return nil, nil, err
	}
	return append(literals, lit), omitted, nil
}

// omitter finds objects the requester can reach from the target and from
// the ops of its current state.
type omitter struct {
	secret types.Hash32
	// parent of every reachable object, roots point to themselves.
	parent map[types.Hash32]types.Hash32
}

func (p *Provider) newOmitter(req *RequestMsg) (*omitter, error) {
	o := &omitter{secret: req.OmissionSecret, parent: map[types.Hash32]types.Hash32{}}
	roots := []types.Hash32{p.target}
	for _, id := range req.CurrentState {
		node, exist, err := p.loadHistory(id)
		if err != nil {
			return nil, err
		}
		if exist {
			roots = append(roots, node.OpID)
		}
	}
	var queue []types.Hash32
	for _, root := range roots {
		if _, exist := o.parent[root]; !exist {
			o.parent[root] = root
			queue = append(queue, root)
		}
	}
	for len(queue) > 0 && len(o.parent) < p.cfg.MaxOmissionSearch {
		h := queue[0]
		queue = queue[1:]
		lit, err := p.store.LoadLiteral(h)
		switch {
		case errors.Is(err, store.ErrNotFound):
			continue
		case err != nil:
			return nil, err
		}
		for _, dep := range lit.Deps {
			if _, exist := o.parent[dep.Hash]; !exist {
				o.parent[dep.Hash] = h
				queue = append(queue, dep.Hash)
			}
		}
	}
	return o, nil
}

// chain returns the path from a root to h, or nil if h is not reachable
// within the chain length limit.
func (o *omitter) chain(h types.Hash32) []types.Hash32 {
	if _, exist := o.parent[h]; !exist {
		return nil
	}
	var rev []types.Hash32
	for current := h; ; current = o.parent[current] {
		rev = append(rev, current)
		if len(rev) > maxChain {
			return nil
		}
		if o.parent[current] == current {
			break
		}
	}
	chain := make([]types.Hash32, len(rev))
	for i, h := range rev {
		chain[len(rev)-1-i] = h
	}
	return chain
}
