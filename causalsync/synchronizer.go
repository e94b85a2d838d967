// Package causalsync fetches the causal history and ops of a mutable object
// from remotes that advertise state the local replica is missing, and serves
// the same protocol to remotes.
package causalsync

import (
	"cmp"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/log"
	"github.com/causalmesh/go-causalmesh/object"
	"github.com/causalmesh/go-causalmesh/p2p"
	"github.com/causalmesh/go-causalmesh/peers"
	"github.com/causalmesh/go-causalmesh/store"
)

// Opt for configuring the synchronizer.
type Opt func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Opt {
	return func(s *Synchronizer) {
		s.cfg = cfg
	}
}

// WithClock sets the clock used for timeouts.
func WithClock(clock clockwork.Clock) Opt {
	return func(s *Synchronizer) {
		s.clock = clock
	}
}

// WithPeers shares the peer statistics used to rank sources.
func WithPeers(p *peers.Peers) Opt {
	return func(s *Synchronizer) {
		s.peers = p
	}
}

// WithOpValidator sets the check every fetched op must pass before it is persisted.
func WithOpValidator(validate OpValidator) Opt {
	return func(s *Synchronizer) {
		s.validate = validate
	}
}

// WithFetchedHandler sets the handler notified about persisted ops, in the order they were persisted.
func WithFetchedHandler(handler FetchedHandler) Opt {
	return func(s *Synchronizer) {
		s.onFetched = handler
	}
}

// Synchronizer drives requests for a single mutable object.
//
// Every event (gossip, response, literal, local op, timeout check) runs under
// a single lock, so the request state is only ever observed between events.
// New requests are issued by scheduling passes that never run concurrently.
type Synchronizer struct {
	logger    *zap.Logger
	cfg       Config
	clock     clockwork.Clock
	peers     *peers.Peers
	validate  OpValidator
	onFetched FetchedHandler

	target    types.ObjectID
	agentID   string
	store     Store
	transport Transport

	mu sync.Mutex
	st *state

	// notify serializes delivery of fetched ops.
	notify sync.Mutex

	gate  sync.Mutex
	retry atomic.Bool
}

// New creates a synchronizer for the target.
func New(target types.ObjectID, agentID string, db Store, transport Transport, opts ...Opt) *Synchronizer {
	s := &Synchronizer{
		logger:    zap.NewNop(),
		cfg:       DefaultConfig(),
		clock:     clockwork.NewRealClock(),
		target:    target,
		agentID:   agentID,
		store:     db,
		transport: transport,
		st:        newState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.peers == nil {
		s.peers = peers.New()
	}
	s.logger = s.logger.With(log.ZShortStringer("target", target))
	return s
}

// Run periodically checks timeouts and retries scheduling until ctx is done.
func (s *Synchronizer) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.TimeoutCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			s.mu.Lock()
			s.checkTimeouts()
			s.st.reschedule = true
			s.release()
		}
	}
}

// HandleMessage processes state advertisements and everything a remote sends
// back for requests issued by this synchronizer.
func (s *Synchronizer) HandleMessage(peer p2p.Peer, data []byte) error {
	msg, err := DecodeMessage(data)
	if err != nil {
		return err
	}
	switch m := msg.(type) {
	case *StateMsg:
		if m.Target != s.target {
			return fmt.Errorf("state for %s: unexpected target", m.Target.ShortString())
		}
		s.OnNewHistory(peer, m.Terminals)
	case *ResponseMsg:
		s.onResponse(peer, m, len(data))
	case *LiteralMsg:
		s.onLiteral(peer, m)
	case *RejectMsg:
		s.onReject(peer, m)
	default:
		return fmt.Errorf("%w: %s is not handled by the requester", ErrUnknownMessage, msg.Type())
	}
	return nil
}

// OnNewHistory records terminal histories advertised by the peer and
// schedules requests for the missing ones.
func (s *Synchronizer) OnNewHistory(peer p2p.Peer, terminals []types.HistoryID) {
	s.mu.Lock()
	defer s.release()
	remote, exist := s.st.remotes[peer]
	if !exist {
		remote = types.HashSet{}
		s.st.remotes[peer] = remote
	}
	for _, id := range terminals {
		if s.isStored(id) {
			continue
		}
		remote.Add(id)
		s.st.addSource(id, peer)
		if !s.st.discovered.Has(id) {
			s.st.gossip(id)
		}
	}
	s.st.reschedule = true
}

// OnNewLocalOp accounts for an op persisted locally. If a different history
// for the same op was discovered from a remote, the local history wins.
func (s *Synchronizer) OnNewLocalOp(node *history.Node) {
	s.mu.Lock()
	defer s.release()
	s.markOpAsFetched(node, nil)
}

// Stats of the synchronizer state.
type Stats struct {
	Requests   int
	PendingOps int
	Discovered int
	Gossiped   int
}

// Stats returns a snapshot of the synchronizer state.
func (s *Synchronizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Requests:   len(s.st.requests),
		PendingOps: s.st.requested.Len(),
		Discovered: s.st.discovered.Len(),
		Gossiped:   len(s.st.gossiped),
	}
}

// release unlocks the state, then delivers fetched ops and runs a scheduling
// pass if the event changed anything that may allow new requests.
func (s *Synchronizer) release() {
	reschedule := s.st.reschedule
	s.st.reschedule = false
	s.mu.Unlock()

	s.notify.Lock()
	s.mu.Lock()
	fetched := s.st.fetched
	s.st.fetched = nil
	s.mu.Unlock()
	if s.onFetched != nil {
		for _, f := range fetched {
			s.onFetched(f.op, f.node)
		}
	}
	s.notify.Unlock()

	if reschedule {
		s.schedule()
	}
}

// schedule runs scheduling passes until no caller asked for another one.
// If a pass is already running, it is asked to repeat instead of waiting.
func (s *Synchronizer) schedule() {
	s.retry.Store(true)
	for s.retry.Load() {
		if !s.gate.TryLock() {
			return
		}
		for s.retry.Swap(false) {
			s.attemptNewRequests()
		}
		s.gate.Unlock()
	}
}

func (s *Synchronizer) isStored(id types.HistoryID) bool {
	stored, err := s.store.HasHistory(id)
	if err != nil {
		s.logger.Warn("failed to check history", log.ZShortStringer("id", id), zap.Error(err))
		return false
	}
	return stored
}

func (s *Synchronizer) budget() int {
	return s.cfg.MaxPendingOps - s.st.requested.Len()
}

func (s *Synchronizer) hasFreeSlot(peer p2p.Peer) bool {
	return s.st.inflight(peer) < s.cfg.MaxRequestsPerRemote
}

func (s *Synchronizer) attemptNewRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkTimeouts()

	used := map[p2p.Peer]struct{}{}
	for _, a := range s.assign() {
		used[a.peer] = struct{}{}
		if s.send(a.peer, a.histories) == nil {
			continue
		}
		if s.hasFreeSlot(a.peer) && s.budget() > 0 {
			s.send(a.peer, nil)
		}
	}
	idle := make([]p2p.Peer, 0, len(s.st.remotes))
	for peer := range s.st.remotes {
		if _, exist := used[peer]; !exist {
			idle = append(idle, peer)
		}
	}
	for _, peer := range s.peers.Rank(idle) {
		for s.hasFreeSlot(peer) && s.budget() > 0 {
			if s.send(peer, nil) == nil {
				break
			}
		}
	}
}

// missingHistories returns history ids that must be fetched and are not
// requested yet: advertised ids in arrival order, then missing predecessors of
// the discovered history.
func (s *Synchronizer) missingHistories() []types.HistoryID {
	type item struct {
		id  types.HistoryID
		seq uint64
	}
	var gossiped []item
	for id, seq := range s.st.gossiped {
		if s.st.discovered.Has(id) || s.isStored(id) {
			delete(s.st.gossiped, id)
			continue
		}
		if len(s.st.requestsForHistory[id]) == 0 {
			gossiped = append(gossiped, item{id: id, seq: seq})
		}
	}
	slices.SortFunc(gossiped, func(a, b item) int { return cmp.Compare(a.seq, b.seq) })
	rst := make([]types.HistoryID, 0, len(gossiped))
	for _, it := range gossiped {
		rst = append(rst, it.id)
	}
	for _, id := range s.st.discovered.MissingPredecessors() {
		if len(s.st.requestsForHistory[id]) > 0 || s.isStored(id) {
			continue
		}
		rst = append(rst, id)
	}
	return rst
}

type assignment struct {
	peer      p2p.Peer
	histories []types.HistoryID
}

// assign greedily picks the source that can serve the most unclaimed ids,
// ties broken by peer rank, until every id is claimed or no source has a free slot.
func (s *Synchronizer) assign() []assignment {
	candidates := map[p2p.Peer][]types.HistoryID{}
	for _, id := range s.missingHistories() {
		for peer := range s.st.sources[id] {
			if s.hasFreeSlot(peer) {
				candidates[peer] = append(candidates[peer], id)
			}
		}
	}
	claimed := types.HashSet{}
	var rst []assignment
	for len(candidates) > 0 {
		ids := make([]p2p.Peer, 0, len(candidates))
		for peer := range candidates {
			ids = append(ids, peer)
		}
		var (
			best      p2p.Peer
			unclaimed []types.HistoryID
		)
		for _, peer := range s.peers.Rank(ids) {
			var own []types.HistoryID
			for _, id := range candidates[peer] {
				if !claimed.Has(id) {
					own = append(own, id)
				}
			}
			if len(own) > len(unclaimed) {
				best, unclaimed = peer, own
			}
		}
		if len(unclaimed) == 0 {
			break
		}
		delete(candidates, best)
		if len(unclaimed) > maxTerminals {
			unclaimed = unclaimed[:maxTerminals]
		}
		for _, id := range unclaimed {
			claimed.Add(id)
		}
		rst = append(rst, assignment{peer: best, histories: unclaimed})
	}
	return rst
}

// opsToRequest returns discovered ops the peer can serve, in causal order,
// skipping ops that are requested already.
func (s *Synchronizer) opsToRequest(peer p2p.Peer) []*history.Node {
	limit := min(s.budget(), s.cfg.MaxOpsPerRequest)
	remote := s.st.remotes[peer]
	if limit <= 0 || len(remote) == 0 {
		return nil
	}
	known := s.st.discovered.FilterByTerminalOpHistories(remote.Sorted())
	if known.Len() == 0 {
		return nil
	}
	var start []types.HistoryID
	for _, id := range known.MissingPredecessors() {
		if s.isStored(id) {
			start = append(start, id)
		}
	}
	ids := known.CausalClosure(start, limit, func(id types.HistoryID) bool {
		return len(s.st.requestsForOp[id]) > 0
	})
	rst := make([]*history.Node, 0, len(ids))
	for _, id := range ids {
		rst = append(rst, known.Get(id))
	}
	return rst
}

// currentState is the terminal set of the stored history together with the
// history of ops that are being fetched.
func (s *Synchronizer) currentState() ([]types.HistoryID, error) {
	local, err := s.store.TerminalHistories(s.target)
	if err != nil {
		return nil, err
	}
	f := s.st.requested.Clone()
	for _, id := range local {
		node, err := s.store.LoadHistory(id)
		if err != nil {
			return nil, err
		}
		if err := f.Add(node); err != nil {
			return nil, err
		}
	}
	return f.Terminal(), nil
}

// send issues a request for the histories and for ops the peer can serve.
// Returns nil if there is nothing to ask for or the request failed.
func (s *Synchronizer) send(peer p2p.Peer, histories []types.HistoryID) *request {
	ops := s.opsToRequest(peer)
	if len(histories) == 0 && len(ops) == 0 {
		return nil
	}
	current, err := s.currentState()
	if err != nil {
		s.logger.Error("failed to compute current state", zap.Error(err))
		return nil
	}
	msg := &RequestMsg{
		ID:                NewRequestID(),
		Target:            s.target,
		Mode:              ModeAsRequested,
		TerminalHistories: histories,
		CurrentState:      current,
	}
	if s.st.requested.Len()+len(ops) < s.cfg.MaxPendingOps {
		msg.Mode = ModeInferOps
	}
	if len(histories) > 0 {
		msg.StartingHistories = current
	}
	if _, err := rand.Read(msg.OmissionSecret[:]); err != nil {
		s.logger.Error("failed to generate omission secret", zap.Error(err))
		return nil
	}
	req := &request{
		peer:      peer,
		msg:       msg,
		status:    statusCreated,
		ops:       types.HashSet{},
		blockedBy: types.HashSet{},
		context:   object.NewContext(),
		buffer:    map[uint32]*object.Literal{},
	}
	for _, node := range ops {
		msg.Ops = append(msg.Ops, node.OpID)
		req.opHistories = append(req.opHistories, node.ID)
	}
	s.st.register(req)

	data, err := EncodeMessage(msg)
	if err != nil {
		s.logger.Error("failed to encode request", zap.Object("request", req), zap.Error(err))
		s.st.cleanup(msg.ID)
		return nil
	}
	if !s.transport.Send(peer, s.agentID, data) {
		s.logger.Debug("request not accepted by transport", zap.Object("request", req))
		requestsFailed.Inc()
		s.peers.OnFailure(peer)
		s.st.cleanup(msg.ID)
		return nil
	}
	req.status = statusSent
	req.sent = s.clock.Now()
	req.lastLiteral = req.sent
	requestsSent.Inc()
	s.logger.Debug("sent request", zap.Object("request", req))
	return req
}

func (s *Synchronizer) checkTimeouts() {
	now := s.clock.Now()
	for _, req := range s.st.requests {
		switch {
		case req.status == statusSent && now.Sub(req.sent) >= s.cfg.RequestTimeout:
			s.cancel(req, CancelSlowConnection, fmt.Errorf("no response in %s", s.cfg.RequestTimeout))
		case req.status > statusSent && req.promised() > 0 &&
			now.Sub(req.lastLiteral) >= s.cfg.LiteralArrivalTimeout:
			s.cancel(req, CancelSlowConnection, fmt.Errorf("no literal in %s", s.cfg.LiteralArrivalTimeout))
		}
	}
}

// cancel notifies the remote and drops the request.
func (s *Synchronizer) cancel(req *request, reason CancelReason, err error) {
	s.logger.Debug("cancel request",
		zap.Object("request", req),
		zap.Stringer("reason", reason),
		zap.Error(err),
	)
	cancels.WithLabelValues(reason.String()).Inc()
	s.peers.OnFailure(req.peer)
	detail := err.Error()
	if len(detail) > maxDetail {
		detail = detail[:maxDetail]
	}
	if data, err := EncodeMessage(&CancelMsg{ID: req.id(), Reason: reason, Detail: detail}); err == nil {
		s.transport.Send(req.peer, s.agentID, data)
	}
	s.st.cleanup(req.id())
	s.st.reschedule = true
}

func (s *Synchronizer) complete(req *request) {
	s.logger.Debug("request completed", zap.Object("request", req))
	requestsCompleted.Inc()
	s.st.cleanup(req.id())
	s.st.reschedule = true
}

func (s *Synchronizer) onReject(peer p2p.Peer, msg *RejectMsg) {
	s.mu.Lock()
	defer s.release()
	req := s.st.requests[msg.ID]
	if req == nil || req.peer != peer {
		return
	}
	s.logger.Debug("request rejected", zap.Object("request", req), zap.String("detail", msg.Detail))
	requestsRejected.Inc()
	s.st.cleanup(msg.ID)
	s.st.reschedule = true
}

func (s *Synchronizer) onResponse(peer p2p.Peer, resp *ResponseMsg, size int) {
	s.mu.Lock()
	defer s.release()
	req := s.st.requests[resp.ID]
	if req == nil || req.peer != peer {
		s.logger.Debug("response for unknown request", zap.Stringer("id", resp.ID), zap.Stringer("peer", peer))
		return
	}
	if req.status != statusSent {
		s.cancel(req, CancelInvalidResponse, errors.New("duplicate response"))
		return
	}
	now := s.clock.Now()
	responseLatency.Observe(now.Sub(req.sent).Seconds())
	s.peers.OnLatency(peer, size, now.Sub(req.sent))

	req.status = statusValidating
	req.response = resp
	req.lastLiteral = now
	if reason, err := s.validateResponse(req); err != nil {
		s.cancel(req, reason, err)
		return
	}
	s.foldHistory(req)
	s.trackResponseOps(req)
	for _, id := range req.msg.CurrentState {
		if !s.isStored(id) {
			req.blockedBy.Add(id)
			addTo(s.st.blockedBy, id, req.id())
		}
	}
	if len(req.blockedBy) > 0 {
		req.status = statusResponseBlocked
		s.logger.Debug("response blocked", zap.Object("request", req), zap.Int("blocked by", len(req.blockedBy)))
		return
	}
	s.processResponse(req)
}

// foldHistory adds the validated response history to the discovered
// fragment. Nodes are visited from the terminals backward, breadth first.
func (s *Synchronizer) foldHistory(req *request) {
	for n := range req.fragment.IterateFrom(req.fragment.Terminal(), history.Backward, history.BreadthFirst) {
		delete(s.st.gossiped, n.ID)
		delete(s.st.sources, n.ID)
		if s.st.discovered.Has(n.ID) || s.isStored(n.ID) {
			continue
		}
		if err := s.st.discovered.Add(n); err != nil {
			s.logger.Warn("skipped conflicting history", zap.Error(err))
			continue
		}
		for _, prev := range n.Prev {
			if !req.fragment.Has(prev) && !s.st.discovered.Has(prev) && !s.isStored(prev) {
				s.st.addSource(prev, req.peer)
			}
		}
	}
}

// trackResponseOps releases requested ops the remote won't send and makes the
// request responsible for inferred ones.
func (s *Synchronizer) trackResponseOps(req *request) {
	sending := types.NewHashSet(req.response.SendingOps...)
	for i, id := range req.msg.Ops {
		if !sending.Has(id) {
			s.st.untrackOp(req, req.opHistories[i])
		}
	}
	for _, id := range req.expected {
		s.st.trackOp(req, s.st.discovered.Get(id))
	}
}

func (s *Synchronizer) processResponse(req *request) {
	req.status = statusResponseProcessing
	if err := s.validateOmissions(req); err != nil {
		s.cancel(req, CancelInvalidOmittedObjects, err)
		return
	}
	req.status = statusResponseAccepted
	s.drain(req)
}

func (s *Synchronizer) onLiteral(peer p2p.Peer, msg *LiteralMsg) {
	s.mu.Lock()
	defer s.release()
	req := s.st.requests[msg.ID]
	if req == nil || req.peer != peer {
		return
	}
	_, duplicate := req.buffer[msg.Sequence]
	switch {
	case req.response != nil && msg.Sequence >= req.response.LiteralCount:
		s.cancel(req, CancelOutOfOrderLiteral, fmt.Errorf("literal %d of %d", msg.Sequence, req.response.LiteralCount))
		return
	case msg.Sequence < req.nextLiteral || duplicate:
		s.cancel(req, CancelOutOfOrderLiteral, fmt.Errorf("duplicate literal %d", msg.Sequence))
		return
	case len(req.buffer) >= s.cfg.MaxLiteralsPerResponse:
		s.cancel(req, CancelOutOfOrderLiteral, errors.New("too many buffered literals"))
		return
	}
	req.buffer[msg.Sequence] = &msg.Literal
	req.lastLiteral = s.clock.Now()
	if req.status == statusResponseAccepted {
		s.drain(req)
	}
}

// drain applies buffered literals in sequence order.
func (s *Synchronizer) drain(req *request) {
	if req.processing {
		return
	}
	req.processing = true
	defer func() { req.processing = false }()
	for !req.removed {
		lit, exist := req.buffer[req.nextLiteral]
		if !exist {
			break
		}
		delete(req.buffer, req.nextLiteral)
		req.nextLiteral++
		if reason, err := s.applyLiteral(req, lit); err != nil {
			s.cancel(req, reason, err)
			return
		}
	}
	if !req.removed && req.nextOp >= req.promised() {
		s.complete(req)
	}
}

// applyLiteral puts a dependency into the request context, or persists the
// next promised op.
func (s *Synchronizer) applyLiteral(req *request, lit *object.Literal) (CancelReason, error) {
	if err := lit.Validate(); err != nil {
		return CancelInvalidLiteral, err
	}
	if req.nextOp >= req.promised() {
		return CancelInvalidLiteral, fmt.Errorf("literal %s after the last op", lit.Hash.ShortString())
	}
	if lit.Hash != req.response.SendingOps[req.nextOp] {
		req.context.Add(lit)
		return 0, nil
	}
	expected := req.expected[req.nextOp]
	op, deps, err := req.context.Reconstruct(lit)
	if err != nil {
		return CancelInvalidLiteral, err
	}
	if op.Target != s.target {
		return CancelInvalidLiteral, fmt.Errorf("op %s targets %s", lit.Hash.ShortString(), op.Target.ShortString())
	}
	if s.validate != nil {
		if err := s.validate(op); err != nil {
			return CancelInvalidLiteral, fmt.Errorf("op %s: %w", lit.Hash.ShortString(), err)
		}
	}
	node, err := s.store.LoadHistoryByOpID(lit.Hash)
	switch {
	case err == nil:
		// persisted meanwhile, only the indexes need an update
		s.markOpAsFetched(node, nil)
	case errors.Is(err, store.ErrNotFound):
		node, err = s.store.SaveOp(lit, deps)
		switch {
		case errors.Is(err, store.ErrMissingPredecessor),
			errors.Is(err, store.ErrUnknownTarget),
			errors.Is(err, object.ErrMissingDependency):
			return CancelInvalidLiteral, err
		case err != nil:
			return CancelOther, err
		}
		opsFetched.Inc()
		s.markOpAsFetched(node, op)
	default:
		return CancelOther, err
	}
	req.nextOp++
	if node.ID != expected {
		return CancelInvalidLiteral, fmt.Errorf("op %s has history %s, remote announced %s",
			lit.Hash.ShortString(), node.ID.ShortString(), expected.ShortString())
	}
	return 0, nil
}

// markOpAsFetched removes a persisted op from every index and wakes up
// responses blocked on it.
func (s *Synchronizer) markOpAsFetched(node *history.Node, op *object.Op) {
	if other := s.st.discovered.GetByOpID(node.OpID); other != nil && other.ID != node.ID {
		s.dropHistory(other)
	}
	s.forget(node.ID)
	delete(s.st.sources, node.ID)
	delete(s.st.gossiped, node.ID)
	for _, remote := range s.st.remotes {
		delete(remote, node.ID)
	}
	if op != nil {
		s.st.fetched = append(s.st.fetched, fetchedOp{op: op, node: node})
	}
	s.unblock(node.ID)
	s.st.reschedule = true
}

// unblock resumes responses that waited for the history to be settled,
// either stored or dropped.
func (s *Synchronizer) unblock(id types.HistoryID) {
	blocked := s.st.blockedBy[id]
	delete(s.st.blockedBy, id)
	for rid := range blocked {
		req := s.st.requests[rid]
		if req == nil {
			continue
		}
		delete(req.blockedBy, id)
		if len(req.blockedBy) == 0 && req.status == statusResponseBlocked {
			s.processResponse(req)
		}
	}
}

// forget removes the node from discovered and requested history.
func (s *Synchronizer) forget(id types.HistoryID) {
	s.st.discovered.Remove(id)
	for rid := range s.st.requestsForOp[id] {
		if req := s.st.requests[rid]; req != nil {
			delete(req.ops, id)
		}
	}
	delete(s.st.requestsForOp, id)
	s.st.requested.Remove(id)
	pendingOps.Set(float64(s.st.requested.Len()))
}

// dropHistory removes a history that conflicts with the stored one, together
// with everything discovered on top of it.
func (s *Synchronizer) dropHistory(bad *history.Node) {
	var doomed []types.HistoryID
	for n := range s.st.discovered.IterateFrom([]types.HistoryID{bad.ID}, history.Forward, history.BreadthFirst) {
		doomed = append(doomed, n.ID)
	}
	s.logger.Warn("dropping history conflicting with stored op",
		log.ZShortStringer("op", bad.OpID),
		log.ZShortStringer("history", bad.ID),
		zap.Int("dropped", len(doomed)),
	)
	for _, id := range doomed {
		s.forget(id)
	}
	for _, id := range doomed {
		s.unblock(id)
	}
}
