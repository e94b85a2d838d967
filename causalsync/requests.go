package causalsync

import (
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/object"
	"github.com/causalmesh/go-causalmesh/p2p"
)

type requestStatus uint8

const (
	statusCreated requestStatus = iota
	statusSent
	statusValidating
	statusResponseBlocked
	statusResponseProcessing
	statusResponseAccepted
)

func (s requestStatus) String() string {
	switch s {
	case statusCreated:
		return "created"
	case statusSent:
		return "sent"
	case statusValidating:
		return "validating"
	case statusResponseBlocked:
		return "blocked"
	case statusResponseProcessing:
		return "processing"
	case statusResponseAccepted:
		return "accepted"
	}
	return "unknown"
}

type request struct {
	peer   p2p.Peer
	msg    *RequestMsg
	status requestStatus
	// removed is set by cleanup, literal processing must stop once it is set.
	removed bool

	// opHistories are history ids of msg.Ops, in the same order.
	opHistories []types.HistoryID
	// ops are history ids of ops this request is responsible for.
	ops types.HashSet

	sent        time.Time
	lastLiteral time.Time

	response *ResponseMsg
	fragment *history.Fragment
	// expected are history ids of response.SendingOps, in the same order.
	expected  []types.HistoryID
	blockedBy types.HashSet

	context     *object.Context
	buffer      map[uint32]*object.Literal
	nextLiteral uint32
	nextOp      int
	processing  bool
}

func (r *request) id() RequestID {
	return r.msg.ID
}

// promised is the number of ops the remote committed to stream.
func (r *request) promised() int {
	if r.response == nil {
		return 0
	}
	return len(r.response.SendingOps)
}

func (r *request) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", r.msg.ID.String())
	enc.AddString("peer", r.peer.String())
	enc.AddString("status", r.status.String())
	enc.AddString("mode", r.msg.Mode.String())
	enc.AddInt("histories", len(r.msg.TerminalHistories))
	enc.AddInt("ops", len(r.msg.Ops))
	if r.response != nil {
		enc.AddInt("sending ops", len(r.response.SendingOps))
		enc.AddInt("received ops", r.nextOp)
		enc.AddUint32("literals", r.response.LiteralCount)
	}
	return nil
}

type requestSet map[RequestID]struct{}

func addTo[K comparable](index map[K]requestSet, key K, id RequestID) {
	set, exist := index[key]
	if !exist {
		set = requestSet{}
		index[key] = set
	}
	set[id] = struct{}{}
}

// removeFrom returns true if the key has no requests left.
func removeFrom[K comparable](index map[K]requestSet, key K, id RequestID) bool {
	set, exist := index[key]
	if !exist {
		return true
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
		return true
	}
	return false
}

// state is owned by the synchronizer and only accessed under its lock.
type state struct {
	requests map[RequestID]*request
	// requestsForHistory indexes requested terminal history ids.
	requestsForHistory map[types.HistoryID]requestSet
	// requestsForOp indexes history ids of ops being fetched.
	requestsForOp   map[types.HistoryID]requestSet
	requestsForPeer map[p2p.Peer]requestSet
	// blockedBy indexes responses waiting for ops of the requester's current state.
	blockedBy map[types.HistoryID]requestSet

	// sources are peers known to have a history id that is not stored locally.
	sources map[types.HistoryID]map[p2p.Peer]struct{}
	// remotes are history ids advertised by each peer. Each peer has the past
	// of every advertised id.
	remotes map[p2p.Peer]types.HashSet
	// gossiped history ids that were neither discovered nor stored, in arrival order.
	gossiped map[types.HistoryID]uint64
	gseq     uint64

	// discovered is the known history that is not stored yet.
	discovered *history.Fragment
	// requested is the history of ops that are being fetched.
	requested *history.Fragment

	// fetched ops are reported once the lock is released.
	fetched    []fetchedOp
	reschedule bool
}

type fetchedOp struct {
	op   *object.Op
	node *history.Node
}

func newState() *state {
	return &state{
		requests:           map[RequestID]*request{},
		requestsForHistory: map[types.HistoryID]requestSet{},
		requestsForOp:      map[types.HistoryID]requestSet{},
		requestsForPeer:    map[p2p.Peer]requestSet{},
		blockedBy:          map[types.HistoryID]requestSet{},
		sources:            map[types.HistoryID]map[p2p.Peer]struct{}{},
		remotes:            map[p2p.Peer]types.HashSet{},
		gossiped:           map[types.HistoryID]uint64{},
		discovered:         history.NewFragment(),
		requested:          history.NewFragment(),
	}
}

func (st *state) addSource(id types.HistoryID, peer p2p.Peer) {
	peers, exist := st.sources[id]
	if !exist {
		peers = map[p2p.Peer]struct{}{}
		st.sources[id] = peers
	}
	peers[peer] = struct{}{}
}

func (st *state) gossip(id types.HistoryID) {
	if _, exist := st.gossiped[id]; exist {
		return
	}
	st.gseq++
	st.gossiped[id] = st.gseq
}

// register indexes a request. Ops must be present in the discovered fragment.
func (st *state) register(req *request) {
	id := req.id()
	st.requests[id] = req
	for _, h := range req.msg.TerminalHistories {
		addTo(st.requestsForHistory, h, id)
	}
	for _, h := range req.opHistories {
		st.trackOp(req, st.discovered.Get(h))
	}
	addTo(st.requestsForPeer, req.peer, id)
}

// trackOp makes the request responsible for fetching the op.
func (st *state) trackOp(req *request, node *history.Node) {
	if node == nil || !req.ops.Add(node.ID) {
		return
	}
	addTo(st.requestsForOp, node.ID, req.id())
	if !st.requested.Has(node.ID) {
		// a conflicting history for the same op can't be requested
		_ = st.requested.Add(node)
	}
	pendingOps.Set(float64(st.requested.Len()))
}

// untrackOp releases the op from the request.
func (st *state) untrackOp(req *request, id types.HistoryID) {
	if _, exist := req.ops[id]; !exist {
		return
	}
	delete(req.ops, id)
	if removeFrom(st.requestsForOp, id, req.id()) {
		st.requested.Remove(id)
	}
	pendingOps.Set(float64(st.requested.Len()))
}

// cleanup removes every index entry of the request. Unknown ids are ignored.
func (st *state) cleanup(id RequestID) *request {
	req, exist := st.requests[id]
	if !exist {
		return nil
	}
	delete(st.requests, id)
	for _, h := range req.msg.TerminalHistories {
		removeFrom(st.requestsForHistory, h, id)
	}
	for h := range req.ops {
		st.untrackOp(req, h)
	}
	removeFrom(st.requestsForPeer, req.peer, id)
	for h := range req.blockedBy {
		removeFrom(st.blockedBy, h, id)
	}
	req.removed = true
	return req
}

func (st *state) inflight(peer p2p.Peer) int {
	return len(st.requestsForPeer[peer])
}
