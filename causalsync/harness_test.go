package causalsync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/object"
	"github.com/causalmesh/go-causalmesh/p2p"
	"github.com/causalmesh/go-causalmesh/store"
)

const testAgent = "causal/test"

var testTarget = &object.MutableObject{Type: "test", Name: "causalsync"}

func newTestStore(tb testing.TB) *store.Store {
	db := store.InMemory(store.WithLogger(zaptest.NewLogger(tb)))
	tb.Cleanup(func() { require.NoError(tb, db.Close()) })
	require.NoError(tb, db.SaveLiteral(testTarget.Literal()))
	return db
}

type sentMsg struct {
	peer p2p.Peer
	msg  Message
}

// recorder is a transport that keeps every accepted message.
type recorder struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (r *recorder) Send(peer p2p.Peer, agentID string, data []byte) bool {
	msg, err := DecodeMessage(data)
	if err != nil {
		panic(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMsg{peer: peer, msg: msg})
	return true
}

func (r *recorder) requests(peer p2p.Peer) []*RequestMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rst []*RequestMsg
	for _, s := range r.sent {
		if req, ok := s.msg.(*RequestMsg); ok && s.peer == peer {
			rst = append(rst, req)
		}
	}
	return rst
}

func (r *recorder) lastRequest(tb testing.TB, peer p2p.Peer) *RequestMsg {
	tb.Helper()
	reqs := r.requests(peer)
	require.NotEmpty(tb, reqs)
	return reqs[len(reqs)-1]
}

func (r *recorder) cancels() []*CancelMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rst []*CancelMsg
	for _, s := range r.sent {
		if msg, ok := s.msg.(*CancelMsg); ok {
			rst = append(rst, msg)
		}
	}
	return rst
}

type fixture struct {
	tb    testing.TB
	store *store.Store
	rec   *recorder
	sync  *Synchronizer

	mu      sync.Mutex
	fetched []types.OpID
}

func newFixture(tb testing.TB, opts ...Opt) *fixture {
	f := &fixture{tb: tb, store: newTestStore(tb), rec: &recorder{}}
	opts = append([]Opt{
		WithLogger(zaptest.NewLogger(tb)),
		WithFetchedHandler(func(op *object.Op, _ *history.Node) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.fetched = append(f.fetched, op.ID())
		}),
	}, opts...)
	f.sync = New(testTarget.ID(), testAgent, f.store, f.rec, opts...)
	return f
}

func (f *fixture) deliver(peer p2p.Peer, msgs ...Message) {
	f.tb.Helper()
	for _, msg := range msgs {
		data, err := EncodeMessage(msg)
		require.NoError(f.tb, err)
		require.NoError(f.tb, f.sync.HandleMessage(peer, data))
	}
}

func (f *fixture) fetchedOps() []types.OpID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.OpID(nil), f.fetched...)
}

func (f *fixture) stored(op *remoteOp) bool {
	_, err := f.store.LoadHistoryByOpID(op.node.OpID)
	return err == nil
}

// remoteOp is an op that exists only on a remote.
type remoteOp struct {
	element *object.Literal
	lit     *object.Literal
	node    *history.Node
}

func newRemoteOp(name string, prev ...*remoteOp) *remoteOp {
	element := object.NewLiteral("element", []byte(name), nil)
	op := &object.Op{
		Target:   testTarget.ID(),
		Kind:     "test/add",
		Embedded: []types.Hash32{element.Hash},
	}
	var histories []types.HistoryID
	for _, p := range prev {
		op.Prev = append(op.Prev, p.node.OpID)
		histories = append(histories, p.node.ID)
	}
	lit := op.Literal()
	return &remoteOp{element: element, lit: lit, node: history.New(lit.Hash, histories)}
}

// respond builds a well formed response that sends history and streams ops
// with their elements. The target is always omitted.
func respond(tb testing.TB, req *RequestMsg, hist []*remoteOp, ops []*remoteOp) (*ResponseMsg, []Message) {
	tb.Helper()
	resp := &ResponseMsg{ID: req.ID}
	for _, h := range hist {
		resp.History = append(resp.History, *h.node)
	}
	var lits []*object.Literal
	for _, op := range ops {
		resp.SendingOps = append(resp.SendingOps, op.node.OpID)
		lits = append(lits, op.element, op.lit)
	}
	if len(ops) > 0 {
		target := testTarget.Literal()
		proof, err := object.OwnershipProof(target, req.OmissionSecret)
		require.NoError(tb, err)
		resp.Omitted = []OmittedObject{{
			Hash:  target.Hash,
			Chain: []types.Hash32{target.Hash},
			Proof: proof,
		}}
	}
	resp.LiteralCount = uint32(len(lits))
	msgs := make([]Message, 0, len(lits))
	for i, lit := range lits {
		msgs = append(msgs, &LiteralMsg{ID: req.ID, Sequence: uint32(i), Literal: *lit})
	}
	return resp, msgs
}

type envelope struct {
	from, to p2p.Peer
	data     []byte
}

// network delivers messages between test nodes only when flushed, so that
// every handler runs on the test goroutine.
type network struct {
	tb    testing.TB
	mu    sync.Mutex
	queue []envelope
	nodes map[p2p.Peer]*testNode
	// observed responses by the receiver
	responses map[p2p.Peer][]*ResponseMsg
}

func newNetwork(tb testing.TB) *network {
	return &network{
		tb:        tb,
		nodes:     map[p2p.Peer]*testNode{},
		responses: map[p2p.Peer][]*ResponseMsg{},
	}
}

type endpoint struct {
	net  *network
	self p2p.Peer
}

func (e *endpoint) Send(peer p2p.Peer, agentID string, data []byte) bool {
	if agentID != testAgent {
		panic("unexpected agent " + agentID)
	}
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	if _, exist := e.net.nodes[peer]; !exist {
		return false
	}
	e.net.queue = append(e.net.queue, envelope{from: e.self, to: peer, data: data})
	return true
}

type testNode struct {
	id       p2p.Peer
	store    *store.Store
	sync     *Synchronizer
	provider *Provider

	mu      sync.Mutex
	fetched []*history.Node
}

func (n *network) add(name string, cfg Config) *testNode {
	logger := zaptest.NewLogger(n.tb).Named(name)
	node := &testNode{id: p2p.Peer(name), store: newTestStore(n.tb)}
	ep := &endpoint{net: n, self: node.id}
	node.sync = New(testTarget.ID(), testAgent, node.store, ep,
		WithLogger(logger),
		WithConfig(cfg),
		WithFetchedHandler(func(_ *object.Op, h *history.Node) {
			node.mu.Lock()
			defer node.mu.Unlock()
			node.fetched = append(node.fetched, h)
		}),
	)
	node.provider = NewProvider(logger, cfg, testTarget.ID(), testAgent, node.store, ep)
	n.mu.Lock()
	n.nodes[node.id] = node
	n.mu.Unlock()
	return node
}

func (n *network) flush() {
	n.tb.Helper()
	for i := 0; ; i++ {
		require.Less(n.tb, i, 100_000, "network didn't settle")
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		env := n.queue[0]
		n.queue = n.queue[1:]
		node := n.nodes[env.to]
		n.mu.Unlock()

		switch MessageType(env.data[0]) {
		case TypeRequest, TypeCancel:
			require.NoError(n.tb, node.provider.HandleMessage(env.from, env.data))
		default:
			if MessageType(env.data[0]) == TypeResponse {
				msg, err := DecodeMessage(env.data)
				require.NoError(n.tb, err)
				n.responses[env.to] = append(n.responses[env.to], msg.(*ResponseMsg))
			}
			require.NoError(n.tb, node.sync.HandleMessage(env.from, env.data))
		}
	}
}

// advertise tells to about terminal histories of from.
func (n *network) advertise(from, to *testNode) {
	n.tb.Helper()
	terminals, err := from.store.TerminalHistories(testTarget.ID())
	require.NoError(n.tb, err)
	to.sync.OnNewHistory(from.id, terminals)
}

func (node *testNode) addOp(tb testing.TB, name string, prev ...*history.Node) *history.Node {
	tb.Helper()
	return node.addOpWith(tb, object.NewLiteral("element", []byte(name), nil), prev...)
}

func (node *testNode) addOpWith(tb testing.TB, element *object.Literal, prev ...*history.Node) *history.Node {
	tb.Helper()
	op := &object.Op{
		Target:   testTarget.ID(),
		Kind:     "test/add",
		Embedded: []types.Hash32{element.Hash},
	}
	for _, p := range prev {
		op.Prev = append(op.Prev, p.OpID)
	}
	saved, err := node.store.SaveOp(op.Literal(), []*object.Literal{element})
	require.NoError(tb, err)
	node.sync.OnNewLocalOp(saved)
	return saved
}

func (node *testNode) terminals(tb testing.TB) []types.HistoryID {
	tb.Helper()
	terminals, err := node.store.TerminalHistories(testTarget.ID())
	require.NoError(tb, err)
	return terminals
}

func (node *testNode) count(tb testing.TB) int {
	tb.Helper()
	count, err := node.store.CountOps(testTarget.ID())
	require.NoError(tb, err)
	return count
}

// requireCausalOrder checks that every node was preceded by its predecessors.
func requireCausalOrder(tb testing.TB, local []types.HistoryID, nodes []*history.Node) {
	tb.Helper()
	seen := types.NewHashSet(local...)
	for _, n := range nodes {
		for _, prev := range n.Prev {
			require.True(tb, seen.Has(prev), "%s before its predecessor %s", n.ID.ShortString(), prev.ShortString())
		}
		seen.Add(n.ID)
	}
}
