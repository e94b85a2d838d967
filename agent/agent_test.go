package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/causalmesh/go-causalmesh/causalsync"
	"github.com/causalmesh/go-causalmesh/object"
	"github.com/causalmesh/go-causalmesh/orset"
	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/p2p"
	"github.com/causalmesh/go-causalmesh/p2p/pubsub"
	"github.com/causalmesh/go-causalmesh/store"
)

type sent struct {
	peer p2p.Peer
	msg  causalsync.Message
}

// loopback records messages instead of delivering them.
type loopback struct {
	mu       sync.Mutex
	peers    []p2p.Peer
	handlers map[string]p2p.Handler
	sent     []sent
}

func (l *loopback) Send(peer p2p.Peer, _ string, data []byte) bool {
	msg, err := causalsync.DecodeMessage(data)
	if err != nil {
		panic(err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, sent{peer: peer, msg: msg})
	return true
}

func (l *loopback) Register(agentID string, handler p2p.Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handlers == nil {
		l.handlers = map[string]p2p.Handler{}
	}
	l.handlers[agentID] = handler
}

func (l *loopback) OnConnected(func(p2p.Peer)) {}

func (l *loopback) Peers() []p2p.Peer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peers
}

func (l *loopback) states() []*causalsync.StateMsg {
	l.mu.Lock()
	defer l.mu.Unlock()
	var rst []*causalsync.StateMsg
	for _, s := range l.sent {
		if msg, ok := s.msg.(*causalsync.StateMsg); ok {
			rst = append(rst, msg)
		}
	}
	return rst
}

// gossip records published messages and keeps handlers for delivery.
type gossip struct {
	mu        sync.Mutex
	handlers  map[string]pubsub.GossipHandler
	published [][]byte
}

func (g *gossip) Register(topic string, handler pubsub.GossipHandler) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handlers == nil {
		g.handlers = map[string]pubsub.GossipHandler{}
	}
	g.handlers[topic] = handler
	return nil
}

func (g *gossip) Publish(_ context.Context, _ string, msg []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.published = append(g.published, msg)
	return nil
}

func (g *gossip) deliver(topic string, from p2p.Peer, msg []byte) error {
	g.mu.Lock()
	handler := g.handlers[topic]
	g.mu.Unlock()
	return handler(context.Background(), from, msg)
}

func (g *gossip) states(tb testing.TB) []*causalsync.StateMsg {
	g.mu.Lock()
	defer g.mu.Unlock()
	var rst []*causalsync.StateMsg
	for _, data := range g.published {
		msg, err := causalsync.DecodeMessage(data)
		require.NoError(tb, err)
		rst = append(rst, msg.(*causalsync.StateMsg))
	}
	return rst
}

func newStore(tb testing.TB) *store.Store {
	db := store.InMemory(store.WithLogger(zaptest.NewLogger(tb)))
	tb.Cleanup(func() { require.NoError(tb, db.Close()) })
	return db
}

func TestAgentLocalChanges(t *testing.T) {
	db := newStore(t)
	tr := &loopback{}
	descriptor := orset.Descriptor("local")
	gs := &gossip{}
	a, err := New(descriptor, db, tr, gs, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.Contains(t, tr.handlers, ID(descriptor))
	require.Contains(t, gs.handlers, Topic(ID(descriptor)))

	require.NoError(t, a.Add([]byte("x")))
	require.NoError(t, a.Add([]byte("y")))
	require.NoError(t, a.Delete([]byte("x")))
	require.ErrorIs(t, a.Delete([]byte("x")), orset.ErrNotPresent)
	require.False(t, a.Has([]byte("x")))
	require.True(t, a.Has([]byte("y")))
	require.Equal(t, 1, a.Size())

	// every change builds on the previous one
	terminals, err := db.TerminalHistories(descriptor.ID())
	require.NoError(t, err)
	require.Len(t, terminals, 1)
	count, err := db.CountOps(descriptor.ID())
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// replayed from the store
	restarted, err := New(descriptor, db, &loopback{}, &gossip{}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("y")}, restarted.Values())
}

func TestAgentRejects(t *testing.T) {
	db := newStore(t)
	_, err := New(&object.MutableObject{Type: "counter", Name: "set"}, db, &loopback{}, &gossip{})
	require.ErrorContains(t, err, "unsupported object type")

	cfg := DefaultConfig()
	cfg.Sync.MaxPendingOps = 0
	_, err = New(orset.Descriptor("set"), db, &loopback{}, &gossip{}, WithConfig(cfg))
	require.ErrorContains(t, err, "max-pending-ops")

	a, err := New(orset.Descriptor("set"), db, &loopback{}, &gossip{})
	require.NoError(t, err)
	require.ErrorIs(t, a.Receive("remote", nil), ErrEmptyMessage)
	require.ErrorIs(t, a.Receive("remote", []byte{0xff}), causalsync.ErrUnknownMessage)
}

func TestAgentGossipsState(t *testing.T) {
	db := newStore(t)
	tr := &loopback{peers: []p2p.Peer{"remote"}}
	gs := &gossip{}
	clock := clockwork.NewFakeClock()
	descriptor := orset.Descriptor("gossip")
	a, err := New(descriptor, db, tr, gs, WithLogger(zaptest.NewLogger(t)), WithClock(clock))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var eg errgroup.Group
	eg.Go(func() error { return a.Run(ctx) })
	t.Cleanup(func() {
		cancel()
		require.NoError(t, eg.Wait())
	})

	// local changes are advertised right away
	require.NoError(t, a.Add([]byte("x")))
	require.Empty(t, tr.states())
	states := gs.states(t)
	require.Len(t, states, 1)
	terminals, err := db.TerminalHistories(descriptor.ID())
	require.NoError(t, err)
	require.Equal(t, descriptor.ID(), states[0].Target)
	require.Equal(t, terminals, states[0].Terminals)

	// sync timeouts and gossip tickers
	clock.BlockUntil(2)
	clock.Advance(DefaultConfig().GossipInterval)
	require.Eventually(t, func() bool {
		return len(gs.states(t)) == 2
	}, time.Second, time.Millisecond)
}

func TestAgentHandlesGossipedState(t *testing.T) {
	db := newStore(t)
	tr := &loopback{peers: []p2p.Peer{"remote"}}
	gs := &gossip{}
	descriptor := orset.Descriptor("state")
	a, err := New(descriptor, db, tr, gs, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	topic := Topic(a.id)

	state := func(target types.ObjectID) []byte {
		data, err := causalsync.EncodeMessage(&causalsync.StateMsg{
			Target:    target,
			Terminals: []types.HistoryID{types.CalcHash32([]byte("unknown"))},
		})
		require.NoError(t, err)
		return data
	}
	require.ErrorIs(t, gs.deliver(topic, "remote", nil), pubsub.ErrValidationReject)
	require.ErrorIs(t, gs.deliver(topic, "remote", []byte{byte(causalsync.TypeCancel)}), pubsub.ErrValidationReject)
	require.ErrorIs(t, gs.deliver(topic, "remote", state(types.CalcHash32([]byte("other")))),
		pubsub.ErrValidationReject)

	// relayed but not requested from a peer without a direct connection
	require.NoError(t, gs.deliver(topic, "stranger", state(descriptor.ID())))
	require.Empty(t, tr.sent)

	require.NoError(t, gs.deliver(topic, "remote", state(descriptor.ID())))
	require.Len(t, tr.sent, 1)
	require.Equal(t, p2p.Peer("remote"), tr.sent[0].peer)
	require.IsType(t, &causalsync.RequestMsg{}, tr.sent[0].msg)
}
