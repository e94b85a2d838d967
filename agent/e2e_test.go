package agent

import (
	"context"
	"fmt"
	"testing"
	"time"

	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/log/logtest"
	"github.com/causalmesh/go-causalmesh/object"
	"github.com/causalmesh/go-causalmesh/orset"
	"github.com/causalmesh/go-causalmesh/p2p"
	"github.com/causalmesh/go-causalmesh/p2p/pubsub"
	"github.com/causalmesh/go-causalmesh/store"
)

const converge = 10 * time.Second

func e2eConfig() Config {
	cfg := DefaultConfig()
	cfg.GossipInterval = 50 * time.Millisecond
	cfg.Sync.RequestTimeout = 2 * time.Second
	cfg.Sync.LiteralArrivalTimeout = time.Second
	cfg.Sync.TimeoutCheckInterval = 50 * time.Millisecond
	return cfg
}

type e2eNode struct {
	peer  p2p.Peer
	db    *store.Store
	agent *Agent
}

func (n *e2eNode) histories(tb testing.TB, target types.ObjectID) []*history.Node {
	tb.Helper()
	var nodes []*history.Node
	require.NoError(tb, n.db.IterateOps(target, func(_ *object.Op, node *history.Node) bool {
		nodes = append(nodes, node)
		return true
	}))
	return nodes
}

func startNodes(t *testing.T, mesh mocknet.Mocknet, descriptor *object.MutableObject) []*e2eNode {
	ctx, cancel := context.WithCancel(context.Background())
	var (
		eg    errgroup.Group
		nodes []*e2eNode
	)
	t.Cleanup(func() {
		cancel()
		require.NoError(t, eg.Wait())
		for _, n := range nodes {
			require.NoError(t, n.db.Close())
		}
	})
	for i, h := range mesh.Hosts() {
		logger := logtest.New(t).Named(fmt.Sprintf("node-%d", i))
		db := store.InMemory(store.WithLogger(logger))
		tr := p2p.NewTransport(h, p2p.WithTransportLogger(logger.Named("transport")))
		gs, err := pubsub.New(ctx, logger.Named("gossip"), h, pubsub.DefaultConfig())
		require.NoError(t, err)
		a, err := New(descriptor, db, tr, gs, WithLogger(logger), WithConfig(e2eConfig()))
		require.NoError(t, err)
		eg.Go(func() error { return tr.Run(ctx) })
		eg.Go(func() error { return a.Run(ctx) })
		nodes = append(nodes, &e2eNode{peer: h.ID(), db: db, agent: a})
	}
	return nodes
}

func requireConverged(t *testing.T, nodes []*e2eNode, size int, values ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, n := range nodes {
			if n.agent.Size() != size {
				return false
			}
			for _, v := range values {
				if !n.agent.Has([]byte(v)) {
					return false
				}
			}
		}
		return true
	}, converge, 10*time.Millisecond)
	for _, n := range nodes[1:] {
		require.Equal(t, nodes[0].agent.Values(), n.agent.Values())
	}
}

func requireUniqueHistory(t *testing.T, n *e2eNode, target types.ObjectID, ops int) {
	t.Helper()
	nodes := n.histories(t, target)
	require.Len(t, nodes, ops)
	seen := types.HashSet{}
	for _, node := range nodes {
		require.NoError(t, node.Verify())
		require.True(t, seen.Add(node.ID), "history %s is stored twice", node.ID.ShortString())
	}
	require.True(t, history.FromNodes(nodes).VerifyUniqueOps())
}

func TestE2EAddDeleteAdd(t *testing.T) {
	mesh, err := mocknet.FullMeshConnected(3)
	require.NoError(t, err)
	descriptor := orset.Descriptor("add-delete-add")
	nodes := startNodes(t, mesh, descriptor)

	creator := nodes[0].agent
	require.NoError(t, creator.Add([]byte("element")))
	require.NoError(t, creator.Delete([]byte("element")))
	require.NoError(t, creator.Add([]byte("element")))
	require.Equal(t, 1, creator.Size())

	requireConverged(t, nodes, 1, "element")
	for _, n := range nodes {
		require.Eventually(t, func() bool {
			count, err := n.db.CountOps(descriptor.ID())
			return err == nil && count == 3
		}, converge, 10*time.Millisecond)
	}
}

func TestE2ESequentialAdds(t *testing.T) {
	mesh, err := mocknet.FullMeshConnected(3)
	require.NoError(t, err)
	descriptor := orset.Descriptor("sequential")
	nodes := startNodes(t, mesh, descriptor)

	for i := range 10 {
		require.NoError(t, nodes[0].agent.Add([]byte(fmt.Sprintf("element-%d", i))))
	}
	requireConverged(t, nodes, 10)
	for _, n := range nodes {
		requireUniqueHistory(t, n, descriptor.ID(), 10)
	}
}

func TestE2EDiamond(t *testing.T) {
	mesh, err := mocknet.FullMeshConnected(2)
	require.NoError(t, err)
	descriptor := orset.Descriptor("diamond")
	nodes := startNodes(t, mesh, descriptor)
	local, remote := nodes[0], nodes[1]

	require.NoError(t, local.agent.Add([]byte("root")))
	requireConverged(t, nodes, 1, "root")
	require.Eventually(t, func() bool {
		stats := remote.agent.Stats()
		return stats.Requests == 0 && stats.PendingOps == 0
	}, converge, 10*time.Millisecond)

	require.NoError(t, mesh.DisconnectPeers(local.peer, remote.peer))
	require.Eventually(t, func() bool {
		return len(mesh.Net(local.peer).Peers()) == 0 && len(mesh.Net(remote.peer).Peers()) == 0
	}, converge, 10*time.Millisecond)

	require.NoError(t, local.agent.Add([]byte("local change")))
	require.NoError(t, remote.agent.Add([]byte("remote change")))
	require.Equal(t, 2, local.agent.Size())
	require.Equal(t, 2, remote.agent.Size())

	_, err = mesh.ConnectPeers(local.peer, remote.peer)
	require.NoError(t, err)
	requireConverged(t, nodes, 3, "root", "local change", "remote change")
	for _, n := range nodes {
		requireUniqueHistory(t, n, descriptor.ID(), 3)
		terminals, err := n.db.TerminalHistories(descriptor.ID())
		require.NoError(t, err)
		require.Len(t, terminals, 2)
	}
}
