package p2p

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/protocol"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/causalmesh/go-causalmesh/p2p/server"
)

type mailbox struct {
	mu       sync.Mutex
	received []string
}

func (m *mailbox) handle(_ Peer, msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, string(msg))
	return nil
}

func (m *mailbox) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.received)
}

func runTransports(t *testing.T, transports ...*Transport) {
	ctx, cancel := context.WithCancel(context.Background())
	var eg errgroup.Group
	for _, tr := range transports {
		eg.Go(func() error { return tr.Run(ctx) })
	}
	t.Cleanup(func() {
		cancel()
		require.NoError(t, eg.Wait())
	})
	for _, tr := range transports {
		require.Eventually(t, func() bool {
			return slices.Contains(tr.h.Mux().Protocols(), protocol.ID(ProtocolID))
		}, time.Second, time.Millisecond)
	}
}

func TestTransportRoutesByAgent(t *testing.T) {
	mesh, err := mocknet.FullMeshConnected(2)
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	first := NewTransport(mesh.Hosts()[0], WithTransportLogger(logger.Named("first")))
	second := NewTransport(mesh.Hosts()[1], WithTransportLogger(logger.Named("second")),
		WithServerOpts(server.WithTimeout(time.Second)))

	var sets, counters mailbox
	second.Register("orset/a", sets.handle)
	second.Register("counter/b", counters.handle)

	require.False(t, first.Send(second.h.ID(), "orset/a", []byte("too early")))
	runTransports(t, first, second)

	require.ElementsMatch(t, []Peer{second.h.ID()}, first.Peers())
	for _, msg := range []string{"one", "two", "three"} {
		require.True(t, first.Send(second.h.ID(), "orset/a", []byte(msg)))
	}
	require.True(t, first.Send(second.h.ID(), "counter/b", []byte("four")))
	// dropped by the receiver
	require.True(t, first.Send(second.h.ID(), "unknown", []byte("five")))

	require.Eventually(t, func() bool {
		return len(sets.messages()) == 3 && len(counters.messages()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"one", "two", "three"}, sets.messages())
	require.Equal(t, []string{"four"}, counters.messages())
}

func TestTransportOnConnected(t *testing.T) {
	mesh, err := mocknet.FullMeshLinked(2)
	require.NoError(t, err)
	tr := NewTransport(mesh.Hosts()[0], WithTransportLogger(zaptest.NewLogger(t)))
	connected := make(chan Peer, 1)
	tr.OnConnected(func(p Peer) {
		select {
		case connected <- p:
		default:
		}
	})
	runTransports(t, tr)
	require.Empty(t, tr.Peers())

	require.NoError(t, mesh.ConnectAllButSelf())
	select {
	case p := <-connected:
		require.Equal(t, mesh.Hosts()[1].ID(), p)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for connection")
	}
}

func TestTransportDropsQueueOnDisconnect(t *testing.T) {
	mesh, err := mocknet.FullMeshConnected(2)
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	first := NewTransport(mesh.Hosts()[0], WithTransportLogger(logger.Named("first")))
	second := NewTransport(mesh.Hosts()[1], WithTransportLogger(logger.Named("second")))
	var received mailbox
	second.Register("orset/a", received.handle)
	runTransports(t, first, second)

	queues := func() int {
		first.mu.Lock()
		defer first.mu.Unlock()
		return len(first.queues)
	}
	target := second.h.ID()
	require.True(t, first.Send(target, "orset/a", []byte("one")))
	require.Eventually(t, func() bool {
		return len(received.messages()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, queues())

	require.NoError(t, mesh.DisconnectPeers(first.h.ID(), target))
	require.Eventually(t, func() bool {
		return queues() == 0
	}, 5*time.Second, 10*time.Millisecond)

	_, err = mesh.ConnectPeers(first.h.ID(), target)
	require.NoError(t, err)
	require.True(t, first.Send(target, "orset/a", []byte("two")))
	require.Eventually(t, func() bool {
		return slices.Equal([]string{"one", "two"}, received.messages())
	}, 5*time.Second, 10*time.Millisecond)
}
