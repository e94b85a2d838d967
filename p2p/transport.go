package p2p

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/causalmesh/go-causalmesh/codec"
	"github.com/causalmesh/go-causalmesh/p2p/server"
)

// ProtocolID of the agent message exchange.
const ProtocolID = "/causalmesh/agents/1"

// ErrUnknownAgent is returned for envelopes addressed to an agent that is not registered.
var ErrUnknownAgent = errors.New("unknown agent")

// Handler receives messages addressed to an agent.
type Handler func(peer Peer, msg []byte) error

// TransportOpt configures the transport.
type TransportOpt func(*Transport)

// WithTransportLogger sets the logger.
func WithTransportLogger(logger *zap.Logger) TransportOpt {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithQueueSize bounds the number of outbound messages waiting for a peer.
func WithQueueSize(size int) TransportOpt {
	return func(t *Transport) {
		t.queueSize = size
	}
}

// WithServerOpts passes options to the message server.
func WithServerOpts(opts ...server.Opt) TransportOpt {
	return func(t *Transport) {
		t.serverOpts = append(t.serverOpts, opts...)
	}
}

// Transport multiplexes messages of local agents over a single protocol.
// Send never blocks: messages are queued per peer and written by a worker
// that is started on the first message to the peer.
type Transport struct {
	logger     *zap.Logger
	queueSize  int
	serverOpts []server.Opt

	h   host.Host
	srv *server.Server

	mu          sync.Mutex
	ctx         context.Context
	eg          errgroup.Group
	agents      map[string]Handler
	queues      map[Peer]*peerQueue
	onConnected []func(Peer)
}

type peerQueue struct {
	messages chan []byte
	cancel   context.CancelFunc
}

// NewTransport creates a transport on top of the host. Call Run to start it.
func NewTransport(h host.Host, opts ...TransportOpt) *Transport {
	t := &Transport{
		logger:    zap.NewNop(),
		queueSize: DefaultConfig().QueueSize,
		h:         h,
		agents:    map[string]Handler{},
		queues:    map[Peer]*peerQueue{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.srv = server.New(h, ProtocolID, t.handle, append([]server.Opt{server.WithLog(t.logger)}, t.serverOpts...)...)
	return t
}

// Register routes messages for the agent id to the handler.
func (t *Transport) Register(agentID string, handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agents[agentID] = handler
}

// OnConnected calls fn for every new connection.
func (t *Transport) OnConnected(fn func(Peer)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConnected = append(t.onConnected, fn)
}

// Peers returns currently connected peers.
func (t *Transport) Peers() []Peer {
	return t.h.Network().Peers()
}

// Send queues the message for the agent on the peer. Returns false if the
// transport is not running or the peer queue is full. The queue lives until
// the peer disconnects.
func (t *Transport) Send(peer Peer, agentID string, msg []byte) bool {
	data, err := codec.Encode(&Envelope{AgentID: agentID, Data: msg})
	if err != nil {
		t.logger.Error("failed to encode envelope", zap.String("agent", agentID), zap.Error(err))
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx == nil || t.ctx.Err() != nil {
		return false
	}
	queue, exist := t.queues[peer]
	if !exist {
		ctx, cancel := context.WithCancel(t.ctx)
		queue = &peerQueue{messages: make(chan []byte, t.queueSize), cancel: cancel}
		t.queues[peer] = queue
		t.eg.Go(func() error {
			t.drain(ctx, peer, queue.messages)
			return nil
		})
	}
	select {
	case queue.messages <- data:
		return true
	default:
		t.logger.Debug("outbound queue is full", zap.Stringer("peer", peer))
		return false
	}
}

func (t *Transport) drain(ctx context.Context, peer Peer, queue chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-queue:
			if err := t.srv.Send(ctx, peer, data); err != nil {
				t.logger.Debug("failed to send", zap.Stringer("peer", peer), zap.Error(err))
			}
		}
	}
}

// disconnected stops the worker of the peer once no connection to it is left.
// Messages still queued for it are dropped.
func (t *Transport) disconnected(peer Peer) {
	if t.h.Network().Connectedness(peer) == network.Connected {
		return
	}
	t.mu.Lock()
	queue, exist := t.queues[peer]
	delete(t.queues, peer)
	t.mu.Unlock()
	if exist {
		queue.cancel()
	}
	t.srv.Disconnected(peer)
}

func (t *Transport) handle(_ context.Context, peer Peer, data []byte) error {
	var env Envelope
	if err := codec.Decode(data, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	t.mu.Lock()
	handler, exist := t.agents[env.AgentID]
	t.mu.Unlock()
	if !exist {
		return fmt.Errorf("%w: %q", ErrUnknownAgent, env.AgentID)
	}
	return handler(peer, env.Data)
}

// Run serves inbound messages and writes outbound ones until ctx is done.
func (t *Transport) Run(ctx context.Context) error {
	notifiee := &network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			t.mu.Lock()
			fns := append([]func(Peer){}, t.onConnected...)
			t.mu.Unlock()
			for _, fn := range fns {
				fn(c.RemotePeer())
			}
		},
		DisconnectedF: func(_ network.Network, c network.Conn) {
			t.disconnected(c.RemotePeer())
		},
	}
	t.mu.Lock()
	t.ctx = ctx
	t.mu.Unlock()
	t.h.Network().Notify(notifiee)
	defer t.h.Network().StopNotify(notifiee)

	err := t.srv.Run(ctx)
	t.mu.Lock()
	for _, queue := range t.queues {
		queue.cancel()
	}
	t.queues = map[Peer]*peerQueue{}
	t.mu.Unlock()
	return errors.Join(err, t.eg.Wait())
}
