// Package agent replicates a single observed-remove set with remote peers.
package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/causalmesh/go-causalmesh/causalsync"
	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/log"
	"github.com/causalmesh/go-causalmesh/object"
	"github.com/causalmesh/go-causalmesh/orset"
	"github.com/causalmesh/go-causalmesh/p2p"
	"github.com/causalmesh/go-causalmesh/p2p/pubsub"
	"github.com/causalmesh/go-causalmesh/store"
)

// maxAdvertised terminals in a single state message.
const maxAdvertised = 1024

// ErrEmptyMessage is returned for messages without a type prefix.
var ErrEmptyMessage = errors.New("empty message")

// Config for the agent.
type Config struct {
	// GossipInterval between broadcasts of the local terminal histories.
	GossipInterval time.Duration     `mapstructure:"gossip-interval"`
	Sync           causalsync.Config `mapstructure:"sync"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		GossipInterval: 10 * time.Second,
		Sync:           causalsync.DefaultConfig(),
	}
}

// Transport delivers messages of agents between peers.
type Transport interface {
	causalsync.Transport
	Register(agentID string, handler p2p.Handler)
	OnConnected(func(p2p.Peer))
	Peers() []p2p.Peer
}

// Gossip spreads the terminal histories of the agent to every peer that
// replicates the same set.
type Gossip interface {
	Register(topic string, handler pubsub.GossipHandler) error
	Publish(ctx context.Context, topic string, msg []byte) error
}

// Opt for configuring the agent.
type Opt func(*Agent)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Opt {
	return func(a *Agent) {
		a.cfg = cfg
	}
}

// WithClock sets the clock used for gossip and sync timeouts.
func WithClock(clock clockwork.Clock) Opt {
	return func(a *Agent) {
		a.clock = clock
	}
}

// Agent owns the local replica of a set. It persists local changes, serves
// them to remotes and applies changes fetched from remotes.
type Agent struct {
	logger *zap.Logger
	cfg    Config
	clock  clockwork.Clock

	id        string
	db        *store.Store
	transport Transport
	gossip    Gossip
	set       *orset.Set
	sync      *causalsync.Synchronizer
	provider  *causalsync.Provider

	// mu serializes local changes, so that each one builds on the previous.
	mu sync.Mutex
}

// ID of the agent replicating the descriptor, shared by all peers.
func ID(descriptor *object.MutableObject) string {
	return descriptor.Type + "/" + descriptor.ID().String()
}

// Topic of the state gossip for the agent id.
func Topic(agentID string) string {
	return "state/" + agentID
}

// New creates an agent for the set and registers it with the transport and gossip.
// Ops that are already stored are replayed into the replica.
func New(
	descriptor *object.MutableObject,
	db *store.Store,
	transport Transport,
	gossip Gossip,
	opts ...Opt,
) (*Agent, error) {
	if descriptor.Type != orset.Type {
		return nil, fmt.Errorf("unsupported object type %q", descriptor.Type)
	}
	a := &Agent{
		logger:    zap.NewNop(),
		cfg:       DefaultConfig(),
		clock:     clockwork.NewRealClock(),
		id:        ID(descriptor),
		db:        db,
		transport: transport,
		gossip:    gossip,
		set:       orset.New(descriptor.ID()),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.cfg.Sync.Validate(); err != nil {
		return nil, fmt.Errorf("sync config: %w", err)
	}
	target := descriptor.ID()
	a.logger = a.logger.With(zap.String("agent", descriptor.Name), log.ZShortStringer("target", target))

	if err := db.SaveLiteral(descriptor.Literal()); err != nil {
		return nil, fmt.Errorf("save descriptor: %w", err)
	}
	var applyErr error
	if err := db.IterateOps(target, func(op *object.Op, _ *history.Node) bool {
		applyErr = a.set.Apply(op, db.LoadLiteral)
		return applyErr == nil
	}); err != nil {
		return nil, err
	}
	if applyErr != nil {
		return nil, fmt.Errorf("replay: %w", applyErr)
	}

	a.sync = causalsync.New(target, a.id, db, transport,
		causalsync.WithLogger(a.logger.Named("sync")),
		causalsync.WithConfig(a.cfg.Sync),
		causalsync.WithClock(a.clock),
		causalsync.WithOpValidator(orset.Validate),
		causalsync.WithFetchedHandler(a.onFetched),
	)
	a.provider = causalsync.NewProvider(a.logger.Named("provider"), a.cfg.Sync, target, a.id, db, transport)
	if err := gossip.Register(Topic(a.id), a.onState); err != nil {
		return nil, err
	}
	transport.Register(a.id, a.Receive)
	transport.OnConnected(a.advertise)
	a.logger.Info("agent started", zap.Int("elements", a.set.Size()))
	return a, nil
}

// Receive dispatches a message sent by the peer's agent.
func (a *Agent) Receive(peer p2p.Peer, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyMessage
	}
	switch causalsync.MessageType(data[0]) {
	case causalsync.TypeRequest, causalsync.TypeCancel:
		return a.provider.HandleMessage(peer, data)
	default:
		return a.sync.HandleMessage(peer, data)
	}
}

// onState accepts terminal histories gossiped by the peer. Peers that are not
// connected directly are not asked for ops, their state is only relayed.
func (a *Agent) onState(_ context.Context, from p2p.Peer, data []byte) error {
	if len(data) == 0 || causalsync.MessageType(data[0]) != causalsync.TypeState {
		return fmt.Errorf("%w: not a state message", pubsub.ErrValidationReject)
	}
	if !slices.Contains(a.transport.Peers(), from) {
		return nil
	}
	if err := a.sync.HandleMessage(from, data); err != nil {
		return fmt.Errorf("%w: %w", pubsub.ErrValidationReject, err)
	}
	return nil
}

func (a *Agent) onFetched(op *object.Op, node *history.Node) {
	if err := a.set.Apply(op, a.db.LoadLiteral); err != nil {
		a.logger.Error("failed to apply fetched op",
			zap.Stringer("op", node.OpID),
			zap.Error(err),
		)
	}
}

// Add inserts the value into the set.
func (a *Agent) Add(value []byte) error {
	element := orset.Element(value)
	return a.commit(func(prev []types.OpID) (*object.Op, []*object.Literal, error) {
		return a.set.NewAdd(element, prev), []*object.Literal{element}, nil
	})
}

// Delete removes every observed add of the value.
func (a *Agent) Delete(value []byte) error {
	element := orset.Element(value).Hash
	return a.commit(func(prev []types.OpID) (*object.Op, []*object.Literal, error) {
		op, err := a.set.NewDelete(element, prev)
		return op, nil, err
	})
}

func (a *Agent) commit(build func(prev []types.OpID) (*object.Op, []*object.Literal, error)) error {
	a.mu.Lock()
	prev, err := a.prev()
	if err != nil {
		a.mu.Unlock()
		return err
	}
	op, deps, err := build(prev)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	node, err := a.db.SaveOp(op.Literal(), deps)
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("save %s: %w", op.Kind, err)
	}
	err = a.set.Apply(op, a.db.LoadLiteral)
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("apply %s: %w", op.Kind, err)
	}
	a.logger.Debug("local op",
		zap.String("kind", op.Kind),
		zap.Stringer("op", node.OpID),
		zap.Stringer("history", node.ID),
	)
	// outside of the lock: the synchronizer may deliver fetched ops from here
	a.sync.OnNewLocalOp(node)
	a.broadcast(context.Background())
	return nil
}

// prev returns ops of the terminal histories.
func (a *Agent) prev() ([]types.OpID, error) {
	terminals, err := a.db.TerminalHistories(a.set.Target())
	if err != nil {
		return nil, err
	}
	prev := make([]types.OpID, 0, len(terminals))
	for _, id := range terminals {
		node, err := a.db.LoadHistory(id)
		if err != nil {
			return nil, fmt.Errorf("terminal %s: %w", id.ShortString(), err)
		}
		prev = append(prev, node.OpID)
	}
	return prev, nil
}

// Has reports whether the value is in the set.
func (a *Agent) Has(value []byte) bool {
	return a.set.Has(orset.Element(value).Hash)
}

// Size returns the number of values in the set.
func (a *Agent) Size() int {
	return a.set.Size()
}

// Values returns the values in the set ordered by element hash.
func (a *Agent) Values() [][]byte {
	return a.set.Values()
}

// Stats of the synchronizer.
func (a *Agent) Stats() causalsync.Stats {
	return a.sync.Stats()
}

func (a *Agent) state() ([]byte, error) {
	terminals, err := a.db.TerminalHistories(a.set.Target())
	if err != nil {
		return nil, err
	}
	if len(terminals) > maxAdvertised {
		terminals = terminals[:maxAdvertised]
	}
	return causalsync.EncodeMessage(&causalsync.StateMsg{Target: a.set.Target(), Terminals: terminals})
}

func (a *Agent) advertise(peer p2p.Peer) {
	data, err := a.state()
	if err != nil {
		a.logger.Error("failed to encode state", zap.Error(err))
		return
	}
	a.transport.Send(peer, a.id, data)
}

func (a *Agent) broadcast(ctx context.Context) {
	data, err := a.state()
	if err != nil {
		a.logger.Error("failed to encode state", zap.Error(err))
		return
	}
	if err := a.gossip.Publish(ctx, Topic(a.id), data); err != nil {
		a.logger.Debug("state not published", zap.Error(err))
	}
}

// Run synchronizes with remotes and periodically advertises local state
// until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	var eg errgroup.Group
	eg.Go(func() error {
		return a.sync.Run(ctx)
	})
	eg.Go(func() error {
		ticker := a.clock.NewTicker(a.cfg.GossipInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.Chan():
				a.broadcast(ctx)
			}
		}
	})
	return eg.Wait()
}
