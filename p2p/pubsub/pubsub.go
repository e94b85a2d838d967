// Package pubsub wraps gossipsub for topics whose messages are validated by
// a single handler before they are relayed further.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/causalmesh/go-causalmesh/metrics"
)

const (
	GossipScoreThreshold             = -500
	PublishScoreThreshold            = -1000
	GraylistScoreThreshold           = -2500
	AcceptPXScoreThreshold           = 1000
	OpportunisticGraftScoreThreshold = 3.5
)

// ErrValidationReject is wrapped by handlers for malformed messages. Such
// messages are not relayed and count against the peer that relayed them.
var ErrValidationReject = errors.New("validation reject")

var processed = metrics.NewCounter(
	"processed",
	"gossip",
	"Gossip messages by validation result",
	[]string{"topic", "result"},
)

// Config for gossip.
type Config struct {
	// Flood publishes own messages to every peer of the topic instead of the mesh only.
	Flood          bool `mapstructure:"flood"`
	MaxMessageSize int  `mapstructure:"max-message-size"`
}

// DefaultConfig for gossip.
func DefaultConfig() Config {
	return Config{Flood: true}
}

// GossipHandler receives a message authored by the peer. A nil error accepts
// the message for relaying.
type GossipHandler = func(ctx context.Context, from peer.ID, msg []byte) error

// GossipPubSub publishes and validates messages on registered topics.
type GossipPubSub struct {
	logger *zap.Logger
	pubsub *pubsub.PubSub
	host   host.Host

	mu     sync.RWMutex
	topics map[string]*pubsub.Topic
}

// New starts gossipsub on the host. It stops when ctx is done.
func New(ctx context.Context, logger *zap.Logger, h host.Host, cfg Config) (*GossipPubSub, error) {
	ps, err := pubsub.NewGossipSub(ctx, h, options(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gossipsub instance: %w", err)
	}
	return &GossipPubSub{
		logger: logger,
		pubsub: ps,
		host:   h,
		topics: map[string]*pubsub.Topic{},
	}, nil
}

// Register handler for the topic and start relaying it.
func (ps *GossipPubSub) Register(topic string, handler GossipHandler) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, exist := ps.topics[topic]; exist {
		return fmt.Errorf("topic %s is already registered", topic)
	}
	err := ps.pubsub.RegisterTopicValidator(
		topic,
		func(ctx context.Context, pid peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
			// own messages were handled before they were published
			if msg.ReceivedFrom == ps.host.ID() {
				return pubsub.ValidationAccept
			}
			err := handler(ctx, msg.GetFrom(), msg.Data)
			result := castResult(err)
			processed.WithLabelValues(topic, result.String()).Inc()
			if err != nil {
				ps.logger.Debug("topic validation failed",
					zap.String("topic", topic),
					zap.Stringer("from", msg.GetFrom()),
					zap.Stringer("relayed by", pid),
					zap.Error(err),
				)
			}
			return result.ValidationResult
		},
	)
	if err != nil {
		return fmt.Errorf("register validator for %s: %w", topic, err)
	}
	topich, err := ps.pubsub.Join(topic)
	if err != nil {
		return fmt.Errorf("join topic %s: %w", topic, err)
	}
	if _, err := topich.Relay(); err != nil {
		return fmt.Errorf("enable relay for topic %s: %w", topic, err)
	}
	ps.topics[topic] = topich
	return nil
}

// Publish message to the topic.
func (ps *GossipPubSub) Publish(ctx context.Context, topic string, msg []byte) error {
	ps.mu.RLock()
	topich := ps.topics[topic]
	ps.mu.RUnlock()
	if topich == nil {
		return fmt.Errorf("publish to unregistered topic %s", topic)
	}
	if err := topich.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to topic %v: %w", topic, err)
	}
	return nil
}

// TopicPeers returns peers that relay the topic.
func (ps *GossipPubSub) TopicPeers(topic string) []peer.ID {
	return ps.pubsub.ListPeers(topic)
}

type result struct {
	pubsub.ValidationResult
}

func (r result) String() string {
	switch r.ValidationResult {
	case pubsub.ValidationAccept:
		return "accept"
	case pubsub.ValidationReject:
		return "reject"
	default:
		return "ignore"
	}
}

func castResult(err error) result {
	switch {
	case err == nil:
		return result{pubsub.ValidationAccept}
	case errors.Is(err, ErrValidationReject):
		return result{pubsub.ValidationReject}
	default:
		return result{pubsub.ValidationIgnore}
	}
}

func options(cfg Config) []pubsub.Option {
	opts := []pubsub.Option{
		pubsub.WithFloodPublish(cfg.Flood),
		pubsub.WithPeerOutboundQueueSize(8192),
		pubsub.WithValidateQueueSize(8192),
		pubsub.WithPeerScore(
			&pubsub.PeerScoreParams{
				AppSpecificScore:  func(peer.ID) float64 { return 0 },
				AppSpecificWeight: 1,

				BehaviourPenaltyThreshold: 6,
				BehaviourPenaltyWeight:    -10,
				BehaviourPenaltyDecay:     pubsub.ScoreParameterDecay(time.Hour),

				DecayInterval: pubsub.DefaultDecayInterval,
				DecayToZero:   pubsub.DefaultDecayToZero,
				RetainScore:   6 * time.Hour,
			},
			&pubsub.PeerScoreThresholds{
				GossipThreshold:             GossipScoreThreshold,
				PublishThreshold:            PublishScoreThreshold,
				GraylistThreshold:           GraylistScoreThreshold,
				AcceptPXThreshold:           AcceptPXScoreThreshold,
				OpportunisticGraftThreshold: OpportunisticGraftScoreThreshold,
			},
		),
	}
	if cfg.MaxMessageSize != 0 {
		opts = append(opts, pubsub.WithMaxMessageSize(cfg.MaxMessageSize))
	}
	return opts
}
