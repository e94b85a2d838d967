package p2p

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lp2plog "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/muxer/yamux"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	"github.com/multiformats/go-multiaddr"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const keyFilename = "p2p.key"

// DefaultConfig config.
func DefaultConfig() Config {
	return Config{
		Listen:             "/ip4/0.0.0.0/tcp/7613",
		LowPeers:           20,
		HighPeers:          40,
		GracePeersShutdown: 30 * time.Second,
		QueueSize:          8192,
		LogLevel:           zapcore.WarnLevel,
	}
}

// Config for the libp2p host and the message transport.
type Config struct {
	DataDir            string        `mapstructure:"data-dir"`
	GracePeersShutdown time.Duration `mapstructure:"grace-peers-shutdown"`

	// see https://lwn.net/Articles/542629/ for reuseport explanation
	DisableReusePort bool     `mapstructure:"disable-reuseport"`
	Listen           string   `mapstructure:"listen"`
	Bootnodes        []string `mapstructure:"bootnodes"`
	LowPeers         int      `mapstructure:"low-peers"`
	HighPeers        int      `mapstructure:"high-peers"`
	// QueueSize bounds the number of outbound messages waiting for a peer.
	QueueSize int  `mapstructure:"queue-size"`
	Metrics   bool `mapstructure:"metrics"`
	// LogLevel of libp2p internal loggers.
	LogLevel zapcore.Level `mapstructure:"log-level"`
}

// Validate checks the config for values the host can't start with.
func (cfg *Config) Validate() error {
	var errs []error
	if _, err := multiaddr.NewMultiaddr(cfg.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen %q: %w", cfg.Listen, err))
	}
	for _, addr := range cfg.Bootnodes {
		if _, err := peer.AddrInfoFromString(addr); err != nil {
			errs = append(errs, fmt.Errorf("bootnode %q: %w", addr, err))
		}
	}
	if cfg.LowPeers > cfg.HighPeers {
		errs = append(errs, fmt.Errorf("low peers %d over high peers %d", cfg.LowPeers, cfg.HighPeers))
	}
	if cfg.QueueSize <= 0 {
		errs = append(errs, errors.New("queue size must be positive"))
	}
	return errors.Join(errs...)
}

// New initializes libp2p host.
func New(logger *zap.Logger, cfg Config) (host.Host, error) {
	logger.Info("starting libp2p host", zap.Any("config", &cfg))
	key, err := EnsureIdentity(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	lp2plog.SetPrimaryCore(logger.Core())
	lp2plog.SetAllLoggers(lp2plog.LogLevel(cfg.LogLevel))
	cm, err := connmgr.NewConnManager(cfg.LowPeers, cfg.HighPeers, connmgr.WithGracePeriod(cfg.GracePeersShutdown))
	if err != nil {
		return nil, fmt.Errorf("p2p create conn mgr: %w", err)
	}
	var tcpOpts []interface{}
	if cfg.DisableReusePort {
		tcpOpts = append(tcpOpts, tcp.DisableReuseport())
	}
	if cfg.Metrics {
		tcpOpts = append(tcpOpts, tcp.WithMetrics())
	}
	h, err := libp2p.New(
		libp2p.Identity(key),
		libp2p.ListenAddrStrings(cfg.Listen),
		libp2p.UserAgent("go-causalmesh"),
		libp2p.Transport(tcp.NewTCPTransport, tcpOpts...),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Muxer(yamux.ID, yamux.DefaultTransport),
		libp2p.ConnectionManager(cm),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize libp2p host: %w", err)
	}
	logger.Info("local node identity",
		zap.Stringer("identity", h.ID()),
		zap.Any("addresses", h.Addrs()),
	)
	return h, nil
}

// Connect dials every address, given as a multiaddr with a /p2p/ component.
// Failures are joined, so that a single unreachable node doesn't prevent
// connecting to the others.
func Connect(ctx context.Context, logger *zap.Logger, h host.Host, addrs []string) error {
	var errs []error
	for _, addr := range addrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %q: %w", addr, err))
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			errs = append(errs, fmt.Errorf("peer info %q: %w", addr, err))
			continue
		}
		if info.ID == h.ID() {
			continue
		}
		if err := h.Connect(ctx, *info); err != nil {
			errs = append(errs, fmt.Errorf("connect %s: %w", info.ID, err))
			continue
		}
		logger.Debug("connected", zap.Stringer("peer", info.ID))
	}
	return errors.Join(errs...)
}

// EnsureIdentity loads the private key from dir, or generates and persists a
// new one. An empty dir generates an ephemeral key.
func EnsureIdentity(dir string) (crypto.PrivKey, error) {
	if dir == "" {
		key, _, err := crypto.GenerateEd25519Key(nil)
		return key, err
	}
	path := filepath.Join(dir, keyFilename)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, err := crypto.UnmarshalPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("unmarshal identity %s: %w", path, err)
		}
		return key, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read identity %s: %w", path, err)
	}
	key, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	data, err = crypto.MarshalPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal identity: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("write identity %s: %w", path, err)
	}
	return key, nil
}
