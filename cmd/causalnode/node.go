package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/causalmesh/go-causalmesh/agent"
	"github.com/causalmesh/go-causalmesh/config"
	"github.com/causalmesh/go-causalmesh/log"
	"github.com/causalmesh/go-causalmesh/metrics"
	"github.com/causalmesh/go-causalmesh/orset"
	"github.com/causalmesh/go-causalmesh/p2p"
	"github.com/causalmesh/go-causalmesh/p2p/pubsub"
	"github.com/causalmesh/go-causalmesh/p2p/server"
	"github.com/causalmesh/go-causalmesh/sql"
	"github.com/causalmesh/go-causalmesh/store"
)

const (
	dbFile   = "state.sql"
	lockFile = "causalnode.lock"
)

func run(ctx context.Context, conf *config.Config, adds []string) (err error) {
	logger, err := log.New(conf.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := os.MkdirAll(conf.DataDir, 0o700); err != nil {
		return fmt.Errorf("ensure data dir exists: %w", err)
	}
	fl := flock.New(filepath.Join(conf.DataDir, lockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("flock %s: %w", fl.Path(), err)
	} else if !locked {
		return fmt.Errorf("only one node should be running (locking file %s)", fl.Path())
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			logger.Error("failed to unlock file", zap.String("path", fl.Path()), zap.Error(err))
		}
	}()
	db, err := sql.Open("file:"+filepath.Join(conf.DataDir, dbFile),
		sql.WithLogger(log.Named(logger, conf.Logging, "db")))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		err = errors.Join(err, db.Close())
	}()
	st, err := store.New(db,
		store.WithLogger(log.Named(logger, conf.Logging, "store")),
		store.WithConfig(conf.Store),
	)
	if err != nil {
		return err
	}

	if conf.P2P.DataDir == "" {
		conf.P2P.DataDir = conf.DataDir
	}
	h, err := p2p.New(log.Named(logger, conf.Logging, "p2p"), conf.P2P)
	if err != nil {
		return err
	}
	defer h.Close()

	var srvOpts []server.Opt
	if conf.Metrics.Enabled {
		srvOpts = append(srvOpts, server.WithMetrics())
	}
	transport := p2p.NewTransport(h,
		p2p.WithTransportLogger(log.Named(logger, conf.Logging, "transport")),
		p2p.WithQueueSize(conf.P2P.QueueSize),
		p2p.WithServerOpts(srvOpts...),
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	gossip, err := pubsub.New(ctx, log.Named(logger, conf.Logging, "gossip"), h, conf.Gossip)
	if err != nil {
		return err
	}
	replica, err := agent.New(orset.Descriptor(conf.Set), st, transport, gossip,
		agent.WithLogger(log.Named(logger, conf.Logging, "agent")),
		agent.WithConfig(conf.Agent),
	)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	if conf.Metrics.Enabled {
		srv, err := metrics.NewServer(log.Named(logger, conf.Logging, "metrics"), conf.Metrics.Listen)
		if err != nil {
			return err
		}
		eg.Go(func() error { return srv.Run(ctx) })
	}
	eg.Go(func() error { return transport.Run(ctx) })
	eg.Go(func() error { return replica.Run(ctx) })

	if err := p2p.Connect(ctx, logger, h, conf.P2P.Bootnodes); err != nil {
		logger.Warn("failed to connect to some bootnodes", zap.Error(err))
	}
	for _, value := range adds {
		if err := replica.Add([]byte(value)); err != nil {
			logger.Error("failed to add", zap.String("value", value), zap.Error(err))
		}
	}
	logger.Info("node started",
		zap.String("set", conf.Set),
		zap.Stringer("identity", h.ID()),
		zap.Int("elements", replica.Size()),
	)
	return eg.Wait()
}
