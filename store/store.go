// Package store persists literals and ops together with their causal history.
package store

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/object"
	"github.com/causalmesh/go-causalmesh/sql"
	"github.com/causalmesh/go-causalmesh/sql/ops"
)

var (
	// ErrNotFound is returned when an object is not stored.
	ErrNotFound = sql.ErrNotFound
	// ErrMissingPredecessor is returned when an op is saved before one of its predecessors.
	ErrMissingPredecessor = errors.New("predecessor is not stored")
	// ErrUnknownTarget is returned when an op targets a mutable object that is not stored.
	ErrUnknownTarget = errors.New("unknown target")
)

// Config for the store caches.
type Config struct {
	HistoryCacheSize int `mapstructure:"history-cache-size"`
	LiteralCacheSize int `mapstructure:"literal-cache-size"`
}

// DefaultConfig returns default cache sizes.
func DefaultConfig() Config {
	return Config{
		HistoryCacheSize: 8192,
		LiteralCacheSize: 4096,
	}
}

// Opt for configuring the store.
type Opt func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithConfig overrides default cache sizes.
func WithConfig(cfg Config) Opt {
	return func(s *Store) {
		s.cfg = cfg
	}
}

// Store is a content-addressed store of literals and ops backed by sqlite.
// Lookups of history nodes and literals are cached, since the synchronizer
// repeatedly consults them while validating responses.
type Store struct {
	logger    *zap.Logger
	cfg       Config
	db        *sql.Database
	histories *lru.Cache[types.HistoryID, *history.Node]
	byOp      *lru.Cache[types.OpID, *history.Node]
	literals  *lru.Cache[types.Hash32, *object.Literal]
}

// New creates a store on top of the database.
func New(db *sql.Database, opts ...Opt) (*Store, error) {
	s := &Store{
		logger: zap.NewNop(),
		cfg:    DefaultConfig(),
		db:     db,
	}
	for _, opt := range opts {
		opt(s)
	}
	var err error
	if s.histories, err = lru.New[types.HistoryID, *history.Node](s.cfg.HistoryCacheSize); err != nil {
		return nil, fmt.Errorf("history cache: %w", err)
	}
	if s.byOp, err = lru.New[types.OpID, *history.Node](s.cfg.HistoryCacheSize); err != nil {
		return nil, fmt.Errorf("op history cache: %w", err)
	}
	if s.literals, err = lru.New[types.Hash32, *object.Literal](s.cfg.LiteralCacheSize); err != nil {
		return nil, fmt.Errorf("literal cache: %w", err)
	}
	return s, nil
}

// InMemory creates a store on an in-memory database. Panics on error.
func InMemory(opts ...Opt) *Store {
	s, err := New(sql.InMemory(), opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadHistory loads the history node by its id.
func (s *Store) LoadHistory(id types.HistoryID) (*history.Node, error) {
	if node, exist := s.histories.Get(id); exist {
		return node, nil
	}
	node, err := ops.GetHistory(s.db, id)
	if err != nil {
		return nil, err
	}
	s.cacheHistory(node)
	return node, nil
}

// LoadHistoryByOpID loads the history node of the op.
func (s *Store) LoadHistoryByOpID(id types.OpID) (*history.Node, error) {
	if node, exist := s.byOp.Get(id); exist {
		return node, nil
	}
	node, err := ops.GetHistoryByOp(s.db, id)
	if err != nil {
		return nil, err
	}
	s.cacheHistory(node)
	return node, nil
}

func (s *Store) cacheHistory(node *history.Node) {
	s.histories.Add(node.ID, node)
	s.byOp.Add(node.OpID, node)
}

// HasHistory reports whether the history node is stored.
func (s *Store) HasHistory(id types.HistoryID) (bool, error) {
	_, err := s.LoadHistory(id)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// LoadLiteral loads a literal by its hash.
func (s *Store) LoadLiteral(id types.Hash32) (*object.Literal, error) {
	if lit, exist := s.literals.Get(id); exist {
		return lit, nil
	}
	lit, err := ops.GetLiteral(s.db, id)
	if err != nil {
		return nil, err
	}
	s.literals.Add(id, lit)
	return lit, nil
}

// HasLiteral reports whether the literal is stored.
func (s *Store) HasLiteral(id types.Hash32) (bool, error) {
	if s.literals.Contains(id) {
		return true, nil
	}
	return ops.HasLiteral(s.db, id)
}

// LoadOp loads and decodes an op.
func (s *Store) LoadOp(id types.OpID) (*object.Op, error) {
	lit, err := s.LoadLiteral(id)
	if err != nil {
		return nil, err
	}
	return object.OpFromLiteral(lit)
}

// SaveLiteral validates and stores a standalone literal, such as a mutable object descriptor.
func (s *Store) SaveLiteral(lit *object.Literal) error {
	if err := lit.Validate(); err != nil {
		return err
	}
	return ops.AddLiteral(s.db, lit)
}

// TerminalHistories returns the terminal histories of the target.
func (s *Store) TerminalHistories(target types.ObjectID) ([]types.HistoryID, error) {
	return ops.Terminals(s.db, target)
}

// IterateOps calls fn for every op of the target in causal order.
func (s *Store) IterateOps(target types.ObjectID, fn func(*object.Op, *history.Node) bool) error {
	var nodes []*history.Node
	if err := ops.IterateOps(s.db, target, func(node *history.Node) bool {
		nodes = append(nodes, node)
		return true
	}); err != nil {
		return err
	}
	for _, node := range nodes {
		op, err := s.LoadOp(node.OpID)
		if err != nil {
			return fmt.Errorf("load op %s: %w", node.OpID.ShortString(), err)
		}
		if !fn(op, node) {
			return nil
		}
	}
	return nil
}

// CountOps returns the number of stored ops of the target.
func (s *Store) CountOps(target types.ObjectID) (int, error) {
	return ops.CountOps(s.db, target)
}

// SaveOp persists an op literal and the literals it depends on, computes its
// history node and updates terminal histories of the target. Predecessors
// must be stored already. Saving a stored op returns its existing history.
func (s *Store) SaveOp(lit *object.Literal, deps []*object.Literal) (*history.Node, error) {
	if node, err := s.LoadHistoryByOpID(lit.Hash); err == nil {
		return node, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := lit.Validate(); err != nil {
		return nil, err
	}
	op, err := object.OpFromLiteral(lit)
	if err != nil {
		return nil, err
	}
	for _, dep := range deps {
		if err := dep.Validate(); err != nil {
			return nil, err
		}
	}
	prev := make([]types.HistoryID, 0, len(op.Prev))
	for _, id := range op.Prev {
		node, err := s.LoadHistoryByOpID(id)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("%w: %s of %s", ErrMissingPredecessor, id.ShortString(), lit.Hash.ShortString())
		case err != nil:
			return nil, err
		}
		if target, err := ops.GetTarget(s.db, id); err != nil {
			return nil, err
		} else if target != op.Target {
			return nil, fmt.Errorf("%w: predecessor %s belongs to %s", ErrUnknownTarget,
				id.ShortString(), target.ShortString())
		}
		prev = append(prev, node.ID)
	}
	node := history.New(lit.Hash, prev)

	err = s.db.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, dep := range deps {
			if err := ops.AddLiteral(tx, dep); err != nil {
				return err
			}
		}
		for _, dep := range lit.Deps {
			if !dep.Kind.Resolvable() {
				continue
			}
			if exist, err := ops.HasLiteral(tx, dep.Hash); err != nil {
				return err
			} else if exist {
				continue
			}
			if dep.Kind == object.KindTarget {
				return fmt.Errorf("%w: %s", ErrUnknownTarget, dep.Hash.ShortString())
			}
			return fmt.Errorf("%w: %s", object.ErrMissingDependency, dep.Hash.ShortString())
		}
		if err := ops.AddLiteral(tx, lit); err != nil {
			return err
		}
		if err := ops.AddOp(tx, op.Target, node); err != nil {
			return err
		}
		for _, id := range node.Prev {
			if err := ops.RemoveTerminal(tx, op.Target, id); err != nil {
				return err
			}
		}
		return ops.AddTerminal(tx, op.Target, node.ID)
	})
	if errors.Is(err, sql.ErrObjectExists) {
		// saved concurrently
		return s.LoadHistoryByOpID(lit.Hash)
	} else if err != nil {
		return nil, fmt.Errorf("save op %s: %w", lit.Hash.ShortString(), err)
	}
	s.cacheHistory(node)
	s.logger.Debug("saved op",
		zap.Stringer("op", lit.Hash),
		zap.Stringer("history", node.ID),
		zap.Int("deps", len(deps)),
	)
	return node, nil
}
