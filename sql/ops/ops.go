// Package ops contains queries for literals, ops and their causal history.
package ops

import (
	"fmt"

	"github.com/causalmesh/go-causalmesh/codec"
	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/object"
	"github.com/causalmesh/go-causalmesh/sql"
)

// AddLiteral inserts a literal. Existing literals are left untouched.
func AddLiteral(db sql.Executor, lit *object.Literal) error {
	body, err := codec.Encode(lit)
	if err != nil {
		return fmt.Errorf("encode literal %s: %w", lit.Hash.ShortString(), err)
	}
	if _, err := db.Exec(`
		insert into literals (id, class, body) values (?1, ?2, ?3)
		on conflict (id) do nothing;`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, lit.Hash[:])
			stmt.BindText(2, lit.Class)
			stmt.BindBytes(3, body)
		}, nil); err != nil {
		return fmt.Errorf("insert literal %s: %w", lit.Hash.ShortString(), err)
	}
	return nil
}

// GetLiteral loads a literal by its hash.
func GetLiteral(db sql.Executor, id types.Hash32) (*object.Literal, error) {
	var (
		lit    object.Literal
		decErr error
	)
	rows, err := db.Exec("select body from literals where id = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, id[:])
		}, func(stmt *sql.Statement) bool {
			decErr = codec.Decode(sql.ReadBlob(stmt, 0), &lit)
			return true
		})
	switch {
	case err != nil:
		return nil, fmt.Errorf("get literal %s: %w", id.ShortString(), err)
	case rows == 0:
		return nil, fmt.Errorf("%w: literal %s", sql.ErrNotFound, id.ShortString())
	case decErr != nil:
		return nil, fmt.Errorf("decode literal %s: %w", id.ShortString(), decErr)
	}
	return &lit, nil
}

// HasLiteral checks if the literal is stored.
func HasLiteral(db sql.Executor, id types.Hash32) (bool, error) {
	rows, err := db.Exec("select 1 from literals where id = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, id[:])
		}, nil)
	if err != nil {
		return false, fmt.Errorf("has literal %s: %w", id.ShortString(), err)
	}
	return rows > 0, nil
}

// AddOp records the op of the target together with its history node.
// The op literal itself must be added with AddLiteral.
func AddOp(db sql.Executor, target types.ObjectID, node *history.Node) error {
	prev, err := codec.EncodeSlice(node.Prev)
	if err != nil {
		return fmt.Errorf("encode prev of %s: %w", node.ID.ShortString(), err)
	}
	if _, err := db.Exec(`
		insert into ops (id, target, history_id, prev) values (?1, ?2, ?3, ?4);`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, node.OpID[:])
			stmt.BindBytes(2, target[:])
			stmt.BindBytes(3, node.ID[:])
			stmt.BindBytes(4, prev)
		}, nil); err != nil {
		return fmt.Errorf("insert op %s: %w", node.OpID.ShortString(), err)
	}
	return nil
}

func decodeNode(stmt *sql.Statement) (*history.Node, error) {
	var n history.Node
	stmt.ColumnBytes(0, n.OpID[:])
	stmt.ColumnBytes(1, n.ID[:])
	prev, err := codec.DecodeSlice[types.Hash32](sql.ReadBlob(stmt, 2))
	if err != nil {
		return nil, err
	}
	if len(prev) > 0 {
		n.Prev = prev
	}
	return &n, nil
}

func getHistory(db sql.Executor, query string, id types.Hash32) (*history.Node, error) {
	var (
		node   *history.Node
		decErr error
	)
	rows, err := db.Exec(query,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, id[:])
		}, func(stmt *sql.Statement) bool {
			node, decErr = decodeNode(stmt)
			return true
		})
	switch {
	case err != nil:
		return nil, fmt.Errorf("get history %s: %w", id.ShortString(), err)
	case rows == 0:
		return nil, fmt.Errorf("%w: history %s", sql.ErrNotFound, id.ShortString())
	case decErr != nil:
		return nil, fmt.Errorf("decode history %s: %w", id.ShortString(), decErr)
	}
	return node, nil
}

// GetHistory loads the history node by its id.
func GetHistory(db sql.Executor, id types.HistoryID) (*history.Node, error) {
	return getHistory(db, "select id, history_id, prev from ops where history_id = ?1;", id)
}

// GetHistoryByOp loads the history node of the op.
func GetHistoryByOp(db sql.Executor, id types.OpID) (*history.Node, error) {
	return getHistory(db, "select id, history_id, prev from ops where id = ?1;", id)
}

// GetTarget returns the mutable object the op belongs to.
func GetTarget(db sql.Executor, id types.OpID) (types.ObjectID, error) {
	var target types.ObjectID
	rows, err := db.Exec("select target from ops where id = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, id[:])
		}, func(stmt *sql.Statement) bool {
			stmt.ColumnBytes(0, target[:])
			return true
		})
	switch {
	case err != nil:
		return target, fmt.Errorf("get target of %s: %w", id.ShortString(), err)
	case rows == 0:
		return target, fmt.Errorf("%w: op %s", sql.ErrNotFound, id.ShortString())
	}
	return target, nil
}

// IterateOps calls fn for every op history of the target in insertion order,
// which is a causal order. Iteration stops when fn returns false.
func IterateOps(db sql.Executor, target types.ObjectID, fn func(*history.Node) bool) error {
	var decErr error
	if _, err := db.Exec(`
		select id, history_id, prev from ops where target = ?1 order by rowid;`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, target[:])
		}, func(stmt *sql.Statement) bool {
			var node *history.Node
			node, decErr = decodeNode(stmt)
			if decErr != nil {
				return false
			}
			return fn(node)
		}); err != nil {
		return fmt.Errorf("iterate ops of %s: %w", target.ShortString(), err)
	}
	if decErr != nil {
		return fmt.Errorf("iterate ops of %s: %w", target.ShortString(), decErr)
	}
	return nil
}

// CountOps returns the number of ops of the target.
func CountOps(db sql.Executor, target types.ObjectID) (int, error) {
	var count int
	if _, err := db.Exec("select count(*) from ops where target = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, target[:])
		}, func(stmt *sql.Statement) bool {
			count = stmt.ColumnInt(0)
			return true
		}); err != nil {
		return 0, fmt.Errorf("count ops of %s: %w", target.ShortString(), err)
	}
	return count, nil
}

// AddTerminal marks the history as terminal for the target.
func AddTerminal(db sql.Executor, target types.ObjectID, id types.HistoryID) error {
	if _, err := db.Exec(`
		insert into terminals (target, history_id) values (?1, ?2)
		on conflict do nothing;`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, target[:])
			stmt.BindBytes(2, id[:])
		}, nil); err != nil {
		return fmt.Errorf("add terminal %s: %w", id.ShortString(), err)
	}
	return nil
}

// RemoveTerminal unmarks the history.
func RemoveTerminal(db sql.Executor, target types.ObjectID, id types.HistoryID) error {
	if _, err := db.Exec("delete from terminals where target = ?1 and history_id = ?2;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, target[:])
			stmt.BindBytes(2, id[:])
		}, nil); err != nil {
		return fmt.Errorf("remove terminal %s: %w", id.ShortString(), err)
	}
	return nil
}

// Terminals returns terminal histories of the target in lexicographic order.
func Terminals(db sql.Executor, target types.ObjectID) ([]types.HistoryID, error) {
	var rst []types.HistoryID
	if _, err := db.Exec(`
		select history_id from terminals where target = ?1 order by history_id;`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, target[:])
		}, func(stmt *sql.Statement) bool {
			var id types.HistoryID
			stmt.ColumnBytes(0, id[:])
			rst = append(rst, id)
			return true
		}); err != nil {
		return nil, fmt.Errorf("terminals of %s: %w", target.ShortString(), err)
	}
	return rst, nil
}
