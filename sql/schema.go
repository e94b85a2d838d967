package sql

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SchemaVersion is the user_version set by the schema script.
const SchemaVersion = 1

//go:embed schema/schema.sql
var schemaScript string

func version(db Executor) (int, error) {
	var current int
	if _, err := db.Exec("PRAGMA user_version;", nil, func(stmt *Statement) bool {
		current = stmt.ColumnInt(0)
		return true
	}); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return current, nil
}

func splitStatements(script string) []string {
	var rst []string
	scanner := bufio.NewScanner(strings.NewReader(script))
	scanner.Split(func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if i := bytes.IndexByte(data, ';'); i >= 0 {
			return i + 1, data[0 : i+1], nil
		}
		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	})
	for scanner.Scan() {
		if stmt := strings.TrimSpace(scanner.Text()); stmt != "" {
			rst = append(rst, stmt)
		}
	}
	return rst
}

// applySchema creates the tables of an empty database.
func applySchema(logger *zap.Logger, db *Database) error {
	current, err := version(db)
	if err != nil {
		return err
	}
	switch {
	case current == SchemaVersion:
		return nil
	case current > SchemaVersion:
		return fmt.Errorf("%w: version %d, expected %d", ErrTooNew, current, SchemaVersion)
	case current != 0:
		return fmt.Errorf("unsupported database version %d", current)
	}
	logger.Info("creating database schema", zap.Int("version", SchemaVersion))
	return db.WithTx(context.Background(), func(tx *Tx) error {
		for _, stmt := range splitStatements(schemaScript) {
			if _, err := tx.Exec(stmt, nil, nil); err != nil {
				return fmt.Errorf("exec %q: %w", stmt, err)
			}
		}
		return nil
	})
}
