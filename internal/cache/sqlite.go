package cache

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"stackctl/pkg/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	persist INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore is the durable Store implementation, one database file
// shared by every stack on the machine. Connections come from a small
// pool; SQLite serializes writes itself, so the pool mostly helps
// concurrent readers.
type SQLiteStore struct {
	pool *sqlitex.Pool
	path string
}

// OpenSQLite opens (creating if needed) the store at path. Entries
// written without SetOptions.Persist are purged here, giving them
// process-session lifetime.
func OpenSQLite(path string) (*SQLiteStore, error) {
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: 4,
		PrepareConn: func(conn *sqlite.Conn) error {
			pragmas := []string{
				"PRAGMA journal_mode=WAL",
				"PRAGMA synchronous=NORMAL",
				"PRAGMA busy_timeout=5000",
			}
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("cache: %s: %w", pragma, err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cache: opening %s: %w", path, err)
	}

	s := &SQLiteStore{pool: pool, path: path}
	if err := s.init(); err != nil {
		pool.Close()
		return nil, err
	}
	logging.Debug("Cache", "opened store at %s", path)
	return s, nil
}

func (s *SQLiteStore) init() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("cache: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("cache: create schema: %w", err)
	}
	if err := sqlitex.Execute(conn, "DELETE FROM kv WHERE persist = 0", nil); err != nil {
		return fmt.Errorf("cache: purge session entries: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("cache: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	var value []byte
	found := false
	err = sqlitex.Execute(conn, "SELECT value FROM kv WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			value = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, value)
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return value, found, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, opts SetOptions) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("cache: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	persist := 0
	if opts.Persist {
		persist = 1
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO kv (key, value, persist, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			persist = excluded.persist,
			updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{key, value, persist, time.Now().Unix()},
		})
	if err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("cache: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM kv WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
	})
	if err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("cache: closing %s: %w", s.path, err)
	}
	return nil
}
