package offline

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SnapshotOpenTickets is the key under which the last known open-ticket
// list is cached.
const SnapshotOpenTickets = "open_tickets"

// SaveSnapshot stores a read-fallback payload under key. Snapshots are
// never replayed; they only serve reads while offline.
func (q *Queue) SaveSnapshot(ctx context.Context, key string, value []byte) error {
	conn, err := q.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer q.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO snapshot (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{key, value, q.Now().Unix()}})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

// LoadSnapshot returns the payload and its age. A missing key returns
// ok=false, not an error.
func (q *Queue) LoadSnapshot(ctx context.Context, key string) (value []byte, updatedAt time.Time, ok bool, err error) {
	conn, err := q.pool.Take(ctx)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	defer q.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`SELECT value, updated_at FROM snapshot WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, value)
				updatedAt = time.Unix(stmt.ColumnInt64(1), 0)
				ok = true
				return nil
			},
		})
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return value, updatedAt, ok, nil
}
