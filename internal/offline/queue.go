package offline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Actions that may be queued while offline. Everything here is a
// lifecycle mutation whose server-side handling is idempotent enough to
// survive at-least-once replay. Read-only and security-sensitive actions
// (login above all) are deliberately absent: a token must come from a
// live round trip.
const (
	ActionTicketCreate           = "ticket.create"
	ActionTicketTransition       = "ticket.transition"
	ActionTicketAssign           = "ticket.assign"
	ActionInterventionCreate     = "intervention.create"
	ActionInterventionTransition = "intervention.transition"
	ActionChatSend               = "chat.send"
)

var queueable = map[string]bool{
	ActionTicketCreate:           true,
	ActionTicketTransition:       true,
	ActionTicketAssign:           true,
	ActionInterventionCreate:     true,
	ActionInterventionTransition: true,
	ActionChatSend:               true,
}

// Queueable reports whether an action may enter the offline queue.
func Queueable(action string) bool {
	return queueable[action]
}

const schema = `
CREATE TABLE IF NOT EXISTS command_queue (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    action      TEXT NOT NULL,
    method      TEXT NOT NULL,
    target      TEXT NOT NULL,
    body        BLOB NOT NULL,
    enqueued_at INTEGER NOT NULL,
    synced      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS snapshot (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// Command is one queued lifecycle request. Replay fires the same HTTP
// request again, so everything needed to rebuild it is stored verbatim.
type Command struct {
	ID         int64
	Action     string
	Method     string
	Target     string
	Body       []byte
	EnqueuedAt time.Time
	Synced     bool
}

// Queue is the client-side durable command queue. It is backed by a
// single-connection SQLite pool: replay is strictly sequential per
// client, so one writer is all the concurrency the design allows.
type Queue struct {
	pool   *sqlitex.Pool
	logger *zap.Logger

	Now func() time.Time
}

// OpenQueue opens (creating if needed) the queue database at path. Use
// ":memory:" in tests.
func OpenQueue(path string, logger *zap.Logger) (*Queue, error) {
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: 1,
		PrepareConn: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open offline queue %s: %w", path, err)
	}
	return &Queue{pool: pool, logger: logger, Now: time.Now}, nil
}

// Close releases the underlying pool.
func (q *Queue) Close() error {
	return q.pool.Close()
}

// Enqueue appends a command. Actions outside the allow-list are refused.
func (q *Queue) Enqueue(ctx context.Context, action, method, target string, body []byte) (*Command, error) {
	if !Queueable(action) {
		return nil, fmt.Errorf("action %q is not queueable offline", action)
	}
	conn, err := q.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer q.pool.Put(conn)

	now := q.Now()
	err = sqlitex.Execute(conn,
		`INSERT INTO command_queue (action, method, target, body, enqueued_at) VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{action, method, target, body, now.Unix()}})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", action, err)
	}
	cmd := &Command{
		ID:         conn.LastInsertRowID(),
		Action:     action,
		Method:     method,
		Target:     target,
		Body:       body,
		EnqueuedAt: now,
	}
	q.logger.Info("command queued for sync",
		zap.Int64("id", cmd.ID),
		zap.String("action", action),
		zap.String("target", target))
	return cmd, nil
}

// Pending returns the not-yet-synced commands in enqueue order.
func (q *Queue) Pending(ctx context.Context) ([]Command, error) {
	conn, err := q.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer q.pool.Put(conn)

	var commands []Command
	err = sqlitex.Execute(conn,
		`SELECT id, action, method, target, body, enqueued_at, synced
		 FROM command_queue WHERE synced = 0 ORDER BY id`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			body := make([]byte, stmt.ColumnLen(4))
			stmt.ColumnBytes(4, body)
			commands = append(commands, Command{
				ID:         stmt.ColumnInt64(0),
				Action:     stmt.ColumnText(1),
				Method:     stmt.ColumnText(2),
				Target:     stmt.ColumnText(3),
				Body:       body,
				EnqueuedAt: time.Unix(stmt.ColumnInt64(5), 0),
				Synced:     stmt.ColumnInt64(6) != 0,
			})
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("list pending commands: %w", err)
	}
	return commands, nil
}

// MarkSynced flags a delivered command.
func (q *Queue) MarkSynced(ctx context.Context, id int64) error {
	conn, err := q.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer q.pool.Put(conn)

	return sqlitex.Execute(conn,
		`UPDATE command_queue SET synced = 1 WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{id}})
}

// PurgeSynced deletes delivered commands and returns how many were removed.
func (q *Queue) PurgeSynced(ctx context.Context) (int64, error) {
	conn, err := q.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer q.pool.Put(conn)

	if err := sqlitex.Execute(conn, `DELETE FROM command_queue WHERE synced = 1`, nil); err != nil {
		return 0, err
	}
	return int64(conn.Changes()), nil
}
