package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteStore is a Store backed by SQLite.
//
// It expects an *sql.DB using a SQLite driver (for example
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the checkpoint schema in db and returns a
// new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT PRIMARY KEY,
			workflow_name TEXT NOT NULL,
			step_name TEXT NOT NULL,
			state BLOB,
			reason TEXT,
			created_at INTEGER NOT NULL,
			expires_at INTEGER
		);`,
	)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, ckpt *Checkpoint) error {
	state, err := encodeState(ckpt.State)
	if err != nil {
		return err
	}

	var expires sql.NullInt64
	if !ckpt.ExpiresAt.IsZero() {
		expires = sql.NullInt64{Int64: ckpt.ExpiresAt.UnixMilli(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, workflow_name, step_name, state, reason, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			workflow_name = excluded.workflow_name,
			step_name = excluded.step_name,
			state = excluded.state,
			reason = excluded.reason,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		ckpt.ThreadID,
		ckpt.Workflow,
		ckpt.Step,
		state,
		ckpt.Reason,
		ckpt.CreatedAt.UnixMilli(),
		expires,
	)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, workflow_name, step_name, state, reason, created_at, expires_at
		FROM checkpoints
		WHERE thread_id = ?`,
		threadID,
	)

	var ckpt Checkpoint
	var state []byte
	var createdAt int64
	var expiresAt sql.NullInt64

	if err := row.Scan(&ckpt.ThreadID, &ckpt.Workflow, &ckpt.Step, &state, &ckpt.Reason, &createdAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	st, err := decodeState(state)
	if err != nil {
		return nil, err
	}
	ckpt.State = st
	ckpt.CreatedAt = time.UnixMilli(createdAt)
	if expiresAt.Valid {
		ckpt.ExpiresAt = time.UnixMilli(expiresAt.Int64)
	}

	if ckpt.Expired(time.Now()) {
		return nil, ErrNotFound
	}

	return &ckpt, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	return err
}
