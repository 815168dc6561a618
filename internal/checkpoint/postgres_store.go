package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// It expects an *sql.DB opened with a Postgres driver, e.g.:
//
//	import _ "github.com/jackc/pgx/v5/stdlib"
//	db, err := sql.Open("pgx", dsn)
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore initializes the checkpoint schema in db and returns a
// new PostgresStore.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT PRIMARY KEY,
			workflow_name TEXT NOT NULL,
			step_name TEXT NOT NULL,
			state BYTEA,
			reason TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ
		);`,
	)
	return err
}

func (s *PostgresStore) Put(ctx context.Context, ckpt *Checkpoint) error {
	state, err := encodeState(ckpt.State)
	if err != nil {
		return err
	}

	var expires sql.NullTime
	if !ckpt.ExpiresAt.IsZero() {
		expires = sql.NullTime{Time: ckpt.ExpiresAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, workflow_name, step_name, state, reason, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (thread_id) DO UPDATE SET
			workflow_name = EXCLUDED.workflow_name,
			step_name = EXCLUDED.step_name,
			state = EXCLUDED.state,
			reason = EXCLUDED.reason,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`,
		ckpt.ThreadID,
		ckpt.Workflow,
		ckpt.Step,
		state,
		ckpt.Reason,
		ckpt.CreatedAt,
		expires,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, workflow_name, step_name, state, reason, created_at, expires_at
		FROM checkpoints
		WHERE thread_id = $1`,
		threadID,
	)

	var ckpt Checkpoint
	var state []byte
	var expiresAt sql.NullTime

	if err := row.Scan(&ckpt.ThreadID, &ckpt.Workflow, &ckpt.Step, &state, &ckpt.Reason, &ckpt.CreatedAt, &expiresAt); err != nil {
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
	if expiresAt.Valid {
		ckpt.ExpiresAt = expiresAt.Time
	}

	if ckpt.Expired(time.Now()) {
		return nil, ErrNotFound
	}

	return &ckpt, nil
}

func (s *PostgresStore) Delete(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = $1`, threadID)
	return err
}
