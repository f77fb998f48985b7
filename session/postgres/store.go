// Package postgres implements a durable core.SessionStore on PostgreSQL.
//
// Layout follows the persisted shape of the domain: one row per session plus
// a child table with one row per completed step number, foreign-keyed to the
// session. Session id uniqueness is enforced by the primary key; a duplicate
// insert surfaces as core.ErrConflict.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/souschef-ai/souschef/core"
	"github.com/souschef-ai/souschef/logging"
)

const (
	sessionTable = "cook_sessions"
	stepTable    = "cook_session_steps"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint breach.
const uniqueViolation = "23505"

// Store is a Postgres-backed session store.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// New constructs a Postgres-backed session store.
func New(pool *pgxpool.Pool, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Store{pool: pool, logger: logger}
}

// EnsureSchema creates the session tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("session store not initialized")
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    session_id   TEXT PRIMARY KEY,
    owner_id     TEXT NOT NULL,
    title        TEXT NOT NULL,
    current_step INTEGER NOT NULL,
    total_steps  INTEGER NOT NULL,
    status       TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    last_used_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_owner ON %[1]s (owner_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_status_last_used ON %[1]s (status, last_used_at);
CREATE TABLE IF NOT EXISTS %[2]s (
    session_id  TEXT NOT NULL REFERENCES %[1]s (session_id) ON DELETE CASCADE,
    step_number INTEGER NOT NULL,
    PRIMARY KEY (session_id, step_number)
);
`, sessionTable, stepTable)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return err
	}
	s.logger.Debug("session schema ensured")
	return nil
}

// Create inserts a new session row; a duplicate id maps to core.ErrConflict.
func (s *Store) Create(ctx context.Context, sess *core.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (session_id, owner_id, title, current_step, total_steps, status, created_at, last_used_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, sessionTable)

	_, err := s.pool.Exec(ctx, query,
		sess.SessionID, sess.OwnerID, sess.Title,
		sess.CurrentStep, sess.TotalSteps, string(sess.Status),
		sess.CreatedAt, sess.LastUsedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}

	return s.saveSteps(ctx, sess)
}

// GetBySessionID retrieves a session and its completed steps.
func (s *Store) GetBySessionID(ctx context.Context, sessionID string) (*core.Session, error) {
	query := fmt.Sprintf(`
SELECT session_id, owner_id, title, current_step, total_steps, status, created_at, last_used_at
FROM %s WHERE session_id = $1
`, sessionTable)

	sess, err := scanSession(s.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	if err := s.loadSteps(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// FindActiveByOwner returns the owner's ACTIVE sessions.
func (s *Store) FindActiveByOwner(ctx context.Context, ownerID string) ([]*core.Session, error) {
	query := fmt.Sprintf(`
SELECT session_id, owner_id, title, current_step, total_steps, status, created_at, last_used_at
FROM %s WHERE owner_id = $1 AND status = $2
`, sessionTable)

	return s.querySessions(ctx, query, ownerID, string(core.StatusActive))
}

// FindByOwner returns all of the owner's sessions, most recently used first.
func (s *Store) FindByOwner(ctx context.Context, ownerID string) ([]*core.Session, error) {
	query := fmt.Sprintf(`
SELECT session_id, owner_id, title, current_step, total_steps, status, created_at, last_used_at
FROM %s WHERE owner_id = $1 ORDER BY last_used_at DESC
`, sessionTable)

	return s.querySessions(ctx, query, ownerID)
}

// FindIdleBefore returns sessions in the given status last used before the
// cutoff. Used by the idle sweep.
func (s *Store) FindIdleBefore(ctx context.Context, status core.Status, cutoff time.Time) ([]*core.Session, error) {
	query := fmt.Sprintf(`
SELECT session_id, owner_id, title, current_step, total_steps, status, created_at, last_used_at
FROM %s WHERE status = $1 AND last_used_at < $2
`, sessionTable)

	return s.querySessions(ctx, query, string(status), cutoff)
}

// Save upserts the session row (last writer wins) and records any newly
// completed steps. Steps only ever grow, so existing rows are left alone.
func (s *Store) Save(ctx context.Context, sess *core.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (session_id, owner_id, title, current_step, total_steps, status, created_at, last_used_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id) DO UPDATE SET
    current_step = EXCLUDED.current_step,
    status       = EXCLUDED.status,
    last_used_at = EXCLUDED.last_used_at
`, sessionTable)

	_, err := s.pool.Exec(ctx, query,
		sess.SessionID, sess.OwnerID, sess.Title,
		sess.CurrentStep, sess.TotalSteps, string(sess.Status),
		sess.CreatedAt, sess.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return s.saveSteps(ctx, sess)
}

// Delete removes the session row; the child steps cascade.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, sessionTable)
	if _, err := s.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]*core.Session, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer rows.Close()

	var res []*core.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		res = append(res, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sess := range res {
		if err := s.loadSteps(ctx, sess); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *Store) loadSteps(ctx context.Context, sess *core.Session) error {
	query := fmt.Sprintf(`SELECT step_number FROM %s WHERE session_id = $1 ORDER BY step_number`, stepTable)
	rows, err := s.pool.Query(ctx, query, sess.SessionID)
	if err != nil {
		return fmt.Errorf("select steps: %w", err)
	}
	defer rows.Close()

	sess.CompletedSteps = []int{}
	for rows.Next() {
		var step int
		if err := rows.Scan(&step); err != nil {
			return fmt.Errorf("scan step: %w", err)
		}
		sess.CompletedSteps = append(sess.CompletedSteps, step)
	}
	return rows.Err()
}

func (s *Store) saveSteps(ctx context.Context, sess *core.Session) error {
	if len(sess.CompletedSteps) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (session_id, step_number) VALUES ($1, $2)
ON CONFLICT DO NOTHING
`, stepTable)

	batch := &pgx.Batch{}
	for _, step := range sess.CompletedSteps {
		batch.Queue(query, sess.SessionID, step)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert steps: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*core.Session, error) {
	var (
		sess   core.Session
		status string
	)
	if err := row.Scan(
		&sess.SessionID, &sess.OwnerID, &sess.Title,
		&sess.CurrentStep, &sess.TotalSteps, &status,
		&sess.CreatedAt, &sess.LastUsedAt,
	); err != nil {
		return nil, err
	}
	sess.Status = core.Status(status)
	sess.CompletedSteps = []int{}
	return &sess, nil
}
