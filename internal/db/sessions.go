package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericbrian/track-me-sub001/internal/gps"
	"github.com/ericbrian/track-me-sub001/internal/monitoring"
)

// Session is a bounded recording interval that owns its location entries.
type Session struct {
	ID        string     `json:"id"`
	Narrative string     `json:"narrative"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// SessionStore is the repository for sessions and location entries. It is
// safe for concurrent use: writes touching the same session are serialised
// in-process and every multi-row write is a single transaction.
type SessionStore struct {
	db    *DB
	locks keyedMutex
	now   func() time.Time
}

// NewSessionStore returns a store over db. db must already be migrated.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// DB returns the underlying database.
func (s *SessionStore) DB() *DB {
	return s.db
}

const sessionColumns = `id, narrative, start_unix_nanos, end_unix_nanos, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess     Session
		startNs  int64
		endNs    sql.NullInt64
		isActive int
	)
	if err := row.Scan(&sess.ID, &sess.Narrative, &startNs, &endNs, &isActive); err != nil {
		return nil, err
	}
	sess.StartDate = fromUnixNanos(startNs)
	if endNs.Valid {
		end := fromUnixNanos(endNs.Int64)
		sess.EndDate = &end
	}
	sess.IsActive = isActive == 1
	return &sess, nil
}

func fromUnixNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// checkStorable rejects times that do not fit in int64 Unix nanoseconds.
func checkStorable(t time.Time) error {
	if t.Before(gps.MinTimestamp) || t.After(gps.MaxTimestamp) {
		return fmt.Errorf("%w: %s", gps.ErrTimeRange, t.Format(time.RFC3339))
	}
	return nil
}

// CreateSession starts a new active session. Any session still marked
// active is ended first, in the same transaction, exactly as
// RecoverOrphanedSessions would end it.
func (s *SessionStore) CreateSession(ctx context.Context, narrative string, start time.Time) (*Session, error) {
	const op = "create session"
	if start.IsZero() {
		start = s.now()
	}
	start = start.UTC()
	if err := checkStorable(start); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(activeKey)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer tx.Rollback()

	ended, err := reconcileActive(ctx, tx)
	if err != nil {
		return nil, storageErr(op, err)
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Narrative: narrative,
		StartDate: start,
		IsActive:  true,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, narrative, start_unix_nanos, end_unix_nanos, is_active) VALUES (?, ?, ?, NULL, 1)`,
		sess.ID, sess.Narrative, start.UnixNano(),
	); err != nil {
		return nil, storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr(op, err)
	}

	for _, e := range ended {
		monitoring.Logf("ended stale active session %s before starting %s", e.ID, sess.ID)
	}
	return sess, nil
}

// EndSession sets the end time and clears the active flag. Ending an
// already-ended session changes nothing and is not an error. An end before
// the session's start is recorded as the start. The stored session is
// returned.
func (s *SessionStore) EndSession(ctx context.Context, id string, end time.Time) (*Session, error) {
	const op = "end session"
	if end.IsZero() {
		end = s.now()
	}
	if err := checkStorable(end); err != nil {
		return nil, err
	}

	unlock := s.locks.lockAll(activeKey, id)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer tx.Rollback()

	sess, err := getSession(ctx, tx, id)
	if err != nil {
		return nil, storageErr(op, err)
	}
	if !sess.IsActive {
		return sess, nil
	}

	endNs := end.UnixNano()
	if startNs := sess.StartDate.UnixNano(); endNs < startNs {
		endNs = startNs
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET end_unix_nanos = ?, is_active = 0 WHERE id = ? AND is_active = 1`,
		endNs, id,
	); err != nil {
		return nil, storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr(op, err)
	}

	endAt := fromUnixNanos(endNs)
	sess.EndDate = &endAt
	sess.IsActive = false
	return sess, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSession(ctx context.Context, q queryRower, id string) (*Session, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return sess, err
}

// GetSession returns the session with id.
func (s *SessionStore) GetSession(ctx context.Context, id string) (*Session, error) {
	sess, err := getSession(ctx, s.db, id)
	return sess, storageErr("get session", err)
}

// ActiveSession returns the active session, or ErrNotFound if there is none.
func (s *SessionStore) ActiveSession(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE is_active = 1`)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no active session", ErrNotFound)
	}
	return sess, storageErr("active session", err)
}

// SessionListOptions controls ListSessions. The default order is newest
// start first; Limit <= 0 means no limit.
type SessionListOptions struct {
	Sort  []SortDescriptor
	Limit int
}

// ListSessions returns sessions in the requested order.
func (s *SessionStore) ListSessions(ctx context.Context, opts SessionListOptions) ([]Session, error) {
	const op = "list sessions"
	order, err := orderBy(opts.Sort, sessionSortColumns, Descending(FieldStartDate))
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions ` + order
	var args []any
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, storageErr(op, rows.Err())
}

// SessionCount returns the number of stored sessions.
func (s *SessionStore) SessionCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, storageErr("session count", err)
}

// UpdateNarrative replaces a session's free-text narrative.
func (s *SessionStore) UpdateNarrative(ctx context.Context, id, narrative string) error {
	const op = "update narrative"
	unlock := s.locks.lock(id)
	defer unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET narrative = ? WHERE id = ?`, narrative, id)
	if err != nil {
		return storageErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return nil
}

// DeleteSession removes the session and every entry it owns in one
// transaction: entries first, then the session.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	const op = "delete session"
	unlock := s.locks.lockAll(activeKey, id)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE session_id = ?`, id); err != nil {
		return storageErr(op, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return storageErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations WHERE session_id = ?`, id).Scan(&remaining); err != nil {
		return storageErr(op, err)
	}
	if remaining != 0 {
		return fmt.Errorf("%w: %d entries survived deleting session %s", ErrInconsistent, remaining, id)
	}

	return storageErr(op, tx.Commit())
}
