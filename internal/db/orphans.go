package db

import (
	"context"
	"math"

	"github.com/ericbrian/track-me-sub001/internal/gps"
	"github.com/ericbrian/track-me-sub001/internal/monitoring"
)

// orphanKey serialises writes to the set of entries with no session.
const orphanKey = "\x00orphans"

// SaveOrphanLocation persists a fix that has no session yet, for example one
// recorded while no session was active. It stays queryable through
// OrphanedLocations until it is adopted or deleted.
func (s *SessionStore) SaveOrphanLocation(ctx context.Context, fix gps.Fix) (*LocationEntry, error) {
	e, err := newEntry(fix, nil)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(orphanKey)
	defer unlock()

	if _, err := s.db.ExecContext(ctx, insertLocation, e.insertArgs()...); err != nil {
		return nil, storageErr("save orphan location", err)
	}
	return e, nil
}

// OrphanedLocations returns entries that belong to no session.
func (s *SessionStore) OrphanedLocations(ctx context.Context, opts FetchOptions) ([]LocationEntry, error) {
	return s.fetchEntries(ctx, "orphaned locations", `session_id IS NULL`, nil, opts)
}

// OrphanedLocationCount counts entries that belong to no session.
func (s *SessionStore) OrphanedLocationCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations WHERE session_id IS NULL`).Scan(&n)
	return n, storageErr("orphaned location count", err)
}

// AssignOrphanedLocations gives the session every orphaned entry whose
// timestamp falls within the session's window (start to end, or onward for
// an active session) and reports how many were adopted.
func (s *SessionStore) AssignOrphanedLocations(ctx context.Context, sessionID string) (int64, error) {
	const op = "assign orphaned locations"
	unlock := s.locks.lockAll(sessionID, orphanKey)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr(op, err)
	}
	defer tx.Rollback()

	sess, err := getSession(ctx, tx, sessionID)
	if err != nil {
		return 0, storageErr(op, err)
	}
	endNs := int64(math.MaxInt64)
	if sess.EndDate != nil {
		endNs = sess.EndDate.UnixNano()
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE locations SET session_id = ?
		WHERE session_id IS NULL
		  AND timestamp_unix_nanos BETWEEN ? AND ?
	`, sessionID, sess.StartDate.UnixNano(), endNs)
	if err != nil {
		return 0, storageErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr(op, err)
	}
	if n > 0 {
		monitoring.Logf("assigned %d orphaned entries to session %s", n, sessionID)
	}
	return n, nil
}

// DeleteOrphanedLocations removes every entry that belongs to no session.
func (s *SessionStore) DeleteOrphanedLocations(ctx context.Context) (int64, error) {
	const op = "delete orphaned locations"
	unlock := s.locks.lock(orphanKey)
	defer unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE session_id IS NULL`)
	if err != nil {
		return 0, storageErr(op, err)
	}
	n, err := res.RowsAffected()
	return n, storageErr(op, err)
}
