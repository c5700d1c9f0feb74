package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/ericbrian/track-me-sub001/internal/monitoring"
)

// RecoverOrphanedSessions ends every session still marked active, as happens
// after the process stopped without ending its session. The end time is the
// last entry's timestamp, or the start time for a session with no entries.
// Running it again finds nothing to do. The repaired sessions are returned.
//
// Call it once before tracking resumes; a session that is really being
// recorded would be ended too.
func (s *SessionStore) RecoverOrphanedSessions(ctx context.Context) ([]Session, error) {
	const op = "recover orphaned sessions"
	unlock := s.locks.lock(activeKey)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer tx.Rollback()

	recovered, err := reconcileActive(ctx, tx)
	if err != nil {
		return nil, storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr(op, err)
	}

	for _, sess := range recovered {
		monitoring.Logf("recovered orphaned session %s: ended at %s", sess.ID, sess.EndDate.Format(time.RFC3339Nano))
	}
	return recovered, nil
}

// reconcileActive ends all active sessions inside tx and returns them as
// they now stand.
func reconcileActive(ctx context.Context, tx *sql.Tx) ([]Session, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT s.id, s.narrative, s.start_unix_nanos, s.end_unix_nanos, s.is_active,
		       (SELECT MAX(l.timestamp_unix_nanos) FROM locations l WHERE l.session_id = s.id)
		FROM sessions s
		WHERE s.is_active = 1
	`)
	if err != nil {
		return nil, err
	}

	var (
		active  []Session
		lastNs  []sql.NullInt64
		scanErr error
	)
	for rows.Next() {
		var (
			sess     Session
			startNs  int64
			endNs    sql.NullInt64
			isActive int
			last     sql.NullInt64
		)
		if scanErr = rows.Scan(&sess.ID, &sess.Narrative, &startNs, &endNs, &isActive, &last); scanErr != nil {
			break
		}
		sess.StartDate = fromUnixNanos(startNs)
		active = append(active, sess)
		lastNs = append(lastNs, last)
	}
	rows.Close()
	if scanErr != nil {
		return nil, scanErr
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range active {
		endNs := active[i].StartDate.UnixNano()
		if lastNs[i].Valid && lastNs[i].Int64 > endNs {
			endNs = lastNs[i].Int64
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET end_unix_nanos = ?, is_active = 0 WHERE id = ?`,
			endNs, active[i].ID,
		); err != nil {
			return nil, err
		}
		end := fromUnixNanos(endNs)
		active[i].EndDate = &end
		active[i].IsActive = false
	}
	return active, nil
}
