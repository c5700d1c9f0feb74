package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericbrian/track-me-sub001/internal/gps"
)

// LocationEntry is a persisted fix. SessionID is nil while the entry is
// orphaned.
type LocationEntry struct {
	ID        string    `json:"id"`
	SessionID *string   `json:"session_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Accuracy  float64   `json:"accuracy"`
	Altitude  float64   `json:"altitude"`
	Speed     float64   `json:"speed"`
	Course    float64   `json:"course"`
}

// Fix converts the entry back into a fix. Vertical accuracy is not stored
// and is reported as -1.
func (e LocationEntry) Fix() gps.Fix {
	return gps.Fix{
		Latitude:           e.Latitude,
		Longitude:          e.Longitude,
		Altitude:           e.Altitude,
		HorizontalAccuracy: e.Accuracy,
		VerticalAccuracy:   -1,
		Course:             e.Course,
		Speed:              e.Speed,
		Timestamp:          e.Timestamp,
	}
}

// FetchOptions controls FetchLocations. Sort defaults to timestamp
// ascending. BatchSize only changes how rows are read, never which rows or
// in what order.
type FetchOptions struct {
	Sort      []SortDescriptor
	BatchSize int
}

const locationColumns = `id, session_id, latitude, longitude, timestamp_unix_nanos, accuracy, altitude, speed, course`

// newEntry validates fix and applies the write-time clamps: negative speed
// and course become 0.
func newEntry(fix gps.Fix, sessionID *string) (*LocationEntry, error) {
	if err := fix.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fix: %w", err)
	}
	return &LocationEntry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Timestamp: fix.Timestamp.UTC(),
		Accuracy:  fix.HorizontalAccuracy,
		Altitude:  fix.Altitude,
		Speed:     gps.ClampSpeed(fix.Speed),
		Course:    gps.ClampCourse(fix.Course),
	}, nil
}

const insertLocation = `INSERT INTO locations (` + locationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (e *LocationEntry) insertArgs() []any {
	return []any{
		e.ID, e.SessionID, e.Latitude, e.Longitude, e.Timestamp.UnixNano(),
		e.Accuracy, e.Altitude, e.Speed, e.Course,
	}
}

func scanEntry(row rowScanner) (LocationEntry, error) {
	var (
		e         LocationEntry
		sessionID sql.NullString
		tsNs      int64
	)
	err := row.Scan(&e.ID, &sessionID, &e.Latitude, &e.Longitude, &tsNs, &e.Accuracy, &e.Altitude, &e.Speed, &e.Course)
	if err != nil {
		return e, err
	}
	if sessionID.Valid {
		id := sessionID.String
		e.SessionID = &id
	}
	e.Timestamp = fromUnixNanos(tsNs)
	return e, nil
}

// SaveLocation persists one fix owned by the session.
func (s *SessionStore) SaveLocation(ctx context.Context, sessionID string, fix gps.Fix) (*LocationEntry, error) {
	entries, err := s.SaveLocations(ctx, sessionID, []gps.Fix{fix})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// SaveLocations persists fixes for the session as one transaction: either
// every fix is stored or none is.
func (s *SessionStore) SaveLocations(ctx context.Context, sessionID string, fixes []gps.Fix) ([]LocationEntry, error) {
	const op = "save locations"
	entries := make([]LocationEntry, 0, len(fixes))
	for i, f := range fixes {
		e, err := newEntry(f, &sessionID)
		if err != nil {
			return nil, fmt.Errorf("fix %d: %w", i, err)
		}
		entries = append(entries, *e)
	}
	if len(entries) == 0 {
		return entries, nil
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer tx.Rollback()

	if _, err := getSession(ctx, tx, sessionID); err != nil {
		return nil, storageErr(op, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertLocation)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer stmt.Close()

	for i := range entries {
		if _, err := stmt.ExecContext(ctx, entries[i].insertArgs()...); err != nil {
			return nil, storageErr(op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr(op, err)
	}
	return entries, nil
}

// FetchLocations returns the entries owned by the session in the requested
// order. An unknown session yields no entries.
func (s *SessionStore) FetchLocations(ctx context.Context, sessionID string, opts FetchOptions) ([]LocationEntry, error) {
	return s.fetchEntries(ctx, "fetch locations", `session_id = ?`, []any{sessionID}, opts)
}

// fetchEntries runs a filtered, ordered select. With a batch size the rows
// are paged within one read-only transaction so every page sees the same
// snapshot.
func (s *SessionStore) fetchEntries(ctx context.Context, op, where string, args []any, opts FetchOptions) ([]LocationEntry, error) {
	order, err := orderBy(opts.Sort, locationSortColumns, Ascending(FieldTimestamp))
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + locationColumns + ` FROM locations WHERE ` + where + ` ` + order

	if opts.BatchSize <= 0 {
		entries, err := queryEntries(ctx, s.db, query, args)
		return entries, storageErr(op, err)
	}

	// read-only transactions begin DEFERRED, so paging holds a snapshot
	// without taking the write lock
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer tx.Rollback()

	entries := []LocationEntry{}
	paged := query + ` LIMIT ? OFFSET ?`
	for offset := 0; ; offset += opts.BatchSize {
		batch, err := queryEntries(ctx, tx, paged, append(append([]any{}, args...), opts.BatchSize, offset))
		if err != nil {
			return nil, storageErr(op, err)
		}
		entries = append(entries, batch...)
		if len(batch) < opts.BatchSize {
			break
		}
	}
	return entries, storageErr(op, tx.Commit())
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryEntries(ctx context.Context, q querier, query string, args []any) ([]LocationEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []LocationEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LocationCount counts the entries owned by the session.
func (s *SessionStore) LocationCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations WHERE session_id = ?`, sessionID).Scan(&n)
	return n, storageErr("location count", err)
}

// DeleteLocations removes every entry owned by the session and reports how
// many were removed. It is not an error for there to be none.
func (s *SessionStore) DeleteLocations(ctx context.Context, sessionID string) (int64, error) {
	const op = "delete locations"
	unlock := s.locks.lock(sessionID)
	defer unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, storageErr(op, err)
	}
	n, err := res.RowsAffected()
	return n, storageErr(op, err)
}
