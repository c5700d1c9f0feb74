package tracking

import (
	"context"
	"time"

	"github.com/ericbrian/track-me-sub001/internal/db"
	"github.com/ericbrian/track-me-sub001/internal/geo"
)

// Reader is the read side of the session store.
type Reader interface {
	GetSession(ctx context.Context, id string) (*db.Session, error)
	FetchLocations(ctx context.Context, sessionID string, opts db.FetchOptions) ([]db.LocationEntry, error)
}

// Summary is the coarse view of a session sent to companion devices.
type Summary struct {
	SessionID    string        `json:"session_id"`
	Active       bool          `json:"active"`
	PointCount   int           `json:"point_count"`
	Distance     float64       `json:"distance_m"`
	Elapsed      time.Duration `json:"elapsed"`
	AverageSpeed float64       `json:"average_speed_mps"`
}

// Summarize derives a Summary from stored state. Distance is the length of
// the path through the entries in timestamp order. Elapsed runs from the
// session start to its end, or to the last entry while it is still active.
func Summarize(ctx context.Context, r Reader, sessionID string) (Summary, error) {
	sess, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	entries, err := r.FetchLocations(ctx, sessionID, db.FetchOptions{})
	if err != nil {
		return Summary{}, err
	}

	coords := make([]geo.Coordinate, len(entries))
	for i, e := range entries {
		coords[i] = geo.Coordinate{Latitude: e.Latitude, Longitude: e.Longitude}
	}

	s := Summary{
		SessionID:  sess.ID,
		Active:     sess.IsActive,
		PointCount: len(entries),
		Distance:   geo.PathLength(coords),
	}
	switch {
	case sess.EndDate != nil:
		s.Elapsed = sess.EndDate.Sub(sess.StartDate)
	case len(entries) > 0:
		s.Elapsed = entries[len(entries)-1].Timestamp.Sub(sess.StartDate)
	}
	if s.Elapsed < 0 {
		s.Elapsed = 0
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.AverageSpeed = s.Distance / secs
	}
	return s, nil
}
