package api

import (
	"net/http"

	"github.com/ericbrian/track-me-sub001/internal/db"
	"github.com/ericbrian/track-me-sub001/internal/geo"
	"github.com/ericbrian/track-me-sub001/internal/httputil"
	"github.com/ericbrian/track-me-sub001/internal/tracking"
	"github.com/ericbrian/track-me-sub001/internal/units"
)

const maxFetchBatch = 100000

// fetchOptions reads ?sort= and ?batch= for a location listing.
func (s *Server) fetchOptions(r *http.Request) (db.FetchOptions, error) {
	sorts, err := db.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		return db.FetchOptions{}, err
	}
	batch, err := httputil.QueryInt(r, "batch", s.batch, 0, maxFetchBatch)
	if err != nil {
		return db.FetchOptions{}, err
	}
	return db.FetchOptions{Sort: sorts, BatchSize: batch}, nil
}

// present rewrites entries for the response: speed in the requested unit
// and timestamps in the requested zone.
func (s *Server) present(w http.ResponseWriter, r *http.Request, entries []db.LocationEntry) bool {
	u, err := s.requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return false
	}
	loc, err := requestLocation(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return false
	}
	for i := range entries {
		entries[i].Speed = units.ConvertSpeed(entries[i].Speed, u)
		entries[i].Timestamp = entries[i].Timestamp.In(loc)
	}
	return true
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessionID(r)
	if err != nil {
		writeStoreError(w, "resolve session", err)
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		opts, err := s.fetchOptions(r)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if _, err := s.store.GetSession(ctx, id); err != nil {
			writeStoreError(w, "get session", err)
			return
		}
		entries, err := s.store.FetchLocations(ctx, id, opts)
		if err != nil {
			writeStoreError(w, "fetch locations", err)
			return
		}
		if !s.present(w, r, entries) {
			return
		}
		httputil.WriteJSONOK(w, entries)

	case http.MethodDelete:
		n, err := s.store.DeleteLocations(ctx, id)
		if err != nil {
			writeStoreError(w, "delete locations", err)
			return
		}
		httputil.WriteJSONOK(w, map[string]int64{"deleted": n})

	default:
		httputil.MethodNotAllowed(w)
	}
}

type summaryResponse struct {
	tracking.Summary
	Units          string  `json:"units"`
	DistanceLabel  string  `json:"distance_units"`
	DistanceInUnit float64 `json:"distance"`
	SpeedInUnit    float64 `json:"average_speed"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	u, err := s.requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	id, err := s.sessionID(r)
	if err != nil {
		writeStoreError(w, "resolve session", err)
		return
	}
	sum, err := tracking.Summarize(r.Context(), s.store, id)
	if err != nil {
		writeStoreError(w, "summarize session", err)
		return
	}
	httputil.WriteJSONOK(w, summaryResponse{
		Summary:        sum,
		Units:          u,
		DistanceLabel:  units.DistanceLabel(u),
		DistanceInUnit: units.ConvertDistance(sum.Distance, u),
		SpeedInUnit:    units.ConvertSpeed(sum.AverageSpeed, u),
		ElapsedSeconds: sum.Elapsed.Seconds(),
	})
}

// coordinates loads the session path in timestamp order.
func (s *Server) coordinates(w http.ResponseWriter, r *http.Request) ([]geo.Coordinate, bool) {
	id, err := s.sessionID(r)
	if err != nil {
		writeStoreError(w, "resolve session", err)
		return nil, false
	}
	ctx := r.Context()
	if _, err := s.store.GetSession(ctx, id); err != nil {
		writeStoreError(w, "get session", err)
		return nil, false
	}
	entries, err := s.store.FetchLocations(ctx, id, db.FetchOptions{BatchSize: s.batch})
	if err != nil {
		writeStoreError(w, "fetch locations", err)
		return nil, false
	}
	coords := make([]geo.Coordinate, len(entries))
	for i, e := range entries {
		coords[i] = geo.Coordinate{Latitude: e.Latitude, Longitude: e.Longitude}
	}
	return coords, true
}

func (s *Server) showRegion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	padding, err := httputil.QueryFloat(r, "padding", s.padding, 1, 10)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	coords, ok := s.coordinates(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, geo.ComputeRegion(coords, geo.DefaultMinSpan, padding))
}

func (s *Server) showSegments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	coords, ok := s.coordinates(w, r)
	if !ok {
		return
	}
	segments := geo.SplitAntimeridian(coords)
	if segments == nil {
		segments = [][]geo.Coordinate{}
	}
	httputil.WriteJSONOK(w, segments)
}

type orphansResponse struct {
	Count     int                `json:"count"`
	Locations []db.LocationEntry `json:"locations"`
}

func (s *Server) handleOrphans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		opts, err := s.fetchOptions(r)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		entries, err := s.store.OrphanedLocations(ctx, opts)
		if err != nil {
			writeStoreError(w, "orphaned locations", err)
			return
		}
		count, err := s.store.OrphanedLocationCount(ctx)
		if err != nil {
			writeStoreError(w, "orphaned location count", err)
			return
		}
		if !s.present(w, r, entries) {
			return
		}
		httputil.WriteJSONOK(w, orphansResponse{Count: count, Locations: entries})

	case http.MethodDelete:
		n, err := s.store.DeleteOrphanedLocations(ctx)
		if err != nil {
			writeStoreError(w, "delete orphaned locations", err)
			return
		}
		httputil.WriteJSONOK(w, map[string]int64{"deleted": n})

	default:
		httputil.MethodNotAllowed(w)
	}
}
