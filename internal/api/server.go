// Package api serves the session store and tracker over JSON HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ericbrian/track-me-sub001/internal/db"
	"github.com/ericbrian/track-me-sub001/internal/httputil"
	"github.com/ericbrian/track-me-sub001/internal/monitoring"
	"github.com/ericbrian/track-me-sub001/internal/sampling"
	"github.com/ericbrian/track-me-sub001/internal/tracking"
	"github.com/ericbrian/track-me-sub001/internal/units"
)

// ANSI colours for the request log.
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Repository is the part of db.SessionStore the API reads and deletes
// through.
type Repository interface {
	tracking.Reader
	ActiveSession(ctx context.Context) (*db.Session, error)
	ListSessions(ctx context.Context, opts db.SessionListOptions) ([]db.Session, error)
	UpdateNarrative(ctx context.Context, id, narrative string) error
	DeleteSession(ctx context.Context, id string) error
	DeleteLocations(ctx context.Context, sessionID string) (int64, error)
	OrphanedLocations(ctx context.Context, opts db.FetchOptions) ([]db.LocationEntry, error)
	OrphanedLocationCount(ctx context.Context) (int, error)
	AssignOrphanedLocations(ctx context.Context, sessionID string) (int64, error)
	DeleteOrphanedLocations(ctx context.Context) (int64, error)
}

// Tracker is the part of tracking.Orchestrator the API controls.
type Tracker interface {
	Start(ctx context.Context, narrative string) (*db.Session, error)
	Stop(ctx context.Context) (*db.Session, error)
	Status() tracking.Status
	Config() sampling.Config
}

// Options are the presentation defaults. Zero values pick the same
// defaults as the tuning file.
type Options struct {
	Units         string
	RegionPadding float64
	FetchBatch    int
}

type Server struct {
	store   Repository
	tracker Tracker
	units   string
	padding float64
	batch   int
}

func NewServer(store Repository, tracker Tracker, opts Options) *Server {
	s := &Server{
		store:   store,
		tracker: tracker,
		units:   opts.Units,
		padding: opts.RegionPadding,
		batch:   opts.FetchBatch,
	}
	if !units.IsValid(s.units) {
		s.units = units.MPS
	}
	if s.padding < 1 {
		s.padding = 1.2
	}
	if s.batch < 0 {
		s.batch = 0
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/{id}", s.handleSession)
	mux.HandleFunc("/api/sessions/{id}/locations", s.handleLocations)
	mux.HandleFunc("/api/sessions/{id}/summary", s.showSummary)
	mux.HandleFunc("/api/sessions/{id}/region", s.showRegion)
	mux.HandleFunc("/api/sessions/{id}/segments", s.showSegments)
	mux.HandleFunc("/api/sessions/{id}/adopt", s.adoptOrphans)
	mux.HandleFunc("/api/orphans", s.handleOrphans)
	mux.HandleFunc("/api/tracking/start", s.startTracking)
	mux.HandleFunc("/api/tracking/stop", s.stopTracking)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

// writeStoreError maps store errors onto status codes.
func writeStoreError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, db.ErrInvalidSort):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, tracking.ErrAlreadyTracking), errors.Is(err, tracking.ErrNotTracking):
		httputil.Conflict(w, err.Error())
	default:
		monitoring.Logf("api: %s: %v", what, err)
		httputil.InternalServerError(w, fmt.Sprintf("Failed to %s: %v", what, err))
	}
}

// sessionID resolves the {id} path value. "active" names the session
// currently being recorded.
func (s *Server) sessionID(r *http.Request) (string, error) {
	id := r.PathValue("id")
	if id != "active" {
		return id, nil
	}
	sess, err := s.store.ActiveSession(r.Context())
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// requestUnits returns the ?units= override or the server default.
func (s *Server) requestUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, nil
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid 'units' parameter: must be one of %s", units.GetValidUnitsString())
	}
	return u, nil
}

// requestLocation returns the ?tz= zone timestamps are rendered in, UTC by
// default.
func requestLocation(r *http.Request) (*time.Location, error) {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid 'tz' parameter: %v", err)
	}
	return loc, nil
}
