package api

import (
	"net/http"

	"github.com/ericbrian/track-me-sub001/internal/db"
	"github.com/ericbrian/track-me-sub001/internal/httputil"
)

type startRequest struct {
	Narrative string `json:"narrative"`
}

type narrativeRequest struct {
	Narrative *string `json:"narrative"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSessions(w, r)
	case http.MethodPost:
		s.startTracking(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sorts, err := db.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 0, 0, 10000)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), db.SessionListOptions{Sort: sorts, Limit: limit})
	if err != nil {
		writeStoreError(w, "list sessions", err)
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessionID(r)
	if err != nil {
		writeStoreError(w, "resolve session", err)
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		sess, err := s.store.GetSession(ctx, id)
		if err != nil {
			writeStoreError(w, "get session", err)
			return
		}
		httputil.WriteJSONOK(w, sess)

	case http.MethodPatch:
		var req narrativeRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if req.Narrative == nil {
			httputil.BadRequest(w, "narrative is required")
			return
		}
		if err := s.store.UpdateNarrative(ctx, id, *req.Narrative); err != nil {
			writeStoreError(w, "update narrative", err)
			return
		}
		sess, err := s.store.GetSession(ctx, id)
		if err != nil {
			writeStoreError(w, "get session", err)
			return
		}
		httputil.WriteJSONOK(w, sess)

	case http.MethodDelete:
		if s.tracking(id) {
			httputil.Conflict(w, "session is being recorded; stop tracking first")
			return
		}
		if err := s.store.DeleteSession(ctx, id); err != nil {
			writeStoreError(w, "delete session", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w)
	}
}

// tracking reports whether the tracker is recording into session id.
func (s *Server) tracking(id string) bool {
	st := s.tracker.Status()
	return st.Tracking && st.Session != nil && st.Session.ID == id
}

func (s *Server) adoptOrphans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	id, err := s.sessionID(r)
	if err != nil {
		writeStoreError(w, "resolve session", err)
		return
	}
	n, err := s.store.AssignOrphanedLocations(r.Context(), id)
	if err != nil {
		writeStoreError(w, "assign orphaned locations", err)
		return
	}
	httputil.WriteJSONOK(w, map[string]int64{"assigned": n})
}
