package api

import (
	"net/http"

	"github.com/ericbrian/track-me-sub001/internal/config"
	"github.com/ericbrian/track-me-sub001/internal/httputil"
	"github.com/ericbrian/track-me-sub001/internal/tracking"
	"github.com/ericbrian/track-me-sub001/internal/version"
)

func (s *Server) startTracking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req startRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	sess, err := s.tracker.Start(r.Context(), req.Narrative)
	if err != nil {
		writeStoreError(w, "start tracking", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sess)
}

func (s *Server) stopTracking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	sess, err := s.tracker.Stop(r.Context())
	if err != nil {
		writeStoreError(w, "stop tracking", err)
		return
	}
	httputil.WriteJSONOK(w, sess)
}

type statusResponse struct {
	tracking.Status
	Version version.Info `json:"version"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, statusResponse{Status: s.tracker.Status(), Version: version.Get()})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	cfg := config.FromSampling(s.tracker.Config())
	u, padding, batch := s.units, s.padding, s.batch
	cfg.Units = &u
	cfg.RegionPadding = &padding
	cfg.FetchBatch = &batch
	httputil.WriteJSONOK(w, cfg)
}
