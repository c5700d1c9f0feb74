package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/ericbrian/track-me-sub001/internal/db"
	"github.com/ericbrian/track-me-sub001/internal/httputil"
	"github.com/ericbrian/track-me-sub001/internal/units"
)

const maxChartPoints = 2000

// AttachAdminRoutes registers the session charts under /debug/.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("track", "Speed and path charts for a session (?id=, default latest)", http.HandlerFunc(s.handleTrackChart))
}

// chartSession picks ?id=, else the active session, else the newest one.
func (s *Server) chartSession(r *http.Request) (*db.Session, error) {
	ctx := r.Context()
	if id := r.URL.Query().Get("id"); id != "" && id != "active" {
		return s.store.GetSession(ctx, id)
	}
	sess, err := s.store.ActiveSession(ctx)
	if err == nil {
		return sess, nil
	}
	latest, lerr := s.store.ListSessions(ctx, db.SessionListOptions{Limit: 1})
	if lerr != nil {
		return nil, lerr
	}
	if len(latest) == 0 {
		return nil, err
	}
	return &latest[0], nil
}

func (s *Server) handleTrackChart(w http.ResponseWriter, r *http.Request) {
	u, err := s.requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	sess, err := s.chartSession(r)
	if err != nil {
		writeStoreError(w, "find session", err)
		return
	}
	entries, err := s.store.FetchLocations(r.Context(), sess.ID, db.FetchOptions{BatchSize: s.batch})
	if err != nil {
		writeStoreError(w, "fetch locations", err)
		return
	}

	// Downsample by stride to stay within maxChartPoints
	stride := 1
	if len(entries) > maxChartPoints {
		stride = int(math.Ceil(float64(len(entries)) / float64(maxChartPoints)))
	}

	times := make([]string, 0, len(entries)/stride+1)
	speeds := make([]opts.LineData, 0, len(entries)/stride+1)
	path := make([]opts.ScatterData, 0, len(entries)/stride+1)
	for i := 0; i < len(entries); i += stride {
		e := entries[i]
		times = append(times, e.Timestamp.Format("15:04:05"))
		speeds = append(speeds, opts.LineData{Value: units.ConvertSpeed(e.Speed, u)})
		path = append(path, opts.ScatterData{Value: []interface{}{e.Longitude, e.Latitude}, SymbolSize: 4})
	}

	subtitle := fmt.Sprintf("session=%s points=%d stride=%d", sess.ID, len(entries), stride)
	if sess.Narrative != "" {
		subtitle = sess.Narrative + " | " + subtitle
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Track", Width: "100%", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Speed (" + u + ")", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(times).AddSeries("speed", speeds)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Path"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude", Scale: opts.Bool(true)}),
	)
	scatter.AddSeries("fixes", path)

	page := components.NewPage()
	page.AddCharts(line, scatter)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
