package monitoring

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TrackerMetrics are the Prometheus series exported by the tracker. A nil
// *TrackerMetrics records nothing.
type TrackerMetrics struct {
	Decisions  *prometheus.CounterVec
	SaveErrors prometheus.Counter
	Sessions   prometheus.Counter
	Interval   prometheus.Gauge
	Stale      prometheus.Gauge
}

// NewTrackerMetrics creates the tracker series and registers them with reg.
func NewTrackerMetrics(reg prometheus.Registerer) (*TrackerMetrics, error) {
	m := &TrackerMetrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackme_fix_decisions_total",
			Help: "Raw fixes processed, by outcome and rejection reason",
		}, []string{"outcome", "reason"}),
		SaveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackme_save_errors_total",
			Help: "Accepted fixes that could not be persisted",
		}),
		Sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackme_sessions_started_total",
			Help: "Sessions started by the tracker",
		}),
		Interval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trackme_sampling_interval_seconds",
			Help: "Sampling interval last requested from the receiver",
		}),
		Stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trackme_receiver_stale",
			Help: "1 while the receiver has been silent for too long",
		}),
	}
	for _, c := range []prometheus.Collector{m.Decisions, m.SaveErrors, m.Sessions, m.Interval, m.Stale} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register tracker metrics: %w", err)
		}
	}
	return m, nil
}

func (m *TrackerMetrics) ObserveDecision(accepted bool, reason string) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
		reason = ""
	}
	m.Decisions.WithLabelValues(outcome, reason).Inc()
}

func (m *TrackerMetrics) IncSaveErrors() {
	if m != nil {
		m.SaveErrors.Inc()
	}
}

func (m *TrackerMetrics) IncSessions() {
	if m != nil {
		m.Sessions.Inc()
	}
}

func (m *TrackerMetrics) SetInterval(d time.Duration) {
	if m != nil {
		m.Interval.Set(d.Seconds())
	}
}

func (m *TrackerMetrics) SetStale(stale bool) {
	if m == nil {
		return
	}
	if stale {
		m.Stale.Set(1)
	} else {
		m.Stale.Set(0)
	}
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// MetricsHandler serves reg in the Prometheus text format.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
