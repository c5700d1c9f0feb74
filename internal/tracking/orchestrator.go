// Package tracking wires raw fixes through the sampling engine into the
// session store.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ericbrian/track-me-sub001/internal/db"
	"github.com/ericbrian/track-me-sub001/internal/gps"
	"github.com/ericbrian/track-me-sub001/internal/monitoring"
	"github.com/ericbrian/track-me-sub001/internal/sampling"
	"github.com/ericbrian/track-me-sub001/internal/timeutil"
)

var (
	ErrNotTracking     = errors.New("tracking is not running")
	ErrAlreadyTracking = errors.New("tracking is already running")
)

// Store is the part of the session store the orchestrator writes to.
type Store interface {
	CreateSession(ctx context.Context, narrative string, start time.Time) (*db.Session, error)
	EndSession(ctx context.Context, id string, end time.Time) (*db.Session, error)
	SaveLocation(ctx context.Context, sessionID string, fix gps.Fix) (*db.LocationEntry, error)
}

const (
	// staleCheckPeriod is how often Run looks for a silent receiver.
	staleCheckPeriod = 10 * time.Second
	// staleAfterIntervals is how many sampling intervals may pass without a
	// fix before the receiver is reported as stale.
	staleAfterIntervals = 3
)

// Status is a point-in-time view of the orchestrator.
type Status struct {
	Tracking   bool           `json:"tracking"`
	Session    *db.Session    `json:"session,omitempty"`
	Engine     sampling.State `json:"engine"`
	Saved      int            `json:"saved"`
	LastFixAt  *time.Time     `json:"last_fix_at,omitempty"`
	Stale      bool           `json:"stale"`
	LastError  string         `json:"last_error,omitempty"`
	LastReason string         `json:"last_reason,omitempty"`
}

// Orchestrator owns the engine while a session is being recorded. The
// engine is not safe for concurrent use, so every call is serialised.
type Orchestrator struct {
	engine *sampling.Engine
	store  Store
	clock  timeutil.Clock

	mu         sync.Mutex
	session    *db.Session
	interval   time.Duration
	listeners  []func(time.Duration)
	saved      int
	lastFixAt  time.Time
	stale      bool
	lastErr    error
	lastReason sampling.RejectReason
	metrics    *monitoring.TrackerMetrics
}

// New returns an idle orchestrator. A nil clock means the real clock.
func New(engine *sampling.Engine, store Store, clock timeutil.Clock) *Orchestrator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Orchestrator{engine: engine, store: store, clock: clock}
}

// SetMetrics attaches Prometheus series. Call before Run.
func (o *Orchestrator) SetMetrics(m *monitoring.TrackerMetrics) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metrics = m
}

// OnInterval registers f to receive every change of the requested sampling
// interval, typically to forward it to the receiver. f is called without
// the orchestrator's lock held.
func (o *Orchestrator) OnInterval(f func(time.Duration)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, f)
}

// Start opens a new session and resets the engine to wait for a first fix.
func (o *Orchestrator) Start(ctx context.Context, narrative string) (*db.Session, error) {
	o.mu.Lock()
	if o.session != nil {
		o.mu.Unlock()
		return nil, ErrAlreadyTracking
	}
	sess, err := o.store.CreateSession(ctx, narrative, o.clock.Now())
	if err != nil {
		o.lastErr = err
		o.mu.Unlock()
		return nil, fmt.Errorf("start session: %w", err)
	}
	o.engine.Reset()
	o.session = sess
	o.saved = 0
	o.stale = false
	o.lastFixAt = time.Time{}
	o.lastErr = nil
	o.lastReason = sampling.ReasonNone
	o.interval = 0
	o.metrics.IncSessions()
	o.metrics.SetStale(false)
	notify := o.setIntervalLocked(o.engine.State().CurrentInterval)
	o.mu.Unlock()

	monitoring.Logf("tracking started: session %s", sess.ID)
	notify()
	return sess, nil
}

// Stop ends the current session at the clock's current time.
func (o *Orchestrator) Stop(ctx context.Context) (*db.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil, ErrNotTracking
	}
	sess, err := o.store.EndSession(ctx, o.session.ID, o.clock.Now())
	if err != nil {
		o.lastErr = err
		return nil, fmt.Errorf("end session: %w", err)
	}
	o.session = nil
	o.engine.Reset()
	monitoring.Logf("tracking stopped: session %s, %d fixes saved", sess.ID, o.saved)
	return sess, nil
}

// HandleFix runs one raw fix through the engine and saves it when accepted.
// A rejection is a normal decision, not an error; the error is for a save
// that failed or for tracking not running.
func (o *Orchestrator) HandleFix(ctx context.Context, fix gps.Fix) (sampling.Decision, error) {
	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		return sampling.Decision{}, ErrNotTracking
	}
	o.lastFixAt = o.clock.Now()
	if o.stale {
		o.stale = false
		o.metrics.SetStale(false)
	}

	d := o.engine.Process(fix)
	o.lastReason = d.Reason
	o.metrics.ObserveDecision(d.Accepted, d.Reason.String())
	var err error
	if d.Accepted {
		if _, err = o.store.SaveLocation(ctx, o.session.ID, d.Fix); err != nil {
			// the next fix is judged against what was actually stored
			o.engine.RevertAccepted()
			o.lastErr = err
			o.metrics.IncSaveErrors()
			err = fmt.Errorf("save fix: %w", err)
		} else {
			o.saved++
		}
	} else {
		monitoring.Debugf("rejected fix at %s: %s", fix.Timestamp.Format(time.RFC3339), d.Reason)
	}
	notify := o.setIntervalLocked(d.NextInterval)
	o.mu.Unlock()

	notify()
	return d, err
}

// setIntervalLocked records the interval and returns the notification to
// run once the lock is released.
func (o *Orchestrator) setIntervalLocked(d time.Duration) func() {
	if d == o.interval || d <= 0 {
		return func() {}
	}
	o.interval = d
	o.metrics.SetInterval(d)
	listeners := append([]func(time.Duration){}, o.listeners...)
	return func() {
		for _, f := range listeners {
			f(d)
		}
	}
}

// Run feeds fixes into HandleFix until ctx is done or fixes is closed. Fixes
// that arrive while tracking is stopped are dropped. Save failures are
// logged and do not stop the loop.
func (o *Orchestrator) Run(ctx context.Context, fixes <-chan gps.Fix) error {
	ticker := o.clock.NewTicker(staleCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fix, ok := <-fixes:
			if !ok {
				return nil
			}
			if _, err := o.HandleFix(ctx, fix); err != nil && !errors.Is(err, ErrNotTracking) {
				monitoring.Logf("tracking: %v", err)
			}
		case now := <-ticker.C():
			o.checkStale(now)
		}
	}
}

func (o *Orchestrator) checkStale(now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil || o.stale {
		return
	}
	since := o.lastFixAt
	if since.IsZero() {
		since = o.session.StartDate
	}
	limit := staleAfterIntervals * o.interval
	if silent := now.Sub(since); silent > limit {
		o.stale = true
		o.metrics.SetStale(true)
		monitoring.Logf("no fix received for %s (limit %s)", silent.Round(time.Second), limit)
	}
}

// Status returns a snapshot of the orchestrator and its engine.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Status{
		Tracking: o.session != nil,
		Engine:   o.engine.State(),
		Saved:    o.saved,
		Stale:    o.stale,
	}
	if o.session != nil {
		sess := *o.session
		s.Session = &sess
	}
	if !o.lastFixAt.IsZero() {
		at := o.lastFixAt
		s.LastFixAt = &at
	}
	if o.lastErr != nil {
		s.LastError = o.lastErr.Error()
	}
	if o.lastReason != sampling.ReasonNone {
		s.LastReason = o.lastReason.String()
	}
	return s
}

// Config returns the thresholds the engine runs with.
func (o *Orchestrator) Config() sampling.Config {
	return o.engine.Config()
}
