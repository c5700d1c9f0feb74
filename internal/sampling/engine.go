// Package sampling decides which raw fixes are worth keeping, smooths the
// kept ones, and tells the receiver how long to wait before the next fix.
//
// An Engine is fed fixes sequentially from one producer. It is not safe for
// concurrent use.
package sampling

import (
	"errors"
	"math"
	"time"

	"github.com/ericbrian/track-me-sub001/internal/geo"
	"github.com/ericbrian/track-me-sub001/internal/gps"
	"github.com/ericbrian/track-me-sub001/internal/kalman"
)

// Channel names one independently smoothed measurement.
type Channel string

const (
	ChannelLatitude  Channel = "latitude"
	ChannelLongitude Channel = "longitude"
	ChannelAltitude  Channel = "altitude"
	ChannelSpeed     Channel = "speed"
)

// Channels lists every smoothed channel.
var Channels = []Channel{ChannelLatitude, ChannelLongitude, ChannelAltitude, ChannelSpeed}

// RejectReason explains why a fix was not accepted.
type RejectReason int

const (
	ReasonNone RejectReason = iota
	ReasonNonFinite
	ReasonCoordinateRange
	ReasonMissingTime
	ReasonPoorAccuracy
	ReasonRedundant
	ReasonOutOfOrder
	ReasonTimeRange
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNonFinite:
		return "non_finite"
	case ReasonCoordinateRange:
		return "coordinate_range"
	case ReasonMissingTime:
		return "missing_time"
	case ReasonPoorAccuracy:
		return "poor_accuracy"
	case ReasonRedundant:
		return "redundant"
	case ReasonOutOfOrder:
		return "out_of_order"
	case ReasonTimeRange:
		return "time_range"
	}
	return "unknown"
}

// MarshalText lets reasons appear as strings in JSON.
func (r RejectReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Phase is the engine's position in its life cycle.
type Phase int

const (
	PhaseWaitingForFirstFix Phase = iota
	PhaseTracking
)

func (p Phase) String() string {
	if p == PhaseTracking {
		return "tracking"
	}
	return "waiting_for_first_fix"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Decision is the outcome of one Process call.
type Decision struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason"`

	// Fix is the smoothed fix when Accepted, otherwise the raw input.
	Fix gps.Fix `json:"fix"`

	// Distance is the great-circle distance in metres from the last
	// accepted fix, or 0 when there is none.
	Distance float64 `json:"distance"`

	// NextInterval is how long the receiver should wait before the next fix.
	NextInterval time.Duration `json:"next_interval"`
}

// State is a snapshot of the engine's policy state.
type State struct {
	Phase              Phase         `json:"phase"`
	LastAccepted       *gps.Fix      `json:"last_accepted,omitempty"`
	CurrentInterval    time.Duration `json:"current_interval"`
	ConsecutiveRejects int           `json:"consecutive_rejects"`
	Accepted           int           `json:"accepted"`
	Rejected           int           `json:"rejected"`
	AcceptanceRate     float64       `json:"acceptance_rate"`
}

// Engine applies a Config to a stream of raw fixes.
type Engine struct {
	cfg     Config
	filters map[Channel]*kalman.ScalarFilter

	phase Phase
	// lastRaw is the raw input of the last accepted fix; redundancy is
	// judged against what the receiver reported, not the filter's lag.
	lastRaw      gps.Fix
	lastSmoothed gps.Fix
	groundSpeed  float64

	// undo holds the state from before the last accepted fix until the
	// next Process call.
	undo *acceptedState

	interval           time.Duration
	window             acceptanceWindow
	consecutiveRejects int
	accepted           int
	rejected           int
}

// NewEngine returns an engine waiting for its first fix.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg}
	e.Reset()
	return e, nil
}

// Config returns the thresholds the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Reset discards all filter and policy state.
func (e *Engine) Reset() {
	e.filters = nil
	e.phase = PhaseWaitingForFirstFix
	e.lastRaw = gps.Fix{}
	e.lastSmoothed = gps.Fix{}
	e.groundSpeed = 0
	e.undo = nil
	e.interval = e.cfg.MinSamplingInterval
	e.window.reset()
	e.consecutiveRejects = 0
	e.accepted = 0
	e.rejected = 0
}

// State returns a snapshot of the policy state.
func (e *Engine) State() State {
	s := State{
		Phase:              e.phase,
		CurrentInterval:    e.interval,
		ConsecutiveRejects: e.consecutiveRejects,
		Accepted:           e.accepted,
		Rejected:           e.rejected,
		AcceptanceRate:     e.window.rate(),
	}
	if e.phase == PhaseTracking {
		last := e.lastSmoothed
		s.LastAccepted = &last
	}
	return s
}

// Estimate returns the current smoothed value of channel. ok is false
// before the channel has seen a measurement.
func (e *Engine) Estimate(ch Channel) (mean, variance float64, ok bool) {
	f, found := e.filters[ch]
	if !found {
		return 0, 0, false
	}
	return f.Estimate()
}

// Process judges one raw fix. It never panics and never returns non-finite
// values in an accepted fix.
func (e *Engine) Process(fix gps.Fix) Decision {
	e.undo = nil
	if reason := e.screen(fix); reason != ReasonNone {
		return e.reject(fix, reason, 0)
	}

	var distance float64
	var elapsed time.Duration
	if e.phase == PhaseTracking {
		if fix.Timestamp.Before(e.lastRaw.Timestamp) {
			return e.reject(fix, ReasonOutOfOrder, 0)
		}
		elapsed = fix.Timestamp.Sub(e.lastRaw.Timestamp)
		distance = geo.Haversine(e.lastRaw.Coordinate(), fix.Coordinate())
		if elapsed < e.cfg.MinTimeInterval && distance < e.cfg.MinDistanceInterval {
			return e.reject(fix, ReasonRedundant, distance)
		}
	}

	e.undo = e.saveAccepted()
	smoothed := e.smooth(fix, elapsed, distance)

	e.phase = PhaseTracking
	e.lastRaw = fix
	e.lastSmoothed = smoothed
	e.consecutiveRejects = 0
	e.accepted++
	e.window.record(true)

	return Decision{
		Accepted:     true,
		Reason:       ReasonNone,
		Fix:          smoothed,
		Distance:     distance,
		NextInterval: e.updateInterval(),
	}
}

// acceptedState is the part of the engine an accepted fix moves forward.
type acceptedState struct {
	phase        Phase
	lastRaw      gps.Fix
	lastSmoothed gps.Fix
	groundSpeed  float64
	filters      map[Channel]kalman.ScalarFilter
}

func (e *Engine) saveAccepted() *acceptedState {
	st := &acceptedState{
		phase:        e.phase,
		lastRaw:      e.lastRaw,
		lastSmoothed: e.lastSmoothed,
		groundSpeed:  e.groundSpeed,
	}
	if e.filters != nil {
		st.filters = make(map[Channel]kalman.ScalarFilter, len(e.filters))
		for ch, f := range e.filters {
			st.filters[ch] = *f
		}
	}
	return st
}

// RevertAccepted undoes the position history of the fix accepted by the
// most recent Process call, for a caller that could not keep it. The next
// fix is then judged against the fix before it. Counters, the acceptance
// window and the interval still reflect the decision. It reports false when
// the most recent call did not accept a fix or was already reverted.
func (e *Engine) RevertAccepted() bool {
	st := e.undo
	if st == nil {
		return false
	}
	e.undo = nil
	e.phase = st.phase
	e.lastRaw = st.lastRaw
	e.lastSmoothed = st.lastSmoothed
	e.groundSpeed = st.groundSpeed
	e.filters = nil
	if st.filters != nil {
		e.filters = make(map[Channel]*kalman.ScalarFilter, len(st.filters))
		for ch, f := range st.filters {
			e.filters[ch] = &f
		}
	}
	return true
}

// screen applies the checks that need no history.
func (e *Engine) screen(fix gps.Fix) RejectReason {
	if err := fix.Validate(); err != nil {
		switch {
		case errors.Is(err, gps.ErrNonFinite):
			return ReasonNonFinite
		case errors.Is(err, gps.ErrCoordinateRange):
			return ReasonCoordinateRange
		case errors.Is(err, gps.ErrMissingTime):
			return ReasonMissingTime
		case errors.Is(err, gps.ErrTimeRange):
			return ReasonTimeRange
		default:
			// negative accuracy means the receiver has no usable estimate
			return ReasonPoorAccuracy
		}
	}
	if fix.HorizontalAccuracy > e.cfg.MaxAcceptableAccuracy {
		return ReasonPoorAccuracy
	}
	return ReasonNone
}

func (e *Engine) reject(fix gps.Fix, reason RejectReason, distance float64) Decision {
	e.consecutiveRejects++
	e.rejected++
	e.window.record(false)
	return Decision{
		Accepted:     false,
		Reason:       reason,
		Fix:          fix,
		Distance:     distance,
		NextInterval: e.updateInterval(),
	}
}

func (e *Engine) updateInterval() time.Duration {
	if e.phase == PhaseWaitingForFirstFix {
		e.interval = e.cfg.MinSamplingInterval
		return e.interval
	}
	target := targetInterval(e.cfg, e.groundSpeed, e.window.rate())
	e.interval = applyHysteresis(e.interval, target)
	return e.interval
}

// smooth runs each channel through its filter. Measurement variances are
// the reported accuracy squared, converted into the channel's units.
func (e *Engine) smooth(fix gps.Fix, elapsed time.Duration, distance float64) gps.Fix {
	if e.filters == nil {
		e.filters = e.newFilters(fix.Latitude)
	}

	hacc := fix.HorizontalAccuracy
	latDeg := hacc / geo.MetersPerDegreeLatitude
	lonDeg := hacc / geo.MetersPerDegreeLongitude(fix.Latitude)

	out := fix

	out.Latitude = e.filters[ChannelLatitude].Process(fix.Latitude, latDeg*latDeg)
	out.Latitude = math.Max(-90, math.Min(90, out.Latitude))

	out.Longitude = e.processLongitude(fix.Longitude, lonDeg*lonDeg)

	vacc := fix.VerticalAccuracy
	if vacc < 0 {
		vacc = hacc
	}
	out.Altitude = e.filters[ChannelAltitude].Process(fix.Altitude, vacc*vacc)

	seconds := elapsed.Seconds()
	if fix.Speed >= 0 {
		// a position error of hacc over the elapsed time bounds the speed
		// error
		speedStd := hacc / math.Max(seconds, 1)
		out.Speed = gps.ClampSpeed(e.filters[ChannelSpeed].Process(fix.Speed, speedStd*speedStd))
		e.groundSpeed = out.Speed
	} else {
		out.Speed = 0
		e.groundSpeed = 0
		if seconds > 0 {
			e.groundSpeed = distance / seconds
		}
	}

	out.Course = gps.ClampCourse(fix.Course)
	return out
}

// processLongitude unwraps the measurement next to the current estimate so
// a path across the antimeridian is not averaged through zero.
func (e *Engine) processLongitude(lon, variance float64) float64 {
	f := e.filters[ChannelLongitude]
	if mean, _, ok := f.Estimate(); ok {
		if math.Abs(lon-mean) > 180 {
			lon = mean + math.Remainder(lon-mean, 360)
		}
	}
	v := f.Process(lon, variance)
	if v > 180 || v < -180 {
		v = geo.NormalizeLongitude(v)
	}
	return v
}

// newFilters converts ProcessNoise (metres per second, as a standard
// deviation) into a per-fix variance in each channel's units.
func (e *Engine) newFilters(latitude float64) map[Channel]*kalman.ScalarFilter {
	q := e.cfg.ProcessNoise
	qLat := q / geo.MetersPerDegreeLatitude
	qLon := q / geo.MetersPerDegreeLongitude(latitude)
	return map[Channel]*kalman.ScalarFilter{
		ChannelLatitude:  kalman.New(qLat * qLat),
		ChannelLongitude: kalman.New(qLon * qLon),
		ChannelAltitude:  kalman.New(q * q),
		ChannelSpeed:     kalman.New(q * q),
	}
}
