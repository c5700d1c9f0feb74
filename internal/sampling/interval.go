package sampling

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// acceptanceWindowSize is how many recent decisions feed the acceptance
	// rate.
	acceptanceWindowSize = 10

	// stationarySpeed is the ground speed, in m/s, below which the receiver
	// is treated as not moving.
	stationarySpeed = 0.5

	// intervalDeadband is the relative change the target interval must
	// exceed before the current interval moves.
	intervalDeadband = 0.10
)

// acceptanceWindow is a fixed-size ring of recent outcomes, 1 for accepted
// and 0 for rejected.
type acceptanceWindow struct {
	outcomes [acceptanceWindowSize]float64
	next     int
	filled   int
}

func (w *acceptanceWindow) record(accepted bool) {
	v := 0.0
	if accepted {
		v = 1
	}
	w.outcomes[w.next] = v
	w.next = (w.next + 1) % len(w.outcomes)
	if w.filled < len(w.outcomes) {
		w.filled++
	}
}

// rate is the fraction of recent decisions that accepted. With no history it
// is 1 so the first interval is not penalised.
func (w *acceptanceWindow) rate() float64 {
	if w.filled == 0 {
		return 1
	}
	return stat.Mean(w.outcomes[:w.filled], nil)
}

func (w *acceptanceWindow) reset() {
	*w = acceptanceWindow{}
}

// targetInterval maps ground speed and acceptance rate onto
// [MinSamplingInterval, MaxSamplingInterval].
//
// The speed term asks for roughly one fix per MinDistanceInterval travelled:
// base = MinDistanceInterval / speed, or the maximum when stationary. The
// rejection term then pulls the result toward the maximum in proportion to
// the recent rejection rate. Faster movement or a higher acceptance rate
// never lengthen the interval.
func targetInterval(cfg Config, speed, acceptance float64) time.Duration {
	lo, hi := cfg.MinSamplingInterval, cfg.MaxSamplingInterval

	base := hi
	if speed >= stationarySpeed {
		nanos := cfg.MinDistanceInterval / speed * float64(time.Second)
		if nanos < float64(hi) {
			base = clampDuration(time.Duration(nanos), lo, hi)
		}
	}

	rejection := 1 - clampUnit(acceptance)
	target := base + time.Duration(float64(hi-base)*rejection)
	return clampDuration(target, lo, hi)
}

// applyHysteresis keeps current unless target differs from it by more than
// the deadband.
func applyHysteresis(current, target time.Duration) time.Duration {
	if current <= 0 {
		return target
	}
	diff := target - current
	if diff < 0 {
		diff = -diff
	}
	if float64(diff) <= intervalDeadband*float64(current) {
		return current
	}
	return target
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func clampUnit(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
