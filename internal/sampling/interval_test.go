package sampling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTargetInterval_Bounds(t *testing.T) {
	cfg := Balanced()
	for _, speed := range []float64{0, 0.49, 0.5, 1, 3, 10, 50, 1e9} {
		for _, rate := range []float64{0, 0.3, 0.5, 1, -1, 2} {
			got := targetInterval(cfg, speed, rate)
			assert.GreaterOrEqual(t, got, cfg.MinSamplingInterval, "speed=%v rate=%v", speed, rate)
			assert.LessOrEqual(t, got, cfg.MaxSamplingInterval, "speed=%v rate=%v", speed, rate)
		}
	}
}

func TestTargetInterval_MonotoneInSpeed(t *testing.T) {
	cfg := Efficient()
	for _, rate := range []float64{0.2, 0.7, 1} {
		prev := targetInterval(cfg, 0, rate)
		for _, speed := range []float64{0.5, 0.8, 1, 2, 4, 8, 16, 32} {
			got := targetInterval(cfg, speed, rate)
			assert.LessOrEqual(t, got, prev, "speed=%v rate=%v", speed, rate)
			prev = got
		}
	}
}

func TestTargetInterval_MonotoneInAcceptance(t *testing.T) {
	cfg := Balanced()
	for _, speed := range []float64{0, 2, 20} {
		prev := targetInterval(cfg, speed, 0)
		for _, rate := range []float64{0.1, 0.25, 0.5, 0.75, 1} {
			got := targetInterval(cfg, speed, rate)
			assert.LessOrEqual(t, got, prev, "speed=%v rate=%v", speed, rate)
			prev = got
		}
	}
}

func TestTargetInterval_Shape(t *testing.T) {
	cfg := Balanced() // 10 m, 1s..30s

	assert.Equal(t, 30*time.Second, targetInterval(cfg, 0, 1), "stationary")
	assert.Equal(t, 30*time.Second, targetInterval(cfg, 5, 0), "nothing accepted")
	assert.Equal(t, 2*time.Second, targetInterval(cfg, 5, 1))
	assert.Equal(t, 16*time.Second, targetInterval(cfg, 5, 0.5))
	assert.Equal(t, time.Second, targetInterval(cfg, 100, 1))

	cfg.MinDistanceInterval = 0
	assert.Equal(t, time.Second, targetInterval(cfg, 1, 1))
}

func TestApplyHysteresis(t *testing.T) {
	cur := 10 * time.Second
	assert.Equal(t, cur, applyHysteresis(cur, 10*time.Second))
	assert.Equal(t, cur, applyHysteresis(cur, 10500*time.Millisecond))
	assert.Equal(t, cur, applyHysteresis(cur, 9*time.Second), "exactly on the deadband keeps the previous value")
	assert.Equal(t, 12*time.Second, applyHysteresis(cur, 12*time.Second))
	assert.Equal(t, 8*time.Second, applyHysteresis(cur, 8*time.Second))
	assert.Equal(t, 3*time.Second, applyHysteresis(0, 3*time.Second))
}

func TestAcceptanceWindow(t *testing.T) {
	var w acceptanceWindow
	assert.Equal(t, 1.0, w.rate())

	w.record(true)
	w.record(false)
	assert.InDelta(t, 0.5, w.rate(), 1e-12)

	// the window only remembers the most recent decisions
	for i := 0; i < acceptanceWindowSize; i++ {
		w.record(false)
	}
	assert.Equal(t, 0.0, w.rate())
	for i := 0; i < acceptanceWindowSize; i++ {
		w.record(true)
	}
	assert.Equal(t, 1.0, w.rate())

	w.reset()
	assert.Equal(t, 1.0, w.rate())
}
