// Package kalman provides a one-dimensional Kalman filter used to smooth
// individual measurement channels (latitude, longitude, altitude, speed).
//
// Each ScalarFilter tracks a single (mean, variance) pair. Channels are
// filtered independently; there is no coupled state between filters.
package kalman

import "math"

const (
	// DefaultProcessNoise is the variance added to the estimate on every
	// predict step when no explicit value is configured.
	DefaultProcessNoise = 1e-3

	// DefaultMeasurementVariance seeds the estimate variance when the first
	// measurement arrives with an unusable or infinite noise variance, and
	// replaces an unusable one afterwards.
	DefaultMeasurementVariance = 1.0
)

// ScalarFilter is a constant-position Kalman filter over one scalar channel.
// The zero value is not usable; construct with New or NewWithState.
// A ScalarFilter is not safe for concurrent use.
type ScalarFilter struct {
	processNoise float64

	mean        float64
	variance    float64
	initialized bool
}

// New returns a filter with no prior state. A negative or non-finite
// processNoise is replaced by DefaultProcessNoise; zero is allowed and makes
// the estimate variance shrink monotonically.
func New(processNoise float64) *ScalarFilter {
	return &ScalarFilter{processNoise: sanitizeProcessNoise(processNoise)}
}

// NewWithState returns a filter seeded with an existing estimate.
func NewWithState(mean, variance, processNoise float64) *ScalarFilter {
	f := New(processNoise)
	// +Inf is accepted as "no confidence in the prior".
	if isFinite(mean) && variance >= 0 && !math.IsNaN(variance) {
		f.mean = mean
		f.variance = variance
		f.initialized = true
	}
	return f
}

// Process folds one measurement into the estimate and returns the new
// estimate. measurementVariance is the variance of the measurement noise in
// the channel's own units.
//
// The first measurement seeds the estimate and is returned unchanged. A
// non-finite measurement is ignored: the current estimate is returned and
// the state is left untouched. Once seeded, a measurement variance of +Inf
// gives zero gain: the mean is kept and only the predict step applies.
func (f *ScalarFilter) Process(measurement, measurementVariance float64) float64 {
	if !isFinite(measurement) {
		return f.mean
	}
	noInformation := math.IsInf(measurementVariance, 1)
	if !isUsableVariance(measurementVariance) {
		measurementVariance = DefaultMeasurementVariance
	}

	if f.initialized && noInformation {
		f.variance += f.processNoise
		return f.mean
	}

	if !f.initialized {
		f.mean = measurement
		f.variance = measurementVariance
		f.initialized = true
		return measurement
	}

	predicted := f.variance + f.processNoise
	gain := kalmanGain(predicted, measurementVariance)

	if gain == 1 {
		// Full trust: take the measurement bit-for-bit rather than via
		// mean + (z - mean), which can round.
		f.mean = measurement
		f.variance = 0
		return measurement
	}

	f.mean += gain * (measurement - f.mean)
	f.variance = (1 - gain) * predicted
	return f.mean
}

// Estimate returns the current mean and variance. ok is false before the
// first measurement.
func (f *ScalarFilter) Estimate() (mean, variance float64, ok bool) {
	return f.mean, f.variance, f.initialized
}

// Initialized reports whether the filter has seen a measurement.
func (f *ScalarFilter) Initialized() bool {
	return f.initialized
}

// ProcessNoise returns the configured process noise.
func (f *ScalarFilter) ProcessNoise() float64 {
	return f.processNoise
}

// Reset discards the estimate. The next measurement seeds a fresh state.
func (f *ScalarFilter) Reset() {
	f.mean = 0
	f.variance = 0
	f.initialized = false
}

// kalmanGain computes p/(p+r) in a form that stays well defined at the
// extremes: r == 0 or p == +Inf give exactly 1, p == 0 gives 0.
func kalmanGain(predicted, measurementVariance float64) float64 {
	switch {
	case measurementVariance == 0:
		return 1
	case math.IsInf(predicted, 1):
		return 1
	case predicted == 0:
		return 0
	}
	// 1/(1 + r/p) avoids overflow in p+r when both are huge.
	return 1 / (1 + measurementVariance/predicted)
}

func sanitizeProcessNoise(q float64) float64 {
	if q < 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return DefaultProcessNoise
	}
	return q
}

func isUsableVariance(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 1)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
