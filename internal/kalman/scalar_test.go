package kalman

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_FirstMeasurementSeedsState(t *testing.T) {
	f := New(0.01)
	assert.False(t, f.Initialized())

	got := f.Process(42.5, 4)
	assert.Equal(t, 42.5, got)

	mean, variance, ok := f.Estimate()
	require.True(t, ok)
	assert.Equal(t, 42.5, mean)
	assert.Equal(t, 4.0, variance)
}

func TestProcess_FirstMeasurementBadVarianceUsesDefault(t *testing.T) {
	for _, r := range []float64{-1, math.NaN(), math.Inf(1)} {
		f := New(0.01)
		f.Process(1, r)
		_, variance, _ := f.Estimate()
		assert.Equal(t, DefaultMeasurementVariance, variance, "r=%v", r)
	}
}

func TestProcess_InfiniteMeasurementNoiseKeepsPriorMean(t *testing.T) {
	f := NewWithState(10, 1, 0.5)
	assert.Equal(t, 10.0, f.Process(1000, math.Inf(1)))

	mean, variance, ok := f.Estimate()
	require.True(t, ok)
	assert.Equal(t, 10.0, mean)
	assert.Equal(t, 1.5, variance, "predict step still applies")

	// agrees with the large finite limit
	g := NewWithState(10, 1, 0)
	assert.InDelta(t, g.Process(1000, 1e300), NewWithState(10, 1, 0).Process(1000, math.Inf(1)), 1e-9)

	// an unseeded prior of +Inf still hands over to the next real measurement
	h := NewWithState(10, math.Inf(1), 0)
	assert.Equal(t, 10.0, h.Process(1000, math.Inf(1)))
	assert.Equal(t, 20.0, h.Process(20, 4))
}

func TestProcess_ZeroMeasurementNoiseReturnsMeasurementExactly(t *testing.T) {
	priors := []struct{ mean, variance float64 }{
		{0.1, 1},
		{-73.98513, 1e-9},
		{1e8, 1e8},
		{-1e-5, 0},
	}
	measurements := []float64{0.3, -179.99999, 1e-5, 12345.678901, -1e8}

	for _, p := range priors {
		for _, z := range measurements {
			f := NewWithState(p.mean, p.variance, 0.5)
			got := f.Process(z, 0)
			if got != z {
				t.Fatalf("prior=%+v z=%v: got %v, want exact measurement", p, z, got)
			}
		}
	}
}

func TestProcess_InfinitePriorVarianceTrustsMeasurement(t *testing.T) {
	f := NewWithState(10, math.Inf(1), 0)
	assert.Equal(t, 20.0, f.Process(20, 5))
}

func TestProcess_LargePriorVarianceApproachesMeasurement(t *testing.T) {
	prev := math.Inf(1)
	for _, p := range []float64{1, 1e3, 1e6, 1e9} {
		f := NewWithState(0, p, 0)
		got := f.Process(100, 1)
		dist := math.Abs(100 - got)
		assert.Less(t, dist, prev, "prior variance %v", p)
		prev = dist
	}
	assert.Less(t, prev, 1e-6)
}

func TestProcess_HugeMeasurementNoiseKeepsPriorMean(t *testing.T) {
	f := NewWithState(5, 1, 0)
	got := f.Process(500, 1e12)
	assert.InDelta(t, 5, got, 1e-6)
}

func TestProcess_Gain(t *testing.T) {
	// prior 0 with variance 1, q = 1 => predicted 2, r = 2 => gain 0.5
	f := NewWithState(0, 1, 1)
	got := f.Process(10, 2)
	assert.InDelta(t, 5, got, 1e-12)

	_, variance, _ := f.Estimate()
	assert.InDelta(t, 1, variance, 1e-12)
}

func TestProcess_ConstantStreamConverges(t *testing.T) {
	const truth = -33.8688
	f := New(0)

	noise := []float64{0.4, -0.3, 0.2, -0.25, 0.1, -0.05, 0.3, -0.2}
	prevVariance := math.Inf(1)
	var last float64
	for i := 0; i < 200; i++ {
		last = f.Process(truth+noise[i%len(noise)], 0.25)
		_, variance, _ := f.Estimate()
		if variance > prevVariance {
			t.Fatalf("variance grew at step %d: %v > %v", i, variance, prevVariance)
		}
		prevVariance = variance
	}
	assert.InDelta(t, truth, last, 0.05)
}

func TestProcess_StableAcrossMagnitudes(t *testing.T) {
	for _, scale := range []float64{1e-5, 1e-2, 1, 1e3, 1e8, -1e-5, -1e8} {
		f := New(scale * scale * 1e-3)
		var got float64
		for i := 0; i < 50; i++ {
			got = f.Process(scale, scale*scale*0.01)
		}
		require.False(t, math.IsNaN(got) || math.IsInf(got, 0), "scale %v", scale)
		assert.InDelta(t, scale, got, math.Abs(scale)*1e-9)
	}
}

func TestProcess_NonFiniteMeasurementIgnored(t *testing.T) {
	f := New(0.1)
	f.Process(3, 1)
	before, beforeVar, _ := f.Estimate()

	for _, z := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.Equal(t, before, f.Process(z, 1))
	}
	after, afterVar, _ := f.Estimate()
	assert.Equal(t, before, after)
	assert.Equal(t, beforeVar, afterVar)
}

func TestNew_ProcessNoiseDefaults(t *testing.T) {
	assert.Equal(t, DefaultProcessNoise, New(-1).ProcessNoise())
	assert.Equal(t, DefaultProcessNoise, New(math.NaN()).ProcessNoise())
	assert.Equal(t, 0.0, New(0).ProcessNoise())
	assert.Equal(t, 2.5, New(2.5).ProcessNoise())
}

func TestReset(t *testing.T) {
	f := New(0.1)
	f.Process(7, 1)
	f.Reset()
	assert.False(t, f.Initialized())
	assert.Equal(t, 9.0, f.Process(9, 1))
}
