package geo

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	// Sydney Opera House to the Harbour Bridge, roughly 650 m
	d := Haversine(
		Coordinate{Latitude: -33.8568, Longitude: 151.2153},
		Coordinate{Latitude: -33.8523, Longitude: 151.2108},
	)
	assert.InDelta(t, 650, d, 100)

	assert.Equal(t, 0.0, Haversine(Coordinate{10, 20}, Coordinate{10, 20}))

	// one degree of latitude along a meridian
	assert.InDelta(t, 111195, Haversine(Coordinate{0, 0}, Coordinate{1, 0}), 1)

	// across the antimeridian the distance stays short
	across := Haversine(Coordinate{0, 179.5}, Coordinate{0, -179.5})
	assert.InDelta(t, 111195, across, 1)
}

func TestPathLength(t *testing.T) {
	path := []Coordinate{{0, 0}, {1, 0}, {2, 0}}
	assert.InDelta(t, 2*111195, PathLength(path), 2)
	assert.Equal(t, 0.0, PathLength(nil))
	assert.Equal(t, 0.0, PathLength(path[:1]))
}

func TestNormalizeLongitude(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		179:  179,
		180:  -180,
		-180: -180,
		181:  -179,
		-181: 179,
		540:  -180,
		-725: -5,
	}
	for in, want := range cases {
		assert.InDelta(t, want, NormalizeLongitude(in), 1e-9, "in=%v", in)
	}
}

func TestComputeRegion_Empty(t *testing.T) {
	r := ComputeRegion(nil, Span{}, 1.2)
	assert.Equal(t, Coordinate{}, r.Center)
	assert.Greater(t, r.Span.LatitudeDelta, 0.0)
	assert.Greater(t, r.Span.LongitudeDelta, 0.0)

	r = ComputeRegion([]Coordinate{}, Span{LatitudeDelta: 0.5, LongitudeDelta: 0.25}, 1)
	assert.Equal(t, Span{LatitudeDelta: 0.5, LongitudeDelta: 0.25}, r.Span)
}

func TestComputeRegion_Simple(t *testing.T) {
	coords := []Coordinate{{10, 20}, {12, 24}, {11, 22}}
	r := ComputeRegion(coords, Span{LatitudeDelta: 0.01, LongitudeDelta: 0.01}, 1)

	assert.InDelta(t, 11, r.Center.Latitude, 1e-9)
	assert.InDelta(t, 22, r.Center.Longitude, 1e-9)
	assert.InDelta(t, 2, r.Span.LatitudeDelta, 1e-9)
	assert.InDelta(t, 4, r.Span.LongitudeDelta, 1e-9)
}

func TestComputeRegion_Padding(t *testing.T) {
	coords := []Coordinate{{10, 20}, {12, 24}}
	r := ComputeRegion(coords, Span{LatitudeDelta: 0.01, LongitudeDelta: 0.01}, 1.5)
	assert.InDelta(t, 3, r.Span.LatitudeDelta, 1e-9)
	assert.InDelta(t, 6, r.Span.LongitudeDelta, 1e-9)
}

func TestComputeRegion_MinimumSpanForSinglePoint(t *testing.T) {
	r := ComputeRegion([]Coordinate{{45, 90}}, Span{LatitudeDelta: 0.02, LongitudeDelta: 0.03}, 1.2)
	assert.Equal(t, Coordinate{45, 90}, r.Center)
	assert.Equal(t, 0.02, r.Span.LatitudeDelta)
	assert.Equal(t, 0.03, r.Span.LongitudeDelta)
}

func TestComputeRegion_Antimeridian(t *testing.T) {
	coords := []Coordinate{{-16.5, 179.0}, {-17.0, -179.0}}
	r := ComputeRegion(coords, Span{LatitudeDelta: 0.01, LongitudeDelta: 0.01}, 1)

	assert.Less(t, r.Span.LongitudeDelta, 10.0)
	assert.InDelta(t, 2, r.Span.LongitudeDelta, 1e-9)
	assert.InDelta(t, 180, math.Abs(r.Center.Longitude), 1e-9)
}

func TestComputeRegion_AntimeridianManyPoints(t *testing.T) {
	coords := []Coordinate{{0, 178}, {0, 179.5}, {0, -179.5}, {0, -177}}
	r := ComputeRegion(coords, Span{}, 1)
	assert.InDelta(t, 5, r.Span.LongitudeDelta, 1e-9)
	assert.InDelta(t, 180.5, r.Center.Longitude+360, 1e-9)
}

func TestComputeRegion_SkipsInvalid(t *testing.T) {
	coords := []Coordinate{{10, 20}, {math.NaN(), 0}, {95, 0}, {12, 24}}
	r := ComputeRegion(coords, Span{}, 1)
	assert.InDelta(t, 11, r.Center.Latitude, 1e-9)
}

func TestComputeRegion_ClampsToGlobe(t *testing.T) {
	coords := []Coordinate{{-80, -170}, {80, -50}, {0, 70}}
	r := ComputeRegion(coords, Span{}, 3)
	assert.LessOrEqual(t, r.Span.LatitudeDelta, 180.0)
	assert.LessOrEqual(t, r.Span.LongitudeDelta, 360.0)
}

func TestSplitAntimeridian_SingleCrossing(t *testing.T) {
	path := []Coordinate{{0, 178}, {0, 179}, {0, -179}}
	segments := SplitAntimeridian(path)

	require.Len(t, segments, 2)
	for i, seg := range segments {
		assert.GreaterOrEqual(t, len(seg), 2, "segment %d", i)
	}

	want := [][]Coordinate{
		{{0, 178}, {0, 179}, {0, 180}},
		{{0, -180}, {0, -179}},
	}
	if diff := cmp.Diff(want, segments, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitAntimeridian_InterpolatesLatitude(t *testing.T) {
	path := []Coordinate{{10, 179}, {12, -179}}
	segments := SplitAntimeridian(path)
	require.Len(t, segments, 2)
	assert.InDelta(t, 11, segments[0][1].Latitude, 1e-9)
	assert.InDelta(t, 11, segments[1][0].Latitude, 1e-9)
	assert.Equal(t, 180.0, segments[0][1].Longitude)
	assert.Equal(t, -180.0, segments[1][0].Longitude)
}

func TestSplitAntimeridian_Westbound(t *testing.T) {
	path := []Coordinate{{0, -178}, {0, -179.5}, {0, 179.5}, {0, 178}}
	segments := SplitAntimeridian(path)
	require.Len(t, segments, 2)
	assert.Equal(t, -180.0, segments[0][len(segments[0])-1].Longitude)
	assert.Equal(t, 180.0, segments[1][0].Longitude)
	assert.Len(t, segments[1], 3)
}

func TestSplitAntimeridian_EndpointOnAntimeridian(t *testing.T) {
	tests := []struct {
		name string
		path []Coordinate
		want [][]Coordinate
	}{
		{
			"starts on +180",
			[]Coordinate{{0, 180}, {0, -179}, {0, -178}},
			[][]Coordinate{{{0, -180}, {0, -179}, {0, -178}}},
		},
		{
			"ends on -180",
			[]Coordinate{{0, 178}, {0, 179}, {0, -180}},
			[][]Coordinate{{{0, 178}, {0, 179}, {0, 180}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitAntimeridian(tt.path)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("segments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitAntimeridian_NoCrossing(t *testing.T) {
	path := []Coordinate{{0, 10}, {1, 11}, {2, 12}}
	segments := SplitAntimeridian(path)
	require.Len(t, segments, 1)
	assert.Equal(t, path, segments[0])
}

func TestSplitAntimeridian_MultipleCrossings(t *testing.T) {
	path := []Coordinate{{0, 179}, {0, -179}, {0, 179}, {0, -179}}
	segments := SplitAntimeridian(path)
	assert.Len(t, segments, 4)
}

func TestSplitAntimeridian_Empty(t *testing.T) {
	assert.Empty(t, SplitAntimeridian(nil))
	assert.Len(t, SplitAntimeridian([]Coordinate{{1, 1}}), 1)
}
