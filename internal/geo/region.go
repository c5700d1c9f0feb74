package geo

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultMinSpan is used when ComputeRegion is given a non-positive minimum.
var DefaultMinSpan = Span{LatitudeDelta: 0.005, LongitudeDelta: 0.005}

// Span is the size of a viewport in degrees.
type Span struct {
	LatitudeDelta  float64 `json:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta"`
}

// Region is a viewport: a center and the span around it.
type Region struct {
	Center Coordinate `json:"center"`
	Span   Span       `json:"span"`
}

// ComputeRegion returns the viewport covering coords.
//
// The longitude span is the shortest arc that covers every point, so a path
// hugging the antimeridian yields a narrow region instead of one spanning the
// globe. Both spans are multiplied by paddingScale (values <= 0 mean no
// padding) and are never smaller than minSpan. Invalid coordinates are
// skipped. An empty input gives a region centred on (0,0) with the minimum
// span.
func ComputeRegion(coords []Coordinate, minSpan Span, paddingScale float64) Region {
	if minSpan.LatitudeDelta <= 0 || math.IsNaN(minSpan.LatitudeDelta) {
		minSpan.LatitudeDelta = DefaultMinSpan.LatitudeDelta
	}
	if minSpan.LongitudeDelta <= 0 || math.IsNaN(minSpan.LongitudeDelta) {
		minSpan.LongitudeDelta = DefaultMinSpan.LongitudeDelta
	}
	if paddingScale <= 0 || math.IsNaN(paddingScale) || math.IsInf(paddingScale, 0) {
		paddingScale = 1
	}

	lats := make([]float64, 0, len(coords))
	lons := make([]float64, 0, len(coords))
	for _, c := range coords {
		if !c.Valid() {
			continue
		}
		lats = append(lats, c.Latitude)
		lons = append(lons, NormalizeLongitude(c.Longitude))
	}

	if len(lats) == 0 {
		return Region{
			Center: Coordinate{},
			Span:   clampSpan(minSpan),
		}
	}

	minLat, maxLat := floats.Min(lats), floats.Max(lats)
	startLon, lonSpan := coveringArc(lons)

	span := Span{
		LatitudeDelta:  math.Max((maxLat-minLat)*paddingScale, minSpan.LatitudeDelta),
		LongitudeDelta: math.Max(lonSpan*paddingScale, minSpan.LongitudeDelta),
	}

	return Region{
		Center: Coordinate{
			Latitude:  (minLat + maxLat) / 2,
			Longitude: NormalizeLongitude(startLon + lonSpan/2),
		},
		Span: clampSpan(span),
	}
}

// coveringArc finds the shortest eastward arc containing every longitude.
// It returns the arc's western edge and its width. The arc is the
// complement of the widest gap between neighbouring longitudes on the
// circle.
func coveringArc(lons []float64) (start, width float64) {
	sorted := append([]float64(nil), lons...)
	sort.Float64s(sorted)

	n := len(sorted)
	// gap after the last point, wrapping through the antimeridian
	widestGap := sorted[0] + 360 - sorted[n-1]
	start = sorted[0]
	for i := 1; i < n; i++ {
		if gap := sorted[i] - sorted[i-1]; gap > widestGap {
			widestGap = gap
			start = sorted[i]
		}
	}
	return start, 360 - widestGap
}

func clampSpan(s Span) Span {
	return Span{
		LatitudeDelta:  math.Min(s.LatitudeDelta, 180),
		LongitudeDelta: math.Min(s.LongitudeDelta, 360),
	}
}

// SplitAntimeridian breaks a path into runs that can each be drawn without
// wrapping around the globe. Consecutive points whose longitudes differ by
// more than 180 degrees are treated as crossing the ±180 line; the crossing
// point is interpolated and closes one run and opens the next. A run left
// holding a single point on the ±180 line, as when the path starts or ends
// there, is dropped, so every run of a crossing path holds at least two
// points.
func SplitAntimeridian(coords []Coordinate) [][]Coordinate {
	if len(coords) == 0 {
		return nil
	}

	var segments [][]Coordinate
	current := []Coordinate{coords[0]}

	for i := 1; i < len(coords); i++ {
		prev, cur := coords[i-1], coords[i]
		delta := cur.Longitude - prev.Longitude
		if math.Abs(delta) <= 180 {
			current = append(current, cur)
			continue
		}

		edge := 180.0
		if prev.Longitude < 0 {
			edge = -180
		}
		unwrapped := cur.Longitude + 360
		if delta > 0 {
			unwrapped = cur.Longitude - 360
		}

		t := 0.0
		if d := unwrapped - prev.Longitude; d != 0 {
			t = (edge - prev.Longitude) / d
		}
		lat := prev.Latitude + t*(cur.Latitude-prev.Latitude)

		closing := Coordinate{Latitude: lat, Longitude: edge}
		if closing != prev {
			current = append(current, closing)
		}
		segments = append(segments, current)

		opening := Coordinate{Latitude: lat, Longitude: -edge}
		current = []Coordinate{opening}
		if opening != cur {
			current = append(current, cur)
		}
	}

	segments = append(segments, current)
	if len(segments) == 1 {
		return segments
	}
	runs := segments[:0]
	for _, seg := range segments {
		if len(seg) >= 2 {
			runs = append(runs, seg)
		}
	}
	return runs
}
