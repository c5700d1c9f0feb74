// Package geo contains the small amount of spherical geometry the tracker
// needs: great-circle distance, bounding viewports that respect the
// antimeridian, and splitting paths that cross it.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for distance calculations.
const EarthRadiusMeters = 6371000.0

// MetersPerDegreeLatitude is the approximate length of one degree of
// latitude.
const MetersPerDegreeLatitude = 111320.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether c is finite and inside [-90,90] x [-180,180].
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Haversine returns the great-circle distance between a and b in metres.
func Haversine(a, b Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h slightly past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// PathLength sums the great-circle distance along coords.
func PathLength(coords []Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(coords); i++ {
		total += Haversine(coords[i-1], coords[i])
	}
	return total
}

// MetersPerDegreeLongitude returns the length of one degree of longitude at
// the given latitude. It never returns less than one metre so that callers
// dividing by it near the poles stay finite.
func MetersPerDegreeLongitude(latitude float64) float64 {
	m := MetersPerDegreeLatitude * math.Cos(latitude*math.Pi/180)
	if m < 1 {
		return 1
	}
	return m
}

// NormalizeLongitude wraps lon into [-180, 180).
func NormalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
