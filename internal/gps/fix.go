// Package gps defines the raw positional fix delivered by the positioning
// sensor and the checks applied to it before it reaches the filters or the
// store.
package gps

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ericbrian/track-me-sub001/internal/geo"
)

var (
	ErrNonFinite       = errors.New("fix contains a non-finite value")
	ErrCoordinateRange = errors.New("fix coordinate out of range")
	ErrAccuracyRange   = errors.New("fix horizontal accuracy is negative")
	ErrMissingTime     = errors.New("fix has no timestamp")
	ErrTimeRange       = errors.New("fix timestamp out of range")
)

// Timestamps are stored as Unix nanoseconds, so a fix must fall inside the
// int64 range of those.
var (
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// Fix is one raw reading from the positioning sensor. Units are degrees,
// metres, metres per second and degrees clockwise from true north.
//
// A negative Speed or Course means the sensor could not determine it.
type Fix struct {
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Altitude           float64   `json:"altitude"`
	HorizontalAccuracy float64   `json:"horizontal_accuracy"`
	VerticalAccuracy   float64   `json:"vertical_accuracy"`
	Course             float64   `json:"course"`
	Speed              float64   `json:"speed"`
	Timestamp          time.Time `json:"timestamp"`
}

// Coordinate returns the fix's position.
func (f Fix) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: f.Latitude, Longitude: f.Longitude}
}

// Validate checks that every numeric field is finite, the coordinate is on
// the globe, horizontal accuracy is non-negative, and the timestamp lies
// between MinTimestamp and MaxTimestamp. Speed and course are
// not range checked here; ClampSpeed and ClampCourse handle them.
func (f Fix) Validate() error {
	for name, v := range map[string]float64{
		"latitude":            f.Latitude,
		"longitude":           f.Longitude,
		"altitude":            f.Altitude,
		"horizontal_accuracy": f.HorizontalAccuracy,
		"vertical_accuracy":   f.VerticalAccuracy,
		"course":              f.Course,
		"speed":               f.Speed,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrNonFinite, name, v)
		}
	}
	if !f.Coordinate().Valid() {
		return fmt.Errorf("%w: (%v, %v)", ErrCoordinateRange, f.Latitude, f.Longitude)
	}
	if f.HorizontalAccuracy < 0 {
		return fmt.Errorf("%w: %v", ErrAccuracyRange, f.HorizontalAccuracy)
	}
	if f.Timestamp.IsZero() {
		return ErrMissingTime
	}
	if f.Timestamp.Before(MinTimestamp) || f.Timestamp.After(MaxTimestamp) {
		return fmt.Errorf("%w: %s", ErrTimeRange, f.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// ClampSpeed maps negative or non-finite speeds to zero.
func ClampSpeed(speed float64) float64 {
	if speed < 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return 0
	}
	return speed
}

// ClampCourse maps negative or non-finite courses to zero and wraps values
// past a full turn back into [0, 360).
func ClampCourse(course float64) float64 {
	if course < 0 || math.IsNaN(course) || math.IsInf(course, 0) {
		return 0
	}
	if course >= 360 {
		return math.Mod(course, 360)
	}
	return course
}
