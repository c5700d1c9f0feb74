package gps

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrNotFix is returned by ParseFixLine for lines that are not JSON objects,
// such as command echoes or banners from the receiver.
var ErrNotFix = errors.New("line is not a fix")

// fixLine is the JSON object the receiver emits once per fix. Optional
// fields are pointers so a missing value can be told apart from zero.
type fixLine struct {
	Lat    *float64        `json:"lat"`
	Lon    *float64        `json:"lon"`
	Alt    *float64        `json:"alt"`
	HAcc   *float64        `json:"hacc"`
	VAcc   *float64        `json:"vacc"`
	Course *float64        `json:"course"`
	Speed  *float64        `json:"speed"`
	Time   json.RawMessage `json:"time"`
}

// ParseFixLine decodes one line of receiver output:
//
//	{"lat":-33.86,"lon":151.21,"alt":12.5,"hacc":4.8,"vacc":6,"course":90,"speed":1.4,"time":"2024-05-01T10:00:00Z"}
//
// lat, lon and time are required. time may be an RFC 3339 string or Unix
// seconds as a number. A missing speed or course is reported as -1
// (unknown); a missing accuracy is reported as -1 and fails Validate.
// The returned fix is not validated.
func ParseFixLine(line string) (Fix, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return Fix{}, ErrNotFix
	}

	var raw fixLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Fix{}, fmt.Errorf("failed to decode fix: %w", err)
	}
	if raw.Lat == nil || raw.Lon == nil {
		return Fix{}, fmt.Errorf("%w: missing lat/lon", ErrNotFix)
	}

	ts, err := parseFixTime(raw.Time)
	if err != nil {
		return Fix{}, err
	}

	return Fix{
		Latitude:           *raw.Lat,
		Longitude:          *raw.Lon,
		Altitude:           valueOr(raw.Alt, 0),
		HorizontalAccuracy: valueOr(raw.HAcc, -1),
		VerticalAccuracy:   valueOr(raw.VAcc, -1),
		Course:             valueOr(raw.Course, -1),
		Speed:              valueOr(raw.Speed, -1),
		Timestamp:          ts,
	}, nil
}

func parseFixTime(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, ErrMissingTime
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid fix time %q: %w", s, err)
		}
		return t.UTC(), nil
	}

	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return time.Time{}, fmt.Errorf("invalid fix time %s: %w", raw, err)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
