// Package units converts stored SI values (metres, metres per second) into
// the units a client asked for.
package units

import "strings"

// Speed units. Each one also implies a distance unit: mph reports miles,
// the metric units report kilometres.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

var ValidUnits = []string{MPS, MPH, KMPH, KPH}

const (
	metersPerMile = 1609.344
	mpsToMPH      = 3600 / metersPerMile
	mpsToKMPH     = 3.6
)

// IsValid reports whether unit is one of ValidUnits.
func IsValid(unit string) bool {
	for _, u := range ValidUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// GetValidUnitsString lists ValidUnits for error messages.
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts metres per second to unit. Unknown units are left
// in metres per second.
func ConvertSpeed(speedMPS float64, unit string) float64 {
	switch unit {
	case MPH:
		return speedMPS * mpsToMPH
	case KMPH, KPH:
		return speedMPS * mpsToKMPH
	default:
		return speedMPS
	}
}

// ConvertDistance converts metres to the distance unit implied by unit:
// miles for mph, kilometres for kmph and kph, metres otherwise.
func ConvertDistance(meters float64, unit string) float64 {
	switch unit {
	case MPH:
		return meters / metersPerMile
	case KMPH, KPH:
		return meters / 1000
	default:
		return meters
	}
}

// DistanceLabel names the distance unit ConvertDistance produces.
func DistanceLabel(unit string) string {
	switch unit {
	case MPH:
		return "mi"
	case KMPH, KPH:
		return "km"
	default:
		return "m"
	}
}
