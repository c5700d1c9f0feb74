package serialmux

import "strings"

const (
	EventTypeFix     = "fix"
	EventTypeStatus  = "status"
	EventTypeNMEA    = "nmea"
	EventTypeUnknown = "unknown"
)

// ClassifyPayload returns a coarse event type for a receiver line. It only
// looks at the shape of the line; DecodeFixes does the real parsing.
func ClassifyPayload(payload string) string {
	p := strings.TrimSpace(payload)
	switch {
	case strings.HasPrefix(p, "$"):
		return EventTypeNMEA
	case strings.HasPrefix(p, "{") && strings.Contains(p, `"lat"`) && strings.Contains(p, `"lon"`):
		return EventTypeFix
	case strings.HasPrefix(p, "{"):
		return EventTypeStatus
	}
	return EventTypeUnknown
}
