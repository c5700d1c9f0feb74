package db

import (
	"fmt"
	"strings"
)

// Sortable fields. Entry fields apply to FetchLocations, session fields to
// ListSessions.
const (
	FieldTimestamp = "timestamp"
	FieldAccuracy  = "accuracy"
	FieldAltitude  = "altitude"
	FieldSpeed     = "speed"
	FieldCourse    = "course"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"

	FieldStartDate = "start_date"
	FieldEndDate   = "end_date"
	FieldNarrative = "narrative"
)

var locationSortColumns = map[string]string{
	FieldTimestamp: "timestamp_unix_nanos",
	FieldAccuracy:  "accuracy",
	FieldAltitude:  "altitude",
	FieldSpeed:     "speed",
	FieldCourse:    "course",
	FieldLatitude:  "latitude",
	FieldLongitude: "longitude",
}

var sessionSortColumns = map[string]string{
	FieldStartDate: "start_unix_nanos",
	FieldEndDate:   "end_unix_nanos",
	FieldNarrative: "narrative",
}

// SortDescriptor orders results by one field.
type SortDescriptor struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// Ascending and Descending build descriptors.
func Ascending(field string) SortDescriptor  { return SortDescriptor{Field: field} }
func Descending(field string) SortDescriptor { return SortDescriptor{Field: field, Descending: true} }

func (s SortDescriptor) String() string {
	if s.Descending {
		return s.Field + ":desc"
	}
	return s.Field + ":asc"
}

// ParseSort parses "timestamp:desc,speed" into descriptors. A field with no
// direction sorts ascending. Field names are not checked here.
func ParseSort(s string) ([]SortDescriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []SortDescriptor
	for _, part := range strings.Split(s, ",") {
		field, dir, _ := strings.Cut(strings.TrimSpace(part), ":")
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			return nil, fmt.Errorf("%w: empty field in %q", ErrInvalidSort, s)
		}
		d := SortDescriptor{Field: field}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			d.Descending = true
		default:
			return nil, fmt.Errorf("%w: direction %q", ErrInvalidSort, dir)
		}
		out = append(out, d)
	}
	return out, nil
}

// orderBy renders descriptors as an ORDER BY clause over the given column
// whitelist, ending with rowid so equal keys still come back in a stable
// order. def is used when sorts is empty.
func orderBy(sorts []SortDescriptor, columns map[string]string, def SortDescriptor) (string, error) {
	if len(sorts) == 0 {
		sorts = []SortDescriptor{def}
	}
	terms := make([]string, 0, len(sorts)+1)
	for _, s := range sorts {
		col, ok := columns[s.Field]
		if !ok {
			return "", fmt.Errorf("%w: unknown field %q", ErrInvalidSort, s.Field)
		}
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		terms = append(terms, col+" "+dir)
	}
	terms = append(terms, "rowid ASC")
	return "ORDER BY " + strings.Join(terms, ", "), nil
}
