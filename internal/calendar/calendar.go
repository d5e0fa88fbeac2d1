// Package calendar breaks an epoch-seconds timestamp into the fields of the
// time dimension.
package calendar

import "time"

// Fields is the calendar breakdown of one instant.
type Fields struct {
	Hour    int32
	Day     int32
	Week    int32 // ISO-8601 week of year
	Month   int32
	Year    int32
	Weekday string // full English day name, e.g. "Friday"
}

// Derive interprets sec as seconds since the Unix epoch in loc. A nil loc
// means UTC.
func Derive(sec int64, loc *time.Location) Fields {
	if loc == nil {
		loc = time.UTC
	}
	t := time.Unix(sec, 0).In(loc)
	_, week := t.ISOWeek()
	return Fields{
		Hour:    int32(t.Hour()),
		Day:     int32(t.Day()),
		Week:    int32(week),
		Month:   int32(t.Month()),
		Year:    int32(t.Year()),
		Weekday: t.Weekday().String(),
	}
}

// EpochSeconds converts epoch milliseconds to whole seconds, rounding toward
// negative infinity so that pre-1970 instants keep their calendar second.
func EpochSeconds(ms int64) int64 {
	s := ms / 1000
	if ms%1000 < 0 {
		s--
	}
	return s
}

// LoadLocation resolves an IANA zone name; "" and "UTC" mean UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
