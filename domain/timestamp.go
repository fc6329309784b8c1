package domain

import (
	"strings"
	"time"
)

// DisplayLayout renders deadlines for people, in the list and in reminders.
const DisplayLayout = "02.01.2006, 15:04"

// deadlineLayouts are tried in order. Zone-less layouts are interpreted in
// the caller's location; datetime-local form inputs omit seconds.
var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// MinDeadline is the earliest instant an Edm.DateTime column holds.
var MinDeadline = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

// Timestamp is the seconds/nanoseconds pair the task list exposes for
// deadlines.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

// TimestampOf converts t into its wire representation.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())}
}

// Time returns the instant in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanoseconds)).UTC()
}

// ParseDeadline reads a date-time string as submitted by the task form or an
// API client. Inputs without a zone offset are read in loc. The result is UTC.
// Instants before MinDeadline are rejected like unparseable input.
func ParseDeadline(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDeadline
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range deadlineLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if t.Before(MinDeadline) {
			return time.Time{}, ErrInvalidDeadline
		}
		return t.UTC(), nil
	}
	return time.Time{}, ErrInvalidDeadline
}

// FormatDeadline renders t with DisplayLayout in loc.
func FormatDeadline(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DisplayLayout)
}
