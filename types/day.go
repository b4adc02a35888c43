// Package types defines core domain types for the gatekeeper validation engine.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"time"
)

// DayFormat is the canonical date layout used everywhere a processing date
// appears: partition keys, lock keys, ledger rows, log fields.
const DayFormat = "2006-01-02"

// FormatDay renders a processing date as YYYY-MM-DD in UTC.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// ParseDay parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Midnight truncates t to UTC midnight. Processing dates are compared at day
// granularity; normalizing first avoids off-by-one surprises around DST and
// sub-day timestamps.
func Midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaySequence returns every calendar day in [start, end] inclusive,
// normalized to UTC midnight. Returns nil when end precedes start.
func DaySequence(start, end time.Time) []time.Time {
	start, end = Midnight(start), Midnight(end)
	if end.Before(start) {
		return nil
	}
	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DaysSince returns the number of whole days from start to t at day
// granularity. Negative when t precedes start.
func DaysSince(start, t time.Time) int {
	return int(Midnight(t).Sub(Midnight(start)).Hours() / 24)
}
