package nutrition

import "time"

// DayBounds returns the half-open interval [start, end) of the calendar day
// containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// NeedsReset reports whether a target last written at updatedAt is stale at now.
// A timestamp on any other day, earlier or later, counts as stale.
func NeedsReset(updatedAt, now time.Time, loc *time.Location) bool {
	return !SameDay(updatedAt, now, loc)
}
