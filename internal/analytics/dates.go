package analytics

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// daysSince is the number of whole days elapsed from t to now, rounded down.
// A zero time counts as zero days.
func daysSince(t, now time.Time) int {
	if t.IsZero() {
		return 0
	}
	return int(math.Floor(float64(now.Sub(t)) / float64(day)))
}

// daysUntil is the number of days from now to t, rounded up
func daysUntil(t, now time.Time) int {
	if t.IsZero() {
		return 0
	}
	return int(math.Ceil(float64(t.Sub(now)) / float64(day)))
}

// monthRange returns the first and last instant of the calendar month that
// is offset months away from now, in now's location
func monthRange(now time.Time, offset int) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// within reports whether t lies in [from, to]
func within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
