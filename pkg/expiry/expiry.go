// Package expiry decides whether a previously stored media object can be
// reused instead of being fetched again.
package expiry

import "time"

// DefaultDays is the retention threshold used when none is configured.
const DefaultDays = 90

const day = 24 * time.Hour

// Policy is a retention threshold expressed in days.
type Policy struct {
	Days int
}

// New returns a Policy for days; negative values are clamped to zero.
func New(days int) Policy {
	if days < 0 {
		days = 0
	}
	return Policy{Days: days}
}

// Fresh reports whether an object last modified at modTime is still within
// the retention window at now. A zero modTime means the store could not
// report an age, which always forces a new fetch.
func (p Policy) Fresh(modTime, now time.Time) bool {
	if modTime.IsZero() {
		return false
	}
	return AgeDays(modTime, now) <= float64(p.Days)
}

// AgeDays returns the fractional age in days of an object modified at modTime.
func AgeDays(modTime, now time.Time) float64 {
	return float64(now.Sub(modTime)) / float64(day)
}
