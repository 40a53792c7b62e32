// Package system provides the wall clock used to pick menu dates.
package system

import "time"

// Clock implements menu.Clock in a fixed zone. Menu dates are derived from
// it, so the zone should be the campus zone.
type Clock struct {
	loc *time.Location
}

// New returns a Clock in loc; nil means UTC.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's zone.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}
