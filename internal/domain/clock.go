package domain

import (
	"fmt"
	"time"
	_ "time/tzdata" // hosts without a zoneinfo database still resolve America/Sao_Paulo

	"github.com/jonboulle/clockwork"
)

// OperationalTimezone is the zone every upstream timestamp is written in.
const OperationalTimezone = "America/Sao_Paulo"

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic output.
var clock = clockwork.NewRealClock()

// location is the zone upstream timestamps are written in. It never changes;
// the operational calendar can use another zone through OperationalDays.
var location = mustLoadLocation(OperationalTimezone)

// SetClock swaps the time source for freshness and "today" computations.
// Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current instant from the package clock.
func Now() time.Time {
	return clock.Now()
}

// Location returns the zone upstream timestamps are parsed in.
func Location() *time.Location {
	return location
}

// LoadLocation resolves a timezone name.
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// mustLoadLocation falls back to the fixed UTC-3 offset the upstream data
// has used since Brazil dropped daylight saving.
func mustLoadLocation(name string) *time.Location {
	loc, err := LoadLocation(name)
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// OperationalDays returns today's and yesterday's calendar dates
// (YYYY-MM-DD) as seen in loc at instant now.
func OperationalDays(now time.Time, loc *time.Location) (today, yesterday string) {
	if loc == nil {
		loc = location
	}
	local := now.In(loc)
	return local.Format(DateLayout), local.AddDate(0, 0, -1).Format(DateLayout)
}
