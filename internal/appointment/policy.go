package appointment

import "time"

const (
	DefaultBlockMinutes   = 15
	DefaultLookAheadDays  = 7
	DefaultWeekdayHoldTTL = 24 * time.Hour
	DefaultReopenMinute   = 11 * 60
	DefaultTimezone       = "America/Lima"
)

// Policy carries the business calendar settings shared by the planner, the
// booking transaction and the expiration policy.
type Policy struct {
	Location      *time.Location
	BlockMinutes  int
	LookAheadDays int
	// ClosedWeekdays are never offered, whatever the work shift table says.
	ClosedWeekdays []time.Weekday
	// HoldWeekdays are the days on which a new PENDING hold is pinned to
	// ReopenMinute of the first later day outside this set that still
	// outlasts WeekdayHoldTTL.
	HoldWeekdays   []time.Weekday
	WeekdayHoldTTL time.Duration
	ReopenMinute   int
}

func DefaultPolicy() Policy {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	return Policy{
		Location:       loc,
		BlockMinutes:   DefaultBlockMinutes,
		LookAheadDays:  DefaultLookAheadDays,
		ClosedWeekdays: []time.Weekday{time.Sunday},
		HoldWeekdays:   []time.Weekday{time.Saturday, time.Sunday},
		WeekdayHoldTTL: DefaultWeekdayHoldTTL,
		ReopenMinute:   DefaultReopenMinute,
	}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p Policy) isClosedWeekday(d time.Weekday) bool {
	return containsWeekday(p.ClosedWeekdays, d)
}

func (p Policy) Expiration() ExpirationPolicy {
	return ExpirationPolicy{
		Location:     p.location(),
		HoldWeekdays: p.HoldWeekdays,
		WeekdayTTL:   p.WeekdayHoldTTL,
		ReopenMinute: p.ReopenMinute,
	}
}

func containsWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, w := range days {
		if w == d {
			return true
		}
	}
	return false
}
