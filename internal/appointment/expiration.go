package appointment

import "time"

// ExpirationPolicy decides when a new PENDING appointment stops holding its slot.
type ExpirationPolicy struct {
	Location     *time.Location
	HoldWeekdays []time.Weekday
	WeekdayTTL   time.Duration
	ReopenMinute int
}

// Compute returns the expiry for a hold created at now. On a hold weekday the
// expiry is pinned to ReopenMinute of the first day outside HoldWeekdays that
// falls strictly after now plus WeekdayTTL; otherwise it is now plus
// WeekdayTTL. A hold weekday therefore never expires earlier than a weekday
// hold created at the same clock time.
func (p ExpirationPolicy) Compute(now time.Time) time.Time {
	return p.ComputeWithTTL(now, 0)
}

// ComputeWithTTL is Compute with ttl replacing WeekdayTTL when positive.
func (p ExpirationPolicy) ComputeWithTTL(now time.Time, ttl time.Duration) time.Time {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	if ttl <= 0 {
		ttl = p.WeekdayTTL
	}
	flat := local.Add(ttl)
	if !containsWeekday(p.HoldWeekdays, local.Weekday()) {
		return flat
	}

	day := DayOf(local, loc)
	for i := 0; i < 366; i++ {
		day = day.AddDate(0, 0, 1)
		if containsWeekday(p.HoldWeekdays, day.Weekday()) {
			continue
		}
		if pinned := AtMinutes(day, p.ReopenMinute); pinned.After(flat) {
			return pinned
		}
	}
	return flat
}
