package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/hackgods/grooming-scheduler/internal/appointment"
	"github.com/hackgods/grooming-scheduler/internal/catalog"
)

// Scheduling is the business calendar as written in the policy file.
//
//	timezone = "America/Lima"
//	block_minutes = 15
//	look_ahead_days = 7
//	closed_weekdays = ["sunday"]
//	hold_weekdays = ["saturday", "sunday"]
//	weekday_hold_ttl = "24h"
//	reopen_time = "11:00"
type Scheduling struct {
	Timezone       string   `toml:"timezone"`
	BlockMinutes   int      `toml:"block_minutes"`
	LookAheadDays  int      `toml:"look_ahead_days"`
	ClosedWeekdays []string `toml:"closed_weekdays"`
	HoldWeekdays   []string `toml:"hold_weekdays"`
	WeekdayHoldTTL string   `toml:"weekday_hold_ttl"`
	ReopenTime     string   `toml:"reopen_time"`
}

func DefaultScheduling() Scheduling {
	return Scheduling{
		Timezone:       appointment.DefaultTimezone,
		BlockMinutes:   appointment.DefaultBlockMinutes,
		LookAheadDays:  appointment.DefaultLookAheadDays,
		ClosedWeekdays: []string{"sunday"},
		HoldWeekdays:   []string{"saturday", "sunday"},
		WeekdayHoldTTL: appointment.DefaultWeekdayHoldTTL.String(),
		ReopenTime:     appointment.MinutesToHHMM(appointment.DefaultReopenMinute),
	}
}

// LoadScheduling reads path over the defaults. Keys missing from the file
// keep their default value. An empty path returns the defaults.
func LoadScheduling(path string) (Scheduling, error) {
	s := DefaultScheduling()
	if path == "" {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Scheduling{}, fmt.Errorf("read scheduling policy %s: %w", path, err)
	}
	if _, err := s.Policy(); err != nil {
		return Scheduling{}, fmt.Errorf("scheduling policy %s: %w", path, err)
	}
	return s, nil
}

func (s Scheduling) Policy() (appointment.Policy, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return appointment.Policy{}, fmt.Errorf("timezone: %w", err)
	}
	if s.BlockMinutes <= 0 {
		return appointment.Policy{}, fmt.Errorf("block_minutes must be positive, got %d", s.BlockMinutes)
	}
	if s.LookAheadDays < 0 {
		return appointment.Policy{}, fmt.Errorf("look_ahead_days must be >= 0, got %d", s.LookAheadDays)
	}
	ttl, err := time.ParseDuration(s.WeekdayHoldTTL)
	if err != nil || ttl <= 0 {
		return appointment.Policy{}, fmt.Errorf("weekday_hold_ttl: invalid duration %q", s.WeekdayHoldTTL)
	}
	reopen, err := appointment.HHMMToMinutes(s.ReopenTime)
	if err != nil {
		return appointment.Policy{}, fmt.Errorf("reopen_time: %w", err)
	}
	closed, err := weekdays(s.ClosedWeekdays)
	if err != nil {
		return appointment.Policy{}, fmt.Errorf("closed_weekdays: %w", err)
	}
	hold, err := weekdays(s.HoldWeekdays)
	if err != nil {
		return appointment.Policy{}, fmt.Errorf("hold_weekdays: %w", err)
	}
	if len(hold) == 7 {
		return appointment.Policy{}, fmt.Errorf("hold_weekdays cannot cover the whole week")
	}

	return appointment.Policy{
		Location:       loc,
		BlockMinutes:   s.BlockMinutes,
		LookAheadDays:  s.LookAheadDays,
		ClosedWeekdays: closed,
		HoldWeekdays:   hold,
		WeekdayHoldTTL: ttl,
		ReopenMinute:   reopen,
	}, nil
}

func weekdays(names []string) ([]time.Weekday, error) {
	seen := make(map[time.Weekday]bool, len(names))
	out := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		d, err := catalog.ParseWeekday(n)
		if err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}
