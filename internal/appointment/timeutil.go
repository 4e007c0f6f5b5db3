package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	MinutesPerDay   = 24 * 60
	maxHourOfDay    = 23
	maxMinuteOfHour = 59
)

// HHMMToMinutes converts "H:MM" or "HH:MM" to minutes since midnight.
func HHMMToMinutes(hhmm string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 || !allDigits(h) || !allDigits(m) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > maxHourOfDay {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > maxMinuteOfHour {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	return hours*60 + minutes, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MinutesToHHMM formats minutes since midnight as zero-padded "HH:MM".
// It is the inverse of HHMMToMinutes for 0 <= mins < 1440.
func MinutesToHHMM(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// CeilToBlock returns the smallest multiple of block that is >= mins.
func CeilToBlock(mins, block int) int {
	if block <= 0 {
		return mins
	}
	if rem := mins % block; rem != 0 {
		return mins + block - rem
	}
	return mins
}

// ParseDay parses a YYYY-MM-DD date as midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// DayOf truncates t to midnight of its calendar day in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// AtMinutes returns the instant mins minutes after midnight of day.
func AtMinutes(day time.Time, mins int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, day.Location())
}

// MinuteOfDay returns the minutes elapsed since midnight for t in its own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// DateKey maps a calendar day to a stable integer (yyyymmdd). It keys the
// per-day booking lock.
func DateKey(day time.Time) int64 {
	return int64(day.Year())*10000 + int64(day.Month())*100 + int64(day.Day())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
