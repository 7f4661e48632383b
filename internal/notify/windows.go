// Package notify plans daily reminder times and dispatches the ones that
// come due.
package notify

import (
	"fmt"
	"time"
)

// Window is a daily clock-time range, in minutes after local midnight,
// from Start inclusive to End exclusive.
type Window struct {
	Label string
	Start int
	End   int
}

var (
	WeekdayWindows = []Window{
		{"wk_16_30_17_30", 16*60 + 30, 17*60 + 30},
		{"wk_19_20", 19 * 60, 20 * 60},
		{"wk_21_22", 21 * 60, 22 * 60},
	}
	OffDayWindows = []Window{
		{"we_09_10", 9 * 60, 10 * 60},
		{"we_13_14", 13 * 60, 14 * 60},
		{"we_19_20", 19 * 60, 20 * 60},
	}
)

// WindowsFor returns the windows for a weekday or for a weekend/holiday.
func WindowsFor(offDay bool) []Window {
	if offDay {
		return OffDayWindows
	}
	return WeekdayWindows
}

// IsWeekend reports whether date (YYYY-MM-DD) is a Saturday or Sunday.
func IsWeekend(date string) (bool, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false, fmt.Errorf("parsing date %q: %w", date, err)
	}
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday, nil
}

// At returns the instant minute minutes after midnight of date in loc.
func At(date string, minute int, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", date, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), minute/60, minute%60, 0, 0, loc), nil
}
