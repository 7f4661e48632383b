// Package streak computes consecutive-day study streaks and maps them to
// rank labels. All dates are YYYY-MM-DD strings already normalized to one
// civil timezone.
package streak

import "time"

// DateLayout is the calendar date format used throughout the service.
const DateLayout = "2006-01-02"

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(DateLayout)
}

// AddDays shifts a calendar date by n days. Invalid input is returned unchanged.
func AddDays(date string, n int) string {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, n).Format(DateLayout)
}

// Window returns the n calendar dates ending at today inclusive, oldest first.
func Window(today string, n int) []string {
	if n <= 0 {
		return nil
	}
	days := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		days = append(days, AddDays(today, -i))
	}
	return days
}

// Calc counts consecutive days present in dates, walking backward from
// today. It returns 0 when today itself is absent.
func Calc(dates []string, today string) int {
	d, err := time.Parse(DateLayout, today)
	if err != nil {
		return 0
	}

	set := make(map[string]struct{}, len(dates))
	for _, s := range dates {
		set[s] = struct{}{}
	}

	n := 0
	for {
		if _, ok := set[d.Format(DateLayout)]; !ok {
			return n
		}
		n++
		d = d.AddDate(0, 0, -1)
	}
}
