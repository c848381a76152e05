package discovery

import (
	"fmt"
	"time"
)

// Interval is the favorites window of a top list.
type Interval string

const (
	Day   Interval = "day"
	Week  Interval = "week"
	Month Interval = "month"
	Year  Interval = "year"
	Total Interval = "total"
)

// Intervals in display order.
var Intervals = []Interval{Day, Week, Month, Year, Total}

var intervalDays = map[Interval]int{Day: 1, Week: 7, Month: 30, Year: 365, Total: 0}

func ParseInterval(s string) (Interval, error) {
	i := Interval(s)
	if _, ok := intervalDays[i]; !ok {
		return "", fmt.Errorf("unknown interval %q", s)
	}
	return i, nil
}

// Since returns the window start relative to now, or the zero time for
// Total.
func (i Interval) Since(now time.Time) time.Time {
	days := intervalDays[i]
	if days == 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -days)
}
