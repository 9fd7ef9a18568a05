package activity

import (
	"sort"
	"strconv"
	"strings"
)

// ParseTimeToMinutes converts an "H:MM AM/PM" label into minutes since
// midnight. 12 AM is hour 0 and 12 PM stays hour 12. Malformed input yields 0.
func ParseTimeToMinutes(s string) int {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0
	}
	clock, period := fields[0], strings.ToUpper(fields[1])
	if period != "AM" && period != "PM" {
		return 0
	}

	hh, mm, ok := strings.Cut(clock, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 {
		return 0
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 {
		return 0
	}

	switch {
	case period == "PM" && hours != 12:
		hours += 12
	case period == "AM" && hours == 12:
		hours = 0
	}
	return hours*60 + minutes
}

// DurationMinutes returns end minus start in minutes, clamped at zero.
// A stop before its start (or a span across midnight) counts as 0.
func DurationMinutes(start, end string) int {
	return max(0, ParseTimeToMinutes(end)-ParseTimeToMinutes(start))
}

// SortByTime returns a copy of events stably ordered by time of day.
// Unknown times sort as minute 0.
func SortByTime(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Minutes() < out[j].Minutes()
	})
	return out
}
