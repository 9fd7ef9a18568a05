package activity

import "time"

// MonthWindow returns the first and last dates of a calendar month.
func MonthWindow(year, month int) (start, end string) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(DateLayout), last.Format(DateLayout)
}

// TrailingWindow returns the inclusive window of days ending at end.
// A window of 7 days ending 2025-06-10 starts 2025-06-04.
func TrailingWindow(end time.Time, days int) (start, stop string) {
	if days < 1 {
		days = 1
	}
	return end.AddDate(0, 0, -(days - 1)).Format(DateLayout), end.Format(DateLayout)
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// DatesBetween lists every date in the inclusive window. It returns nil
// when either bound is malformed or start is after end.
func DatesBetween(start, end string) []string {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil || s.After(e) {
		return nil
	}
	var out []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out
}
