package activity

import (
	"strings"
	"time"
)

// Counts tallies toileting or diaper events by subtype.
type Counts struct {
	Wet int `json:"wet"`
	Dry int `json:"dry"`
	BM  int `json:"bm"`
}

// Total returns the sum of all three counters.
func (c Counts) Total() int {
	return c.Wet + c.Dry + c.BM
}

// MealStatus holds the last recorded status of each meal slot.
type MealStatus struct {
	AMSnack string `json:"am_snack"`
	Lunch   string `json:"lunch"`
	PMSnack string `json:"pm_snack"`
}

// DailySummary is the aggregate for one calendar day. It is rebuilt from
// events on demand and never edited.
type DailySummary struct {
	Date            string     `json:"date"`
	FormattedDate   string     `json:"formatted_date"`
	Toiletings      Counts     `json:"toiletings"`
	Diapers         Counts     `json:"diapers"`
	NapMinutes      int        `json:"nap_duration_minutes"`
	Meals           MealStatus `json:"meals"`
	OtherActivities []string   `json:"other_activities"`
	TotalEvents     int        `json:"total_events"`
	Events          []Event    `json:"raw_activities"`
	GeneratedAt     time.Time  `json:"generated_at,omitzero"`
}

// HasData reports whether any events contributed to the summary.
func (s *DailySummary) HasData() bool {
	return s != nil && s.TotalEvents > 0
}

// Summarize folds one day's events into a DailySummary. Events are ordered
// by time first; unknown times sort as midnight.
func Summarize(date string, events []Event) *DailySummary {
	sorted := SortByTime(events)
	return &DailySummary{
		Date:            date,
		FormattedDate:   FormatDate(date),
		Toiletings:      CountBySubtype(sorted, CategoryToileting),
		Diapers:         CountBySubtype(sorted, CategoryDiaper),
		NapMinutes:      NapDuration(sorted),
		Meals:           Meals(sorted),
		OtherActivities: OtherActivities(sorted),
		TotalEvents:     len(sorted),
		Events:          sorted,
	}
}

// CountBySubtype counts events of one category. Each counter is bumped when
// its token appears in the case-folded subtype, so "Wet + BM" counts as both
// wet and bm.
func CountBySubtype(events []Event, category Category) Counts {
	var c Counts
	for _, e := range events {
		if e.Category != category {
			continue
		}
		sub := strings.ToLower(e.Subtype)
		if strings.Contains(sub, "wet") {
			c.Wet++
		}
		if strings.Contains(sub, "dry") {
			c.Dry++
		}
		if strings.Contains(sub, "bm") {
			c.BM++
		}
	}
	return c
}

// NapDuration pairs the day's first Start with its first Stop. Later nap
// sessions are ignored. A missing or unknown end of the pair yields 0.
func NapDuration(events []Event) int {
	var start, stop *Event
	for i := range events {
		e := &events[i]
		if e.Category != CategoryNap {
			continue
		}
		switch {
		case start == nil && strings.EqualFold(e.Subtype, SubtypeStart):
			start = e
		case stop == nil && strings.EqualFold(e.Subtype, SubtypeStop):
			stop = e
		}
	}
	if start == nil || stop == nil || !start.HasKnownTime() || !stop.HasKnownTime() {
		return 0
	}
	return DurationMinutes(start.Time, stop.Time)
}

// Meals returns the status of each meal slot. Later events overwrite earlier
// ones; untouched slots stay "None".
func Meals(events []Event) MealStatus {
	m := MealStatus{AMSnack: SubtypeNone, Lunch: SubtypeNone, PMSnack: SubtypeNone}
	for _, e := range events {
		status := mealStatus(e.Subtype)
		switch e.Category {
		case CategoryAMSnack:
			m.AMSnack = status
		case CategoryLunch:
			m.Lunch = status
		case CategoryPMSnack:
			m.PMSnack = status
		}
	}
	return m
}

// mealStatus title-cases a stored meal subtype ("all" -> "All").
func mealStatus(subtype string) string {
	subtype = strings.TrimSpace(subtype)
	if subtype == "" {
		return SubtypeNone
	}
	return strings.ToUpper(subtype[:1]) + strings.ToLower(subtype[1:])
}

// OtherActivities lists "label: subtype" for Other events (just the label
// when there is no subtype), first occurrence first, exact-string unique.
func OtherActivities(events []Event) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, e := range events {
		if e.Category != CategoryOther {
			continue
		}
		s := e.Label
		if e.Subtype != "" {
			s += ": " + e.Subtype
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
