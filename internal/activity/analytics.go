package activity

import (
	"math"
	"sort"
	"strings"
)

// NotAvailable stands in for first/last dates when there is no history.
const NotAvailable = "N/A"

// DayGroups holds events grouped by date. Dates keep first-seen order.
type DayGroups struct {
	Dates  []string
	ByDate map[string][]Event
}

// GroupByDate groups events by their Date field, preserving input order
// within each day.
func GroupByDate(events []Event) DayGroups {
	g := DayGroups{ByDate: make(map[string][]Event)}
	for _, e := range events {
		if _, ok := g.ByDate[e.Date]; !ok {
			g.Dates = append(g.Dates, e.Date)
		}
		g.ByDate[e.Date] = append(g.ByDate[e.Date], e)
	}
	return g
}

// DayStats are the per-day tallies used for range trends.
type DayStats struct {
	Toileting       int `json:"toileting"`
	Diaper          int `json:"diaper"`
	NapSessions     int `json:"nap_sessions"`
	MealsEaten      int `json:"meals_eaten"`
	OtherActivities int `json:"other_activities"`
}

// DayBreakdown is one row of the per-day trend table.
type DayBreakdown struct {
	Date            string `json:"date"`
	TotalActivities int    `json:"total_activities"`
	ToiletingCount  int    `json:"toileting_count"`
	DiaperCount     int    `json:"diaper_count"`
	// NapDuration is always 0 at this granularity; see DailySummary for the
	// per-day nap length.
	NapDuration int `json:"nap_duration"`
}

// Averages are means over the days that have at least one event.
type Averages struct {
	Days               int     `json:"days"`
	Toileting          float64 `json:"toileting"`
	Diaper             float64 `json:"diaper"`
	NapSessions        float64 `json:"nap_sessions"`
	MealsEaten         float64 `json:"meals_eaten"`
	OtherActivities    float64 `json:"other_activities"`
	ToiletingPerDay    float64 `json:"toileting_per_day"`
	DiaperPerDay       float64 `json:"diaper_per_day"`
	ActivitiesPerDay   float64 `json:"activities_per_day"`
	NapDurationMinutes float64 `json:"nap_duration_minutes"`
}

// Trends is the range projection behind the weekly view.
type Trends struct {
	StartDate      string              `json:"start_date"`
	EndDate        string              `json:"end_date"`
	DailyStats     map[string]DayStats `json:"daily_stats"`
	DailyBreakdown []DayBreakdown      `json:"daily_breakdown"`
	Averages       Averages            `json:"averages"`
}

// WeeklyTrends folds a window of events into per-day stats, a date-sorted
// breakdown and window averages. Days without events are absent and do not
// count toward the averages.
func WeeklyTrends(events []Event, startDate, endDate string) *Trends {
	groups := GroupByDate(events)
	t := &Trends{
		StartDate:      startDate,
		EndDate:        endDate,
		DailyStats:     make(map[string]DayStats, len(groups.Dates)),
		DailyBreakdown: make([]DayBreakdown, 0, len(groups.Dates)),
	}

	var sum DayStats
	total := 0
	for _, date := range groups.Dates {
		day := groups.ByDate[date]
		stats := dayStats(day)
		t.DailyStats[date] = stats
		t.DailyBreakdown = append(t.DailyBreakdown, DayBreakdown{
			Date:            date,
			TotalActivities: len(day),
			ToiletingCount:  stats.Toileting,
			DiaperCount:     stats.Diaper,
		})

		sum.Toileting += stats.Toileting
		sum.Diaper += stats.Diaper
		sum.NapSessions += stats.NapSessions
		sum.MealsEaten += stats.MealsEaten
		sum.OtherActivities += stats.OtherActivities
		total += len(day)
	}
	sort.SliceStable(t.DailyBreakdown, func(i, j int) bool {
		return t.DailyBreakdown[i].Date < t.DailyBreakdown[j].Date
	})

	n := len(groups.Dates)
	t.Averages.Days = n
	if n > 0 {
		days := float64(n)
		t.Averages.Toileting = round1(float64(sum.Toileting) / days)
		t.Averages.Diaper = round1(float64(sum.Diaper) / days)
		t.Averages.NapSessions = round1(float64(sum.NapSessions) / days)
		t.Averages.MealsEaten = round1(float64(sum.MealsEaten) / days)
		t.Averages.OtherActivities = round1(float64(sum.OtherActivities) / days)
		t.Averages.ToiletingPerDay = t.Averages.Toileting
		t.Averages.DiaperPerDay = t.Averages.Diaper
		t.Averages.ActivitiesPerDay = round1(float64(total) / days)
	}
	return t
}

func dayStats(events []Event) DayStats {
	var s DayStats
	for _, e := range events {
		switch {
		case e.Category == CategoryToileting:
			s.Toileting++
		case e.Category == CategoryDiaper:
			s.Diaper++
		case e.Category == CategoryNap:
			if strings.EqualFold(e.Subtype, SubtypeStart) {
				s.NapSessions++
			}
		case e.Category.IsMeal():
			sub := strings.ToLower(e.Subtype)
			if sub == "all" || sub == "some" {
				s.MealsEaten++
			}
		default:
			s.OtherActivities++
		}
	}
	return s
}

// NapAnalysis summarizes completed naps across a window.
type NapAnalysis struct {
	TotalNaps        int      `json:"total_naps"`
	AverageMinutes   float64  `json:"average_duration_minutes"`
	LongestMinutes   int      `json:"longest_nap_minutes"`
	ShortestMinutes  int      `json:"shortest_nap_minutes"`
	Durations        []int    `json:"nap_durations"`
	CommonStartTimes []string `json:"common_nap_start_times"`
}

// napPair is a Start/Stop pair with a positive duration.
type napPair struct {
	start   string
	minutes int
}

// completedNaps pairs the i-th Start with the i-th Stop of each day, by
// position in the day's nap events. Pairs with an unknown end or a
// non-positive duration are dropped.
func completedNaps(events []Event) []napPair {
	type dayNaps struct{ starts, stops []string }
	var order []string
	byDate := make(map[string]*dayNaps)
	for _, e := range events {
		if e.Category != CategoryNap {
			continue
		}
		d, ok := byDate[e.Date]
		if !ok {
			d = &dayNaps{}
			byDate[e.Date] = d
			order = append(order, e.Date)
		}
		switch {
		case strings.EqualFold(e.Subtype, SubtypeStart):
			d.starts = append(d.starts, e.Time)
		case strings.EqualFold(e.Subtype, SubtypeStop):
			d.stops = append(d.stops, e.Time)
		}
	}

	var pairs []napPair
	for _, date := range order {
		d := byDate[date]
		for i := 0; i < min(len(d.starts), len(d.stops)); i++ {
			start, stop := d.starts[i], d.stops[i]
			if start == UnknownTime || stop == UnknownTime {
				continue
			}
			if m := DurationMinutes(start, stop); m > 0 {
				pairs = append(pairs, napPair{start: start, minutes: m})
			}
		}
	}
	return pairs
}

// AnalyzeNaps reports nap count, mean, longest, shortest, every duration and
// the three most frequent start times.
func AnalyzeNaps(events []Event) *NapAnalysis {
	pairs := completedNaps(events)
	a := &NapAnalysis{
		TotalNaps:        len(pairs),
		Durations:        make([]int, 0, len(pairs)),
		CommonStartTimes: []string{},
	}
	if len(pairs) == 0 {
		return a
	}

	starts := make([]string, 0, len(pairs))
	total := 0
	a.ShortestMinutes = pairs[0].minutes
	for _, p := range pairs {
		a.Durations = append(a.Durations, p.minutes)
		starts = append(starts, p.start)
		total += p.minutes
		a.LongestMinutes = max(a.LongestMinutes, p.minutes)
		a.ShortestMinutes = min(a.ShortestMinutes, p.minutes)
	}
	a.AverageMinutes = float64(total) / float64(len(pairs))
	a.CommonStartTimes = mostCommon(starts, 3)
	return a
}

// mostCommon returns up to n values ordered by frequency, ties in
// first-seen order.
func mostCommon(values []string, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// MealCounts tallies statuses for one meal slot.
type MealCounts struct {
	All  int `json:"all"`
	Some int `json:"some"`
	None int `json:"none"`
}

func (c MealCounts) total() int { return c.All + c.Some + c.None }

// MealPercentages are MealCounts as percentages of the slot total.
type MealPercentages struct {
	All  float64 `json:"all"`
	Some float64 `json:"some"`
	None float64 `json:"none"`
}

// MealSlots groups a value per meal slot.
type MealSlots[T any] struct {
	AMSnack T `json:"am_snack"`
	Lunch   T `json:"lunch"`
	PMSnack T `json:"pm_snack"`
}

// MealAnalysis reports meal adherence across a window.
type MealAnalysis struct {
	Counts            MealSlots[MealCounts]      `json:"meal_counts"`
	Percentages       MealSlots[MealPercentages] `json:"meal_percentages"`
	TotalMealsTracked int                        `json:"total_meals_tracked"`
}

// AnalyzeMeals counts All/Some/None per slot. The slot is found from the
// event name ("am snack", "lunch", "pm snack"); subtypes outside the three
// statuses are ignored.
func AnalyzeMeals(events []Event) *MealAnalysis {
	a := &MealAnalysis{}
	for _, e := range events {
		if !e.Category.IsMeal() {
			continue
		}
		name := strings.ToLower(e.Name())
		var slot *MealCounts
		switch {
		case strings.Contains(name, "am snack"):
			slot = &a.Counts.AMSnack
		case strings.Contains(name, "lunch"):
			slot = &a.Counts.Lunch
		case strings.Contains(name, "pm snack"):
			slot = &a.Counts.PMSnack
		default:
			continue
		}
		switch strings.ToLower(e.Subtype) {
		case "all":
			slot.All++
		case "some":
			slot.Some++
		case "none":
			slot.None++
		}
	}

	a.Percentages.AMSnack = percentages(a.Counts.AMSnack)
	a.Percentages.Lunch = percentages(a.Counts.Lunch)
	a.Percentages.PMSnack = percentages(a.Counts.PMSnack)
	a.TotalMealsTracked = a.Counts.AMSnack.total() + a.Counts.Lunch.total() + a.Counts.PMSnack.total()
	return a
}

func percentages(c MealCounts) MealPercentages {
	total := c.total()
	if total == 0 {
		return MealPercentages{}
	}
	pct := func(n int) float64 { return round1(float64(n) / float64(total) * 100) }
	return MealPercentages{All: pct(c.All), Some: pct(c.Some), None: pct(c.None)}
}

// DayCount is a date with an event count.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// MonthlySummary aggregates one calendar month.
type MonthlySummary struct {
	Year                   int            `json:"year"`
	Month                  int            `json:"month"`
	StartDate              string         `json:"start_date"`
	EndDate                string         `json:"end_date"`
	TotalActivities        int            `json:"total_activities"`
	CategoryCounts         map[string]int `json:"activity_type_counts"`
	DailyCounts            map[string]int `json:"daily_activity_counts"`
	BusiestDay             *DayCount      `json:"busiest_day"`
	AverageDailyActivities float64        `json:"average_daily_activities"`
}

// SummarizeMonth folds a month of events. The busiest day is the first day,
// in event order, holding the highest count.
func SummarizeMonth(year, month int, events []Event) *MonthlySummary {
	start, end := MonthWindow(year, month)
	s := &MonthlySummary{
		Year:            year,
		Month:           month,
		StartDate:       start,
		EndDate:         end,
		TotalActivities: len(events),
		CategoryCounts:  make(map[string]int),
		DailyCounts:     make(map[string]int),
	}

	var order []string
	for _, e := range events {
		s.CategoryCounts[string(e.Category)]++
		if _, ok := s.DailyCounts[e.Date]; !ok {
			order = append(order, e.Date)
		}
		s.DailyCounts[e.Date]++
	}

	for _, date := range order {
		n := s.DailyCounts[date]
		if s.BusiestDay == nil || n > s.BusiestDay.Count {
			s.BusiestDay = &DayCount{Date: date, Count: n}
		}
	}
	if len(order) > 0 {
		s.AverageDailyActivities = float64(len(events)) / float64(len(order))
	}
	return s
}

// LifetimeSummary covers the entire stored history.
type LifetimeSummary struct {
	TotalToileting        int     `json:"total_toileting"`
	TotalDiapers          int     `json:"total_diapers"`
	TotalNaps             int     `json:"total_naps"`
	TotalActivities       int     `json:"total_activities"`
	DaysTracked           int     `json:"days_tracked"`
	UniqueOtherActivities int     `json:"unique_other_activities"`
	FirstActivityDate     string  `json:"first_activity_date"`
	LastActivityDate      string  `json:"last_activity_date"`
	AverageNapMinutes     float64 `json:"avg_nap_duration"`
}

// SummarizeLifetime folds the whole history. An empty history gives zero
// counts and N/A dates.
func SummarizeLifetime(events []Event) *LifetimeSummary {
	s := &LifetimeSummary{
		FirstActivityDate: NotAvailable,
		LastActivityDate:  NotAvailable,
	}
	if len(events) == 0 {
		return s
	}

	days := make(map[string]bool)
	others := make(map[string]bool)
	first, last := "", ""
	for _, e := range events {
		switch e.Category {
		case CategoryToileting:
			s.TotalToileting++
		case CategoryDiaper:
			s.TotalDiapers++
		case CategoryOther:
			if name := e.Name(); name != "" {
				others[name] = true
			}
		}
		if e.Date == "" {
			continue
		}
		days[e.Date] = true
		if first == "" || e.Date < first {
			first = e.Date
		}
		if last == "" || e.Date > last {
			last = e.Date
		}
	}

	naps := completedNaps(events)
	total := 0
	for _, p := range naps {
		total += p.minutes
	}

	s.TotalActivities = len(events)
	s.TotalNaps = len(naps)
	s.DaysTracked = len(days)
	s.UniqueOtherActivities = len(others)
	if first != "" {
		s.FirstActivityDate = first
		s.LastActivityDate = last
	}
	if len(naps) > 0 {
		s.AverageNapMinutes = float64(total) / float64(len(naps))
	}
	return s
}

// Search returns events whose category, subtype, name or raw text contains
// query, case-insensitively. Input order is kept.
func Search(events []Event, query string) []Event {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []Event{}
	for _, e := range events {
		if strings.Contains(e.SearchText(), q) {
			out = append(out, e)
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
