package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/db"
	"github.com/hpungsan/nestlog/internal/errors"
	"github.com/hpungsan/nestlog/internal/notify"
)

// DailyInput selects one day.
type DailyInput struct {
	Date string // optional, default: today
}

// DailyOutput wraps a stored day's summary. Status is no_data when the day
// has no events; the summary is still present with zero values.
type DailyOutput struct {
	Status string `json:"status"`
	*activity.DailySummary
}

// DailySummary rebuilds a day's summary from stored events.
func DailySummary(ctx context.Context, database *sql.DB, cfg *config.Config, input DailyInput) (*DailyOutput, error) {
	date, err := resolveDate(cfg, input.Date)
	if err != nil {
		return nil, err
	}
	s, err := storedSummary(ctx, database, cfg, date)
	if err != nil {
		return nil, err
	}
	status := StatusSuccess
	if !s.HasData() {
		status = StatusNoData
	}
	return &DailyOutput{Status: status, DailySummary: s}, nil
}

// SendOutput contains the result of SendDailySummary.
type SendOutput struct {
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	Notification *notify.Result `json:"notification,omitempty"`
}

// SendDailySummary re-sends the digest for a stored day. Days without
// events report no_data and send nothing.
func SendDailySummary(ctx context.Context, database *sql.DB, cfg *config.Config, n notify.Notifier, input DailyInput) (*SendOutput, error) {
	if n == nil {
		return nil, errors.NewInvalidRequest("notifier is required")
	}
	daily, err := DailySummary(ctx, database, cfg, input)
	if err != nil {
		return nil, err
	}
	out := &SendOutput{Status: daily.Status, Date: daily.Date}
	if daily.Status == StatusNoData {
		return out, nil
	}
	res, err := n.Send(ctx, daily.DailySummary)
	if err != nil {
		return nil, err
	}
	out.Status = res.Status
	out.Notification = res
	return out, nil
}

// RangeInput selects an inclusive window. Empty bounds take the operation's
// default window ending today.
type RangeInput struct {
	StartDate string
	EndDate   string
}

func listRange(ctx context.Context, database *sql.DB, cfg *config.Config, input RangeInput, days int) (string, string, []activity.Event, error) {
	start, end, err := resolveWindow(cfg, input.StartDate, input.EndDate, days)
	if err != nil {
		return "", "", nil, err
	}
	events, err := db.ListByRange(ctx, database, start, end)
	if err != nil {
		return "", "", nil, wrapErr(err)
	}
	return start, end, events, nil
}

// WeeklyTrends reports per-day stats and averages, last 7 days by default.
func WeeklyTrends(ctx context.Context, database *sql.DB, cfg *config.Config, input RangeInput) (*activity.Trends, error) {
	start, end, events, err := listRange(ctx, database, cfg, input, DefaultTrendDays)
	if err != nil {
		return nil, err
	}
	return activity.WeeklyTrends(events, start, end), nil
}

// NapAnalysisOutput is a nap analysis with its window.
type NapAnalysisOutput struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	*activity.NapAnalysis
}

// NapAnalysis reports nap statistics, last 30 days by default.
func NapAnalysis(ctx context.Context, database *sql.DB, cfg *config.Config, input RangeInput) (*NapAnalysisOutput, error) {
	start, end, events, err := listRange(ctx, database, cfg, input, DefaultAnalysisDays)
	if err != nil {
		return nil, err
	}
	return &NapAnalysisOutput{StartDate: start, EndDate: end, NapAnalysis: activity.AnalyzeNaps(events)}, nil
}

// MealAnalysisOutput is a meal analysis with its window.
type MealAnalysisOutput struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	*activity.MealAnalysis
}

// MealAnalysis reports meal adherence, last 30 days by default.
func MealAnalysis(ctx context.Context, database *sql.DB, cfg *config.Config, input RangeInput) (*MealAnalysisOutput, error) {
	start, end, events, err := listRange(ctx, database, cfg, input, DefaultAnalysisDays)
	if err != nil {
		return nil, err
	}
	return &MealAnalysisOutput{StartDate: start, EndDate: end, MealAnalysis: activity.AnalyzeMeals(events)}, nil
}

// TimelineOutput lists one day's events ordered by time.
type TimelineOutput struct {
	Date   string           `json:"date"`
	Events []activity.Event `json:"events"`
	Total  int              `json:"total"`
}

// Timeline returns a day's events by time of day, today by default.
func Timeline(ctx context.Context, database *sql.DB, cfg *config.Config, input DailyInput) (*TimelineOutput, error) {
	date, err := resolveDate(cfg, input.Date)
	if err != nil {
		return nil, err
	}
	events, err := db.ListByDate(ctx, database, date)
	if err != nil {
		return nil, wrapErr(err)
	}
	sorted := activity.SortByTime(events)
	return &TimelineOutput{Date: date, Events: sorted, Total: len(sorted)}, nil
}

// MonthlyInput selects a calendar month. Zero values mean the current one.
type MonthlyInput struct {
	Year  int
	Month int
}

// MonthlySummary aggregates one calendar month.
func MonthlySummary(ctx context.Context, database *sql.DB, cfg *config.Config, input MonthlyInput) (*activity.MonthlySummary, error) {
	now, err := localNow(cfg)
	if err != nil {
		return nil, err
	}
	year, month := input.Year, input.Month
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return nil, errors.NewInvalidRequest("month must be between 1 and 12")
	}
	if year < 1 || year > 9999 {
		return nil, errors.NewInvalidRequest("year must be between 1 and 9999")
	}

	start, end := activity.MonthWindow(year, month)
	events, err := db.ListByRange(ctx, database, start, end)
	if err != nil {
		return nil, wrapErr(err)
	}
	return activity.SummarizeMonth(year, month, events), nil
}

// LifetimeSummary folds every stored event.
func LifetimeSummary(ctx context.Context, database *sql.DB) (*activity.LifetimeSummary, error) {
	events, err := db.ListAll(ctx, database)
	if err != nil {
		return nil, wrapErr(err)
	}
	return activity.SummarizeLifetime(events), nil
}

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query     string // required
	StartDate string // optional, default: 30 days before EndDate
	EndDate   string // optional, default: today
	Limit     int    // optional, default 100, max 500
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Query        string           `json:"query"`
	StartDate    string           `json:"start_date"`
	EndDate      string           `json:"end_date"`
	Results      []activity.Event `json:"results"`
	TotalMatches int              `json:"total_matches"`
	Truncated    bool             `json:"truncated"`
}

// Search finds events whose text contains the query.
func Search(ctx context.Context, database *sql.DB, cfg *config.Config, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	limit := input.Limit
	switch {
	case limit == 0:
		limit = DefaultSearchLimit
	case limit < 0:
		return nil, errors.NewInvalidRequest("limit must not be negative")
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}

	start, end, events, err := listRange(ctx, database, cfg, RangeInput{StartDate: input.StartDate, EndDate: input.EndDate}, DefaultSearchDays)
	if err != nil {
		return nil, err
	}
	matches := activity.Search(events, query)
	out := &SearchOutput{
		Query:        query,
		StartDate:    start,
		EndDate:      end,
		Results:      matches,
		TotalMatches: len(matches),
	}
	if len(matches) > limit {
		out.Results = matches[:limit]
		out.Truncated = true
	}
	return out, nil
}

// DatesOutput lists the dates that have stored events, newest first.
type DatesOutput struct {
	AvailableDates []string `json:"available_dates"`
	TotalDates     int      `json:"total_dates"`
}

// AvailableDates lists the dates that have stored events.
func AvailableDates(ctx context.Context, database *sql.DB) (*DatesOutput, error) {
	dates, err := db.AvailableDates(ctx, database)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &DatesOutput{AvailableDates: dates, TotalDates: len(dates)}, nil
}

// Overview is the headline block of the dashboard.
type Overview struct {
	TodayActivities      int               `json:"today_activities"`
	WeekAverages         activity.Averages `json:"week_averages"`
	WeekDailyCounts      map[string]int    `json:"week_daily_counts"`
	MonthTotalActivities int               `json:"month_total_activities"`
	AverageNapDuration   float64           `json:"average_nap_duration"`
}

// DashboardOutput bundles every report the dashboard shows.
type DashboardOutput struct {
	Date           string                   `json:"date"`
	Overview       Overview                 `json:"overview"`
	WeeklyTrends   *activity.Trends         `json:"weekly_trends"`
	NapAnalysis    *NapAnalysisOutput       `json:"nap_analysis"`
	MealAnalysis   *MealAnalysisOutput      `json:"meal_analysis"`
	TodayTimeline  []activity.Event         `json:"today_timeline"`
	MonthlySummary *activity.MonthlySummary `json:"monthly_summary"`
}

// Dashboard builds the overview for today: the week's trends, the last 30
// days of nap and meal analysis, the first entries of today's timeline and
// the current month.
func Dashboard(ctx context.Context, database *sql.DB, cfg *config.Config) (*DashboardOutput, error) {
	now, err := localNow(cfg)
	if err != nil {
		return nil, err
	}
	today := now.Format(activity.DateLayout)

	trends, err := WeeklyTrends(ctx, database, cfg, RangeInput{EndDate: today})
	if err != nil {
		return nil, err
	}
	naps, err := NapAnalysis(ctx, database, cfg, RangeInput{EndDate: today})
	if err != nil {
		return nil, err
	}
	meals, err := MealAnalysis(ctx, database, cfg, RangeInput{EndDate: today})
	if err != nil {
		return nil, err
	}
	timeline, err := Timeline(ctx, database, cfg, DailyInput{Date: today})
	if err != nil {
		return nil, err
	}
	month, err := MonthlySummary(ctx, database, cfg, MonthlyInput{Year: now.Year(), Month: int(now.Month())})
	if err != nil {
		return nil, err
	}
	counts, err := db.CountByDate(ctx, database, trends.StartDate, trends.EndDate)
	if err != nil {
		return nil, wrapErr(err)
	}

	preview := timeline.Events
	if len(preview) > TimelinePreview {
		preview = preview[:TimelinePreview]
	}
	return &DashboardOutput{
		Date: today,
		Overview: Overview{
			TodayActivities:      counts[today],
			WeekAverages:         trends.Averages,
			WeekDailyCounts:      counts,
			MonthTotalActivities: month.TotalActivities,
			AverageNapDuration:   naps.AverageMinutes,
		},
		WeeklyTrends:   trends,
		NapAnalysis:    naps,
		MealAnalysis:   meals,
		TodayTimeline:  preview,
		MonthlySummary: month,
	}, nil
}
