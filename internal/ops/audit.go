package ops

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/db"
	"github.com/hpungsan/nestlog/internal/errors"
	"github.com/hpungsan/nestlog/internal/mail"
)

// AuditInput contains parameters for the Audit operation.
type AuditInput struct {
	Dates    []string // optional; default: the previous Weekdays weekdays
	Weekdays int      // optional, default 7
}

// AuditMessage shows how one message was read.
type AuditMessage struct {
	ID            string           `json:"id"`
	Snippet       string           `json:"snippet"`
	SnippetEvents []activity.Event `json:"snippet_events"`
	BodyEvents    []activity.Event `json:"body_events"`
	Merged        []activity.Event `json:"merged_events"`
	Stored        bool             `json:"stored"`
	StoredEvents  int              `json:"stored_events"`
}

// AuditDay is the dry-run result for one date.
type AuditDay struct {
	Date     string                 `json:"date"`
	Query    string                 `json:"query"`
	Messages []AuditMessage         `json:"messages"`
	Summary  *activity.DailySummary `json:"summary,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// AuditOutput contains the result of the Audit operation.
type AuditOutput struct {
	Days          []AuditDay `json:"days"`
	TotalMessages int        `json:"total_messages"`
	TotalEvents   int        `json:"total_events"`
}

// Audit extracts events for each date without storing anything, exposing the
// snippet and body passes separately so missed events can be traced. When
// database is non-nil each message is compared with what was stored for it.
func Audit(ctx context.Context, database *sql.DB, cfg *config.Config, src mail.Source, input AuditInput) (*AuditOutput, error) {
	cfg = orDefault(cfg)
	if src == nil {
		return nil, errors.NewInvalidRequest("mail source is required")
	}

	dates := input.Dates
	if len(dates) == 0 {
		n := input.Weekdays
		if n <= 0 {
			n = DefaultAuditDays
		}
		now, err := localNow(cfg)
		if err != nil {
			return nil, err
		}
		dates = previousWeekdays(now, n)
	}
	for _, d := range dates {
		if err := validateDate("date", d); err != nil {
			return nil, err
		}
	}

	x := activity.NewExtractor(activity.Options{Keywords: cfg.ActivityKeywords})
	out := &AuditOutput{Days: make([]AuditDay, 0, len(dates))}
	for _, date := range dates {
		if err := checkCtx(ctx, "audit"); err != nil {
			return nil, err
		}
		query, _ := mail.Query(cfg.ActivityLabel, date)
		day := AuditDay{Date: date, Query: query, Messages: []AuditMessage{}}
		stored := map[string]int{}
		if database != nil {
			records, err := db.ListMessages(ctx, database, date, date)
			if err != nil {
				return nil, err
			}
			for _, r := range records {
				stored[r.ID] = r.EventCount
			}
		}
		msgs, err := src.Messages(ctx, date)
		if err != nil {
			if errors.Is(wrapErr(err), errors.ErrCancelled) {
				return nil, wrapErr(err)
			}
			day.Error = err.Error()
			out.Days = append(out.Days, day)
			continue
		}

		var dayEvents []activity.Event
		for _, m := range msgs {
			am := AuditMessage{
				ID:            m.ID,
				Snippet:       m.Snippet,
				SnippetEvents: x.ExtractSnippet(m.Snippet),
				BodyEvents:    x.ExtractBody(m.Body),
				Merged:        x.ExtractMessage(m.Snippet, m.Body),
			}
			am.StoredEvents, am.Stored = stored[m.ID]
			day.Messages = append(day.Messages, am)
			dayEvents = append(dayEvents, activity.WithDate(am.Merged, date)...)
		}
		if len(msgs) > 0 {
			day.Summary = activity.Summarize(date, dayEvents)
		}
		out.TotalMessages += len(msgs)
		out.TotalEvents += len(dayEvents)
		out.Days = append(out.Days, day)
	}
	return out, nil
}

// previousWeekdays returns the n weekdays before now, oldest first.
func previousWeekdays(now time.Time, n int) []string {
	var out []string
	d := now
	for len(out) < n {
		d = d.AddDate(0, 0, -1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d.Format(activity.DateLayout))
		}
	}
	slices.Reverse(out)
	return out
}
