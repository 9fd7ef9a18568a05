package ops

import (
	"context"
	"database/sql"
	"sync"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/db"
	"github.com/hpungsan/nestlog/internal/errors"
	"github.com/hpungsan/nestlog/internal/mail"
	"github.com/hpungsan/nestlog/internal/notify"
)

// IngestInput contains parameters for the Ingest operation.
type IngestInput struct {
	Date   string // optional, default: today in the configured zone
	Force  bool   // re-extract messages that were already stored
	Notify bool   // send the digest after storing
}

// MessageResult reports what happened to one message.
type MessageResult struct {
	ID      string `json:"id"`
	Events  int    `json:"events"`
	Skipped bool   `json:"skipped,omitempty"`
}

// IngestOutput contains the result of the Ingest operation.
type IngestOutput struct {
	Status            string                 `json:"status"`
	Date              string                 `json:"date"`
	MessagesFound     int                    `json:"messages_found"`
	MessagesProcessed int                    `json:"messages_processed"`
	MessagesSkipped   int                    `json:"messages_skipped"`
	EventsStored      int                    `json:"events_stored"`
	Messages          []MessageResult        `json:"messages"`
	Summary           *activity.DailySummary `json:"summary,omitempty"`
	Notification      *notify.Result         `json:"notification,omitempty"`
}

// Ingest fetches one day's messages, extracts their events and stores them.
// Messages already stored are skipped unless Force is set, in which case
// their events are replaced. The day's summary is rebuilt from storage, so
// it includes events from earlier runs.
func Ingest(ctx context.Context, database *sql.DB, cfg *config.Config, src mail.Source, n notify.Notifier, input IngestInput) (*IngestOutput, error) {
	cfg = orDefault(cfg)
	if src == nil {
		return nil, errors.NewInvalidRequest("mail source is required")
	}
	date, err := resolveDate(cfg, input.Date)
	if err != nil {
		return nil, err
	}

	msgs, err := src.Messages(ctx, date)
	if err != nil {
		return nil, wrapErr(err)
	}

	out := &IngestOutput{
		Status:        StatusNoData,
		Date:          date,
		MessagesFound: len(msgs),
		Messages:      make([]MessageResult, 0, len(msgs)),
	}
	if len(msgs) == 0 {
		return out, nil
	}

	var pending []mail.Message
	for _, m := range msgs {
		done, err := db.MessageProcessed(ctx, database, m.ID)
		if err != nil {
			return nil, wrapErr(err)
		}
		if done && !input.Force {
			out.MessagesSkipped++
			out.Messages = append(out.Messages, MessageResult{ID: m.ID, Skipped: true})
			continue
		}
		pending = append(pending, m)
	}

	x := activity.NewExtractor(activity.Options{Keywords: cfg.ActivityKeywords})
	extracted, err := extractAll(ctx, x, pending, cfg.IngestWorkers)
	if err != nil {
		return nil, err
	}

	for i, m := range pending {
		events := activity.SortByTime(extracted[i])
		stored, err := db.StoreMessage(ctx, database, m.ID, date, events, input.Force)
		if errors.Is(err, errors.ErrAlreadyProcessed) {
			// Stored by a concurrent run since the check above.
			out.MessagesSkipped++
			out.Messages = append(out.Messages, MessageResult{ID: m.ID, Skipped: true})
			continue
		}
		if err != nil {
			return nil, wrapErr(err)
		}
		out.MessagesProcessed++
		out.EventsStored += stored
		out.Messages = append(out.Messages, MessageResult{ID: m.ID, Events: stored})
	}

	summary, err := storedSummary(ctx, database, cfg, date)
	if err != nil {
		return nil, err
	}
	out.Status = StatusSuccess
	out.Summary = summary

	if input.Notify && n != nil {
		res, err := n.Send(ctx, summary)
		if err != nil {
			return nil, err
		}
		out.Notification = res
	}
	return out, nil
}

// extractAll runs the extractor over msgs with up to workers goroutines.
// Results keep the order of msgs, so merging never depends on scheduling.
func extractAll(ctx context.Context, x *activity.Extractor, msgs []mail.Message, workers int) ([][]activity.Event, error) {
	results := make([][]activity.Event, len(msgs))
	if len(msgs) == 0 {
		return results, nil
	}
	workers = max(1, min(workers, len(msgs)))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = x.ExtractMessage(msgs[i].Snippet, msgs[i].Body)
			}
		}()
	}

	var cancelled bool
	for i := range msgs {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return nil, errors.NewCancelled("ingest")
	}
	return results, nil
}

// storedSummary builds the summary for date from stored events.
func storedSummary(ctx context.Context, database *sql.DB, cfg *config.Config, date string) (*activity.DailySummary, error) {
	events, err := db.ListByDate(ctx, database, date)
	if err != nil {
		return nil, wrapErr(err)
	}
	now, err := localNow(cfg)
	if err != nil {
		return nil, err
	}
	s := activity.Summarize(date, events)
	s.GeneratedAt = now
	return s, nil
}

// BackfillInput contains parameters for the Backfill operation.
type BackfillInput struct {
	Days  int    // optional, default 7, max 366
	End   string // optional, default: today
	Force bool
}

// BackfillDay is the outcome of ingesting one day.
type BackfillDay struct {
	Date     string `json:"date"`
	Status   string `json:"status"`
	Messages int    `json:"messages"`
	Events   int    `json:"events"`
	Error    string `json:"error,omitempty"`
}

// BackfillOutput contains the result of the Backfill operation.
type BackfillOutput struct {
	StartDate   string        `json:"start_date"`
	EndDate     string        `json:"end_date"`
	Days        []BackfillDay `json:"days"`
	TotalEvents int           `json:"total_events"`
	Errors      int           `json:"errors"`
}

// Backfill ingests every day in a trailing window without notifying. A
// failing day is recorded and the rest still run.
func Backfill(ctx context.Context, database *sql.DB, cfg *config.Config, src mail.Source, input BackfillInput) (*BackfillOutput, error) {
	days := input.Days
	if days == 0 {
		days = DefaultBackfillDays
	}
	if days < 0 || days > MaxBackfillDays {
		return nil, errors.NewInvalidRequest("days must be between 1 and 366")
	}
	start, end, err := resolveWindow(cfg, "", input.End, days)
	if err != nil {
		return nil, err
	}

	out := &BackfillOutput{StartDate: start, EndDate: end, Days: []BackfillDay{}}
	for _, date := range activity.DatesBetween(start, end) {
		if err := checkCtx(ctx, "backfill"); err != nil {
			return nil, err
		}
		res, err := Ingest(ctx, database, cfg, src, nil, IngestInput{Date: date, Force: input.Force})
		if errors.Is(err, errors.ErrCancelled) {
			return nil, err
		}
		day := BackfillDay{Date: date}
		if err != nil {
			day.Status = StatusError
			day.Error = err.Error()
			out.Errors++
		} else {
			day.Status = res.Status
			day.Messages = res.MessagesFound
			day.Events = res.EventsStored
			out.TotalEvents += res.EventsStored
		}
		out.Days = append(out.Days, day)
	}
	return out, nil
}
