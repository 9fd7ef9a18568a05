package ops

import (
	"context"
	"fmt"
	"testing"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/db"
	"github.com/hpungsan/nestlog/internal/errors"
	"github.com/hpungsan/nestlog/internal/mail"
)

func TestIngest_StoresAndSummarizes(t *testing.T) {
	database, cfg, _ := setupOps(t)
	ctx := context.Background()
	src := &fakeSource{byDay: map[string][]mail.Message{"2025-06-10": reportMessages()}}
	n := &fakeNotifier{}

	out, err := Ingest(ctx, database, cfg, src, n, IngestInput{Notify: true})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if out.Status != StatusSuccess || out.Date != "2025-06-10" {
		t.Errorf("status/date = %s/%s", out.Status, out.Date)
	}
	if out.MessagesFound != 2 || out.MessagesProcessed != 2 || out.MessagesSkipped != 0 {
		t.Errorf("counts = found %d processed %d skipped %d", out.MessagesFound, out.MessagesProcessed, out.MessagesSkipped)
	}
	if out.EventsStored != 4 {
		t.Errorf("EventsStored = %d, want 4", out.EventsStored)
	}

	s := out.Summary
	if s.Toiletings.Wet != 1 || s.NapMinutes != 127 {
		t.Errorf("summary = %+v", s)
	}
	if len(s.OtherActivities) != 1 || s.OtherActivities[0] != "Clay" {
		t.Errorf("OtherActivities = %v, want [Clay]", s.OtherActivities)
	}
	if !s.GeneratedAt.Equal(testNow) {
		t.Errorf("GeneratedAt = %v", s.GeneratedAt)
	}
	if len(n.sent) != 1 || out.Notification == nil || !out.Notification.Email.Success {
		t.Errorf("notification not sent: %+v", out.Notification)
	}

	// Stored events of each message are in time order.
	events, _ := db.ListByDate(ctx, database, "2025-06-10")
	var m2 []activity.Event
	for _, e := range events {
		if e.MessageID == "m2" {
			m2 = append(m2, e)
		}
	}
	if len(m2) != 3 || m2[0].Subtype != "Start" || m2[2].Label != "Clay" {
		t.Errorf("m2 events = %+v", m2)
	}
}

func TestIngest_SkipsProcessedUnlessForced(t *testing.T) {
	database, cfg, _ := setupOps(t)
	ctx := context.Background()
	src := &fakeSource{byDay: map[string][]mail.Message{"2025-06-10": reportMessages()}}

	if _, err := Ingest(ctx, database, cfg, src, nil, IngestInput{Date: "2025-06-10"}); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	again, err := Ingest(ctx, database, cfg, src, nil, IngestInput{Date: "2025-06-10"})
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if again.MessagesSkipped != 2 || again.EventsStored != 0 {
		t.Errorf("second run: skipped %d stored %d", again.MessagesSkipped, again.EventsStored)
	}
	if again.Summary.TotalEvents != 4 {
		t.Errorf("summary should come from storage, TotalEvents = %d", again.Summary.TotalEvents)
	}

	forced, err := Ingest(ctx, database, cfg, src, nil, IngestInput{Date: "2025-06-10", Force: true})
	if err != nil {
		t.Fatalf("forced Ingest failed: %v", err)
	}
	if forced.MessagesProcessed != 2 || forced.Summary.TotalEvents != 4 {
		t.Errorf("forced run duplicated events: processed %d total %d", forced.MessagesProcessed, forced.Summary.TotalEvents)
	}
}

func TestIngest_NoMessages(t *testing.T) {
	database, cfg, _ := setupOps(t)
	n := &fakeNotifier{}

	out, err := Ingest(context.Background(), database, cfg, &fakeSource{}, n, IngestInput{Notify: true})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if out.Status != StatusNoData || out.Summary != nil {
		t.Errorf("out = %+v, want no_data without summary", out)
	}
	if len(n.sent) != 0 {
		t.Error("no-data day should not notify")
	}
}

func TestIngest_Errors(t *testing.T) {
	database, cfg, _ := setupOps(t)
	ctx := context.Background()

	if _, err := Ingest(ctx, database, cfg, nil, nil, IngestInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("nil source err = %v", err)
	}
	if _, err := Ingest(ctx, database, cfg, &fakeSource{}, nil, IngestInput{Date: "06/10/2025"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad date err = %v", err)
	}

	failing := &fakeSource{err: fmt.Errorf("inbox unreadable")}
	if _, err := Ingest(ctx, database, cfg, failing, nil, IngestInput{}); !errors.Is(err, errors.ErrInternal) {
		t.Errorf("source failure err = %v, want INTERNAL", err)
	}

	src := &fakeSource{byDay: map[string][]mail.Message{"2025-06-10": reportMessages()}}
	n := &fakeNotifier{err: errors.NewNotifyFailed(fmt.Errorf("relay down"))}
	if _, err := Ingest(ctx, database, cfg, src, n, IngestInput{Notify: true}); !errors.Is(err, errors.ErrNotifyFailed) {
		t.Errorf("notify failure err = %v, want NOTIFY_FAILED", err)
	}
}

func TestExtractAll_KeepsOrder(t *testing.T) {
	var msgs []mail.Message
	for i := range 25 {
		msgs = append(msgs, mail.Message{
			ID:      fmt.Sprintf("m%d", i),
			Snippet: fmt.Sprintf("Toileting: Wet - posted %d:00 AM", i%12+1),
		})
	}
	x := activity.NewExtractor(activity.Options{})

	results, err := extractAll(context.Background(), x, msgs, 4)
	if err != nil {
		t.Fatalf("extractAll failed: %v", err)
	}
	for i, events := range results {
		want := fmt.Sprintf("%d:00 AM", i%12+1)
		if len(events) != 1 || events[0].Time != want {
			t.Errorf("results[%d] = %+v, want one event at %s", i, events, want)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := extractAll(ctx, x, msgs, 4); !errors.Is(err, errors.ErrCancelled) {
		t.Errorf("cancelled extractAll err = %v", err)
	}
}

func TestBackfill(t *testing.T) {
	database, cfg, _ := setupOps(t)
	src := &fakeSource{byDay: map[string][]mail.Message{
		"2025-06-08": reportMessages()[:1],
		"2025-06-10": reportMessages()[1:],
	}}

	out, err := Backfill(context.Background(), database, cfg, src, BackfillInput{Days: 3})
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if out.StartDate != "2025-06-08" || out.EndDate != "2025-06-10" || len(out.Days) != 3 {
		t.Fatalf("out = %+v", out)
	}
	want := []string{StatusSuccess, StatusNoData, StatusSuccess}
	for i, d := range out.Days {
		if d.Status != want[i] {
			t.Errorf("day %s status = %s, want %s", d.Date, d.Status, want[i])
		}
	}
	if out.TotalEvents != 4 || out.Errors != 0 {
		t.Errorf("totals = %d events %d errors", out.TotalEvents, out.Errors)
	}

	if _, err := Backfill(context.Background(), database, cfg, src, BackfillInput{Days: 400}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("oversized window err = %v", err)
	}
}

func TestBackfill_ContinuesPastFailures(t *testing.T) {
	database, cfg, _ := setupOps(t)
	src := &fakeSource{err: fmt.Errorf("boom")}

	out, err := Backfill(context.Background(), database, cfg, src, BackfillInput{Days: 2})
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if out.Errors != 2 || len(src.calls) != 2 {
		t.Errorf("errors = %d calls = %v", out.Errors, src.calls)
	}
	if out.Days[0].Status != StatusError || out.Days[0].Error == "" {
		t.Errorf("day = %+v", out.Days[0])
	}
}

func TestAudit(t *testing.T) {
	database, cfg, _ := setupOps(t)
	src := &fakeSource{byDay: map[string][]mail.Message{"2025-06-09": reportMessages()}}

	// Only the first message has been stored before the audit.
	first := reportMessages()[0]
	storedEvents := activity.NewExtractor(activity.Options{}).ExtractMessage(first.Snippet, first.Body)
	if _, err := db.StoreMessage(context.Background(), database, first.ID, "2025-06-09", storedEvents, false); err != nil {
		t.Fatalf("StoreMessage failed: %v", err)
	}

	out, err := Audit(context.Background(), database, cfg, src, AuditInput{})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	// Seven weekdays before Tuesday 2025-06-10, oldest first.
	wantDates := []string{"2025-05-30", "2025-06-02", "2025-06-03", "2025-06-04", "2025-06-05", "2025-06-06", "2025-06-09"}
	if len(out.Days) != len(wantDates) {
		t.Fatalf("days = %d, want %d", len(out.Days), len(wantDates))
	}
	for i, d := range out.Days {
		if d.Date != wantDates[i] {
			t.Errorf("day %d = %s, want %s", i, d.Date, wantDates[i])
		}
	}

	last := out.Days[6]
	if len(last.Messages) != 2 || last.Summary == nil || last.Summary.NapMinutes != 127 {
		t.Fatalf("audit day = %+v", last)
	}
	m2 := last.Messages[1]
	if len(m2.SnippetEvents) != 1 || len(m2.BodyEvents) != 3 || len(m2.Merged) != 3 {
		t.Errorf("m2 passes: snippet %d body %d merged %d", len(m2.SnippetEvents), len(m2.BodyEvents), len(m2.Merged))
	}
	if out.TotalMessages != 2 || out.TotalEvents != 4 {
		t.Errorf("totals = %d messages %d events", out.TotalMessages, out.TotalEvents)
	}
	if last.Query != "label:altitude after:2025-06-09 before:2025-06-10" {
		t.Errorf("query = %q", last.Query)
	}
	if m1 := last.Messages[0]; !m1.Stored || m1.StoredEvents != len(storedEvents) {
		t.Errorf("m1 stored = %v/%d, want true/%d", m1.Stored, m1.StoredEvents, len(storedEvents))
	}
	if m2.Stored {
		t.Error("m2 reported as stored")
	}

	if _, err := Audit(context.Background(), nil, cfg, src, AuditInput{Dates: []string{"bad"}}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad date err = %v", err)
	}
}
