package ops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/nestlog/internal/mail"
)

// TestFullWorkflow exercises the daily lifecycle:
// ingest → report → export → purge → re-ingest → import (skip) → send
func TestFullWorkflow(t *testing.T) {
	database, cfg, baseDir := setupOps(t)
	ctx := context.Background()
	src := &fakeSource{byDay: map[string][]mail.Message{"2025-06-10": reportMessages()}}
	n := &fakeNotifier{}

	// 1. Ingest today
	ingested, err := Ingest(ctx, database, cfg, src, nil, IngestInput{})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, ingested.Status)
	require.Equal(t, 4, ingested.EventsStored)

	// 2. Reports read what was stored
	daily, err := DailySummary(ctx, database, cfg, DailyInput{})
	require.NoError(t, err)
	require.Equal(t, 127, daily.NapMinutes)
	require.Equal(t, []string{"Clay"}, daily.OtherActivities)

	dash, err := Dashboard(ctx, database, cfg)
	require.NoError(t, err)
	require.Equal(t, 4, dash.Overview.TodayActivities)

	// 3. Export
	paths := NewPathPolicy(baseDir, cfg)
	exported, err := Export(ctx, database, cfg, paths, ExportInput{Path: filepath.Join(paths.ExportsDir, "today.jsonl")})
	require.NoError(t, err)
	require.Equal(t, 4, exported.Count)

	// 4. Purge the day and re-ingest it
	purged, err := Purge(ctx, database, PurgeInput{StartDate: "2025-06-10", EndDate: "2025-06-10"})
	require.NoError(t, err)
	require.Equal(t, 4, purged.Purged)

	again, err := Ingest(ctx, database, cfg, src, nil, IngestInput{})
	require.NoError(t, err)
	require.Equal(t, 2, again.MessagesProcessed)
	require.Zero(t, again.MessagesSkipped)

	// 5. Importing the export now skips both messages
	imported, err := Import(ctx, database, paths, ImportInput{Path: exported.Path})
	require.NoError(t, err)
	require.Zero(t, imported.Imported)
	require.Equal(t, 4, imported.Skipped)

	// 6. Send the digest
	sent, err := SendDailySummary(ctx, database, cfg, n, DailyInput{})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, sent.Status)
	require.Len(t, n.sent, 1)
	require.Equal(t, 4, n.sent[0].TotalEvents)
}
