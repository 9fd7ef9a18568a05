package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/db"
	"github.com/hpungsan/nestlog/internal/errors"
	"github.com/hpungsan/nestlog/internal/mail"
	"github.com/hpungsan/nestlog/internal/notify"
)

// testSetup creates a temporary database and config for testing.
func testSetup(t *testing.T) (*sql.DB, *config.Config, string) {
	t.Helper()

	baseDir := t.TempDir()
	database, err := db.Init(baseDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	return database, cfg, baseDir
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

type stubSource struct {
	msgs []mail.Message
}

func (s *stubSource) Messages(_ context.Context, _ string) ([]mail.Message, error) {
	return s.msgs, nil
}

type stubNotifier struct {
	sent int
}

func (n *stubNotifier) Send(_ context.Context, _ *activity.DailySummary) (*notify.Result, error) {
	n.sent++
	return &notify.Result{Status: notify.StatusSuccess, Email: notify.EmailResult{Success: true}}, nil
}

// seed stores two days of events.
func seed(t *testing.T, database *sql.DB) {
	t.Helper()
	days := map[string][]activity.Event{
		"2025-06-09": {
			{Time: "09:00 AM", Category: activity.CategoryToileting, Subtype: "Wet", RawText: "Toileting: Wet"},
			{Time: "02:00 PM", Category: activity.CategoryOther, Label: "Clay", RawText: "Played with clay"},
		},
		"2025-06-10": {
			{Time: "12:46 PM", Category: activity.CategoryNap, Subtype: "Start", RawText: "Nap: Start"},
			{Time: "02:53 PM", Category: activity.CategoryNap, Subtype: "Stop", RawText: "Nap: Stop"},
			{Time: "11:30 AM", Category: activity.CategoryLunch, Subtype: "Some", RawText: "Lunch: Some"},
		},
	}
	for date, events := range days {
		if _, err := db.StoreMessage(context.Background(), database, "msg-"+date, date, events, false); err != nil {
			t.Fatalf("seed %s: %v", date, err)
		}
	}
}

func TestReportTools(t *testing.T) {
	database, cfg, baseDir := testSetup(t)
	seed(t, database)
	h := NewHandlers(database, cfg, baseDir, Deps{})
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
		key     string
		want    any
	}{
		{"daily", h.HandleDaily, map[string]any{"date": "2025-06-10"}, "nap_duration_minutes", float64(127)},
		{"daily other", h.HandleDaily, map[string]any{"date": "2025-06-09"}, "status", "success"},
		{"trends", h.HandleTrends, map[string]any{"start_date": "2025-06-04", "end_date": "2025-06-10"}, "end_date", "2025-06-10"},
		{"naps", h.HandleNaps, map[string]any{"start_date": "2025-06-01", "end_date": "2025-06-10"}, "longest_nap_minutes", float64(127)},
		{"meals", h.HandleMeals, map[string]any{"start_date": "2025-06-01", "end_date": "2025-06-10"}, "total_meals_tracked", float64(1)},
		{"timeline", h.HandleTimeline, map[string]any{"date": "2025-06-10"}, "total", float64(3)},
		{"monthly", h.HandleMonthly, map[string]any{"year": 2025, "month": 6}, "total_activities", float64(5)},
		{"lifetime", h.HandleLifetime, nil, "days_tracked", float64(2)},
		{"search", h.HandleSearch, map[string]any{"query": "clay", "start_date": "2025-06-01", "end_date": "2025-06-10"}, "total_matches", float64(1)},
		{"dates", h.HandleDates, nil, "total_dates", float64(2)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := tc.handler(ctx, makeRequest(tc.args))
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			output := parseOutput(t, result)
			if output[tc.key] != tc.want {
				t.Errorf("%s = %v, want %v", tc.key, output[tc.key], tc.want)
			}
		})
	}
}

func TestReportTools_InvalidArguments(t *testing.T) {
	database, cfg, baseDir := testSetup(t)
	h := NewHandlers(database, cfg, baseDir, Deps{})
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
	}{
		{"bad date", h.HandleDaily, map[string]any{"date": "06/10/2025"}},
		{"wrong type", h.HandleDaily, map[string]any{"date": 20250610}},
		{"inverted window", h.HandleTrends, map[string]any{"start_date": "2025-06-10", "end_date": "2025-06-01"}},
		{"bad month", h.HandleMonthly, map[string]any{"year": 2025, "month": 13}},
		{"missing query", h.HandleSearch, map[string]any{}},
		{"negative limit", h.HandleSearch, map[string]any{"query": "nap", "limit": -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := tc.handler(ctx, makeRequest(tc.args))
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected IsError=true")
			}
			assertErrorCode(t, result, string(errors.ErrInvalidRequest))
		})
	}
}

func TestHandleIngest(t *testing.T) {
	database, cfg, baseDir := testSetup(t)
	src := &stubSource{msgs: []mail.Message{
		{ID: "m1", Snippet: "Toileting: Wet Kavitha - posted 10:00 AM"},
	}}
	n := &stubNotifier{}
	h := NewHandlers(database, cfg, baseDir, Deps{Source: src, Notifier: n})
	ctx := context.Background()

	result, err := h.HandleIngest(ctx, makeRequest(map[string]any{"date": "2025-06-10", "notify": true}))
	if err != nil {
		t.Fatalf("HandleIngest error: %v", err)
	}
	output := parseOutput(t, result)
	if output["events_stored"] != float64(1) || output["status"] != "success" {
		t.Errorf("output = %v", output)
	}
	if n.sent != 1 {
		t.Errorf("notifications sent = %d, want 1", n.sent)
	}

	// Reprocessing without force skips the message.
	result, _ = h.HandleIngest(ctx, makeRequest(map[string]any{"date": "2025-06-10"}))
	output = parseOutput(t, result)
	if output["messages_skipped"] != float64(1) {
		t.Errorf("second run = %v", output)
	}

	// Force replaces the stored events instead of duplicating them.
	result, _ = h.HandleIngest(ctx, makeRequest(map[string]any{"date": "2025-06-10", "force": true}))
	output = parseOutput(t, result)
	if output["events_stored"] != float64(1) {
		t.Errorf("forced run = %v", output)
	}
	counts, err := db.CountByDate(ctx, database, "2025-06-10", "2025-06-10")
	if err != nil {
		t.Fatalf("CountByDate: %v", err)
	}
	if counts["2025-06-10"] != 1 {
		t.Errorf("stored events = %d, want 1", counts["2025-06-10"])
	}
}

func TestHandleIngest_Unconfigured(t *testing.T) {
	database, cfg, baseDir := testSetup(t)
	ctx := context.Background()

	h := NewHandlers(database, cfg, baseDir, Deps{})
	result, _ := h.HandleIngest(ctx, makeRequest(map[string]any{"date": "2025-06-10"}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))

	h = NewHandlers(database, cfg, baseDir, Deps{Source: &stubSource{}})
	result, _ = h.HandleIngest(ctx, makeRequest(map[string]any{"notify": true}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
}

func TestExportImportPurge(t *testing.T) {
	database, cfg, baseDir := testSetup(t)
	seed(t, database)
	h := NewHandlers(database, cfg, baseDir, Deps{})
	ctx := context.Background()

	path := filepath.Join(baseDir, "exports", "all.jsonl")
	result, err := h.HandleExport(ctx, makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("HandleExport error: %v", err)
	}
	if out := parseOutput(t, result); out["count"] != float64(5) {
		t.Errorf("export = %v", out)
	}

	result, _ = h.HandlePurge(ctx, makeRequest(map[string]any{"message_id": "msg-2025-06-09"}))
	if out := parseOutput(t, result); out["purged"] != float64(2) {
		t.Errorf("purge = %v", out)
	}

	result, _ = h.HandleImport(ctx, makeRequest(map[string]any{"path": path}))
	out := parseOutput(t, result)
	if out["imported"] != float64(2) || out["skipped"] != float64(3) {
		t.Errorf("import = %v", out)
	}

	outside := filepath.Join(t.TempDir(), "x.jsonl")
	result, _ = h.HandleExport(ctx, makeRequest(map[string]any{"path": outside}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))

	result, _ = h.HandlePurge(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
}

func TestNewServer_DisabledTools(t *testing.T) {
	database, cfg, baseDir := testSetup(t)

	tests := []struct {
		name          string
		disabledTools []string
		disabledTypes []string
		wantMissing   []string
		wantPresent   []string
	}{
		{
			name:        "nothing disabled",
			wantPresent: []string{"report_daily", "events_ingest"},
		},
		{
			name:          "single tool",
			disabledTools: []string{"events_ingest"},
			wantMissing:   []string{"events_ingest"},
			wantPresent:   []string{"events_search", "report_daily"},
		},
		{
			name:          "whole type",
			disabledTypes: []string{"events"},
			wantMissing:   []string{"events_ingest", "events_search", "events_dates", "events_purge"},
			wantPresent:   []string{"report_daily", "report_lifetime"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := *cfg
			c.DisabledTools = tc.disabledTools
			c.DisabledTypes = tc.disabledTypes

			s := NewServer(database, &c, baseDir, Deps{}, "test")
			tools := s.ListTools()
			for _, name := range tc.wantMissing {
				if _, ok := tools[name]; ok {
					t.Errorf("tool %q should be disabled", name)
				}
			}
			for _, name := range tc.wantPresent {
				if _, ok := tools[name]; !ok {
					t.Errorf("tool %q should be registered", name)
				}
			}
		})
	}
}

func TestToolTypes(t *testing.T) {
	for _, name := range AllToolNames() {
		if typ := GetTypeForTool(name); !slices.Contains(KnownTypes, typ) {
			t.Errorf("tool %q has unknown type %q", name, typ)
		}
	}
	if unknown := ValidateDisabledTools([]string{"report_daily", "report_weekly"}); len(unknown) != 1 || unknown[0] != "report_weekly" {
		t.Errorf("ValidateDisabledTools = %v", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"report", "diary"}); len(unknown) != 1 || unknown[0] != "diary" {
		t.Errorf("ValidateDisabledTypes = %v", unknown)
	}
	if got := ExpandTypesToTools(nil); got != nil {
		t.Errorf("ExpandTypesToTools(nil) = %v", got)
	}
	if got := ExpandTypesToTools([]string{"report"}); len(got) != 7 {
		t.Errorf("ExpandTypesToTools(report) = %v, want 7 tools", got)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if errObj["message"] != "an internal error occurred" {
		t.Errorf("message leaked: %v", errObj["message"])
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_UncodedError(t *testing.T) {
	r := errorResult(fmt.Errorf("boom"))
	assertErrorCode(t, r, "INTERNAL")
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("2025-06-10"))

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	if code, _ := errorObj["code"].(string); code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
