package mcp

import "github.com/mark3labs/mcp-go/mcp"

const (
	dateFormatHint = " (YYYY-MM-DD)"
)

var reportDailyToolDef = mcp.NewTool("report_daily",
	mcp.WithDescription("Daily summary for one date: toileting and diaper counts, nap duration, meals and other activities."),
	mcp.WithString("date", mcp.Description("Date to summarize"+dateFormatHint+"; default today")),
)

var reportTrendsToolDef = mcp.NewTool("report_trends",
	mcp.WithDescription("Per-day breakdown and averages over a window; default the last 7 days."),
	mcp.WithString("start_date", mcp.Description("Window start"+dateFormatHint)),
	mcp.WithString("end_date", mcp.Description("Window end"+dateFormatHint+"; default today")),
)

var reportNapsToolDef = mcp.NewTool("report_naps",
	mcp.WithDescription("Nap statistics over a window; default the last 30 days."),
	mcp.WithString("start_date", mcp.Description("Window start"+dateFormatHint)),
	mcp.WithString("end_date", mcp.Description("Window end"+dateFormatHint+"; default today")),
)

var reportMealsToolDef = mcp.NewTool("report_meals",
	mcp.WithDescription("How much of each meal was eaten (All/Some/None) over a window; default the last 30 days."),
	mcp.WithString("start_date", mcp.Description("Window start"+dateFormatHint)),
	mcp.WithString("end_date", mcp.Description("Window end"+dateFormatHint+"; default today")),
)

var reportTimelineToolDef = mcp.NewTool("report_timeline",
	mcp.WithDescription("Chronological list of one day's events."),
	mcp.WithString("date", mcp.Description("Date"+dateFormatHint+"; default today")),
)

var reportMonthlyToolDef = mcp.NewTool("report_monthly",
	mcp.WithDescription("Category and per-day counts for a calendar month, with the busiest day."),
	mcp.WithNumber("year", mcp.Description("Year; default the current year")),
	mcp.WithNumber("month", mcp.Description("Month 1-12; default the current month")),
)

var reportLifetimeToolDef = mcp.NewTool("report_lifetime",
	mcp.WithDescription("All-time totals across every stored event."),
)

var eventsSearchToolDef = mcp.NewTool("events_search",
	mcp.WithDescription("Case-insensitive search over event text, category, subtype and label."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Text to match")),
	mcp.WithString("start_date", mcp.Description("Window start"+dateFormatHint+"; default 30 days before end_date")),
	mcp.WithString("end_date", mcp.Description("Window end"+dateFormatHint+"; default today")),
	mcp.WithNumber("limit", mcp.Description("Maximum results (default 100, max 500)")),
)

var eventsDatesToolDef = mcp.NewTool("events_dates",
	mcp.WithDescription("Dates that have stored events, newest first."),
)

var eventsIngestToolDef = mcp.NewTool("events_ingest",
	mcp.WithDescription("Fetch one day's daycare report messages, extract their events and store them."),
	mcp.WithString("date", mcp.Description("Date to ingest"+dateFormatHint+"; default today")),
	mcp.WithBoolean("force", mcp.Description("Reprocess messages that were already ingested")),
	mcp.WithBoolean("notify", mcp.Description("Send the daily summary email after storing")),
)

var eventsExportToolDef = mcp.NewTool("events_export",
	mcp.WithDescription("Export stored events to a JSONL file."),
	mcp.WithString("path", mcp.Description("Output path ending in .jsonl; default a timestamped file in the exports directory")),
	mcp.WithString("start_date", mcp.Description("First date to include"+dateFormatHint)),
	mcp.WithString("end_date", mcp.Description("Last date to include"+dateFormatHint)),
)

var eventsImportToolDef = mcp.NewTool("events_import",
	mcp.WithDescription("Import events from a JSONL export."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to the .jsonl file")),
	mcp.WithString("mode", mcp.Description("skip (default), replace or error"), mcp.Enum("skip", "replace", "error")),
)

var eventsPurgeToolDef = mcp.NewTool("events_purge",
	mcp.WithDescription("Delete the events of one message, or of a date range."),
	mcp.WithString("message_id", mcp.Description("Source message whose events to delete")),
	mcp.WithString("start_date", mcp.Description("First date to delete"+dateFormatHint)),
	mcp.WithString("end_date", mcp.Description("Last date to delete"+dateFormatHint)),
)
