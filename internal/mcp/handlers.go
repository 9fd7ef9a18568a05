package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/errors"
	"github.com/hpungsan/nestlog/internal/mail"
	"github.com/hpungsan/nestlog/internal/notify"
	"github.com/hpungsan/nestlog/internal/ops"
)

// Deps are the outside collaborators of the ingest tool. A nil Source
// makes events_ingest fail with INVALID_REQUEST.
type Deps struct {
	Source   mail.Source
	Notifier notify.Notifier
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db    *sql.DB
	cfg   *config.Config
	deps  Deps
	paths ops.PathPolicy
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, baseDir string, deps Deps) *Handlers {
	return &Handlers{db: db, cfg: cfg, deps: deps, paths: ops.NewPathPolicy(baseDir, cfg)}
}

// DateRequest carries an optional single date.
type DateRequest struct {
	Date string `json:"date,omitempty"`
}

// RangeRequest carries an optional date window.
type RangeRequest struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// MonthlyRequest represents the arguments for report_monthly.
type MonthlyRequest struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

// SearchRequest represents the arguments for events_search.
type SearchRequest struct {
	Query     string `json:"query"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// IngestRequest represents the arguments for events_ingest.
type IngestRequest struct {
	Date   string `json:"date,omitempty"`
	Force  bool   `json:"force,omitempty"`
	Notify bool   `json:"notify,omitempty"`
}

// ExportRequest represents the arguments for events_export.
type ExportRequest struct {
	Path      string `json:"path,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// ImportRequest represents the arguments for events_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// PurgeRequest represents the arguments for events_purge.
type PurgeRequest struct {
	MessageID string `json:"message_id,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// call decodes the arguments into T, runs fn and wraps the outcome.
func call[T any, R any](req mcp.CallToolRequest, fn func(T) (R, error)) (*mcp.CallToolResult, error) {
	input, err := decode[T](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := fn(input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDaily handles the report_daily tool call.
func (h *Handlers) HandleDaily(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in DateRequest) (*ops.DailyOutput, error) {
		return ops.DailySummary(ctx, h.db, h.cfg, ops.DailyInput{Date: in.Date})
	})
}

// HandleTrends handles the report_trends tool call.
func (h *Handlers) HandleTrends(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in RangeRequest) (*activity.Trends, error) {
		return ops.WeeklyTrends(ctx, h.db, h.cfg, ops.RangeInput{StartDate: in.StartDate, EndDate: in.EndDate})
	})
}

// HandleNaps handles the report_naps tool call.
func (h *Handlers) HandleNaps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in RangeRequest) (*ops.NapAnalysisOutput, error) {
		return ops.NapAnalysis(ctx, h.db, h.cfg, ops.RangeInput{StartDate: in.StartDate, EndDate: in.EndDate})
	})
}

// HandleMeals handles the report_meals tool call.
func (h *Handlers) HandleMeals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in RangeRequest) (*ops.MealAnalysisOutput, error) {
		return ops.MealAnalysis(ctx, h.db, h.cfg, ops.RangeInput{StartDate: in.StartDate, EndDate: in.EndDate})
	})
}

// HandleTimeline handles the report_timeline tool call.
func (h *Handlers) HandleTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in DateRequest) (*ops.TimelineOutput, error) {
		return ops.Timeline(ctx, h.db, h.cfg, ops.DailyInput{Date: in.Date})
	})
}

// HandleMonthly handles the report_monthly tool call.
func (h *Handlers) HandleMonthly(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in MonthlyRequest) (*activity.MonthlySummary, error) {
		return ops.MonthlySummary(ctx, h.db, h.cfg, ops.MonthlyInput{Year: in.Year, Month: in.Month})
	})
}

// HandleLifetime handles the report_lifetime tool call.
func (h *Handlers) HandleLifetime(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(struct{}) (*activity.LifetimeSummary, error) {
		return ops.LifetimeSummary(ctx, h.db)
	})
}

// HandleSearch handles the events_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in SearchRequest) (*ops.SearchOutput, error) {
		return ops.Search(ctx, h.db, h.cfg, ops.SearchInput{
			Query:     in.Query,
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
			Limit:     in.Limit,
		})
	})
}

// HandleDates handles the events_dates tool call.
func (h *Handlers) HandleDates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(struct{}) (*ops.DatesOutput, error) {
		return ops.AvailableDates(ctx, h.db)
	})
}

// HandleIngest handles the events_ingest tool call.
func (h *Handlers) HandleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in IngestRequest) (*ops.IngestOutput, error) {
		if in.Notify && h.deps.Notifier == nil {
			return nil, errors.NewInvalidRequest("notify requested but no notifier is configured")
		}
		return ops.Ingest(ctx, h.db, h.cfg, h.deps.Source, h.deps.Notifier, ops.IngestInput{
			Date:   in.Date,
			Force:  in.Force,
			Notify: in.Notify,
		})
	})
}

// HandleExport handles the events_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ExportRequest) (*ops.ExportOutput, error) {
		return ops.Export(ctx, h.db, h.cfg, h.paths, ops.ExportInput{
			Path:      in.Path,
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
		})
	})
}

// HandleImport handles the events_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ImportRequest) (*ops.ImportOutput, error) {
		return ops.Import(ctx, h.db, h.paths, ops.ImportInput{Path: in.Path, Mode: ops.ImportMode(in.Mode)})
	})
}

// HandlePurge handles the events_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in PurgeRequest) (*ops.PurgeOutput, error) {
		return ops.Purge(ctx, h.db, ops.PurgeInput{
			MessageID: in.MessageID,
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
		})
	})
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if nErr, ok := err.(*errors.NestError); ok {
		errorObj := map[string]any{
			"code":    nErr.Code,
			"message": nErr.Message,
			"status":  nErr.Status,
		}
		if nErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if nErr.Details != nil {
			errorObj["details"] = nErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
