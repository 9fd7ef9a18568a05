package mcp

import (
	"database/sql"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/nestlog/internal/config"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"report", "events"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"report_daily": {
		def:     reportDailyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDaily },
	},
	"report_trends": {
		def:     reportTrendsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTrends },
	},
	"report_naps": {
		def:     reportNapsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNaps },
	},
	"report_meals": {
		def:     reportMealsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMeals },
	},
	"report_timeline": {
		def:     reportTimelineToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTimeline },
	},
	"report_monthly": {
		def:     reportMonthlyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMonthly },
	},
	"report_lifetime": {
		def:     reportLifetimeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLifetime },
	},
	"events_search": {
		def:     eventsSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"events_dates": {
		def:     eventsDatesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDates },
	},
	"events_ingest": {
		def:     eventsIngestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIngest },
	},
	"events_export": {
		def:     eventsExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"events_import": {
		def:     eventsImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
	"events_purge": {
		def:     eventsPurgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePurge },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name
// ("report_daily" → "report").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates an MCP server with the nestlog tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, baseDir string, deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"nestlog",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, baseDir, deps)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, baseDir string, deps Deps, version string) error {
	return server.ServeStdio(NewServer(db, cfg, baseDir, deps, version))
}
