package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/errors"
	"github.com/hpungsan/nestlog/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "dashboard", "search"
}

// DashboardPageData is the template data for the dashboard page.
type DashboardPageData struct {
	PageData
	Date        string
	Dates       []string
	Summary     *ops.DailyOutput
	SummaryHTML template.HTML
	Timeline    []activity.Event
	Trends      *activity.Trends
	Naps        *ops.NapAnalysisOutput
	Meals       *ops.MealAnalysisOutput
	Lifetime    *activity.LifetimeSummary
}

// SearchPageData is the template data for the search page.
type SearchPageData struct {
	PageData
	Query     string
	StartDate string
	EndDate   string
	HasQuery  bool
	Result    *ops.SearchOutput
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer parses the layout and every page template from templateFS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"formatDate":  activity.FormatDate,
		"formatNap":   activity.FormatNap,
		"formatClock": formatClock,
		"oneDecimal":  func(v float64) string { return fmt.Sprintf("%.1f", v) },
		"joinOr":      joinOr,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"dashboard": "dashboard.html",
		"search":    "search.html",
		"error":     "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav}
}

// renderPage renders a named page template with HTTP 200.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page. htmx requests get only the
// "content" block.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}
	r.renderBlock(w, status, name, block, data)
}

// renderBlock renders one named block of a page template.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	t, ok := r.templates[page]
	if !ok {
		log.Printf("template %q not found", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		log.Printf("template %s/%s execution error: %v", page, block, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// asNestError maps err to a coded error. Uncoded errors become INTERNAL
// with a generic message so internals do not leak to the browser.
func asNestError(err error) *errors.NestError {
	var nErr *errors.NestError
	if stderrors.As(err, &nErr) {
		return nErr
	}
	log.Printf("web: internal error: %v", err)
	return errors.NewInternal(nil)
}

// renderError renders an error with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	nErr := asNestError(err)

	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(nErr.Status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(nErr.Message))
		return
	}

	if wantsJSON(req) {
		renderJSONError(w, nErr)
		return
	}

	r.renderPageStatus(w, req, nErr.Status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", nErr.Status), ""),
		StatusCode: nErr.Status,
		Message:    nErr.Message,
	})
}

func renderJSONError(w http.ResponseWriter, nErr *errors.NestError) {
	renderJSON(w, nErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(nErr.Code),
			"message": nErr.Message,
			"status":  nErr.Status,
		},
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatClock formats a generation time as "Jan 2, 3:04 PM".
func formatClock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 3:04 PM")
}

// joinOr joins items with ", ", or returns fallback when there are none.
func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
