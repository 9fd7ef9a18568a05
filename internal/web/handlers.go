package web

import (
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"slices"
	"strconv"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/errors"
	"github.com/hpungsan/nestlog/internal/ops"
)

// Handlers contains the HTTP route handlers for the dashboard.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	deps     Deps
	renderer *Renderer
}

// HandleDashboard handles GET /dashboard. The selected date falls back to
// the newest stored date when the requested one has no events.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dates, err := ops.AvailableDates(ctx, h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	daily, err := ops.DailySummary(ctx, h.db, h.cfg, ops.DailyInput{Date: r.URL.Query().Get("date")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	date := daily.Date
	if len(dates.AvailableDates) > 0 && !slices.Contains(dates.AvailableDates, date) {
		date = dates.AvailableDates[0]
		if daily, err = ops.DailySummary(ctx, h.db, h.cfg, ops.DailyInput{Date: date}); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	}

	timeline, err := ops.Timeline(ctx, h.db, h.cfg, ops.DailyInput{Date: date})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	window := ops.RangeInput{EndDate: date}
	trends, err := ops.WeeklyTrends(ctx, h.db, h.cfg, window)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	naps, err := ops.NapAnalysis(ctx, h.db, h.cfg, window)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	meals, err := ops.MealAnalysis(ctx, h.db, h.cfg, window)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	lifetime, err := ops.LifetimeSummary(ctx, h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"selected_date":   date,
			"available_dates": dates.AvailableDates,
			"daily_summary":   daily,
			"timeline":        timeline.Events,
			"weekly_trends":   trends,
			"nap_analysis":    naps,
			"meal_analysis":   meals,
			"lifetime":        lifetime,
		})
		return
	}

	h.renderer.renderPage(w, r, "dashboard", DashboardPageData{
		PageData:    h.renderer.page("Dashboard", "dashboard"),
		Date:        date,
		Dates:       dates.AvailableDates,
		Summary:     daily,
		SummaryHTML: renderMarkdown(activity.SummaryMarkdown(daily.DailySummary)),
		Timeline:    timeline.Events,
		Trends:      trends,
		Naps:        naps,
		Meals:       meals,
		Lifetime:    lifetime,
	})
}

// HandleSearch handles GET /search. An empty query renders the form only.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := SearchPageData{
		PageData:  h.renderer.page("Search", "search"),
		Query:     q.Get("q"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		HasQuery:  q.Get("q") != "",
	}

	if data.HasQuery {
		result, err := ops.Search(r.Context(), h.db, h.cfg, searchInput(r))
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		data.Result = result
	}

	if wantsJSON(r) {
		if data.Result == nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest(`query parameter "q" is required`))
			return
		}
		renderJSON(w, http.StatusOK, data.Result)
		return
	}
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
		return
	}
	h.renderer.renderPage(w, r, "search", data)
}

// ingestRequest is the optional JSON body of POST /api/ingest.
type ingestRequest struct {
	Date   string `json:"date"`
	Force  bool   `json:"force"`
	Notify *bool  `json:"notify"`
}

// HandleIngest handles GET and POST /api/ingest for callers that pass
// authorized.
func (h *Handlers) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		renderJSONError(w, errors.NewUnauthorized("invalid or missing cron token"))
		return
	}
	if h.deps.Source == nil {
		renderJSONError(w, errors.NewInvalidRequest("ingest is not configured on this server"))
		return
	}

	q := r.URL.Query()
	req := ingestRequest{Date: q.Get("date"), Force: parseBoolParam(r, "force")}
	if q.Get("notify") != "" {
		n := parseBoolParam(r, "notify")
		req.Notify = &n
	}
	if r.Method == http.MethodPost && r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
		if err != nil {
			renderJSONError(w, errors.NewInvalidRequest("failed to read request body"))
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				renderJSONError(w, errors.NewInvalidRequest("body must be JSON: {\"date\", \"force\", \"notify\"}"))
				return
			}
		}
	}

	notify := req.Notify == nil || *req.Notify
	out, err := ops.Ingest(r.Context(), h.db, h.cfg, h.deps.Source, h.deps.Notifier, ops.IngestInput{
		Date:   req.Date,
		Force:  req.Force,
		Notify: notify && h.deps.Notifier != nil,
	})
	if err != nil {
		renderJSONError(w, asNestError(err))
		return
	}
	log.Printf("ingest %s: %s, %d messages, %d events stored", out.Date, out.Status, out.MessagesFound, out.EventsStored)
	renderJSON(w, http.StatusOK, out)
}

// authorized checks the cron trigger. With a cron secret configured only a
// matching X-Cron-Token passes. Without one, the scheduler's X-Cron-Invoke
// header is honored from loopback callers only.
func (h *Handlers) authorized(r *http.Request) bool {
	secret := ""
	if h.cfg != nil {
		secret = h.cfg.CronSecret
	}
	if secret != "" {
		token := r.Header.Get("X-Cron-Token")
		return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
	}
	return r.Header.Get("X-Cron-Invoke") != "" && isLoopback(r.RemoteAddr)
}

// isLoopback reports whether a RemoteAddr is a loopback address.
func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// api adapts a JSON query function to an http.HandlerFunc. Errors are
// always JSON.
func (h *Handlers) api(fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r)
		if err != nil {
			renderJSONError(w, asNestError(err))
			return
		}
		renderJSON(w, http.StatusOK, out)
	}
}

func (h *Handlers) dailySummary(r *http.Request) (any, error) {
	return ops.DailySummary(r.Context(), h.db, h.cfg, ops.DailyInput{Date: r.URL.Query().Get("date")})
}

func (h *Handlers) weeklyTrends(r *http.Request) (any, error) {
	return ops.WeeklyTrends(r.Context(), h.db, h.cfg, rangeInput(r))
}

func (h *Handlers) napAnalysis(r *http.Request) (any, error) {
	return ops.NapAnalysis(r.Context(), h.db, h.cfg, rangeInput(r))
}

func (h *Handlers) mealAnalysis(r *http.Request) (any, error) {
	return ops.MealAnalysis(r.Context(), h.db, h.cfg, rangeInput(r))
}

func (h *Handlers) timeline(r *http.Request) (any, error) {
	return ops.Timeline(r.Context(), h.db, h.cfg, ops.DailyInput{Date: r.URL.Query().Get("date")})
}

func (h *Handlers) monthlySummary(r *http.Request) (any, error) {
	year, err := parseIntStrict(r, "year")
	if err != nil {
		return nil, err
	}
	month, err := parseIntStrict(r, "month")
	if err != nil {
		return nil, err
	}
	return ops.MonthlySummary(r.Context(), h.db, h.cfg, ops.MonthlyInput{Year: year, Month: month})
}

func (h *Handlers) lifetime(r *http.Request) (any, error) {
	return ops.LifetimeSummary(r.Context(), h.db)
}

func (h *Handlers) search(r *http.Request) (any, error) {
	return ops.Search(r.Context(), h.db, h.cfg, searchInput(r))
}

func (h *Handlers) availableDates(r *http.Request) (any, error) {
	return ops.AvailableDates(r.Context(), h.db)
}

func (h *Handlers) overview(r *http.Request) (any, error) {
	return ops.Dashboard(r.Context(), h.db, h.cfg)
}

func rangeInput(r *http.Request) ops.RangeInput {
	return ops.RangeInput{
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
	}
}

func searchInput(r *http.Request) ops.SearchInput {
	q := r.URL.Query()
	return ops.SearchInput{
		Query:     q.Get("q"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Limit:     parseIntParam(r, "limit", 0),
	}
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseIntStrict parses an optional integer parameter, rejecting junk.
func parseIntStrict(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewInvalidRequest(name + " must be an integer")
	}
	return v, nil
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
