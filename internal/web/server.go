package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/mail"
	"github.com/hpungsan/nestlog/internal/notify"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Deps are the collaborators the ingest endpoint needs. A nil Source
// disables ingest; a nil Notifier skips the digest.
type Deps struct {
	Source   mail.Source
	Notifier notify.Notifier
}

// NewServer creates the HTTP server for the nestlog dashboard.
func NewServer(db *sql.DB, cfg *config.Config, deps Deps, version, bind string, port int) *http.Server {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		log.Fatalf("failed to create template sub-FS: %v", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatalf("failed to create static sub-FS: %v", err)
	}

	h := &Handlers{
		db:       db,
		cfg:      cfg,
		deps:     deps,
		renderer: NewRenderer(templateSub, version),
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           securityHeaders(h.routes(staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (h *Handlers) routes(static fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	mux.HandleFunc("GET /dashboard", h.HandleDashboard)
	mux.HandleFunc("GET /search", h.HandleSearch)

	mux.HandleFunc("GET /api/daily-summary", h.api(h.dailySummary))
	mux.HandleFunc("GET /api/weekly-trends", h.api(h.weeklyTrends))
	mux.HandleFunc("GET /api/nap-analysis", h.api(h.napAnalysis))
	mux.HandleFunc("GET /api/meal-analysis", h.api(h.mealAnalysis))
	mux.HandleFunc("GET /api/timeline", h.api(h.timeline))
	mux.HandleFunc("GET /api/monthly-summary", h.api(h.monthlySummary))
	mux.HandleFunc("GET /api/lifetime", h.api(h.lifetime))
	mux.HandleFunc("GET /api/search", h.api(h.search))
	mux.HandleFunc("GET /api/available-dates", h.api(h.availableDates))
	mux.HandleFunc("GET /api/overview", h.api(h.overview))
	mux.HandleFunc("GET /api/ingest", h.HandleIngest)
	mux.HandleFunc("POST /api/ingest", h.HandleIngest)

	if static != nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	}
	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and shuts it down gracefully on SIGINT/SIGTERM.
func Run(srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Printf("nestlog dashboard running at http://%s", srv.Addr)
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Printf("WARNING: Server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
