// Package web serves the HTML browsing and search front-end.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"hlbrowse/internal/config"
	"hlbrowse/internal/hlpath"
	"hlbrowse/internal/index/postgres"
	"hlbrowse/internal/logging"
	"hlbrowse/internal/metrics"
)

// Lister supplies server records and per-directory listings.
type Lister interface {
	GetServer(ctx context.Context, uniqueID string) (*postgres.ServerRow, error)
	ListServers(ctx context.Context) ([]*postgres.ServerRow, error)
	FolderEntries(ctx context.Context, serverID, dirPath string) ([]postgres.FileRow, error)
	FileEntries(ctx context.Context, serverID, dirPath string, limit, offset int) ([]postgres.FileRow, error)
	CountFiles(ctx context.Context, serverID, dirPath string) (int, error)
}

// Searcher matches file names by substring. Kept separate from Lister so the
// search backend can change without touching listing callers.
type Searcher interface {
	SearchFiles(ctx context.Context, query string, limit int) ([]postgres.SearchRow, error)
}

// StatsSource supplies the aggregate statistics page.
type StatsSource interface {
	Totals(ctx context.Context) (*postgres.IndexTotals, error)
	TopServersByFiles(ctx context.Context, n int) ([]postgres.ServerFileCount, error)
	TypeBreakdown(ctx context.Context, n int) ([]postgres.TypeCount, error)
	IndexerRuns(ctx context.Context) ([]postgres.IndexerRun, error)
	RecentUsers(ctx context.Context, n int) ([]postgres.UserSighting, error)
}

// Server is the HTTP front-end.
type Server struct {
	lister   Lister
	searcher Searcher
	stats    StatsSource

	fileTruncate int
	pageSize     int
	searchLimit  int

	tmpl *template.Template
}

// NewServer creates the front-end server.
func NewServer(lister Lister, searcher Searcher, stats StatsSource, cfg *config.Config) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Server{
		lister:       lister,
		searcher:     searcher,
		stats:        stats,
		fileTruncate: cfg.FileTruncate,
		pageSize:     cfg.PageSize,
		searchLimit:  cfg.SearchLimit,
		tmpl:         tmpl,
	}, nil
}

// Handler returns the HTTP handler with logging, metrics and recovery
// middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(logging.Middleware)
	r.Use(metrics.Middleware)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(themeMiddleware)
		r.Get("/", s.handleServers)
		r.Get("/browse", s.handleBrowse)
		r.Get("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// themeMiddleware persists an explicit mode switch in the theme cookie and
// redirects back to the same URL without the mode parameter.
func themeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mode := r.URL.Query().Get("mode"); mode == "light" || mode == "dark" {
			http.SetCookie(w, &http.Cookie{
				Name:     themeCookie,
				Value:    mode,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				SameSite: http.SameSiteLaxMode,
			})
			http.Redirect(w, r, stripMode(r), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) frame(r *http.Request, title string) Frame {
	theme := resolveTheme(r)
	return Frame{
		Title:     title,
		Theme:     theme,
		ToggleURL: toggleURL(r, theme),
		Query:     r.URL.Query().Get("query"),
	}
}

// render executes the named template into a buffer first so a template error
// never produces a partially written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logging.WithContext(r.Context()).Error("template render failed",
			zap.String("template", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	s.render(w, r, status, "error", errorPage{
		Frame:   s.frame(r, title),
		Message: message,
	})
}

func (s *Server) renderDBError(w http.ResponseWriter, r *http.Request, err error) {
	logging.WithContext(r.Context()).Error("query failed", zap.Error(err))
	s.renderError(w, r, http.StatusInternalServerError, "Database error",
		"The index database could not be queried. Please try again later.")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.lister.ListServers(r.Context())
	if err != nil {
		s.renderDBError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "servers", serversPage{
		Frame:   s.frame(r, "Servers"),
		Servers: servers,
	})
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serverID := r.URL.Query().Get("server_id")
	if serverID == "" {
		s.renderError(w, r, http.StatusBadRequest, "Missing server", "no server id provided")
		return
	}

	dir := hlpath.NormalizeDir(r.URL.Query().Get("path"))
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 1 {
		page = p
	}

	srv, err := s.lister.GetServer(ctx, serverID)
	if errors.Is(err, postgres.ErrServerNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Unknown server", "server not found")
		return
	}
	if err != nil {
		s.renderDBError(w, r, err)
		return
	}

	folders, err := s.lister.FolderEntries(ctx, serverID, dir)
	if err != nil {
		s.renderDBError(w, r, err)
		return
	}

	// Truncation takes precedence over pagination: with a truncation limit
	// the page parameter is ignored and only the first window is shown.
	limit, offset := s.fileTruncate, 0
	if s.fileTruncate == 0 {
		limit = s.pageSize
		offset = (page - 1) * s.pageSize
	}

	files, err := s.lister.FileEntries(ctx, serverID, dir, limit, offset)
	if err != nil {
		s.renderDBError(w, r, err)
		return
	}
	total, err := s.lister.CountFiles(ctx, serverID, dir)
	if err != nil {
		s.renderDBError(w, r, err)
		return
	}

	p := browsePage{
		Frame:         s.frame(r, srv.Name+": "+dir),
		Server:        srv,
		Path:          dir,
		Breadcrumbs:   hlpath.Breadcrumbs(dir),
		Folders:       folders,
		Files:         files,
		TotalFiles:    total,
		TruncateLimit: s.fileTruncate,
		Page:          page,
	}
	if dir != "/" {
		p.UpURL = browseURL(serverID, hlpath.ParentDir(dir), 1)
	}

	if s.fileTruncate > 0 {
		p.Truncated = total > s.fileTruncate
		p.TotalPages = 1
	} else {
		p.TotalPages = (total + s.pageSize - 1) / s.pageSize
		if page > 1 {
			p.PrevURL = browseURL(serverID, dir, page-1)
		}
		if page < p.TotalPages {
			p.NextURL = browseURL(serverID, dir, page+1)
		}
	}

	metrics.RecordListing()
	s.render(w, r, http.StatusOK, "browse", p)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	p := searchPage{
		Frame: s.frame(r, "Search"),
		Limit: s.searchLimit,
	}

	if query != "" {
		results, err := s.searcher.SearchFiles(r.Context(), query, s.searchLimit)
		if err != nil {
			s.renderDBError(w, r, err)
			return
		}
		p.Results = results
		p.Capped = len(results) >= s.searchLimit
		metrics.RecordSearch(len(results))
	}

	s.render(w, r, http.StatusOK, "search", p)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totals, err := s.stats.Totals(ctx)
	if err != nil {
		s.renderDBError(w, r, err)
		return
	}
	topServers, err := s.stats.TopServersByFiles(ctx, 10)
	if err != nil {
		s.renderDBError(w, r, err)
		return
	}
	types, err := s.stats.TypeBreakdown(ctx, 10)
	if err != nil {
		s.renderDBError(w, r, err)
		return
	}
	runs, err := s.stats.IndexerRuns(ctx)
	if err != nil {
		s.renderDBError(w, r, err)
		return
	}
	users, err := s.stats.RecentUsers(ctx, 20)
	if err != nil {
		s.renderDBError(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "stats", statsPage{
		Frame:       s.frame(r, "Statistics"),
		Totals:      totals,
		TopServers:  topServers,
		Types:       types,
		IndexerRuns: runs,
		RecentUsers: users,
	})
}
