package web

import (
	"net/http"
	"net/url"
	"strconv"

	"hlbrowse/internal/hlpath"
	"hlbrowse/internal/index/postgres"
)

const themeCookie = "theme"

// Frame carries request-scoped presentation state shared by every page.
// It is built per request and passed down explicitly, never stored globally.
type Frame struct {
	Title     string
	Theme     string // "light" or "dark"
	ToggleURL string // current URL with mode set to the opposite theme
	Query     string // echoed search box content
}

// serversPage is the front-page server directory.
type serversPage struct {
	Frame
	Servers []*postgres.ServerRow
}

// browsePage is a directory listing for one server path.
type browsePage struct {
	Frame
	Server      *postgres.ServerRow
	Path        string
	UpURL       string // listing of the parent directory, empty at root
	Breadcrumbs []hlpath.Crumb
	Folders     []postgres.FileRow
	Files       []postgres.FileRow
	TotalFiles  int

	// Truncation takes precedence over pagination.
	Truncated     bool
	TruncateLimit int

	Page       int
	TotalPages int
	PrevURL    string
	NextURL    string
}

// searchPage is the global search result view.
type searchPage struct {
	Frame
	Results []postgres.SearchRow
	Capped  bool
	Limit   int
}

// statsPage is the aggregate statistics view.
type statsPage struct {
	Frame
	Totals      *postgres.IndexTotals
	TopServers  []postgres.ServerFileCount
	Types       []postgres.TypeCount
	IndexerRuns []postgres.IndexerRun
	RecentUsers []postgres.UserSighting
}

// errorPage renders a terminal error in place of the requested content.
type errorPage struct {
	Frame
	Message string
}

// resolveTheme returns the theme for this request: the cookie value if valid,
// otherwise light.
func resolveTheme(r *http.Request) string {
	if c, err := r.Cookie(themeCookie); err == nil {
		if c.Value == "dark" || c.Value == "light" {
			return c.Value
		}
	}
	return "light"
}

// toggleURL returns the current URL with mode set to the opposite theme.
func toggleURL(r *http.Request, theme string) string {
	opposite := "dark"
	if theme == "dark" {
		opposite = "light"
	}
	u := *r.URL
	q := u.Query()
	q.Set("mode", opposite)
	u.RawQuery = q.Encode()
	return u.String()
}

// stripMode returns the current URL with the mode parameter removed.
func stripMode(r *http.Request) string {
	u := *r.URL
	q := u.Query()
	q.Del("mode")
	u.RawQuery = q.Encode()
	if u.String() == "" {
		return "/"
	}
	return u.String()
}

// browseURL builds a listing URL for the given server, path and page.
func browseURL(serverID, path string, page int) string {
	q := url.Values{}
	q.Set("server_id", serverID)
	q.Set("path", path)
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	return "/browse?" + q.Encode()
}
