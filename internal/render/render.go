// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render provides HTML template rendering for the public portal.
// It supports full-page and HTMX partial rendering, automatically detecting
// the request type via the HX-Request header, and renders cacheable pages
// to bytes without any request state.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"trialportal/internal/auth"
	"trialportal/internal/cms"
	"trialportal/internal/middleware"
)

//go:embed templates
var templateFS embed.FS

// PageData holds all data passed to page templates.
type PageData struct {
	Title     string         // Page title for <title> tag
	Section   string         // Active navigation section (e.g., "home", "search")
	User      *auth.User     // Signed-in visitor; always nil on cached pages
	CSRFToken string         // CSRF token for forms
	Data      map[string]any // Page-specific data
	Flashes   []Flash        // One-time notification messages
}

// Flash represents a one-time notification message displayed to the user.
type Flash struct {
	Type    string // "success", "error", "info"
	Message string
}

// Renderer handles template parsing and execution for portal pages.
type Renderer struct {
	pages    map[string]*template.Template
	partials *template.Template
	funcMap  template.FuncMap
}

// New creates a Renderer by parsing all templates from the embedded
// filesystem. Each page template is paired with the base layout and every
// partial. When devMode is true, pages load the unminified htmx build.
func New(devMode bool) (*Renderer, error) {
	r := &Renderer{
		pages: make(map[string]*template.Template),
		funcMap: template.FuncMap{
			// isDev returns true when the app runs in development mode.
			"isDev": func() bool {
				return devMode
			},
			// safeHTML marks CMS-rendered markup as trusted.
			"safeHTML": func(s string) template.HTML {
				return template.HTML(s)
			},
			"plain":   cms.PlainText,
			"excerpt": excerpt,
			"date":    formatDate,
			"pageURL": pageURL,
			"ms": func(d time.Duration) int64 {
				return d.Milliseconds()
			},
		},
	}

	partials, err := template.New("partials").Funcs(r.funcMap).ParseFS(templateFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse partials: %w", err)
	}
	r.partials = partials

	entries, err := templateFS.ReadDir("templates/pages")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}

	// Parse each page template paired with the base layout.
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".html" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".html")

		tmpl, err := template.New("base.html").Funcs(r.funcMap).ParseFS(templateFS,
			"templates/layout/base.html",
			"templates/partials/*.html",
			"templates/pages/"+e.Name(),
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", e.Name(), err)
		}
		r.pages[name] = tmpl
	}

	return r, nil
}

// Render executes a full page into bytes. It reads nothing from a request,
// so the result is safe to share between visitors through the page cache.
func (rn *Renderer) Render(name string, data *PageData) ([]byte, error) {
	tmpl, ok := rn.pages[name]
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Page renders a full page with status 200. See PageStatus.
func (rn *Renderer) Page(w http.ResponseWriter, r *http.Request, name string, data *PageData) {
	rn.PageStatus(w, r, http.StatusOK, name, data)
}

// PageStatus renders a full page or an HTMX partial, depending on the
// request headers. For HTMX requests, only the "content" block is sent.
// The CSRF token and signed-in user are taken from the request context.
func (rn *Renderer) PageStatus(w http.ResponseWriter, r *http.Request, status int, name string, data *PageData) {
	tmpl, ok := rn.pages[name]
	if !ok {
		slog.Error("template not found", "template", name)
		http.Error(w, "Възникна вътрешна грешка.", http.StatusInternalServerError)
		return
	}

	// Inject CSRF token from context (set by CSRF middleware).
	data.CSRFToken = middleware.CSRFTokenFromCtx(r.Context())

	// Inject the signed-in user when the session was resolved.
	if data.User == nil {
		if m := middleware.ManagerFromCtx(r.Context()); m != nil && m.State() == auth.Authenticated {
			data.User = m.User()
		}
	}

	execName := "base.html"
	if isHTMX(r) {
		execName = "content"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, execName, data); err != nil {
		slog.Error("render page", "template", name, "error", err)
		http.Error(w, "Възникна вътрешна грешка.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// Partial renders one named partial template, for HTMX fragment responses.
func (rn *Renderer) Partial(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := rn.partials.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("render partial", "template", name, "error", err)
		http.Error(w, "Възникна вътрешна грешка.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// isHTMX returns true if the request was made by HTMX (has HX-Request header).
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// excerpt returns at most n runes of the plain text of s.
func excerpt(s string, n int) string {
	text := cms.PlainText(s)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

var monthsBG = [...]string{
	"януари", "февруари", "март", "април", "май", "юни",
	"юли", "август", "септември", "октомври", "ноември", "декември",
}

// formatDate prints a date the Bulgarian way, e.g. "5 март 2026".
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.Itoa(t.Day()) + " " + monthsBG[t.Month()-1] + " " + strconv.Itoa(t.Year())
}

// pageURL links to page n of a listing. Page 1 is the bare URL.
func pageURL(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "?page=" + strconv.Itoa(n)
}
