// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"trialportal/internal/auth"
	"trialportal/internal/cache"
	"trialportal/internal/cms"
	"trialportal/internal/content"
	"trialportal/internal/filter"
	"trialportal/internal/gate"
	"trialportal/internal/render"
	"trialportal/internal/slug"
)

const (
	homeLatestPosts = 6
	homePopularTags = 12
)

// PageCache stores rendered, session-independent pages.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, html []byte)
}

// CMS is the subset of the CMS client the public pages read from.
type CMS interface {
	Categories(ctx context.Context) ([]cms.Category, error)
	Services(ctx context.Context) ([]cms.Service, error)
	Posts(ctx context.Context, q cms.PostsQuery) ([]cms.Post, error)
	PostBySlug(ctx context.Context, slug string) (*cms.Post, error)
	Tags(ctx context.Context) ([]cms.Tag, error)
}

// PublicOptions tune the public pages.
type PublicOptions struct {
	PerPage       int           // category listing page size
	Debounce      time.Duration // search input debounce
	PreviewHeight int           // gate preview height in pixels
}

// Public groups handlers for the public-facing portal. Pages that do not
// depend on the visitor are served from the Valkey page cache and stored
// there on miss; everything session-specific is loaded as a fragment.
type Public struct {
	renderer  *render.Renderer
	cms       CMS
	catalog   *content.Catalog
	pageCache PageCache
	opts      PublicOptions
}

// NewPublic creates a new Public handler group.
func NewPublic(renderer *render.Renderer, client CMS, catalog *content.Catalog, pageCache PageCache, opts PublicOptions) *Public {
	if opts.PerPage <= 0 {
		opts.PerPage = content.DefaultPerPage
	}
	if opts.Debounce <= 0 {
		opts.Debounce = filter.DefaultDebounce
	}
	if opts.PreviewHeight <= 0 {
		opts.PreviewHeight = gate.DefaultPreviewHeight
	}
	return &Public{
		renderer:  renderer,
		cms:       client,
		catalog:   catalog,
		pageCache: pageCache,
		opts:      opts,
	}
}

// Home renders the landing page: categories, therapeutic areas, the newest
// posts and the most used tags. The four CMS reads run concurrently. Only
// the category list is required; the other sections are dropped on failure
// and the page is then not cached.
func (p *Public) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if p.serveCached(w, r, cache.HomepageKey()) {
		return
	}

	var (
		categories []cms.Category
		services   []cms.Service
		posts      []cms.Post
		tags       []cms.Tag
		partial    bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = p.cms.Categories(gctx)
		return err
	})
	// Optional sections report failure through their own flags so one of
	// them cannot cancel the others.
	var servicesErr, postsErr, tagsErr error
	g.Go(func() error {
		services, servicesErr = p.cms.Services(gctx)
		return nil
	})
	g.Go(func() error {
		posts, postsErr = p.cms.Posts(gctx, cms.PostsQuery{PerPage: homeLatestPosts})
		return nil
	})
	g.Go(func() error {
		tags, tagsErr = p.cms.Tags(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Error("home: list categories", "error", err)
		p.unavailable(w, r)
		return
	}
	if err := errors.Join(servicesErr, postsErr, tagsErr); err != nil {
		slog.Warn("home: optional section failed", "error", err)
		partial = true
	}

	out, err := p.renderer.Render("home", &render.PageData{
		Section: "home",
		Data: map[string]any{
			"Categories": categories,
			"Services":   services,
			"Posts":      posts,
			"Tags":       popularTags(tags, homePopularTags),
		},
	})
	if err != nil {
		slog.Error("render home", "error", err)
		p.unavailable(w, r)
		return
	}
	if !partial {
		p.pageCache.Set(ctx, cache.HomepageKey(), out)
	}
	writeHTML(w, http.StatusOK, out)
}

// Category renders one page of a category listing. The listing is sliced
// locally from the newest posts of the category.
func (p *Public) Category(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := slug.Normalize(chi.URLParam(r, "slug"))
	if !ok {
		p.NotFound(w, r)
		return
	}
	page := pageParam(r)

	key := cache.CategoryKey(s, page)
	if p.serveCached(w, r, key) {
		return
	}

	cat, listing, err := p.catalog.CategoryListing(ctx, s, page, p.opts.PerPage)
	if err != nil {
		p.NotFound(w, r)
		return
	}

	out, err := p.renderer.Render("category", &render.PageData{
		Title:   cat.Name,
		Section: "category",
		Data: map[string]any{
			"Category": cat,
			"Page":     listing,
			"BaseURL":  "/categories/" + s,
		},
	})
	if err != nil {
		slog.Error("render category", "slug", s, "error", err)
		p.unavailable(w, r)
		return
	}
	// Pages past the end are rendered but not cached, so arbitrary ?page
	// values cannot grow the cache.
	if listing.Total > 0 && listing.Page <= listing.TotalPages {
		p.pageCache.Set(ctx, key, out)
	}
	writeHTML(w, http.StatusOK, out)
}

// resultsView is the data of the search_results partial.
type resultsView struct {
	Posts     []cms.Post
	Filtering bool
}

// Search renders the faceted search page of a category with every post of
// the category in the initial result list. The bare page is cached; a
// request carrying a selection is rendered with that selection applied.
func (p *Public) Search(w http.ResponseWriter, r *http.Request) {
	s, ok := slug.Normalize(chi.URLParam(r, "slug"))
	if !ok {
		p.NotFound(w, r)
		return
	}
	p.searchPage(w, r, s, filter.Selection{})
}

// SearchResults answers the search form. HTMX requests get the results
// partial; a plain form submission gets the whole search page.
func (p *Public) SearchResults(w http.ResponseWriter, r *http.Request) {
	s, ok := slug.Normalize(chi.URLParam(r, "slug"))
	if !ok {
		p.NotFound(w, r)
		return
	}
	sel := filter.ParseSelection(r.URL.Query())

	if !isHTMX(r) {
		p.searchPage(w, r, s, sel)
		return
	}

	view := p.results(r.Context(), s, sel)
	pushURL := "/categories/" + s + "/search"
	if sel.Active() {
		pushURL += "/results?" + sel.Encode()
	}
	w.Header().Set("HX-Push-Url", pushURL)
	p.renderer.Partial(w, "search_results", view)
}

func (p *Public) searchPage(w http.ResponseWriter, r *http.Request, s string, sel filter.Selection) {
	ctx := r.Context()
	cacheable := !sel.Active()
	if cacheable && p.serveCached(w, r, cache.SearchKey(s)) {
		return
	}

	cat, err := p.catalog.Category(ctx, s)
	if err != nil {
		p.NotFound(w, r)
		return
	}

	var (
		tags []cms.Tag
		view resultsView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tags = p.catalog.TagsForCategory(gctx, s)
		return nil
	})
	g.Go(func() error {
		view = p.results(gctx, s, sel)
		return nil
	})
	g.Wait()

	out, err := p.renderer.Render("search", &render.PageData{
		Title:   cat.Name,
		Section: "search",
		Data: map[string]any{
			"Category":   cat,
			"Tags":       tags,
			"Selection":  sel,
			"Results":    view,
			"ResultsURL": "/categories/" + s + "/search/results",
			"Debounce":   p.opts.Debounce,
		},
	})
	if err != nil {
		slog.Error("render search", "slug", s, "error", err)
		p.unavailable(w, r)
		return
	}
	if cacheable && len(view.Posts) > 0 {
		p.pageCache.Set(ctx, cache.SearchKey(s), out)
	}
	writeHTML(w, http.StatusOK, out)
}

// results runs the selection against the category. Without a selection the
// result is the initial dataset: every post of the category up to the cap.
func (p *Public) results(ctx context.Context, s string, sel filter.Selection) resultsView {
	if !sel.Active() {
		return resultsView{Posts: p.catalog.FilteredPosts(ctx, s, nil, "", content.FacetPostCap)}
	}
	return resultsView{
		Posts:     p.catalog.FilteredPosts(ctx, s, sel.Tags, sel.Text, content.FacetPostCap),
		Filtering: true,
	}
}

// Post renders a post page. The article body sits behind the gate and is
// never part of the cached page: the page carries a skeleton that loads
// the resolved block from ProtectedFragment.
func (p *Public) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := slug.Normalize(chi.URLParam(r, "slug"))
	if !ok {
		p.NotFound(w, r)
		return
	}

	if p.serveCached(w, r, cache.PostKey(s)) {
		return
	}

	post, err := p.cms.PostBySlug(ctx, s)
	if err != nil {
		p.unavailable(w, r)
		return
	}
	if post == nil {
		p.NotFound(w, r)
		return
	}

	skeleton, err := gate.HTML(auth.Unknown, "", gate.Options{FragmentURL: "/fragments/protected/" + s})
	if err != nil {
		slog.Error("render gate skeleton", "slug", s, "error", err)
		p.unavailable(w, r)
		return
	}

	out, err := p.renderer.Render("post", &render.PageData{
		Title:   cms.PlainText(post.Title),
		Section: "post",
		Data: map[string]any{
			"Post": post,
			"Gate": skeleton,
		},
	})
	if err != nil {
		slog.Error("render post", "slug", s, "error", err)
		p.unavailable(w, r)
		return
	}
	p.pageCache.Set(ctx, cache.PostKey(s), out)
	writeHTML(w, http.StatusOK, out)
}

// inquiryView is the data of the inquiry_form partial.
type inquiryView struct {
	PostID           int
	TrialTitle       string
	Message          string
	Phone            string
	PreferredContact string
	CSRFToken        string
	Error            string
	Errors           map[string]string
	Sent             bool
}

// ProtectedFragment renders the gated body of a post for the current
// visitor. The session has been resolved by middleware, so the gate only
// ever sees Authenticated or Unauthenticated here.
func (p *Public) ProtectedFragment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, ok := managerOrFail(w, r)
	if !ok {
		return
	}
	s, ok := slug.Normalize(chi.URLParam(r, "slug"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	post, err := p.cms.PostBySlug(ctx, s)
	if err != nil {
		p.renderer.Partial(w, "fragment_error", "Съдържанието не може да бъде заредено. Моля, опитайте отново.")
		return
	}
	if post == nil {
		http.NotFound(w, r)
		return
	}

	state := m.State()
	next := "/posts/" + s
	block, err := gate.HTML(state, template.HTML(post.Content), gate.Options{
		PreviewHeight: p.opts.PreviewHeight,
		LoginURL:      loginURL(next),
		RegisterURL:   "/register?post=" + s,
	})
	if err != nil {
		slog.Error("render gate", "slug", s, "error", err)
		p.renderer.Partial(w, "fragment_error", "Съдържанието не може да бъде заредено. Моля, опитайте отново.")
		return
	}

	var inquiry *inquiryView
	if state == auth.Authenticated {
		inquiry = &inquiryView{
			PostID:           post.ID,
			TrialTitle:       cms.PlainText(post.Title),
			Phone:            m.User().Phone,
			PreferredContact: "email",
			CSRFToken:        csrfToken(r),
		}
	}

	p.renderer.Partial(w, "protected", struct {
		Gate    template.HTML
		Inquiry *inquiryView
	}{block, inquiry})
}

// AccountFragment renders the header account area for the current visitor.
func (p *Public) AccountFragment(w http.ResponseWriter, r *http.Request) {
	m, ok := managerOrFail(w, r)
	if !ok {
		return
	}
	var user *auth.User
	if m.State() == auth.Authenticated {
		user = m.User()
	}
	p.renderer.Partial(w, "account", struct {
		User      *auth.User
		CSRFToken string
	}{user, csrfToken(r)})
}

// NotFound renders the 404 page.
func (p *Public) NotFound(w http.ResponseWriter, r *http.Request) {
	p.renderer.PageStatus(w, r, http.StatusNotFound, "notfound", &render.PageData{Title: "Няма такава страница"})
}

// unavailable renders the error page when the CMS cannot be reached.
func (p *Public) unavailable(w http.ResponseWriter, r *http.Request) {
	p.renderer.PageStatus(w, r, http.StatusServiceUnavailable, "error", &render.PageData{
		Title: "Грешка",
		Data:  map[string]any{"Message": "Съдържанието временно не е достъпно. Моля, опитайте отново след малко."},
	})
}

// serveCached writes a cached page and reports whether it did.
func (p *Public) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	cached, ok := p.pageCache.Get(r.Context(), key)
	if !ok {
		return false
	}
	writeHTML(w, http.StatusOK, cached)
	return true
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

// pageParam reads ?page, defaulting to 1.
func pageParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// popularTags returns the n most used tags, most used first.
func popularTags(tags []cms.Tag, n int) []cms.Tag {
	sorted := slices.Clone(tags)
	slices.SortStableFunc(sorted, func(a, b cms.Tag) int {
		return b.Count - a.Count
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
