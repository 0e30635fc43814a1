// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests: an
// in-process fake of the CMS content and auth APIs, an in-memory page cache
// and helpers that attach a resolved session to a request. Tests that need
// Valkey are skipped when it is unavailable.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"trialportal/internal/auth"
	"trialportal/internal/cms"
	"trialportal/internal/content"
	"trialportal/internal/middleware"
	"trialportal/internal/render"
)

const (
	goodToken  = "good-token"
	staleToken = "stale-token" // validates, but is refused by profile and inquiry
	goodPass   = "correct-horse"
	testCSRF   = "csrf-test-token"
)

type fakeTerm struct {
	ID   int
	Name string
	Slug string
}

type fakePost struct {
	ID       int
	Slug     string
	Title    string
	Content  string
	Date     string
	Category int
	Tags     []fakeTerm
}

// fakeCMS serves the subset of the WordPress REST API and the auth
// extension the portal talks to.
type fakeCMS struct {
	mu        sync.Mutex
	user      auth.User
	fail      map[string]bool // path -> answer 500
	hits      map[string]int
	inquiries []auth.Inquiry
	registers []auth.RegisterInput
}

var (
	tagAdults   = fakeTerm{ID: 31, Name: "Възрастни", Slug: "vazrastni"}
	tagSevere   = fakeTerm{ID: 32, Name: "Тежка форма", Slug: "tezhka-forma"}
	fixtureCats = []cms.Category{
		{ID: 7, Name: "Астма", Slug: "astma", Count: 2},
		{ID: 8, Name: "Онкология", Slug: "onkologia", Count: 0},
	}
	fixturePosts = []fakePost{
		{
			ID: 101, Slug: "astma-faza-3", Title: "Астма &#8211; фаза 3",
			Content: "<p>Пълни условия на изпитването.</p>", Date: "2026-03-05T10:00:00",
			Category: 7, Tags: []fakeTerm{tagAdults, tagSevere},
		},
		{
			ID: 102, Slug: "detska-astma", Title: "Детска астма",
			Content: "<p>Проучване при деца.</p>", Date: "2026-02-01T09:00:00",
			Category: 7, Tags: []fakeTerm{tagAdults},
		},
	}
)

func newFakeCMS() *fakeCMS {
	return &fakeCMS{
		user: auth.User{
			ID: 5, Username: "ivana.p", Email: "ivana@example.bg",
			FirstName: "Ивана", LastName: "Петрова", Phone: "0888123456",
		},
		fail: make(map[string]bool),
		hits: make(map[string]int),
	}
}

func (f *fakeCMS) failPath(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[path] = true
}

func (f *fakeCMS) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeCMS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	failing := f.fail[r.URL.Path]
	f.mu.Unlock()

	if failing {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "fatal"})
		return
	}

	switch r.URL.Path {
	case "/wp/v2/categories":
		f.categories(w, r)
	case "/wp/v2/posts":
		f.posts(w, r)
	case "/wp/v2/tags":
		writeJSON(w, http.StatusOK, []cms.Tag{
			{ID: tagAdults.ID, Name: tagAdults.Name, Slug: tagAdults.Slug, Count: 2},
			{ID: tagSevere.ID, Name: tagSevere.Name, Slug: tagSevere.Slug, Count: 1},
		})
	case "/wp/v2/services":
		writeJSON(w, http.StatusOK, []map[string]any{{
			"id": 1, "slug": "pulmologia",
			"title":   map[string]string{"rendered": "Пулмология"},
			"excerpt": map[string]string{"rendered": "<p>Заболявания на дихателната система.</p>"},
		}})
	case "/auth/login":
		f.login(w, r)
	case "/auth/register":
		f.register(w, r)
	case "/auth/validate":
		if !f.bearer(r, goodToken, staleToken) {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "Невалиден токен."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": f.currentUser()})
	case "/auth/profile":
		f.profile(w, r)
	case "/auth/clinical-inquiry":
		f.inquiry(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeCMS) categories(w http.ResponseWriter, r *http.Request) {
	s := r.URL.Query().Get("slug")
	if s == "" {
		writeJSON(w, http.StatusOK, fixtureCats)
		return
	}
	out := []cms.Category{}
	for _, c := range fixtureCats {
		if c.Slug == s {
			out = append(out, c)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeCMS) posts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cat, _ := strconv.Atoi(q.Get("categories"))
	var tags []int
	if raw := q.Get("tags"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, _ := strconv.Atoi(part)
			tags = append(tags, id)
		}
	}
	search := strings.ToLower(q.Get("search"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	out := []map[string]any{}
	for _, p := range fixturePosts {
		if cat != 0 && p.Category != cat {
			continue
		}
		if s := q.Get("slug"); s != "" && p.Slug != s {
			continue
		}
		if len(tags) > 0 && !hasAnyTag(p, tags) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Title+" "+p.Content), search) {
			continue
		}
		out = append(out, wireFakePost(p))
	}
	if perPage > 0 && len(out) > perPage {
		out = out[:perPage]
	}
	writeJSON(w, http.StatusOK, out)
}

func hasAnyTag(p fakePost, ids []int) bool {
	for _, t := range p.Tags {
		if slices.Contains(ids, t.ID) {
			return true
		}
	}
	return false
}

func wireFakePost(p fakePost) map[string]any {
	var catTerms, tagTerms []map[string]any
	tagIDs := []int{}
	for _, c := range fixtureCats {
		if c.ID == p.Category {
			catTerms = append(catTerms, map[string]any{"id": c.ID, "name": c.Name, "slug": c.Slug, "taxonomy": "category"})
		}
	}
	for _, t := range p.Tags {
		tagIDs = append(tagIDs, t.ID)
		tagTerms = append(tagTerms, map[string]any{"id": t.ID, "name": t.Name, "slug": t.Slug, "taxonomy": "post_tag"})
	}
	return map[string]any{
		"id":         p.ID,
		"slug":       p.Slug,
		"date":       p.Date,
		"title":      map[string]string{"rendered": p.Title},
		"content":    map[string]string{"rendered": p.Content},
		"excerpt":    map[string]string{"rendered": "<p>Кратко описание на проучването.</p>"},
		"categories": []int{p.Category},
		"tags":       tagIDs,
		"_embedded":  map[string]any{"wp:term": [][]map[string]any{catTerms, tagTerms}},
	}
}

func (f *fakeCMS) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	if body.Password != goodPass {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"code":    "incorrect_password",
			"message": "<strong>Грешка:</strong> Грешна парола.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": goodToken, "user": f.currentUser()})
}

func (f *fakeCMS) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	json.NewDecoder(r.Body).Decode(&in)
	if in.Username == "zaet" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Потребителското име е заето."})
		return
	}
	f.mu.Lock()
	f.registers = append(f.registers, in)
	f.user = auth.User{ID: 6, Username: in.Username, Email: in.Email, FirstName: in.FirstName, LastName: in.LastName}
	u := f.user
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"token": goodToken, "user": u})
}

func (f *fakeCMS) profile(w http.ResponseWriter, r *http.Request) {
	if !f.bearer(r, goodToken) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Сесията е изтекла."})
		return
	}
	var upd auth.ProfileUpdate
	json.NewDecoder(r.Body).Decode(&upd)

	f.mu.Lock()
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&f.user.FirstName, upd.FirstName)
	set(&f.user.LastName, upd.LastName)
	set(&f.user.Phone, upd.Phone)
	set(&f.user.City, upd.City)
	set(&f.user.BirthYear, upd.BirthYear)
	u := f.user
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": u})
}

func (f *fakeCMS) inquiry(w http.ResponseWriter, r *http.Request) {
	if !f.bearer(r, goodToken) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Сесията е изтекла."})
		return
	}
	var in auth.Inquiry
	json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	f.inquiries = append(f.inquiries, in)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (f *fakeCMS) bearer(r *http.Request, accepted ...string) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return slices.Contains(accepted, token)
}

func (f *fakeCMS) currentUser() auth.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// memPages is an in-memory PageCache.
type memPages struct {
	mu    sync.Mutex
	pages map[string][]byte
}

func (m *memPages) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	html, ok := m.pages[key]
	return html, ok
}

func (m *memPages) Set(_ context.Context, key string, html []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pages == nil {
		m.pages = make(map[string][]byte)
	}
	m.pages[key] = html
}

func (m *memPages) has(key string) bool {
	_, ok := m.Get(context.Background(), key)
	return ok
}

// memStore is an in-memory auth.Storage.
type memStore struct {
	mu    sync.Mutex
	token string
	user  *auth.User
}

func (s *memStore) Load(context.Context) (string, *auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.user, nil
}

func (s *memStore) Save(_ context.Context, token string, u auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = token, &u
	return nil
}

func (s *memStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = "", nil
	return nil
}

func (s *memStore) stored() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// testEnv holds all dependencies for handler tests.
type testEnv struct {
	CMS      *fakeCMS
	Client   *cms.Client
	Renderer *render.Renderer
	Pages    *memPages
	Catalog  *content.Catalog
	Public   *Public
	Auth     *Auth
}

// newTestEnv creates a complete test environment backed by a fake CMS.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := newFakeCMS()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	renderer, err := render.New(true)
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	client := cms.New(srv.URL+"/wp/v2", srv.URL+"/auth")
	catalog := content.NewCatalog(client, nil)
	pages := &memPages{}

	return &testEnv{
		CMS:      fake,
		Client:   client,
		Renderer: renderer,
		Pages:    pages,
		Catalog:  catalog,
		Public:   NewPublic(renderer, client, catalog, pages, PublicOptions{}),
		Auth:     NewAuth(renderer, client),
	}
}

// withSession resolves a session holding token (none when empty) and puts
// the manager and a CSRF token in the request context, the way the
// middleware chain does.
func (e *testEnv) withSession(t *testing.T, r *http.Request, token string) (*http.Request, *memStore) {
	t.Helper()

	store := &memStore{}
	if token != "" {
		u := e.CMS.currentUser()
		store.token, store.user = token, &u
	}
	m := auth.NewManager(e.Client, store)
	m.CheckAuthOnLoad(r.Context())

	ctx := context.WithValue(r.Context(), middleware.ManagerKey, m)
	ctx = context.WithValue(ctx, middleware.CSRFKey, testCSRF)
	return r.WithContext(ctx), store
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// formRequest builds a urlencoded POST.
func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     envOr("VALKEY_HOST", "localhost") + ":" + envOr("VALKEY_PORT", "6379"),
		Password: os.Getenv("VALKEY_PASSWORD"),
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, "page:*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	return client
}
