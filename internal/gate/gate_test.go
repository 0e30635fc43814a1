package gate

import (
	"context"
	"encoding/json"
	"html/template"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialportal/internal/auth"
)

const article = template.HTML(`<p>Критерии за включване: възраст над 18 години.</p>`)

func render(t *testing.T, state auth.State, opts Options) string {
	t.Helper()
	out, err := HTML(state, article, opts)
	require.NoError(t, err)
	return string(out)
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, Skeleton, ModeFor(auth.Unknown))
	assert.Equal(t, Full, ModeFor(auth.Authenticated))
	assert.Equal(t, Preview, ModeFor(auth.Unauthenticated))
	assert.Equal(t, Skeleton, ModeFor(auth.State(99)))
}

func TestRenderUnknownIsSkeletonOnly(t *testing.T) {
	out := render(t, auth.Unknown, Options{FragmentURL: "/fragments/protected/izpitvane"})

	assert.Contains(t, out, "gate-skeleton")
	assert.Contains(t, out, `hx-get="/fragments/protected/izpitvane"`)
	assert.Contains(t, out, `hx-trigger="load"`)
	assert.NotContains(t, out, "Критерии")
	assert.NotContains(t, out, "gate-cta")
	assert.NotContains(t, out, "/register")
}

func TestRenderUnknownWithoutFragment(t *testing.T) {
	out := render(t, auth.Unknown, Options{})
	assert.Contains(t, out, "gate-skeleton")
	assert.NotContains(t, out, "hx-get")
}

func TestRenderAuthenticatedIsFull(t *testing.T) {
	out := render(t, auth.Authenticated, Options{PreviewHeight: 200})

	assert.Contains(t, out, string(article))
	assert.NotContains(t, out, "max-height")
	assert.NotContains(t, out, "gate-cta")
}

func TestRenderUnauthenticatedIsPreview(t *testing.T) {
	out := render(t, auth.Unauthenticated, Options{
		PreviewHeight: 240,
		LoginURL:      "/login?next=%2Fposts%2Fizpitvane",
		RegisterURL:   "/register",
	})

	assert.Contains(t, out, "max-height: 240px; overflow: hidden;")
	assert.Contains(t, out, "gate-fade")
	assert.Contains(t, out, string(article), "preview clips visually, the HTML is still sent")
	assert.Contains(t, out, `href="/register"`)
	assert.Contains(t, out, `href="/login?next=%2Fposts%2Fizpitvane"`)
	assert.Less(t, strings.Index(out, "gate-preview-body"), strings.Index(out, "gate-cta"))
}

func TestRenderPreviewDefaults(t *testing.T) {
	out := render(t, auth.Unauthenticated, Options{})
	assert.Contains(t, out, "max-height: 320px")
	assert.Contains(t, out, `href="/login"`)
	assert.Contains(t, out, `href="/register"`)
}

// slowStore holds a stored session.
type slowStore struct {
	mu    sync.Mutex
	token string
	user  *auth.User
}

func (s *slowStore) Load(context.Context) (string, *auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.user, nil
}

func (s *slowStore) Save(_ context.Context, token string, u auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = token, &u
	return nil
}

func (s *slowStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = "", nil
	return nil
}

// slowGateway answers token validation only when released.
type slowGateway struct {
	release chan struct{}
}

func (g *slowGateway) PostAuth(_ context.Context, _, _ string, _, out any) error {
	<-g.release
	return json.Unmarshal([]byte(`{"user":{"id":7,"username":"pacient"}}`), out)
}

func TestGateNeverShowsContentBeforeSessionResolves(t *testing.T) {
	for _, delay := range []time.Duration{0, time.Millisecond, 20 * time.Millisecond, 60 * time.Millisecond} {
		gw := &slowGateway{release: make(chan struct{})}
		m := auth.NewManager(gw, &slowStore{token: "tok", user: &auth.User{ID: 7}})

		done := make(chan auth.State)
		go func() { done <- m.CheckAuthOnLoad(context.Background()) }()

		deadline := time.After(delay)
	poll:
		for {
			select {
			case <-deadline:
				break poll
			default:
			}
			out := render(t, m.State(), Options{})
			require.NotContains(t, out, "Критерии", "content rendered while the session is unresolved (delay %s)", delay)
			require.NotContains(t, out, "gate-cta")
			time.Sleep(time.Millisecond)
		}

		close(gw.release)
		require.Equal(t, auth.Authenticated, <-done)
		assert.Contains(t, render(t, m.State(), Options{}), "Критерии")
	}
}
