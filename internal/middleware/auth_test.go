package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"trialportal/internal/auth"
)

// memStore is an in-memory auth.Storage.
type memStore struct {
	token string
	user  *auth.User
}

func (s *memStore) Load(context.Context) (string, *auth.User, error) { return s.token, s.user, nil }

func (s *memStore) Save(_ context.Context, token string, u auth.User) error {
	s.token, s.user = token, &u
	return nil
}

func (s *memStore) Clear(context.Context) error {
	s.token, s.user = "", nil
	return nil
}

// acceptGateway validates every token and counts the calls.
type acceptGateway struct {
	calls int
}

func (g *acceptGateway) PostAuth(_ context.Context, _, _ string, _, out any) error {
	g.calls++
	return json.Unmarshal([]byte(`{"user":{"id":5,"username":"pacient"}}`), out)
}

func factoryFor(gw auth.Gateway, store auth.Storage) ManagerFactory {
	return func(http.ResponseWriter, *http.Request) *auth.Manager {
		return auth.NewManager(gw, store)
	}
}

// okHandler is a simple handler that records whether it was invoked.
func okHandler() (http.Handler, *bool) {
	var called bool
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	return h, &called
}

func TestResolveSession(t *testing.T) {
	tests := []struct {
		name      string
		store     *memStore
		wantState auth.State
		wantCalls int
	}{
		{"no stored session", &memStore{}, auth.Unauthenticated, 0},
		{"stored session is validated", &memStore{token: "tok", user: &auth.User{ID: 5}}, auth.Authenticated, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &acceptGateway{}
			var got *auth.Manager
			handler := ResolveSession(factoryFor(gw, tt.store))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ManagerFromCtx(r.Context())
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fragments/account", nil))

			if got == nil {
				t.Fatal("expected a manager in the context")
			}
			if got.State() != tt.wantState {
				t.Errorf("state: got %s, want %s", got.State(), tt.wantState)
			}
			if gw.calls != tt.wantCalls {
				t.Errorf("validate calls: got %d, want %d", gw.calls, tt.wantCalls)
			}
		})
	}
}

func TestManagerFromCtxMissing(t *testing.T) {
	if m := ManagerFromCtx(context.Background()); m != nil {
		t.Errorf("expected nil, got %v", m)
	}
}

func TestRequireAuth(t *testing.T) {
	t.Run("redirects anonymous visitors to login with next", func(t *testing.T) {
		next, called := okHandler()
		handler := ResolveSession(factoryFor(&acceptGateway{}, &memStore{}))(RequireAuth(next))

		req := httptest.NewRequest(http.MethodGet, "/profile?tab=inquiries", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if *called {
			t.Error("next handler should not have been called")
		}
		if rr.Code != http.StatusSeeOther {
			t.Errorf("status: got %d, want 303", rr.Code)
		}
		want := "/login?next=" + url.QueryEscape("/profile?tab=inquiries")
		if loc := rr.Header().Get("Location"); loc != want {
			t.Errorf("redirect location: got %q, want %q", loc, want)
		}
	})

	t.Run("htmx requests get HX-Redirect", func(t *testing.T) {
		next, called := okHandler()
		handler := ResolveSession(factoryFor(&acceptGateway{}, &memStore{}))(RequireAuth(next))

		req := httptest.NewRequest(http.MethodPost, "/profile", nil)
		req.Header.Set("HX-Request", "true")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if *called {
			t.Error("next handler should not have been called")
		}
		if rr.Code != http.StatusNoContent {
			t.Errorf("status: got %d, want 204", rr.Code)
		}
		if got := rr.Header().Get("HX-Redirect"); got != "/login?next=%2Fprofile" {
			t.Errorf("HX-Redirect: got %q", got)
		}
	})

	t.Run("passes signed-in visitors through", func(t *testing.T) {
		next, called := okHandler()
		store := &memStore{token: "tok", user: &auth.User{ID: 5}}
		handler := ResolveSession(factoryFor(&acceptGateway{}, store))(RequireAuth(next))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/profile", nil))

		if !*called {
			t.Error("next handler should have been called")
		}
		if rr.Code != http.StatusOK {
			t.Errorf("status: got %d, want 200", rr.Code)
		}
	})

	t.Run("redirects when ResolveSession did not run", func(t *testing.T) {
		next, called := okHandler()
		rr := httptest.NewRecorder()
		RequireAuth(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/profile", nil))

		if *called {
			t.Error("next handler should not have been called")
		}
		if rr.Code != http.StatusSeeOther {
			t.Errorf("status: got %d, want 303", rr.Code)
		}
	})
}
