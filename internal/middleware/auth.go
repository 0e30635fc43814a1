// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"net/http"
	"net/url"

	"trialportal/internal/auth"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// ManagerKey is the context key for the request's auth.Manager.
	ManagerKey contextKey = "auth_manager"
)

// ManagerFactory builds the auth manager for one request, usually over a
// session.Binding of w and r.
type ManagerFactory func(w http.ResponseWriter, r *http.Request) *auth.Manager

// ResolveSession creates the request's auth manager, resolves the stored
// session against the CMS and puts the manager in the context. Downstream
// handlers never see the Unknown state.
func ResolveSession(newManager ManagerFactory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := newManager(w, r)
			m.CheckAuthOnLoad(r.Context())

			ctx := context.WithValue(r.Context(), ManagerKey, m)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth sends visitors without a session to the login page, keeping
// the requested path in "next". Must be applied after ResolveSession.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := ManagerFromCtx(r.Context())
		if m == nil || m.State() != auth.Authenticated {
			target := "/login?next=" + url.QueryEscape(r.URL.RequestURI())
			if isHTMX(r) {
				// htmx follows HX-Redirect with a full page load.
				w.Header().Set("HX-Redirect", target)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ManagerFromCtx extracts the auth manager from the request context.
// Returns nil if ResolveSession did not run.
func ManagerFromCtx(ctx context.Context) *auth.Manager {
	m, _ := ctx.Value(ManagerKey).(*auth.Manager)
	return m
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
