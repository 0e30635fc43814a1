// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for the
// portal. Routes fall into two groups: cacheable public pages that never
// look at the session, and session-bound pages and fragments that resolve
// the visitor's CMS session first and are never cached.
package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trialportal/internal/handlers"
	"trialportal/internal/middleware"
	"trialportal/web"
)

// New creates and returns the configured Chi router with all middleware
// and route groups wired up. limiter may be nil to disable rate limiting.
func New(public *handlers.Public, auth *handlers.Auth, newManager middleware.ManagerFactory, limiter *middleware.RateLimiter, secureCookies bool) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.RequestMemo)
	r.Use(middleware.NewCSRF(secureCookies))

	// Health check and static assets.
	r.Get("/health", healthHandler)
	r.Handle("/static/*", staticHandler())

	// Public pages, identical for every visitor and served from the page cache.
	r.Get("/", public.Home)
	r.Get("/categories/{slug}", public.Category)
	r.Get("/categories/{slug}/search", public.Search)
	r.Get("/categories/{slug}/search/results", public.SearchResults)
	r.Get("/posts/{slug}", public.Post)

	// Everything below depends on who is asking.
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Use(middleware.ResolveSession(newManager))

		r.Get("/fragments/account", public.AccountFragment)
		r.Get("/fragments/protected/{slug}", public.ProtectedFragment)

		r.Get("/login", auth.LoginPage)
		r.Post("/login", auth.LoginSubmit)
		r.Get("/register", auth.RegisterPage)
		r.Post("/register", auth.RegisterSubmit)
		r.Post("/logout", auth.Logout)

		// The inquiry form answers anonymous visitors itself, with an
		// HX-Redirect back to the post.
		r.Post("/inquiry", auth.Inquiry)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/profile", auth.ProfilePage)
			r.Post("/profile", auth.ProfileSubmit)
		})
	})

	r.NotFound(public.NotFound)

	return r
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
