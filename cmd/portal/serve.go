// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trialportal/internal/auth"
	"trialportal/internal/cache"
	"trialportal/internal/cms"
	"trialportal/internal/content"
	"trialportal/internal/handlers"
	"trialportal/internal/middleware"
	"trialportal/internal/render"
	"trialportal/internal/router"
	"trialportal/internal/session"
)

// Form posts that reach the CMS auth API, per client and path.
const (
	formPostLimit  = 10
	formPostWindow = time.Minute
)

var _ content.FacetCache = (*cache.FacetCache)(nil)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"cms", cfg.CMSAPIURL,
	)

	// Connect to Valkey (Redis-compatible cache + session store).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		return err
	}
	defer valkeyClient.Close()

	// In non-development environments, mark cookies as Secure (HTTPS-only).
	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)

	renderer, err := render.New(cfg.IsDev())
	if err != nil {
		return err
	}

	client := cms.New(cfg.CMSAPIURL, cfg.CMSAuthURL, cms.WithTimeout(cfg.CMSTimeout))
	pageCache := cache.NewPageCache(valkeyClient, cfg.PageCacheTTL)
	catalog := content.NewCatalog(client, cache.NewFacetCache(valkeyClient, cfg.PageCacheTTL))

	publicHandlers := handlers.NewPublic(renderer, client, catalog, pageCache, handlers.PublicOptions{
		Debounce:      cfg.SearchDebounce,
		PreviewHeight: cfg.PreviewHeight,
	})
	authHandlers := handlers.NewAuth(renderer, client)

	newManager := func(w http.ResponseWriter, r *http.Request) *auth.Manager {
		return auth.NewManager(client, sessionStore.Bind(w, r))
	}

	limiter := middleware.NewRateLimiter(formPostLimit, formPostWindow)
	defer limiter.Stop()

	r := router.New(publicHandlers, authHandlers, newManager, limiter, secureCookies)

	// WriteTimeout covers a page that waits on several CMS calls.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.CMSTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("server failed to start", "error", err)
		return err
	}

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}
