// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"trialportal/internal/config"
)

var rootCmd = &cobra.Command{
	Use:          "portal",
	Short:        "Clinical-trials information portal",
	Long:         `Server-rendered portal over the headless CMS that publishes clinical-trial information.`,
	SilenceUsage: true,
}

// loadConfig reads the environment and installs the default logger at the
// configured level.
func loadConfig() (*config.Config, error) {
	return loadConfigTo(os.Stdout)
}

// loadConfigTo is loadConfig with logs written to w.
func loadConfigTo(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogger(cfg, w)
	return cfg, nil
}

// setupLogger writes text logs to w. Outside development it switches to
// JSON for the log collector.
func setupLogger(cfg *config.Config, w io.Writer) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if !cfg.IsDev() {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}
