// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"trialportal/internal/cache"
	"trialportal/internal/cms"
	"trialportal/internal/content"
	"trialportal/internal/filter"
	"trialportal/internal/slug"
	"trialportal/internal/tui"
)

var browseLogFile string

var browseCmd = &cobra.Command{
	Use:   "browse <category-slug>",
	Short: "Browse and filter a category in the terminal",
	Long: `Opens an interactive browser for one category. Type to search,
press tab to move to the tag list and space to toggle a tag.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return browse(cmd.Context(), args[0])
	},
}

func init() {
	browseCmd.Flags().StringVar(&browseLogFile, "log-file", "", "write logs to this file (default: discard)")
	rootCmd.AddCommand(browseCmd)
}

func browse(ctx context.Context, rawSlug string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// The terminal belongs to the browser, so logs go elsewhere.
	var logOut io.Writer = io.Discard
	if browseLogFile != "" {
		f, err := os.OpenFile(browseLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}

	cfg, err := loadConfigTo(logOut)
	if err != nil {
		return err
	}

	categorySlug, ok := slug.Normalize(rawSlug)
	if !ok {
		return fmt.Errorf("invalid category slug %q", rawSlug)
	}

	client := cms.New(cfg.CMSAPIURL, cfg.CMSAuthURL, cms.WithTimeout(cfg.CMSTimeout))

	// Facets are shared with the server when Valkey is reachable.
	var facets content.FacetCache
	if valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword); err == nil {
		defer valkeyClient.Close()
		facets = cache.NewFacetCache(valkeyClient, cfg.PageCacheTTL)
	}
	catalog := content.NewCatalog(client, facets)

	category, err := catalog.Category(ctx, categorySlug)
	if errors.Is(err, content.ErrCategoryNotFound) {
		return fmt.Errorf("category %q not found", categorySlug)
	}
	if err != nil {
		return err
	}

	tags := catalog.TagsForCategory(ctx, categorySlug)
	initial := catalog.FilteredPosts(ctx, categorySlug, nil, "", content.FacetPostCap)

	machine := filter.New(catalog, filter.Options{
		CategorySlug: categorySlug,
		Initial:      initial,
		Debounce:     cfg.SearchDebounce,
		PerPage:      content.FacetPostCap,
	})
	defer machine.Close()

	p := tea.NewProgram(tui.New(machine, *category, tags), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run browser: %w", err)
	}
	return nil
}
