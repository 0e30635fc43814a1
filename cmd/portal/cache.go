// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trialportal/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the page and facet caches",
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush [key...]",
	Short: "Drop cached pages",
	Long: `Without arguments, drops every cached page and every cached tag facet.
With arguments, drops only the given page keys, for example "post:astma-faza-3".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		pages := cache.NewPageCache(client, cfg.PageCacheTTL)

		if len(args) > 0 {
			for _, key := range args {
				pages.Invalidate(ctx, key)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %d page key(s)\n", len(args))
			return nil
		}

		n := pages.InvalidateAll(ctx)
		f := cache.NewFacetCache(client, cfg.PageCacheTTL).InvalidateAll(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "dropped %d page(s) and %d facet set(s)\n", n, f)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheFlushCmd)
	rootCmd.AddCommand(cacheCmd)
}
