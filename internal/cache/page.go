// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// page.go provides a Valkey-backed full-page HTML cache.
// Public pages do not depend on the visitor's session (protected blocks
// and the account menu load as fragments), so one rendered copy serves
// every visitor and a hit skips the CMS round trips entirely.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// pageKeyPrefix is the Valkey key prefix for cached pages.
	pageKeyPrefix = "page:"

	// DefaultPageTTL is how long a rendered page stays cached.
	DefaultPageTTL = 5 * time.Minute
)

// PageCache manages full-page HTML caching in Valkey.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPageCache creates a new page cache backed by the given Valkey client.
func NewPageCache(client *redis.Client, ttl time.Duration) *PageCache {
	if ttl == 0 {
		ttl = DefaultPageTTL
	}
	return &PageCache{client: client, ttl: ttl}
}

// Get retrieves cached HTML for a page key. Returns nil, false on miss.
func (pc *PageCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := pc.client.Get(ctx, pageKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("page cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("page cache hit", "key", key)
	return val, true
}

// Set stores rendered HTML for a page key with the configured TTL.
func (pc *PageCache) Set(ctx context.Context, key string, html []byte) {
	if err := pc.client.Set(ctx, pageKeyPrefix+key, html, pc.ttl).Err(); err != nil {
		slog.Warn("page cache set error", "key", key, "error", err)
	}
}

// Invalidate removes a single page from the cache.
func (pc *PageCache) Invalidate(ctx context.Context, key string) {
	if err := pc.client.Del(ctx, pageKeyPrefix+key).Err(); err != nil {
		slog.Warn("page cache invalidate error", "key", key, "error", err)
		return
	}
	slog.Debug("page cache invalidated", "key", key)
}

// InvalidateAll removes all cached pages and returns how many were removed.
func (pc *PageCache) InvalidateAll(ctx context.Context) int {
	deleted, err := deletePrefix(ctx, pc.client, pageKeyPrefix)
	if err != nil {
		slog.Warn("page cache flush error", "error", err)
	}
	if deleted > 0 {
		slog.Info("page cache fully cleared", "deleted", deleted)
	}
	return deleted
}

// HomepageKey returns the cache key for the homepage.
func HomepageKey() string {
	return "_homepage"
}

// CategoryKey returns the cache key for one page of a category listing.
func CategoryKey(slug string, page int) string {
	return fmt.Sprintf("category:%s:%d", slug, page)
}

// SearchKey returns the cache key for a category's unfiltered search page.
func SearchKey(slug string) string {
	return "search:" + slug
}

// PostKey returns the cache key for a post page.
func PostKey(slug string) string {
	return "post:" + slug
}
