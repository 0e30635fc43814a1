package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"trialportal/internal/cms"
)

const facetKeyPrefix = "facets:"

// FacetCache stores the computed tag facets of each category as JSON. It
// shares the page TTL so a cached search page and its facets age together.
type FacetCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFacetCache creates a facet cache backed by the given Valkey client.
func NewFacetCache(client *redis.Client, ttl time.Duration) *FacetCache {
	if ttl == 0 {
		ttl = DefaultPageTTL
	}
	return &FacetCache{client: client, ttl: ttl}
}

// GetFacets returns the cached facets for a category slug.
func (fc *FacetCache) GetFacets(ctx context.Context, slug string) ([]cms.Tag, bool) {
	raw, err := fc.client.Get(ctx, facetKeyPrefix+slug).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("facet cache get error", "slug", slug, "error", err)
		return nil, false
	}
	var tags []cms.Tag
	if err := json.Unmarshal(raw, &tags); err != nil {
		slog.Warn("facet cache decode error", "slug", slug, "error", err)
		return nil, false
	}
	return tags, true
}

// SetFacets stores the facets for a category slug.
func (fc *FacetCache) SetFacets(ctx context.Context, slug string, tags []cms.Tag) {
	raw, err := json.Marshal(tags)
	if err != nil {
		slog.Warn("facet cache encode error", "slug", slug, "error", err)
		return
	}
	if err := fc.client.Set(ctx, facetKeyPrefix+slug, raw, fc.ttl).Err(); err != nil {
		slog.Warn("facet cache set error", "slug", slug, "error", err)
	}
}

// InvalidateAll drops every cached facet list.
func (fc *FacetCache) InvalidateAll(ctx context.Context) int {
	deleted, err := deletePrefix(ctx, fc.client, facetKeyPrefix)
	if err != nil {
		slog.Warn("facet cache flush error", "error", err)
	}
	return deleted
}
