// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cms

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
)

// MaxPerPage is the largest page size the CMS accepts.
const MaxPerPage = 100

// PostsQuery describes one /posts request.
type PostsQuery struct {
	CategoryID int    // 0 = all categories
	TagIDs     []int  // joined in the given order; callers sort for determinism
	Search     string // omitted when blank
	Slug       string // exact slug lookup
	PerPage    int
}

// Encode renders the query string in a fixed parameter order so that equal
// queries always produce byte-identical URLs.
func (q PostsQuery) Encode() string {
	var parts []string
	if q.CategoryID > 0 {
		parts = append(parts, "categories="+strconv.Itoa(q.CategoryID))
	}
	if q.Slug != "" {
		parts = append(parts, "slug="+url.QueryEscape(q.Slug))
	}
	perPage := q.PerPage
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	parts = append(parts,
		"per_page="+strconv.Itoa(perPage),
		"_embed",
		"orderby=date",
		"order=desc",
	)
	if len(q.TagIDs) > 0 {
		ids := make([]string, len(q.TagIDs))
		for i, id := range q.TagIDs {
			ids[i] = strconv.Itoa(id)
		}
		parts = append(parts, "tags="+strings.Join(ids, ","))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		parts = append(parts, "search="+url.QueryEscape(s))
	}
	return strings.Join(parts, "&")
}

// CategoriesBySlug returns the categories whose slug matches; an empty
// slice means the slug does not exist.
func (c *Client) CategoriesBySlug(ctx context.Context, slug string) ([]Category, error) {
	var cats []Category
	if err := c.FetchJSON(ctx, "/categories?slug="+url.QueryEscape(slug), nil, &cats); err != nil {
		return nil, fmt.Errorf("categories by slug %q: %w", slug, err)
	}
	return unescapeCategories(cats), nil
}

// Categories lists non-empty categories by name.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := c.FetchJSON(ctx, "/categories?per_page=100&orderby=name&order=asc&hide_empty=true", nil, &cats); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return unescapeCategories(cats), nil
}

// Posts runs a posts query and normalizes the result.
func (c *Client) Posts(ctx context.Context, q PostsQuery) ([]Post, error) {
	var raw []wpPost
	if err := c.FetchJSON(ctx, "/posts?"+q.Encode(), nil, &raw); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts := make([]Post, 0, len(raw))
	for _, w := range raw {
		posts = append(posts, w.normalize())
	}
	return posts, nil
}

// PostBySlug returns the post with the given slug, or nil if none exists.
func (c *Client) PostBySlug(ctx context.Context, slug string) (*Post, error) {
	posts, err := c.Posts(ctx, PostsQuery{Slug: slug, PerPage: 1})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

// Tags lists every non-empty tag by name. This is the global tag list, not
// the category-scoped facet list.
func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := c.FetchJSON(ctx, "/tags?per_page=100&orderby=name&order=asc&hide_empty=true", nil, &tags); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	for i := range tags {
		tags[i].Name = html.UnescapeString(tags[i].Name)
	}
	return tags, nil
}

// Services lists the therapeutic areas.
func (c *Client) Services(ctx context.Context) ([]Service, error) {
	var raw []wpService
	if err := c.FetchJSON(ctx, "/services?per_page=100&orderby=title&order=asc", nil, &raw); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	services := make([]Service, 0, len(raw))
	for _, w := range raw {
		services = append(services, w.normalize())
	}
	return services, nil
}

func unescapeCategories(cats []Category) []Category {
	for i := range cats {
		cats[i].Name = html.UnescapeString(cats[i].Name)
	}
	return cats
}
