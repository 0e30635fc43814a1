// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package content resolves category slugs, aggregates the tag facets of a
// category and composes filtered post queries against the CMS.
//
// Every read here fails closed: a CMS failure or an unknown slug yields an
// empty result, never an error the page has to unwrap. The gateway has
// already logged the cause.
package content

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"trialportal/internal/cms"
)

const (
	// FacetPostCap is how many posts of a category are scanned when building
	// its tag facets, and the page size of the faceted search page.
	FacetPostCap = cms.MaxPerPage

	// DefaultPerPage is the page size of plain category listings.
	DefaultPerPage = 9
)

// ErrCategoryNotFound is returned when no category carries the given slug.
var ErrCategoryNotFound = errors.New("category not found")

// Source is the subset of the CMS client the catalog reads from.
type Source interface {
	CategoriesBySlug(ctx context.Context, slug string) ([]cms.Category, error)
	Posts(ctx context.Context, q cms.PostsQuery) ([]cms.Post, error)
}

// FacetCache keeps computed tag facets per category slug.
type FacetCache interface {
	GetFacets(ctx context.Context, slug string) ([]cms.Tag, bool)
	SetFacets(ctx context.Context, slug string, tags []cms.Tag)
}

// Catalog answers category, facet and filtered-post questions.
type Catalog struct {
	src    Source
	facets FacetCache
}

// NewCatalog creates a catalog over src. facets may be nil.
func NewCatalog(src Source, facets FacetCache) *Catalog {
	return &Catalog{src: src, facets: facets}
}

// Category returns the category with the given slug. A lookup failure is
// reported as ErrCategoryNotFound as well, so callers render a not-found
// page either way.
func (c *Catalog) Category(ctx context.Context, slug string) (*cms.Category, error) {
	cats, err := c.src.CategoriesBySlug(ctx, slug)
	if err != nil || len(cats) == 0 {
		return nil, ErrCategoryNotFound
	}
	cat := cats[0]
	return &cat, nil
}

// ResolveCategoryID maps a slug to the id of its first matching category.
func (c *Catalog) ResolveCategoryID(ctx context.Context, slug string) (int, bool) {
	cat, err := c.Category(ctx, slug)
	if err != nil {
		return 0, false
	}
	return cat.ID, true
}

// TagsForCategory returns the tags used by the category's posts with
// per-tag post counts, sorted by Bulgarian name order.
//
// Only the newest FacetPostCap posts are scanned. A tag that appears only on
// older posts is not offered as a facet.
func (c *Catalog) TagsForCategory(ctx context.Context, slug string) []cms.Tag {
	if c.facets != nil {
		if tags, ok := c.facets.GetFacets(ctx, slug); ok {
			return tags
		}
	}

	id, ok := c.ResolveCategoryID(ctx, slug)
	if !ok {
		return []cms.Tag{}
	}
	posts, err := c.src.Posts(ctx, cms.PostsQuery{CategoryID: id, PerPage: FacetPostCap})
	if err != nil {
		return []cms.Tag{}
	}

	tags := AggregateTags(posts)
	if c.facets != nil {
		c.facets.SetFacets(ctx, slug, tags)
	}
	return tags
}

// BuildPostsQuery composes the posts query for a category id. Tag ids are
// deduplicated and sorted so equal selections encode identically.
func BuildPostsQuery(categoryID int, tagIDs []int, search string, perPage int) cms.PostsQuery {
	return cms.PostsQuery{
		CategoryID: categoryID,
		TagIDs:     normalizeIDs(tagIDs),
		Search:     search,
		PerPage:    perPage,
	}
}

// FilteredPosts returns the category's posts narrowed by tags and search
// text, newest first. An unknown category returns no posts without querying
// for them.
func (c *Catalog) FilteredPosts(ctx context.Context, categorySlug string, tagIDs []int, search string, perPage int) []cms.Post {
	id, ok := c.ResolveCategoryID(ctx, categorySlug)
	if !ok {
		slog.Debug("filtered posts: unknown category", "slug", categorySlug)
		return []cms.Post{}
	}
	posts, err := c.src.Posts(ctx, BuildPostsQuery(id, tagIDs, search, perPage))
	if err != nil {
		return []cms.Post{}
	}
	return posts
}

// CategoryListing returns one page of a plain category listing. Up to
// FacetPostCap posts are fetched and the page is sliced locally.
func (c *Catalog) CategoryListing(ctx context.Context, slug string, page, perPage int) (*cms.Category, Page[cms.Post], error) {
	cat, err := c.Category(ctx, slug)
	if err != nil {
		return nil, Page[cms.Post]{}, err
	}
	posts, err := c.src.Posts(ctx, cms.PostsQuery{CategoryID: cat.ID, PerPage: FacetPostCap})
	if err != nil {
		posts = []cms.Post{}
	}
	return cat, Paginate(posts, page, perPage), nil
}

func normalizeIDs(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
