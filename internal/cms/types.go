package cms

import (
	"html"
	"regexp"
	"strings"
	"time"
)

// Post is a CMS content item, normalized from the WordPress REST shape.
// Optional embedded data is flattened and defaulted here so templates and
// filters never look into raw "_embedded" maps.
type Post struct {
	ID               int
	Slug             string
	Title            string // HTML
	Content          string // HTML
	Excerpt          string // HTML
	Date             time.Time
	CategoryIDs      []int
	TagIDs           []int
	FeaturedImageURL string
	FeaturedImageAlt string
	Categories       []Term
	Tags             []Term
}

// Term is a category or tag embedded in a post.
type Term struct {
	ID   int
	Name string
	Slug string
}

// Category is a top-level content grouping, usually a disease area.
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// Tag is a facet that narrows a category's posts. Count is the number of
// posts in scope carrying the tag.
type Tag struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// Service is a therapeutic area published as the "services" post type.
type Service struct {
	ID      int
	Slug    string
	Title   string
	Excerpt string
}

// wire shapes

type rendered struct {
	Rendered string `json:"rendered"`
}

type wpTerm struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Taxonomy string `json:"taxonomy"`
}

type wpMedia struct {
	SourceURL string `json:"source_url"`
	AltText   string `json:"alt_text"`
}

type wpEmbedded struct {
	FeaturedMedia []wpMedia  `json:"wp:featuredmedia"`
	Terms         [][]wpTerm `json:"wp:term"`
}

type wpPost struct {
	ID         int         `json:"id"`
	Slug       string      `json:"slug"`
	Date       string      `json:"date"`
	Title      rendered    `json:"title"`
	Content    rendered    `json:"content"`
	Excerpt    rendered    `json:"excerpt"`
	Categories []int       `json:"categories"`
	Tags       []int       `json:"tags"`
	Embedded   *wpEmbedded `json:"_embedded"`
}

type wpService struct {
	ID      int      `json:"id"`
	Slug    string   `json:"slug"`
	Title   rendered `json:"title"`
	Excerpt rendered `json:"excerpt"`
}

// wpDateLayout is the site-local timestamp format WordPress uses for "date".
const wpDateLayout = "2006-01-02T15:04:05"

func (w wpPost) normalize() Post {
	p := Post{
		ID:          w.ID,
		Slug:        w.Slug,
		Title:       w.Title.Rendered,
		Content:     w.Content.Rendered,
		Excerpt:     w.Excerpt.Rendered,
		CategoryIDs: nonNilInts(w.Categories),
		TagIDs:      nonNilInts(w.Tags),
		Categories:  []Term{},
		Tags:        []Term{},
	}
	if t, err := time.Parse(wpDateLayout, w.Date); err == nil {
		p.Date = t
	} else if t, err := time.Parse(time.RFC3339, w.Date); err == nil {
		p.Date = t
	}

	if w.Embedded == nil {
		return p
	}
	if len(w.Embedded.FeaturedMedia) > 0 {
		p.FeaturedImageURL = w.Embedded.FeaturedMedia[0].SourceURL
		p.FeaturedImageAlt = w.Embedded.FeaturedMedia[0].AltText
	}
	for _, group := range w.Embedded.Terms {
		for _, t := range group {
			term := Term{ID: t.ID, Name: html.UnescapeString(t.Name), Slug: t.Slug}
			switch t.Taxonomy {
			case "category":
				p.Categories = append(p.Categories, term)
			case "post_tag":
				p.Tags = append(p.Tags, term)
			}
		}
	}
	return p
}

func (w wpService) normalize() Service {
	return Service{
		ID:      w.ID,
		Slug:    w.Slug,
		Title:   w.Title.Rendered,
		Excerpt: w.Excerpt.Rendered,
	}
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// PlainText strips markup and decodes entities from a CMS HTML fragment,
// e.g. a rendered title or an error message with <strong> tags.
func PlainText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
