// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package content

import (
	"sort"
	"strconv"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"trialportal/internal/cms"
)

// AggregateTags folds over the posts' tags and counts, per tag, how many
// posts carry it. Embedded tag terms are used when present; a post without
// them contributes its bare tag ids, named by id until another post supplies
// the term.
func AggregateTags(posts []cms.Post) []cms.Tag {
	byID := make(map[int]*cms.Tag)
	for _, p := range posts {
		seen := make(map[int]bool)
		count := func(t cms.Term) {
			if seen[t.ID] {
				return
			}
			seen[t.ID] = true
			tag, ok := byID[t.ID]
			if !ok {
				tag = &cms.Tag{ID: t.ID, Name: t.Name, Slug: t.Slug}
				byID[t.ID] = tag
			} else if tag.Slug == "" && t.Slug != "" {
				tag.Name, tag.Slug = t.Name, t.Slug
			}
			tag.Count++
		}

		if len(p.Tags) > 0 {
			for _, t := range p.Tags {
				count(t)
			}
			continue
		}
		for _, id := range p.TagIDs {
			count(cms.Term{ID: id, Name: strconv.Itoa(id)})
		}
	}

	tags := make([]cms.Tag, 0, len(byID))
	for _, t := range byID {
		tags = append(tags, *t)
	}
	SortTags(tags)
	return tags
}

// SortTags orders tags by name in Bulgarian collation, then by id.
func SortTags(tags []cms.Tag) {
	// collate.Collator keeps internal buffers; one per call.
	col := collate.New(language.Bulgarian)
	sort.SliceStable(tags, func(i, j int) bool {
		if c := col.CompareString(tags[i].Name, tags[j].Name); c != 0 {
			return c < 0
		}
		return tags[i].ID < tags[j].ID
	})
}
