package filter

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Selection is a filter request as it arrives over HTTP.
type Selection struct {
	Tags []int // ascending, unique
	Text string
}

// ParseSelection reads "tags" (repeated or comma-separated ids) and "q".
// Ids that do not parse as positive integers are ignored.
func ParseSelection(v url.Values) Selection {
	var tags []int
	for _, raw := range v["tags"] {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || id <= 0 {
				continue
			}
			tags = append(tags, id)
		}
	}
	slices.Sort(tags)
	return Selection{
		Tags: slices.Compact(tags),
		Text: strings.TrimSpace(v.Get("q")),
	}
}

// Active reports whether the selection narrows the initial dataset.
func (s Selection) Active() bool {
	return len(s.Tags) > 0 || strings.TrimSpace(s.Text) != ""
}

// Has reports whether tag id is selected.
func (s Selection) Has(id int) bool {
	_, found := slices.BinarySearch(s.Tags, id)
	return found
}

// Encode renders the selection back into a query string.
func (s Selection) Encode() string {
	v := url.Values{}
	if len(s.Tags) > 0 {
		ids := make([]string, len(s.Tags))
		for i, id := range s.Tags {
			ids[i] = strconv.Itoa(id)
		}
		v.Set("tags", strings.Join(ids, ","))
	}
	if s.Text != "" {
		v.Set("q", s.Text)
	}
	return v.Encode()
}
