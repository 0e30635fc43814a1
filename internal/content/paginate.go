package content

// Page is one slice of a locally paginated list.
type Page[T any] struct {
	Items      []T
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// HasPrev reports whether a previous page exists.
func (p Page[T]) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Page[T]) HasNext() bool { return p.Page < p.TotalPages }

// PrevPage is the previous page number.
func (p Page[T]) PrevPage() int { return p.Page - 1 }

// NextPage is the following page number.
func (p Page[T]) NextPage() int { return p.Page + 1 }

// Paginate returns items[(page-1)*perPage : min(page*perPage, len(items))].
// A page below 1 is treated as 1; a page past the end yields no items but
// keeps the requested page number so the caller can render "no results".
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}
	n := len(items)
	p := Page[T]{
		Page:       page,
		PerPage:    perPage,
		Total:      n,
		TotalPages: (n + perPage - 1) / perPage,
	}

	// Checked before multiplying so a huge page number cannot overflow.
	if page > p.TotalPages {
		p.Items = []T{}
		return p
	}
	start := (page - 1) * perPage
	end := min(start+perPage, n)
	p.Items = items[start:end]
	return p
}
