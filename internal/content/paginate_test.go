package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	tests := []struct {
		name      string
		page      int
		perPage   int
		wantFirst int
		wantLen   int
		wantPages int
	}{
		{"first page", 1, 9, 0, 9, 3},
		{"second page", 2, 9, 9, 9, 3},
		{"last partial page", 3, 9, 18, 7, 3},
		{"page below one", 0, 9, 0, 9, 3},
		{"default page size", 1, 0, 0, DefaultPerPage, 3},
		{"exact fit", 1, 25, 0, 25, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(items, tt.page, tt.perPage)
			assert.Len(t, p.Items, tt.wantLen)
			assert.Equal(t, tt.wantFirst, p.Items[0])
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, 25, p.Total)
		})
	}
}

func TestPaginate_PastEnd(t *testing.T) {
	p := Paginate([]string{"a", "b"}, 4, 9)
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)
	assert.Equal(t, 4, p.Page)
	assert.False(t, p.HasNext())
	assert.True(t, p.HasPrev())
}

func TestPaginate_HugePage(t *testing.T) {
	items := make([]int, 25)

	var p Page[int]
	assert.NotPanics(t, func() { p = Paginate(items, 8198552921648689608, 9) })
	assert.Empty(t, p.Items)
	assert.Equal(t, 3, p.TotalPages)
	assert.False(t, p.HasNext())
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate([]string{}, 1, 9)
	assert.Empty(t, p.Items)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasPrev())
	assert.False(t, p.HasNext())
}
