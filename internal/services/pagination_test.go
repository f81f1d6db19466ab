package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		wantPage    int
		wantLimit   int
	}{
		{"defaults", 0, 0, 1, DefaultPageSize},
		{"negative", -3, -1, 1, DefaultPageSize},
		{"capped", 2, 500, 2, MaxPageSize},
		{"kept", 3, 25, 3, 25},
		{"huge page", math.MaxInt, 10, MaxPage, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := NormalizePage(tt.page, tt.limit)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 25)
	assert.Equal(t, Pagination{
		CurrentPage:  2,
		TotalPages:   3,
		TotalItems:   25,
		ItemsPerPage: 10,
		HasNextPage:  true,
		HasPrevPage:  true,
	}, p)

	empty := NewPagination(1, 10, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNextPage)
	assert.False(t, empty.HasPrevPage)

	last := NewPagination(3, 10, 30)
	assert.False(t, last.HasNextPage)
}

func TestOffsetStaysPositiveForLargestPage(t *testing.T) {
	page, limit := NormalizePage(math.MaxInt, math.MaxInt)
	assert.Equal(t, (MaxPage-1)*MaxPageSize, offset(page, limit))
}
