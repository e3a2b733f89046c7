package shared

import "math"

// Page size bounds for List queries
const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

// Filter selects one page of records. Filters holds equality conditions
// keyed by column name; a nil value matches NULL.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Filters  map[string]any
}

// DefaultFilter is the first page ordered by ascending id
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: DefaultPageSize,
		OrderBy:  "id",
		OrderDir: "asc",
		Filters:  map[string]any{},
	}
}

// Normalize clamps the page to at least 1 and the page size to
// (0, MaxPageSize], using DefaultPageSize when unset.
func (f Filter) Normalize() Filter {
	f.Page = max(f.Page, 1)
	switch {
	case f.PageSize <= 0:
		f.PageSize = DefaultPageSize
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset is the number of rows before the filter's page. It saturates at
// math.MaxInt, so a page past the end stays past the end.
func (f Filter) Offset() int {
	if f.Page < 1 || f.PageSize <= 0 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.PageSize {
		return math.MaxInt
	}
	return (f.Page - 1) * f.PageSize
}

// Paginated is one page of a List result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated wraps items as page of a result set of total rows
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	p := Paginated[T]{Items: items, Total: total, Page: page, PageSize: pageSize}
	if pageSize > 0 {
		p.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return p
}
