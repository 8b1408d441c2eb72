// Package pagination builds the page envelope returned by list endpoints.
package pagination

// Page is one page of a filtered listing together with the size of the
// whole filtered set.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	PageNumber    int   `json:"pageNumber"`
	PageSize      int   `json:"pageSize"`
}

// NewPage wraps items. pageNumber is zero-based. A nil items slice encodes
// as an empty array.
func NewPage[T any](items []T, total int64, pageNumber, pageSize int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Content:       items,
		TotalElements: total,
		TotalPages:    TotalPages(total, pageSize),
		PageNumber:    pageNumber,
		PageSize:      pageSize,
	}
}

// TotalPages is ceil(total/pageSize), or zero when pageSize is not positive.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	size := int64(pageSize)
	return int((total + size - 1) / size)
}
