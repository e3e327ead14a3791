// Package pagination slices ordered result sets into fixed-size pages.
// It is pure: no shared state, safe under concurrent use, and independent of
// the transport that carried the page-number parameter.
package pagination

import "strconv"

// PageSize is the fixed number of posts per feed page.
const PageSize = 10

// Page describes one window of an ordered result set.
type Page struct {
	Number     int   `json:"number"`
	TotalPages int   `json:"total_pages"`
	TotalItems int64 `json:"total_items"`
	Offset     int   `json:"-"`
	Limit      int   `json:"-"`
}

// Resolve computes the page window for a requested page number over a result
// set of the given total size. Out-of-range requests clamp to the nearest
// valid page instead of erroring; an empty result set still yields one
// (empty) page.
func Resolve(total int64, pageSize, requested int) Page {
	if pageSize <= 0 {
		pageSize = PageSize
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	number := requested
	if number < 1 {
		number = 1
	}
	if number > totalPages {
		number = totalPages
	}

	return Page{
		Number:     number,
		TotalPages: totalPages,
		TotalItems: total,
		Offset:     (number - 1) * pageSize,
		Limit:      pageSize,
	}
}

// ParsePage interprets a raw page-number parameter. Absent or non-numeric
// input defaults to the first page; range clamping is left to Resolve.
func ParsePage(raw string) int {
	if raw == "" {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	return n
}

// HasNext reports whether a page after p exists.
func (p Page) HasNext() bool {
	return p.Number < p.TotalPages
}

// HasPrev reports whether a page before p exists.
func (p Page) HasPrev() bool {
	return p.Number > 1
}
