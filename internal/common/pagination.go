package common

import (
	"net/http"
	"strconv"
)

// MaxPerPage caps list pages.
const MaxPerPage = 100

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination reads ?page and ?limit, defaulting to page 1 and
// defaultPerPage. limit is capped at MaxPerPage.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page, perPage = 1, defaultPerPage
	q := r.URL.Query()
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	return page, min(perPage, MaxPerPage)
}

// Window returns the [start, end) bounds of the page within total items.
func Window(page, perPage, total int) (start, end int) {
	start = min((page-1)*perPage, total)
	return start, min(start+perPage, total)
}
