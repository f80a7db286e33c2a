package common

import (
	"net/http"
	"strconv"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes the page count for the given totals.
func NewPagination(page, perPage int, total int64) Pagination {
	pages := 0
	if perPage > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return Pagination{Page: page, PerPage: perPage, TotalItems: int(total), TotalPages: pages}
}

// ParsePagination extracts page and per-page parameters from query values.
// perPage is clamped to maxPerPage when maxPerPage is positive.
func ParsePagination(r *http.Request, defaultPerPage, maxPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}
	return
}

// Offset converts a 1-based page into a row offset.
func Offset(page, perPage int) uint64 {
	if page < 1 {
		page = 1
	}
	return uint64((page - 1) * perPage)
}
