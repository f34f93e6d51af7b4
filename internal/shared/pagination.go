package shared

import (
	"net/url"
	"strconv"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// PageFromQuery reads page and per_page, clamping per_page to 1..200.
func PageFromQuery(q url.Values) Pagination {
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return NewPagination(page, perPage, 0)
}

// NewPagination normalises page and perPage and derives TotalPages from total.
func NewPagination(page, perPage, total int) Pagination {
	switch {
	case perPage <= 0:
		perPage = defaultPerPage
	case perPage > maxPerPage:
		perPage = maxPerPage
	}
	if page < 1 {
		page = 1
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: (total + perPage - 1) / perPage}
}

// Offset returns the row offset for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// WithTotal returns p with Total and TotalPages filled in.
func (p Pagination) WithTotal(total int) Pagination {
	return NewPagination(p.Page, p.PerPage, total)
}
