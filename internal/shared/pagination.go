// Package shared holds small cross-cutting helpers.
package shared

import (
	"net/url"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination is the paging metadata attached to list responses.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// PageRequest is a sanitized page/limit pair.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset returns the row offset for the request.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ParsePage reads page and limit query parameters, clamping to sane bounds.
func ParsePage(q url.Values) PageRequest {
	page, _ := strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultPerPage
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}
	return PageRequest{Page: page, Limit: limit}
}

// NewPagination builds response metadata.
func NewPagination(req PageRequest, total int) Pagination {
	return Pagination{Page: req.Page, Limit: req.Limit, Total: total}
}
