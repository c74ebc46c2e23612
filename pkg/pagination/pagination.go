// Package pagination provides types and utilities for paginated data queries.
// Requests may address a page by number (page, page_size) or by relay-style
// cursors (first, after, before); both resolve to a limit and offset.
package pagination

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/abekarar/openimis-claimslens/pkg/query"
)

// SortFields wraps []query.SortField with flexible JSON unmarshaling.
// Accepts either a string ("name,-created_at") or an array of SortField objects.
type SortFields []query.SortField

// UnmarshalJSON supports unmarshaling from a comma-separated string or array format.
func (s *SortFields) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = query.ParseSortFields(str)
		return nil
	}

	var fields []query.SortField
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = fields
	return nil
}

// PageRequest represents a client request for a page of data with optional search and sorting.
type PageRequest struct {
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	First    int        `json:"first,omitempty"`
	After    string     `json:"after,omitempty"`
	Before   string     `json:"before,omitempty"`
	Search   *string    `json:"search,omitempty"`
	Sort     SortFields `json:"sort,omitempty"`

	offset    int
	hasCursor bool
}

// Normalize adjusts the request to ensure valid pagination values based on the config.
// Cursor parameters take precedence over page numbers when present and decodable.
func (r *PageRequest) Normalize(cfg Config) {
	if r.First > 0 {
		r.PageSize = r.First
	}
	if r.PageSize < 1 {
		r.PageSize = cfg.DefaultPageSize
	}
	if r.PageSize > cfg.MaxPageSize {
		r.PageSize = cfg.MaxPageSize
	}

	r.hasCursor = false
	if n, err := DecodeCursor(r.After); err == nil {
		r.offset = n + 1
		r.hasCursor = true
	} else if n, err := DecodeCursor(r.Before); err == nil {
		r.offset = max(n-r.PageSize, 0)
		r.hasCursor = true
	}

	if r.hasCursor {
		r.Page = r.offset/r.PageSize + 1
		return
	}

	if r.Page < 1 {
		r.Page = 1
	}
	r.offset = (r.Page - 1) * r.PageSize
}

// Offset returns the number of records to skip.
// Normalize must be called first when cursors are in use.
func (r *PageRequest) Offset() int {
	if r.hasCursor {
		return r.offset
	}
	if r.Page < 1 {
		return 0
	}
	return (r.Page - 1) * r.PageSize
}

// PageRequestFromQuery parses pagination parameters from URL query values.
// Supported parameters: page, page_size, first, after, before, search, sort (alias orderBy).
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	page, _ := strconv.Atoi(values.Get("page"))
	pageSize, _ := strconv.Atoi(values.Get("page_size"))
	first, _ := strconv.Atoi(values.Get("first"))

	var search *string
	if s := values.Get("search"); s != "" {
		search = &s
	}

	sortParam := values.Get("sort")
	if sortParam == "" {
		sortParam = values.Get("orderBy")
	}

	req := PageRequest{
		Page:     page,
		PageSize: pageSize,
		First:    first,
		After:    values.Get("after"),
		Before:   values.Get("before"),
		Search:   search,
		Sort:     query.ParseSortFields(sortParam),
	}

	req.Normalize(cfg)
	return req
}

// PageInfo carries relay-style cursor metadata for a page.
type PageInfo struct {
	HasNextPage     bool   `json:"has_next_page"`
	HasPreviousPage bool   `json:"has_previous_page"`
	StartCursor     string `json:"start_cursor,omitempty"`
	EndCursor       string `json:"end_cursor,omitempty"`
}

// PageResult holds a page of data along with pagination metadata.
type PageResult[T any] struct {
	Data       []T      `json:"data"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
	PageInfo   PageInfo `json:"page_info"`
}

// NewPageResult creates a PageResult with calculated total pages and cursors.
func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	return newResult(data, total, page, pageSize, (page-1)*pageSize)
}

// NewPageResultFor creates a PageResult from a normalized request.
func NewPageResultFor[T any](data []T, total int, req PageRequest) PageResult[T] {
	return newResult(data, total, req.Page, req.PageSize, req.Offset())
}

func newResult[T any](data []T, total, page, pageSize, offset int) PageResult[T] {
	if pageSize < 1 {
		pageSize = 1
	}

	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	if totalPages < 1 {
		totalPages = 1
	}

	if data == nil {
		data = []T{}
	}

	info := PageInfo{
		HasNextPage:     offset+len(data) < total,
		HasPreviousPage: offset > 0,
	}
	if len(data) > 0 {
		info.StartCursor = EncodeCursor(offset)
		info.EndCursor = EncodeCursor(offset + len(data) - 1)
	}

	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		PageInfo:   info,
	}
}
