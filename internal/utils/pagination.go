// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Page is a bounded page request plus the metadata derived from a total.
type Page struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ClampPage parses raw page and page_size values. page is at least 1;
// size falls back to def and is bounded to [1, max].
func ClampPage(rawPage, rawSize string, def, max int) (page, size int) {
	page = AtoiDefault(strings.TrimSpace(rawPage), 1)
	if page < 1 {
		page = 1
	}
	size = AtoiDefault(strings.TrimSpace(rawSize), def)
	if size < 1 {
		size = 1
	}
	if size > max {
		size = max
	}
	return page, size
}

// NewPage fills in the derived fields for a page of a collection of total items.
func NewPage(page, size int, total int64) Page {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return Page{
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}
