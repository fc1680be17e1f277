package entity

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/egannguyen/energystack-storefront/internal/apperr"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
	maxSearchLength = 100
)

// ProductFilter selects a page of the catalog. Zero values mean "no constraint".
type ProductFilter struct {
	Search   string
	Category Category
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     int
	Limit    int
}

// Normalize applies paging defaults and validates the filter.
func (f ProductFilter) Normalize() (ProductFilter, error) {
	f.Search = strings.TrimSpace(f.Search)
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = DefaultPageSize
	}

	switch {
	case f.Page < 1:
		return f, apperr.Validation("Page must be a positive integer")
	case f.Limit < 1 || f.Limit > MaxPageSize:
		return f, apperr.Validation("Limit must be between 1 and %d", MaxPageSize)
	case utf8.RuneCountInString(f.Search) > maxSearchLength:
		return f, apperr.Validation("Search must be 1-%d characters", maxSearchLength)
	case f.Category != "" && !f.Category.Valid():
		return f, apperr.Validation("Invalid category")
	case f.MinPrice != nil && f.MinPrice.IsNegative():
		return f, apperr.Validation("Min price must be non-negative")
	case f.MaxPrice != nil && f.MaxPrice.IsNegative():
		return f, apperr.Validation("Max price must be non-negative")
	}
	return f, nil
}

// Offset is the number of rows skipped before the page.
func (f ProductFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Key renders the filter canonically, for use as a cache key.
func (f ProductFilter) Key() string {
	var minPrice, maxPrice string
	if f.MinPrice != nil {
		minPrice = f.MinPrice.String()
	}
	if f.MaxPrice != nil {
		maxPrice = f.MaxPrice.String()
	}
	return fmt.Sprintf("q=%s|c=%s|min=%s|max=%s|p=%d|l=%d",
		strings.ToLower(f.Search), f.Category, minPrice, maxPrice, f.Page, f.Limit)
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// ProductPage is one page of a catalog listing, newest first.
type ProductPage struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}
