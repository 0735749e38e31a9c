package models

import (
	"math"

	"github.com/Dan9191/card-ledger/internal/apperr"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps Page*MaxPageSize within int
	MaxPage = math.MaxInt32 / MaxPageSize
)

// PageRequest selects one page of a listing; Page is zero-based
type PageRequest struct {
	Page int
	Size int
}

// Validate rejects pages outside 0..MaxPage and sizes outside 1..MaxPageSize
func (p PageRequest) Validate() error {
	if p.Page < 0 {
		return apperr.Invalid("page", "page must not be negative")
	}
	if p.Page > MaxPage {
		return apperr.Invalid("page", "page is too large")
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return apperr.Invalid("page", "size must be between 1 and 100")
	}
	return nil
}

// Offset is the number of rows to skip
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one slice of a listing
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// MapPage converts the items of a page
func MapPage[T, R any](p Page[T], fn func(T) R) Page[R] {
	out := Page[R]{Items: make([]R, 0, len(p.Items)), Page: p.Page, Size: p.Size, Total: p.Total}
	for _, item := range p.Items {
		out.Items = append(out.Items, fn(item))
	}
	return out
}
