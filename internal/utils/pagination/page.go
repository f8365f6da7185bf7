package pagination

import (
	"strconv"

	"gorm.io/gorm"
)

// Page is the list envelope: {data, current_page, per_page, total, last_page}.
type Page[T any] struct {
	Items       []T   `json:"data"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

// Params is a 1-based page request.
type Params struct {
	Page    int
	PerPage int
}

// Parse reads ?page= leniently: anything missing or invalid means page 1.
func Parse(page string, perPage int) Params {
	n, err := strconv.Atoi(page)
	if err != nil || n < 1 {
		n = 1
	}
	return Params{Page: n, PerPage: perPage}
}

func (p Params) offset() int {
	return (p.Page - 1) * p.PerPage
}

// Paginate counts q, then loads one page of it.
//
// Behavior:
//   - q must carry only Model and filters; Count runs on it as-is.
//   - finish adds ordering and preloads for the page query; may be nil.
//   - A page past the end returns an empty Items slice, never nil.
//
// Example:
//
//	pagination.Paginate[db.Post](db.Model(&db.Post{}).Where("user_id = ?", id), p, newestFirst)
func Paginate[T any](q *gorm.DB, p Params, finish func(*gorm.DB) *gorm.DB) (Page[T], error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 10
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Page[T]{}, err
	}

	items := make([]T, 0, p.PerPage)
	if total > int64(p.offset()) {
		pageQ := q.Session(&gorm.Session{})
		if finish != nil {
			pageQ = finish(pageQ)
		}
		if err := pageQ.Offset(p.offset()).Limit(p.PerPage).Find(&items).Error; err != nil {
			return Page[T]{}, err
		}
	}

	last := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	if last < 1 {
		last = 1
	}
	return Page[T]{
		Items:       items,
		CurrentPage: p.Page,
		PerPage:     p.PerPage,
		Total:       total,
		LastPage:    last,
	}, nil
}

// Map converts a page's items while keeping its counters.
func Map[T, U any](p Page[T], f func(T) U) Page[U] {
	out := make([]U, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, f(it))
	}
	return Page[U]{
		Items:       out,
		CurrentPage: p.CurrentPage,
		PerPage:     p.PerPage,
		Total:       p.Total,
		LastPage:    p.LastPage,
	}
}

// WithItems swaps in items built from p.Items elsewhere, keeping the counters.
func WithItems[T, U any](p Page[T], items []U) Page[U] {
	if items == nil {
		items = []U{}
	}
	return Page[U]{
		Items:       items,
		CurrentPage: p.CurrentPage,
		PerPage:     p.PerPage,
		Total:       p.Total,
		LastPage:    p.LastPage,
	}
}
