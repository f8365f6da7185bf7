package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// crud is embedded by every repository for the single-row operations they
// all share. Lookups return gorm.ErrRecordNotFound untouched.
type crud[T any] struct {
	db *gorm.DB
}

func (r crud[T]) Create(ctx context.Context, row *T) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// Save writes every column of row, including zero values.
func (r crud[T]) Save(ctx context.Context, row *T) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r crud[T]) Delete(ctx context.Context, row *T) error {
	return r.db.WithContext(ctx).Delete(row).Error
}

func (r crud[T]) FindByID(ctx context.Context, id uint64, preloads ...string) (*T, error) {
	var row T
	q := r.db.WithContext(ctx)
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.First(&row, id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindOne returns the first row matching the conditions.
func (r crud[T]) FindOne(ctx context.Context, query any, args ...any) (*T, error) {
	var row T
	if err := r.db.WithContext(ctx).Where(query, args...).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
// SQLite serializes writers on its own.
func lockForUpdate(q *gorm.DB) *gorm.DB {
	if q.Dialector.Name() == "sqlite" {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

// randomOrder is ORDER BY RAND() on MySQL and RANDOM() elsewhere.
func randomOrder(q *gorm.DB) *gorm.DB {
	if q.Dialector.Name() == "mysql" {
		return q.Order("RAND()")
	}
	return q.Order("RANDOM()")
}

// limitTo is a scope that ignores non-positive limits.
func limitTo(n int) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if n <= 0 {
			return q
		}
		return q.Limit(n)
	}
}

func newestFirst(q *gorm.DB) *gorm.DB {
	return q.Order("created_at DESC").Order("id DESC")
}

// dateOnly truncates t to a UTC midnight, the form date columns are written
// in, so comparisons behave the same on MySQL and SQLite.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
