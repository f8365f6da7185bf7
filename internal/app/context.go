package app

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/cache"
	"github.com/oggyb/socialtinder/internal/metrics"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/validation"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Storage    storage.Store
	Metrics    *metrics.Metrics
	Validator  *validation.Validator
	// Now is the clock every service reads; tests pin it.
	Now func() time.Time
}

// New creates a new AppContext with a wall clock, fresh metrics and validator.
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, store storage.Store) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Storage:    store,
		Metrics:    metrics.New(),
		Validator:  validation.New(),
		Now:        func() time.Time { return time.Now().UTC() },
	}
}
