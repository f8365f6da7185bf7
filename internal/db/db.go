package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/socialtinder/internal/config"
)

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&User{}, &UserPhoto{}, &UserLike{}, &Match{}, &Friendship{},
		&Conversation{}, &ConversationParticipant{}, &Message{},
		&Post{}, &PostLike{}, &PostComment{},
		&Restaurant{}, &MenuItem{}, &RestaurantReview{}, &RestaurantSpecial{},
		&Event{}, &EventTicket{}, &TicketPurchase{},
	}
}

// NewDB opens the configured database and migrates the schema.
//
// DB_DRIVER=mysql (default) uses the DSN built by config; DB_DRIVER=sqlite is
// for local development without a MySQL server.
func NewDB(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DB.DSN)
	case "mysql", "":
		dialector = mysql.Open(cfg.DB.DSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	db, err := Open(dialector, gormLogger(log, cfg.Log.Level))
	if err != nil {
		return nil, err
	}

	if cfg.DB.Driver == "sqlite" {
		// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}

// Open wraps gorm.Open with the settings every connection in this service
// shares: UTC millisecond timestamps and translated driver errors, so unique
// violations surface as gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector, l logger.Interface) (*gorm.DB, error) {
	if l == nil {
		l = logger.Discard
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         l,
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return db, nil
}

func gormLogger(log *slog.Logger, level string) logger.Interface {
	if log == nil {
		return logger.Discard
	}
	lvl := logger.Warn
	switch level {
	case "debug":
		lvl = logger.Info
	case "error":
		lvl = logger.Error
	}
	return logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelDebug),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  lvl,
			IgnoreRecordNotFoundError: true,
		},
	)
}
