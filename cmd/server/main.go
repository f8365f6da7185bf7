package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/cache"
	"github.com/oggyb/socialtinder/internal/config"
	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/httpapi"
	"github.com/oggyb/socialtinder/internal/logger"
	"github.com/oggyb/socialtinder/internal/server"
	"github.com/oggyb/socialtinder/internal/storage"
)

const healthProbeInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg, log)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return err
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return err
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.Error("failed to init storage", "driver", cfg.Storage.Driver, "err", err)
		return err
	}

	appCtx := app.New(database, redisCache, log, store)
	jwt := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, nil)

	if cfg.App.ENV == "development" && os.Getenv("SEED") != "" {
		if err := db.SeedTestData(database, log); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	health := server.NewHealthRegistrar(appCtx)
	httpSrv := server.NewHTTPServer(cfg, httpapi.NewRouter(httpapi.Deps{App: appCtx, JWT: jwt, Config: cfg}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.StartHTTPServer(gctx, httpSrv, log) })
	g.Go(func() error { return server.StartGRPCServer(gctx, cfg, log, health) })
	g.Go(func() error { return health.Watch(gctx, healthProbeInterval) })

	err = g.Wait()
	if sqlDB, dbErr := database.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	_ = redisCache.Client.Close()
	log.Info("shutdown complete")
	return err
}
