// Package httpapi is the JSON-over-HTTP surface. Handlers decode the request,
// pull the caller's identity off the context, call one service method and
// render the envelope; they hold no business rules.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/config"
	"github.com/oggyb/socialtinder/internal/service/account"
	"github.com/oggyb/socialtinder/internal/service/events"
	"github.com/oggyb/socialtinder/internal/service/messaging"
	"github.com/oggyb/socialtinder/internal/service/photos"
	"github.com/oggyb/socialtinder/internal/service/posts"
	"github.com/oggyb/socialtinder/internal/service/restaurants"
	"github.com/oggyb/socialtinder/internal/service/social"
	"github.com/oggyb/socialtinder/internal/storage"
)

// requestTimeout bounds every /api request, uploads included.
const requestTimeout = 30 * time.Second

// Deps is what the router needs to build every handler.
type Deps struct {
	App    *app.AppContext
	JWT    *auth.JWTService
	Config *config.Config
}

// NewRouter wires middleware, the operational endpoints and every /api route.
func NewRouter(d Deps) http.Handler {
	appCtx, log := d.App, d.App.Logger

	var lim *limiter
	if d.Config.HTTP.RateLimit > 0 {
		lim = newLimiter(d.Config.HTTP.RateLimit, d.Config.HTTP.RateBurst)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(instrument(appCtx.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: d.Config.HTTP.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept", "X-Request-Id"},
		MaxAge:         300,
	}).Handler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Status: false, Message: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Status: false, Message: "Method not allowed"})
	})

	r.Get("/health", health(appCtx))
	r.Handle("/metrics", appCtx.Metrics.Handler())
	if disk, ok := appCtx.Storage.(*storage.DiskStore); ok {
		r.Handle("/storage/*", http.StripPrefix("/storage/", http.FileServer(http.Dir(disk.Root()))))
	}

	acc := &accountHandler{svc: account.NewService(appCtx, d.JWT), log: log}
	handlers := []interface{ Register(chi.Router) }{
		acc,
		&socialHandler{svc: social.NewService(appCtx), log: log},
		&photoHandler{svc: photos.NewService(appCtx), log: log},
		&postHandler{svc: posts.NewService(appCtx), log: log},
		&messagingHandler{svc: messaging.NewService(appCtx), log: log},
		&restaurantHandler{svc: restaurants.NewService(appCtx), log: log},
		&eventHandler{svc: events.NewService(appCtx), log: log},
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(requestTimeout))
		api.Use(middleware.RequestSize(maxRequestBytes))

		api.Group(func(pub chi.Router) {
			pub.Use(lim.middleware(appCtx.Metrics))
			acc.RegisterPublic(pub)
		})

		api.Group(func(priv chi.Router) {
			priv.Use(authenticate(d.JWT, appCtx.RedisCache, log))
			priv.Use(lim.middleware(appCtx.Metrics))
			for _, h := range handlers {
				h.Register(priv)
			}
		})
	})
	return r
}

// health reports whether the database and Redis answer.
func health(appCtx *app.AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "up", "redis": "up"}
		healthy := true
		if sqlDB, err := appCtx.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "down"
			healthy = false
		}
		if appCtx.RedisCache == nil || appCtx.RedisCache.Ping(ctx) != nil {
			checks["redis"] = "down"
			healthy = false
		}

		if !healthy {
			writeJSON(w, http.StatusServiceUnavailable, envelope{Status: false, Message: "Unhealthy", Data: checks})
			return
		}
		ok(w, "OK", checks)
	}
}
