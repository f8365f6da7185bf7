package httpapi

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/cache"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/metrics"
)

const unauthenticated = "Unauthenticated."

// authenticate resolves the bearer token into an auth.Identity on the
// request context. Missing, invalid, expired and revoked tokens get a 401.
func authenticate(jwt *auth.JWTService, rc *cache.RedisCache, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			token = strings.TrimSpace(token)
			if !found || token == "" {
				writeError(w, r, log, svcErr.Unauthenticated(unauthenticated))
				return
			}

			claims, err := jwt.ValidateToken(token)
			if err != nil {
				log.WarnContext(ctx, "rejected bearer token",
					"err", err,
					"request_id", middleware.GetReqID(ctx),
				)
				writeError(w, r, log, svcErr.Unauthenticated(unauthenticated))
				return
			}

			revoked, err := rc.IsTokenRevoked(ctx, claims.ID)
			if err != nil {
				writeError(w, r, log, svcErr.Internal(err))
				return
			}
			if revoked {
				writeError(w, r, log, svcErr.Unauthenticated(unauthenticated))
				return
			}

			uid, _ := claims.UserID()
			id := auth.Identity{
				UserID:      uid,
				IsAdmin:     claims.IsAdmin,
				TokenID:     claims.ID,
				TokenExpiry: claims.ExpiresAt.Unix(),
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(ctx, id)))
		})
	}
}

// requestLogger writes one access log line per request.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// instrument records request counts and latency by route pattern, so
// /api/posts/1 and /api/posts/2 share a series.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
		})
	}
}

// idleClientTTL is how long an unused per-client bucket is kept.
const idleClientTTL = 10 * time.Minute

type client struct {
	limiter *rate.Limiter
	seen    time.Time
}

// limiter hands out one token bucket per caller: the user id once
// authenticated, the client address before that.
type limiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*client
	swept   time.Time
}

func newLimiter(rps, burst int) *limiter {
	if burst < rps {
		burst = rps
	}
	return &limiter{rps: rate.Limit(rps), burst: burst, clients: make(map[string]*client)}
}

func (l *limiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > idleClientTTL {
		for k, c := range l.clients {
			if now.Sub(c.seen) > idleClientTTL {
				delete(l.clients, k)
			}
		}
		l.swept = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = c
	}
	c.seen = now
	return c.limiter.AllowN(now, 1)
}

func clientKey(r *http.Request) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return "user:" + strconv.FormatUint(id.UserID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// middleware rejects callers over their budget with a 429. A nil limiter
// lets everything through.
func (l *limiter) middleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientKey(r), time.Now()) {
				m.RateLimited.Inc()
				writeJSON(w, http.StatusTooManyRequests, envelope{Status: false, Message: "Too Many Attempts."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
