// Package testutil provides common helpers for repository, service and handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/cache"
	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/logger"
	"github.com/oggyb/socialtinder/internal/storage"
)

// NewDB spins up an isolated in-memory SQLite database with the full schema.
// One connection only: sqlite serializes writers, and concurrent tests rely on
// transactions queueing on that connection.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	gdb, err := db.Open(sqlite.Open(dsn), nil)
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(db.Models()...))
	return gdb
}

// NewRedis starts a miniredis and returns the cache wrapper plus the server.
func NewRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

// Clock is a settable time source for services under test.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Epoch is where every test clock starts.
var Epoch = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// NewApp wires an AppContext over a fresh database, miniredis and an
// in-memory blob store. The clock drives both services and gorm timestamps.
func NewApp(t *testing.T) (*app.AppContext, *Clock, *storage.MemoryStore) {
	t.Helper()
	gdb := NewDB(t)
	rdb, _ := NewRedis(t)
	store := storage.NewMemoryStore("http://localhost/storage")
	clock := NewClock(Epoch)
	gdb.Config.NowFunc = func() time.Time { return clock.Now().Truncate(time.Millisecond) }

	appCtx := app.New(gdb, rdb, logger.Discard(), store)
	appCtx.Now = clock.Now
	return appCtx, clock, store
}

// CreateUser inserts a user with sane defaults; mutate adjusts the row first.
func CreateUser(t *testing.T, gdb *gorm.DB, mutate func(u *db.User)) *db.User {
	t.Helper()
	u := &db.User{
		Name:         "Test User",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Country:      "Netherlands",
	}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// NewJSONRequest creates an HTTP request with JSON body.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// Envelope mirrors the API response body.
type Envelope struct {
	Status  bool                `json:"status"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

// DecodeEnvelope unmarshals the response body.
func DecodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "body: %s", rr.Body.String())
	return env
}

// DecodeData unmarshals the envelope's data member into T.
func DecodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	env := DecodeEnvelope(t, rr)
	require.NoError(t, json.Unmarshal(env.Data, &out), "data: %s", string(env.Data))
	return out
}
