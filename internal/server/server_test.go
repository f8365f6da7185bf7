package server_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/oggyb/socialtinder/internal/config"
	"github.com/oggyb/socialtinder/internal/server"
	"github.com/oggyb/socialtinder/internal/testutil"
)

func dialHealth(t *testing.T, registrars ...server.Registrar) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := server.NewGRPCServer(registrars...)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestHealthFollowsDependencies(t *testing.T) {
	ctx := context.Background()
	appCtx, _, _ := testutil.NewApp(t)
	h := server.NewHealthRegistrar(appCtx)
	client := dialHealth(t, h)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, h.Probe(ctx))
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	sqlDB, err := appCtx.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, h.Probe(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestWatchDrainsOnShutdown(t *testing.T) {
	appCtx, _, _ := testutil.NewApp(t)
	h := server.NewHealthRegistrar(appCtx)
	client := dialHealth(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.Watch(ctx, time.Second))

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestHTTPServerTimeouts(t *testing.T) {
	cfg := &config.Config{}
	cfg.HTTP.Host, cfg.HTTP.Port = "127.0.0.1", "8080"

	srv := server.NewHTTPServer(cfg, http.NotFoundHandler())
	assert.Equal(t, "127.0.0.1:8080", srv.Addr)
	assert.NotZero(t, srv.ReadHeaderTimeout)
}
