package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oggyb/socialtinder/internal/app"
)

// Registrar is a common interface for all gRPC service registrars
type Registrar interface {
	Register(s *grpc.Server)
}

// HealthRegistrar exposes grpc.health.v1 for the API process. The overall
// status ("") follows whether the database and Redis answer.
type HealthRegistrar struct {
	appCtx *app.AppContext
	health *health.Server
}

func NewHealthRegistrar(appCtx *app.AppContext) *HealthRegistrar {
	return &HealthRegistrar{appCtx: appCtx, health: health.NewServer()}
}

func (h *HealthRegistrar) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Probe pings the database and Redis once and publishes the result.
func (h *HealthRegistrar) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if sqlDB, err := h.appCtx.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	if h.appCtx.RedisCache == nil || h.appCtx.RedisCache.Ping(ctx) != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	return status
}

// Watch probes every interval until ctx is done, then marks the process as
// not serving so balancers drain it before the listeners close.
func (h *HealthRegistrar) Watch(ctx context.Context, every time.Duration) error {
	h.Probe(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return nil
		case <-t.C:
			if st := h.Probe(ctx); st != healthpb.HealthCheckResponse_SERVING {
				h.appCtx.Logger.Warn("health probe failed", "status", st.String())
			}
		}
	}
}
