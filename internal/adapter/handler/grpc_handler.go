package handler

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/manifest-sync/internal/core/service"
)

// HealthServiceName is the service reported by the gRPC health endpoint.
const HealthServiceName = "manifest-sync"

// GRPCHandler exposes grpc.health.v1 backed by the database ping.
type GRPCHandler struct {
	health      *health.Server
	syncService *service.SyncService
}

func NewGRPCHandler(syncService *service.SyncService) *GRPCHandler {
	return &GRPCHandler{
		health:      health.NewServer(),
		syncService: syncService,
	}
}

func (h *GRPCHandler) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Probe pings the store once and publishes the result.
func (h *GRPCHandler) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.syncService.Ready(ctx); err != nil {
		log.Printf("grpc health: %v", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus(HealthServiceName, status)
	return status
}

// Watch probes every interval until ctx is done.
func (h *GRPCHandler) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.probeWithTimeout(ctx, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.probeWithTimeout(ctx, interval)
		}
	}
}

func (h *GRPCHandler) probeWithTimeout(ctx context.Context, timeout time.Duration) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	h.Probe(probeCtx)
}

// Shutdown marks every service NOT_SERVING so clients drain before the server stops.
func (h *GRPCHandler) Shutdown() {
	h.health.Shutdown()
}
