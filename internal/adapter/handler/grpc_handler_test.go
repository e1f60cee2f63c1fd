package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/manifest-sync/internal/core/service"
	"github.com/rl1809/manifest-sync/internal/port"
)

func startHealthServer(t *testing.T, db port.DatabaseRepository) (*GRPCHandler, healthpb.HealthClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	h := NewGRPCHandler(service.NewSyncService(db, nil, 0))
	h.Register(server)

	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return h, healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	return resp.Status
}

func TestGRPCHealth_ServingAndShutdown(t *testing.T) {
	h, client := startHealthServer(t, sqliteRepository(t))

	if got := h.Probe(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING from probe, got %s", got)
	}
	if got := checkStatus(t, client); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %s", got)
	}

	h.Shutdown()
	if got := checkStatus(t, client); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING after shutdown, got %s", got)
	}
}

func TestGRPCHealth_DatabaseDown(t *testing.T) {
	h, client := startHealthServer(t, downDB{})

	h.Probe(context.Background())
	if got := checkStatus(t, client); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING, got %s", got)
	}
}

func TestGRPCHealth_WatchStopsWithContext(t *testing.T) {
	h, client := startHealthServer(t, sqliteRepository(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Watch(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthServiceName})
		if err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("watch never published SERVING: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
