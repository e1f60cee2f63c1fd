package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/manifest-sync/internal/adapter/handler"
	"github.com/rl1809/manifest-sync/internal/adapter/storage"
	"github.com/rl1809/manifest-sync/internal/config"
	"github.com/rl1809/manifest-sync/internal/core/service"
	"github.com/rl1809/manifest-sync/internal/port"
)

const (
	healthInterval  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, dialect, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	log.Printf("connected to %s", dialect.Name())

	sqlAdapter := storage.NewSQLAdapter(db, dialect, storage.WithStatementCache(cfg.Sync.CacheStatements))

	// Initialize Redis journal (optional)
	var rdb *redis.Client
	var journal port.SyncJournal
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		journal = storage.NewRedisAdapter(rdb, cfg.Redis.KeyPrefix, cfg.Sync.JournalSize)
		log.Println("connected to redis, sync journal enabled")
	} else {
		log.Println("redis not configured, sync journal disabled")
	}

	// Initialize service
	syncService := service.NewSyncService(sqlAdapter, journal, cfg.Sync.RequestTimeout)

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	grpcHandler := handler.NewGRPCHandler(syncService)
	grpcHandler.Register(grpcServer)
	go grpcHandler.Watch(ctx, healthInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(syncService, cfg.Secret)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancel()
	grpcHandler.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Println("gRPC server stopped")

	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	log.Println("connections closed")
}
