package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nexura/nexura-server/internal/api"
	"github.com/nexura/nexura-server/internal/config"
	"github.com/nexura/nexura-server/internal/database"
	"github.com/nexura/nexura-server/internal/jobs"
	"github.com/nexura/nexura-server/internal/logger"
	"github.com/nexura/nexura-server/internal/social"
	"github.com/nexura/nexura-server/internal/store"
	"github.com/nexura/nexura-server/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("Starting server",
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.Port),
	)

	if err := database.RunMigrations(cfg.Database); err != nil {
		zlog.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}

	st := store.New(db, zlog)
	providers := social.NewRegistry(cfg, zlog)
	zlog.Info("Social providers enabled", zap.Strings("providers", providers.Names()))

	hub := websocket.NewHub(cfg.JWTSecret, cfg.CORSOrigins, zlog)

	scheduler := jobs.NewScheduler(st, zlog)
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(cfg, st, st, providers, hub, zlog)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("Server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("Forced shutdown", zap.Error(err))
	}

	zlog.Info("Server stopped")
}
