package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authsession-service/internal/app"
	"authsession-service/internal/config"
	"authsession-service/internal/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[MAIN] invalid configuration: %v", err)
	}

	zlog := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = zlog.Sync() }()

	srv := app.NewServer(cfg, zlog)

	// Run server in a separate goroutine so we can listen for shutdown signals
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(context.Background())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			zlog.Error("server failed", zap.Error(err))
		}
	case sig := <-quit:
		zlog.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("shutdown incomplete", zap.Error(err))
		return
	}
	zlog.Info("server stopped gracefully")
}
