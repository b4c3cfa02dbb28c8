package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"vcs/internal/api"
	"vcs/internal/config"
	"vcs/internal/logging"
	"vcs/internal/repo"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	if err := repo.Init(cfg.Repository.Root); err != nil {
		logger.Fatal("failed to initialize repository", zap.Error(err))
	}
	r, err := repo.Open(cfg.Repository.Root, cfg, logger.Logger)
	if err != nil {
		logger.Fatal("failed to open repository", zap.Error(err))
	}
	defer r.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := api.NewServer(addr, api.Services{
		Versions: r.Versions,
		Objects:  r.Objects,
		Diff:     r.Diff,
		Merge:    r.Merge,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("address", addr), zap.String("root", r.Root))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", zap.Error(err))
	}
}
