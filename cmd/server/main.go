package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	h "github.com/veranemoloko/dubbing-sync/internal/api/http"
	"github.com/veranemoloko/dubbing-sync/internal/client"
	cfgpkg "github.com/veranemoloko/dubbing-sync/internal/config"
	"github.com/veranemoloko/dubbing-sync/internal/engine"
	svc "github.com/veranemoloko/dubbing-sync/internal/service"
	"github.com/veranemoloko/dubbing-sync/internal/storage"
	"github.com/veranemoloko/dubbing-sync/internal/worker"
)

func main() {

	cfg, err := cfgpkg.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfgpkg.SetupLogger(cfg)
	logger.Info("configuration loaded successfully", "remote", cfg.RemoteBaseURL, "poll_interval", cfg.PollInterval)

	remote := client.New(cfg.RemoteBaseURL, cfg.RequestTimeout, cfg.UploadTimeout, logger)

	syncEngine := engine.New(remote, engine.Options{
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})
	defer syncEngine.Close()

	store := storage.NewArtifactStore(cfg.DownloadDir)
	logger.Info("artifact store ready", "dir", store.Dir())
	artifactWorker := worker.NewArtifactWorker(store, cfg.DownloadTimeout, cfg.DownloadParallel, logger)

	downloadService := svc.NewDownloadService(remote, artifactWorker, logger)
	taskService := svc.NewTaskService(remote, syncEngine, downloadService, logger)

	router := h.NewRouter(taskService, logger)
	// No WriteTimeout: event streams stay open until the task is terminal.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTPTimeout,
		IdleTimeout:       cfg.HTTPTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Closing the engine first ends open event streams.
	syncEngine.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}
}
