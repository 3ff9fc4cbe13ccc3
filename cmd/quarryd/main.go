package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/logquarry/internal/adapter/api"
	"github.com/user/logquarry/internal/adapter/api/handler"
	"github.com/user/logquarry/internal/adapter/metrics"
	"github.com/user/logquarry/internal/adapter/registry"
	"github.com/user/logquarry/internal/adapter/transport"
	"github.com/user/logquarry/internal/pkg/config"
	"github.com/user/logquarry/internal/pkg/logger"
	"github.com/user/logquarry/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting quarryd")

	m := metrics.NewQuarryMetrics()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Core Wiring ---
	// The cleanup collaborator: released staging files are removed from disk.
	fileRegistry := registry.New(func(path string) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove released file", "path", path, "error", err)
		}
	}, log)

	shareTransport := transport.NewShareTransport(cfg.ShareRoot, cfg.SharePathTemplate, log)

	limiter := rate.NewLimiter(rate.Limit(cfg.HarvestRPS), 1)
	harvester := usecase.NewHarvester(shareTransport, fileRegistry, limiter, m, log, usecase.HarvesterOptions{
		StagingDir:     cfg.StagingDir,
		ChunkThreshold: cfg.ChunkThreshold,
		ChunkCount:     cfg.ChunkCount,
		Retries:        cfg.HarvestRetries,
	})

	parser := usecase.NewStreamParser(cfg.ParserBufferSize, cfg.ParserBatchSize, m, log)

	broker := handler.NewEventBroker(ctx, log)

	manager := usecase.NewSessionManager(harvester, parser, fileRegistry, broker, m, log, cfg.RefreshInterval)
	coordinator := usecase.NewSearchCoordinator(manager, m, log, usecase.SearchOptions{
		ResultCap:    cfg.SearchResultCap,
		CheckEvery:   cfg.SearchCheckEvery,
		PreviewWidth: cfg.SearchPreviewWidth,
	})

	// --- HTTP Server ---
	router := api.NewRouter(ctx, log, harvester, manager, coordinator, broker)
	// No WriteTimeout: the /api/v1/events SSE stream is long-lived.
	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("starting http server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	// Close sessions first so their files are released, then sweep anything
	// still registered.
	manager.CloseAll()
	fileRegistry.ReleaseAll()

	log.Info("quarryd shut down gracefully")
}
