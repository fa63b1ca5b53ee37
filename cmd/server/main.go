package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigilops/vigil/internal/browser"
	"github.com/vigilops/vigil/internal/config"
	"github.com/vigilops/vigil/internal/database"
	"github.com/vigilops/vigil/internal/executor"
	"github.com/vigilops/vigil/internal/handler"
	"github.com/vigilops/vigil/internal/scheduler"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg)

	slog.Info("Starting Vigil monitoring engine", "version", version)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the application database (monitor store + results). This is
	// separate from the broker connection, which the scheduling facade owns, so
	// an unreachable broker degrades queue mode without losing the store.
	db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			slog.Error("Failed to disconnect from database", "error", err)
		}
	}()

	// Create indexes
	if err := database.CreateIndexes(ctx, db); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	monitorRepo := database.NewMonitorRepository(db)
	resultRepo := database.NewResultRepository(db)

	// Initialize the shared browser resource manager and artifact store
	browserMgr := browser.NewManager(browser.Config{
		ExecutablePath: cfg.BrowserExecPath,
		AllowAnyExec:   cfg.BrowserAllowAnyExec,
	})
	artifacts := browser.NewArtifactStore(cfg.ScreenshotDir, cfg.VideoDir, cfg.ArtifactSecret)
	if err := artifacts.EnsureDirs(); err != nil {
		slog.Error("Failed to create artifact directories", "error", err)
		os.Exit(1)
	}

	// Initialize the check executor registry; one checker per check type
	registry := executor.NewRegistry()
	registry.Register(browser.NewCheck(browserMgr, artifacts, cfg.NavigationTimeout))

	// Initialize the scheduling facade; selects queue vs traditional mode and
	// falls back to traditional if queue-mode initialization fails
	facade := scheduler.NewFacade(ctx, cfg, monitorRepo, registry, resultRepo, browserMgr)

	if err := facade.StartAllMonitors(ctx); err != nil {
		slog.Error("Failed to start monitors", "error", err)
		os.Exit(1)
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(facade, version)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.NewRouter(healthHandler),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop scheduling first (drains in-flight checks, releases the broker and
	// the shared browser)
	slog.Info("Stopping scheduler...")
	if err := facade.Shutdown(shutdownCtx); err != nil {
		slog.Error("Scheduler shutdown error", "error", err)
	}

	// Shutdown HTTP server
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Vigil monitoring engine stopped")
}
