package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mnlt/filemigrator/internal/api"
	"github.com/mnlt/filemigrator/internal/config"
	"github.com/mnlt/filemigrator/internal/contentstore"
	"github.com/mnlt/filemigrator/internal/events"
	"github.com/mnlt/filemigrator/internal/logger"
	"github.com/mnlt/filemigrator/internal/repository"
	"github.com/mnlt/filemigrator/internal/service"
)

func main() {
	// Initialize logger first (with env configuration)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	repo := repository.NewFileRepository(db)

	// Initialize content store
	store, err := contentstore.New(cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize content store")
	}

	// The status server only reads, but the orchestrator still verifies
	// both stores before serving snapshots.
	migrator := service.NewMigrator(repo, store, events.NewLogSink(appLogger), appLogger, service.Config{
		BatchSize:     cfg.Migrator.BatchSize,
		MaxRetries:    cfg.Migrator.MaxRetries,
		RetryDelay:    cfg.Migrator.RetryDelay,
		HashAlgorithm: cfg.Migrator.HashAlgorithm,
	})

	ctx := context.Background()
	if err := migrator.Initialize(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize migrator")
	}

	// Setup router
	router := api.SetupRouter(migrator, repo, appLogger, &cfg.Server)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting status API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
