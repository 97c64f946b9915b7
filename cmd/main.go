package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"worksync/internal/bootstrap"
	"worksync/internal/catalog"
	"worksync/internal/config"
	cronpkg "worksync/internal/cron"
	"worksync/internal/lock"
	"worksync/internal/metrics"
	"worksync/internal/notify"
	"worksync/internal/repository"
	"worksync/internal/router"
	"worksync/internal/syncer"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if hasArg("--bootstrap-db") {
		if err := runDBBootstrap(logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Metrics sink (Redis with in-memory fallback) ---
	sink, sinkErr := metrics.NewCallSink(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, cfg.Sync.CallBudget)
	if sinkErr != nil {
		logger.Warn("Redis unavailable for call accounting, using in-memory fallback", zap.Error(sinkErr))
	}

	// --- Single-flight lock ---
	runLock, lockErr := lock.NewRunLock(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, time.Hour)
	if lockErr != nil && cfg.Sync.SingleFlight {
		logger.Warn("Redis unavailable for run locking, using in-memory fallback", zap.Error(lockErr))
	}

	// --- Catalog client ---
	catalogClient := catalog.NewClient(
		cfg.Catalog.BaseURL,
		cfg.Catalog.APIKey,
		cfg.Catalog.Mailto,
		cfg.Catalog.Timeout,
	).WithGate(sink)

	// --- Repositories ---
	jobRepo := repository.NewSyncJobRepository(db)

	var works, authors syncer.MirrorStore
	if cfg.Sync.MirrorEnabled {
		works = repository.NewWorkRepository(db)
		authors = repository.NewAuthorRepository(db)
	} else {
		logger.Info("Mirror store disabled, running in count-only mode")
	}

	// --- Sync engine ---
	notifier := notify.NewTelegramNotifier(cfg.Notify.BotToken, cfg.Notify.ChatID, logger)
	var runnerNotifier syncer.Notifier
	if notifier != nil {
		runnerNotifier = notifier
	}
	runner := syncer.NewRunner(jobRepo, runnerNotifier, logger)
	service := syncer.NewService(cfg, jobRepo, works, authors, catalogClient, runner, runLock, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, service, jobRepo, sink, logger, cfg.API.Key)

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(cfg, service, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting worksync server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	// Let in-flight sync runs finish, bounded
	if !service.Wait(30 * time.Second) {
		logger.Warn("Timed out waiting for in-flight syncs; ledger keeps their last durable state")
	}

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runDBBootstrap(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(db); err != nil {
		return err
	}
	logger.Info("Schema migration completed")
	return nil
}
