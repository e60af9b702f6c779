package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/application"
	"github.com/DanielPopoola/openapi-testflow/internal/application/services"
	"github.com/DanielPopoola/openapi-testflow/internal/clock"
	"github.com/DanielPopoola/openapi-testflow/internal/config"
	"github.com/DanielPopoola/openapi-testflow/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/openapi-testflow/internal/interfaces/rest/middleware"
	"github.com/DanielPopoola/openapi-testflow/internal/listener"
	"github.com/DanielPopoola/openapi-testflow/internal/persistence/postgres"
	"github.com/DanielPopoola/openapi-testflow/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting listener simulator",
		"port", cfg.Listener.Port,
		"log_level", cfg.Logger.Level,
		"match_field", cfg.Correlator.MatchField,
	)

	ctx := context.Background()

	var repo application.CallbackRepository = listener.NewMemoryRepository()
	if cfg.Database.Enabled {
		db, err := postgres.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		repo = postgres.NewCallbackRepository(db)
	}

	callbackService := services.NewCallbackService(repo, cfg.Correlator.MatchField, clock.Real{}, logger)

	mux := http.NewServeMux()
	handlers.NewHandlers(callbackService, logger).Register(mux)

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Listener.ReadTimeout, logger)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Listener.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Listener.ReadTimeout,
		WriteTimeout: cfg.Listener.WriteTimeout,
		IdleTimeout:  cfg.Listener.IdleTimeout,
	}

	retentionWorker := worker.NewRetentionWorker(
		callbackService,
		cfg.Listener.Retention,
		cfg.Listener.SweepInterval,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go retentionWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
