package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cesargomez89/crateflow/internal/config"
	"github.com/cesargomez89/crateflow/internal/httpapi"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/wiring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	appLogger.Info("starting crateflow", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := wiring.Build(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to wire dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	if err := deps.Scheduler.Start(ctx); err != nil {
		appLogger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer deps.Scheduler.Stop()

	// JSON-REST façade (spec.md §6); the browser UI and any
	// authentication layer are explicitly out of scope.
	handler := httpapi.NewHandler(deps.Queue, deps.Wishlist, deps.Engine, deps.Scheduler, appLogger)
	router := handler.Router()
	router.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		appLogger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server forced to shutdown", "error", err)
	}

	appLogger.Info("server exiting")
}
