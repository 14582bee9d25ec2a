package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fallsearch/internal/config"
	logpkg "github.com/kailas-cloud/fallsearch/internal/logger"
	"github.com/kailas-cloud/fallsearch/internal/metrics"
	chiTransport "github.com/kailas-cloud/fallsearch/internal/transport/chi"
	healthuc "github.com/kailas-cloud/fallsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/fallsearch/internal/usecase/search"
	"github.com/kailas-cloud/fallsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting fallsearch API server",
		zap.String("version", version.String()),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.Bool("rewrite_enabled", cfg.Rewrite.Enabled),
		zap.String("term_policy", cfg.Search.TermPolicy),
	)

	ctx := context.Background()
	storage, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer storage.close()

	// Register metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	policy, err := searchuc.ParseTermPolicy(cfg.Search.TermPolicy)
	if err != nil {
		logger.Fatal("Invalid term policy", zap.Error(err))
	}

	rewriter, rewriteCheck := buildRewriter(ctx, cfg.Rewrite, storage.counters, logger)

	executor := searchuc.New(storage.records, rewriter, searchuc.Options{
		Policy:         policy,
		RewriteTimeout: time.Duration(cfg.Rewrite.TimeoutSec) * time.Second,
		Hardened:       cfg.Rewrite.IsHardened(),
	}, logger).WithObserver(searchuc.Observers{
		searchuc.NewLogObserver(logger),
		searchuc.MetricsObserver{},
	})

	healthSvc := healthuc.New(storage.pinger, rewriteCheck)

	server := chiTransport.NewServer(executor, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.Recoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEvent(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
