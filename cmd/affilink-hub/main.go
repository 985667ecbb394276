package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vijayg2124/affilink-performance-hub/internal/config"
	"github.com/vijayg2124/affilink-performance-hub/internal/database"
	"github.com/vijayg2124/affilink-performance-hub/internal/httpserver"
	"github.com/vijayg2124/affilink-performance-hub/internal/metrics"
	"github.com/vijayg2124/affilink-performance-hub/internal/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg)
	defer logger.Sync()

	logger.Info("starting AffiLink hub",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("backend", cfg.Storage.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize backend connections. Each one is optional; the server
	// degrades to in-memory storage when a backend is unreachable.
	var db *database.PostgresDB
	var redis *database.RedisDB
	var clickhouse *database.ClickHouseDB

	if cfg.Storage.Backend == config.BackendPostgres || cfg.Storage.Backend == config.BackendClickHouse {
		db, err = database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Warn("PostgreSQL not available", zap.Error(err))
			db = nil
		} else {
			defer db.Close()
		}
	}

	if cfg.Storage.Backend == config.BackendClickHouse {
		clickhouse, err = database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("ClickHouse not available", zap.Error(err))
			clickhouse = nil
		} else {
			defer clickhouse.Close()
		}
	}

	if cfg.Redis.Enabled {
		redis, err = database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis not available, change notifications limited to this process", zap.Error(err))
			redis = nil
		} else {
			defer redis.Close()
		}
	}

	// Prometheus metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics("affilink")
	}

	if db != nil && m != nil {
		go db.CollectPoolStats(ctx, time.Minute, m)
	}

	// Create HTTP server
	deps := &httpserver.Dependencies{
		DB:         db,
		Redis:      redis,
		ClickHouse: clickhouse,
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
	}

	server := httpserver.NewServer(deps)

	// Middleware chain: recovery -> logging -> auth -> rate limit
	rateLimiter := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)
	rateLimiter.SetMetrics(m)

	handler := middleware.NewRecoveryMiddleware(logger).Handler(
		middleware.NewLoggingMiddleware(logger, m).Handler(
			middleware.NewAuthMiddleware(cfg.Auth, logger).Handler(
				rateLimiter.Handler(
					server.Handler(),
				),
			),
		),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Dashboard refresh loop
	go func() {
		if err := server.Refresher().Run(ctx); err != nil && err != context.Canceled {
			logger.Error("refresh loop stopped", zap.Error(err))
		}
	}()

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	stop()

	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func setupLogger(cfg *config.Config) *zap.Logger {
	var zapCfg zap.Config

	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	// Set log level
	switch cfg.Log.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}

	return logger
}
