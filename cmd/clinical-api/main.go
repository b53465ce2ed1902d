// Package main provides the clinical API service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medassist/clinical-core/internal/acidbase"
	"github.com/medassist/clinical-core/internal/api"
	"github.com/medassist/clinical-core/internal/api/handlers"
	"github.com/medassist/clinical-core/internal/config"
	"github.com/medassist/clinical-core/internal/domain/labor"
	"github.com/medassist/clinical-core/internal/infrastructure/cache"
	"github.com/medassist/clinical-core/internal/infrastructure/postgres"
	"github.com/medassist/clinical-core/internal/observability/logging"
	"github.com/medassist/clinical-core/internal/observability/metrics"
	"github.com/medassist/clinical-core/internal/observability/tracing"
)

const (
	serviceName = "clinical-api"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Initialize logger
	baseLogger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.Service(baseLogger, serviceName)
	defer logger.Sync()

	ctx := context.Background()

	tp, err := tracing.Init(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Fatal("tracing initialization failed", zap.Error(err))
	}

	m := metrics.New(nil)
	health := handlers.NewHealthHandler(serviceName, version, logger)

	// Engines
	intent, score, err := cfg.Classifier.Build()
	if err != nil {
		logger.Fatal("classifier initialization failed", zap.Error(err))
	}
	bloodGas, err := acidbase.NewEngine(cfg.AcidBase.Options())
	if err != nil {
		logger.Fatal("acid-base engine initialization failed", zap.Error(err))
	}

	// Labor record store
	var store labor.Store
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("database ping failed", zap.Error(err))
		}
		if err := postgres.CreateSchema(ctx, pool, logger); err != nil {
			logger.Fatal("schema creation failed", zap.Error(err))
		}
		logger.Info("connected to database")

		store = labor.NewRepository(pool, cfg.Kafka.AlertTopic, logger)
		health.AddCheck("database", pool.Ping)
	} else {
		logger.Warn("database.url not set, labor records are kept in memory and alerts are not relayed")
		store = labor.NewMemoryStore()
	}

	// Chart cache
	var cacheStore cache.Store
	if cfg.Redis.Addr != "" {
		redisStore := cache.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer redisStore.Close()
		if err := redisStore.Ping(ctx); err != nil {
			logger.Warn("redis ping failed, chart cache will miss until it recovers", zap.Error(err))
		}
		health.AddCheck("redis", redisStore.Ping)
		cacheStore = redisStore
	} else {
		cacheStore = cache.NewMemoryStore()
	}
	chartCache := cache.NewChartCache(cacheStore, cfg.Redis.ChartTTL, m, logger)

	if len(cfg.Auth.APIKeys) == 0 {
		logger.Warn("auth.api_keys is empty, API key authentication is disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		ServiceName: serviceName,
		APIKeys:     cfg.Auth.APIKeys,
		Engines:     handlers.NewEngineHandler(intent, score, bloodGas, cfg.Partogram, m, logger),
		Labor:       handlers.NewLaborHandler(store, chartCache, m, logger),
		Health:      health,
		Metrics:     metrics.Handler(),
		Recorder:    m,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting clinical API",
		zap.String("port", cfg.Server.Port),
		zap.Bool("tracing", tp.Enabled()),
	)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}
