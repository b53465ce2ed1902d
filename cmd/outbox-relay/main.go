// Package main provides the outbox relay service entry point.
// It publishes ActionLineCrossed alerts written by the labor repository.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medassist/clinical-core/internal/api/handlers"
	"github.com/medassist/clinical-core/internal/config"
	"github.com/medassist/clinical-core/internal/infrastructure/postgres"
	"github.com/medassist/clinical-core/internal/infrastructure/redpanda"
	"github.com/medassist/clinical-core/internal/observability/logging"
	"github.com/medassist/clinical-core/internal/observability/metrics"
	"github.com/medassist/clinical-core/internal/observability/tracing"
)

const (
	serviceName = "outbox-relay"
	version     = "1.0.0"

	statsInterval   = 30 * time.Second
	pruneInterval   = time.Hour
	retainPublished = 7 * 24 * time.Hour
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.Service(baseLogger, serviceName)
	defer logger.Sync()

	if cfg.Database.URL == "" {
		logger.Fatal("database.url is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	defer tp.Shutdown(context.Background())

	// Connect to database
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	if err := postgres.CreateSchema(ctx, pool, logger); err != nil {
		logger.Fatal("schema creation failed", zap.Error(err))
	}
	logger.Info("connected to database")

	// Make sure the alert and dead letter topics exist
	admin, err := redpanda.NewAdmin(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal("admin client creation failed", zap.Error(err))
	}
	if err := admin.EnsureTopics(ctx, cfg.Kafka.AlertTopic); err != nil {
		logger.Warn("topic creation failed", zap.Error(err))
	}
	admin.Close()

	producerCfg := redpanda.DefaultProducerConfig()
	producerCfg.Brokers = cfg.Kafka.Brokers

	producer, err := redpanda.NewProducer(producerCfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer producer.Close()

	logger.Info("connected to Redpanda", zap.Strings("brokers", cfg.Kafka.Brokers))

	m := metrics.New(nil)
	relay := postgres.NewRelay(pool, producer, postgres.DefaultRelayConfig(), logger).WithObserver(m)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		relay.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		maintain(ctx, relay, m, logger)
	}()
	logger.Info("outbox relay started")

	health := handlers.NewHealthHandler(serviceName, version, logger).
		AddCheck("database", pool.Ping).
		AddCheck("redpanda", producer.Ping)
	r := chi.NewRouter()
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	server := &http.Server{Addr: ":" + cfg.Server.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}
	logger.Info("outbox relay stopped")
}

// maintain refreshes the backlog gauge, dead letters exhausted entries and
// prunes old ones.
func maintain(ctx context.Context, relay *postgres.Relay, m *metrics.Metrics, logger *zap.Logger) {
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()
	pruneTicker := time.NewTicker(pruneInterval)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-statsTicker.C:
			stats, err := relay.Stats(ctx)
			if err != nil {
				logger.Warn("outbox stats failed", zap.Error(err))
				continue
			}
			m.OutboxPending.Set(float64(stats.Pending))
			if stats.Pending > 0 && stats.OldestPending != nil {
				logger.Debug("outbox backlog",
					zap.Int64("pending", stats.Pending),
					zap.Duration("oldest", time.Since(*stats.OldestPending)))
			}
			if moved, err := relay.DeadLetterExhausted(ctx); err != nil {
				logger.Warn("dead letter pass failed", zap.Error(err))
			} else if moved > 0 {
				logger.Warn("alerts moved to dead letter", zap.Int64("count", moved))
			}
		case <-pruneTicker.C:
			deleted, err := relay.PrunePublished(ctx, retainPublished)
			if err != nil {
				logger.Warn("outbox prune failed", zap.Error(err))
				continue
			}
			logger.Info("outbox pruned", zap.Int64("deleted", deleted))
		}
	}
}
