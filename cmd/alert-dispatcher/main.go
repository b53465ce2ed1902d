// Package main provides the alert dispatcher entry point.
// It consumes labor alerts and delivers them through the configured channels.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medassist/clinical-core/internal/alerting"
	"github.com/medassist/clinical-core/internal/api/handlers"
	"github.com/medassist/clinical-core/internal/config"
	"github.com/medassist/clinical-core/internal/infrastructure/redpanda"
	"github.com/medassist/clinical-core/internal/observability/logging"
	"github.com/medassist/clinical-core/internal/observability/metrics"
	"github.com/medassist/clinical-core/internal/observability/tracing"
	"github.com/medassist/clinical-core/pkg/circuitbreaker"
	"github.com/medassist/clinical-core/pkg/idempotency"
	"github.com/medassist/clinical-core/pkg/workerpool"
)

const (
	serviceName = "alert-dispatcher"
	version     = "1.0.0"

	lagInterval = 15 * time.Second
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

	m := metrics.New(nil)
	health := handlers.NewHealthHandler(serviceName, version, logger)

	// Inbox: postgres when configured, otherwise in-process
	var inbox alerting.Inbox
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()

		pgInbox := idempotency.NewInbox(pool, idempotency.DefaultInboxConfig(), logger)
		if stats, err := pgInbox.Stats(ctx); err == nil {
			logger.Info("inbox state",
				zap.Int64("finished", stats[idempotency.StatusFinished]),
				zap.Int64("pending", stats[idempotency.StatusStarted]+stats[idempotency.StatusRecoverable]))
		}
		go pgInbox.RunMaintenance(ctx)

		inbox = pgInbox
		health.AddCheck("database", pool.Ping)
		logger.Info("connected to database")
	} else {
		logger.Warn("database.url not set, deduplication is process local")
		inbox = idempotency.NewMemoryInbox()
	}

	breakerCfg := alerting.BreakerConfig()
	breakerCfg.OnStateChange = m.BreakerStateChanged
	breakers := circuitbreaker.NewManager(breakerCfg, logger)

	notifiers := []alerting.Notifier{alerting.NewLogNotifier(logger)}
	if cfg.Dispatcher.WebhookURL != "" {
		webhook, err := alerting.NewWebhookNotifier(alerting.WebhookConfig{
			URL:     cfg.Dispatcher.WebhookURL,
			Timeout: cfg.Dispatcher.WebhookTimeout,
		}, nil)
		if err != nil {
			logger.Fatal("webhook configuration failed", zap.Error(err))
		}
		notifiers = append(notifiers, webhook)
	}

	poolCfg := workerpool.DefaultConfig()
	poolCfg.Workers = cfg.Dispatcher.Workers
	poolCfg.QueueSize = cfg.Dispatcher.QueueSize
	poolCfg.MaxRetries = cfg.Dispatcher.MaxRetries
	poolCfg.RetryDelay = cfg.Dispatcher.RetryDelay

	dispatcher, err := alerting.NewDispatcher(poolCfg, inbox, breakers, notifiers, m, logger)
	if err != nil {
		logger.Fatal("dispatcher creation failed", zap.Error(err))
	}
	dispatcher.Start()

	producerCfg := redpanda.DefaultProducerConfig()
	producerCfg.Brokers = cfg.Kafka.Brokers
	producer, err := redpanda.NewProducer(producerCfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer producer.Close()

	consumerCfg := redpanda.DefaultConsumerConfig()
	consumerCfg.Brokers = cfg.Kafka.Brokers
	consumerCfg.GroupID = cfg.Kafka.GroupID
	consumerCfg.Topics = []string{cfg.Kafka.AlertTopic}

	consumer, err := redpanda.NewConsumer(consumerCfg, dispatcher.Handle, logger)
	if err != nil {
		logger.Fatal("consumer creation failed", zap.Error(err))
	}
	consumer.WithDeadLetter(producer).Start()
	health.AddCheck("redpanda", producer.Ping)
	health.AddCheck("delivery_queue", func(context.Context) error {
		if dispatcher.Saturated() {
			return errors.New("delivery queue saturated")
		}
		return nil
	})

	logger.Info("alert dispatcher started",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.AlertTopic),
		zap.Int("channels", len(notifiers)))

	admin, err := redpanda.NewAdmin(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal("admin client creation failed", zap.Error(err))
	}
	defer admin.Close()
	go trackLag(ctx, admin, cfg.Kafka.GroupID, m, logger)

	r := chi.NewRouter()
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Get("/breakers", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(breakers.GetHealthStatus())
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	server := &http.Server{Addr: ":" + cfg.Server.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server error", zap.Error(err))
		}
	}()

	// Wait for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	if err := consumer.Stop(); err != nil {
		logger.Error("consumer stop error", zap.Error(err))
	}
	if err := dispatcher.Stop(); err != nil {
		logger.Error("dispatcher stop error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("status server shutdown error", zap.Error(err))
	}

	stats := dispatcher.Stats()
	logger.Info("alert dispatcher stopped",
		zap.Int64("completed", stats.TasksCompleted),
		zap.Int64("failed", stats.TasksFailed))
}

func trackLag(ctx context.Context, admin *redpanda.Admin, groupID string, m *metrics.Metrics, logger *zap.Logger) {
	ticker := time.NewTicker(lagInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lag, err := admin.TotalLag(ctx, groupID)
			if err != nil {
				logger.Debug("lag query failed", zap.Error(err))
				continue
			}
			m.ConsumerLag.Set(float64(lag))
		}
	}
}
