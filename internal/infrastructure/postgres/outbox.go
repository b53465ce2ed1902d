// Package postgres provides the PostgreSQL transactional outbox used to
// publish labor alerts reliably, and the schema it shares with the event store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// OutboxEntry is one alert waiting to be published
type OutboxEntry struct {
	ID        int64
	RecordID  string
	EventType string
	Payload   json.RawMessage
	Topic     string
	Key       string
	CreatedAt time.Time
	Attempts  int
	LastError *string
}

// RelayConfig holds configuration for the outbox relay
type RelayConfig struct {
	// BatchSize is the number of entries claimed per poll
	BatchSize int
	// PollInterval is how often to poll for new entries
	PollInterval time.Duration
	// MaxAttempts is the number of failed publishes before an entry is dead lettered
	MaxAttempts int
	// DeadLetterTopic receives entries that exhausted their attempts
	DeadLetterTopic string
}

// DefaultRelayConfig returns defaults sized for alert traffic
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BatchSize:       50,
		PollInterval:    500 * time.Millisecond,
		MaxAttempts:     5,
		DeadLetterTopic: "dead.letter",
	}
}

// OutboxPublisher sends one message to the broker
type OutboxPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// BatchObserver is told how each processed batch went. Metrics implement it.
type BatchObserver interface {
	ObserveOutboxBatch(published, failed int, d time.Duration)
}

// Enqueue stores an entry inside the caller's transaction, so the alert is
// committed together with the event that raised it.
func Enqueue(ctx context.Context, tx pgx.Tx, entry *OutboxEntry) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO outbox (record_id, event_type, payload, topic, message_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		entry.RecordID, entry.EventType, entry.Payload, entry.Topic, entry.Key,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue outbox entry: %w", err)
	}
	return nil
}

// Relay moves committed outbox entries to the broker. Several relays may run
// against the same table; rows are claimed with SKIP LOCKED.
type Relay struct {
	pool      *pgxpool.Pool
	config    RelayConfig
	publisher OutboxPublisher
	observer  BatchObserver
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewRelay creates a relay
func NewRelay(pool *pgxpool.Pool, publisher OutboxPublisher, cfg RelayConfig, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		pool:      pool,
		config:    cfg,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("outbox-relay"),
	}
}

// WithObserver attaches a batch observer
func (r *Relay) WithObserver(obs BatchObserver) *Relay {
	r.observer = obs
	return r
}

// Run polls until ctx is cancelled. A full batch triggers an immediate
// follow-up poll instead of waiting for the next tick.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("outbox relay running",
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("poll_interval", r.config.PollInterval))

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for {
			n, err := r.RelayBatch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error("outbox batch failed", zap.Error(err))
				}
				break
			}
			if n < r.config.BatchSize {
				break
			}
		}
	}
}

// RelayBatch claims up to BatchSize pending entries, publishes them and
// records the outcome in one transaction. It returns the number claimed.
func (r *Relay) RelayBatch(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "outbox.relay_batch")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(context.Background())

	rows, err := tx.Query(ctx, `
		SELECT id, record_id, event_type, payload, topic, message_key, created_at, attempts, last_error
		FROM outbox
		WHERE published_at IS NULL AND dead_lettered_at IS NULL AND attempts < $1
		ORDER BY id
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		r.config.MaxAttempts, r.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim entries: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	span.SetAttributes(attribute.Int("outbox.claimed", len(entries)))

	start := time.Now()
	published := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if pubErr := r.publisher.Publish(ctx, entry.Topic, entry.Key, entry.Payload); pubErr != nil {
			r.logger.Warn("alert publish failed",
				zap.Int64("entry_id", entry.ID),
				zap.String("record_id", entry.RecordID),
				zap.Int("attempt", entry.Attempts+1),
				zap.Error(pubErr))
			if _, err := tx.Exec(ctx,
				`UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
				entry.ID, pubErr.Error()); err != nil {
				return 0, fmt.Errorf("record failure: %w", err)
			}
			continue
		}
		published = append(published, entry.ID)
	}

	if len(published) > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE outbox SET published_at = NOW() WHERE id = ANY($1)`, published); err != nil {
			return 0, fmt.Errorf("mark published: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("commit: %w", err)
	}

	failed := len(entries) - len(published)
	if r.observer != nil {
		r.observer.ObserveOutboxBatch(len(published), failed, time.Since(start))
	}
	r.logger.Debug("outbox batch relayed", zap.Int("published", len(published)), zap.Int("failed", failed))
	return len(entries), nil
}

func collectEntries(rows pgx.Rows) ([]*OutboxEntry, error) {
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		e := &OutboxEntry{}
		if err := rows.Scan(&e.ID, &e.RecordID, &e.EventType, &e.Payload, &e.Topic, &e.Key,
			&e.CreatedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// deadLetter wraps an entry that could not be delivered
type deadLetter struct {
	OriginalTopic string          `json:"originalTopic"`
	RecordID      string          `json:"recordId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	Attempts      int             `json:"attempts"`
	LastError     *string         `json:"lastError,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// DeadLetterExhausted publishes entries that ran out of attempts to the dead
// letter topic and flags them so the relay stops claiming them.
func (r *Relay) DeadLetterExhausted(ctx context.Context) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(context.Background())

	rows, err := tx.Query(ctx, `
		SELECT id, record_id, event_type, payload, topic, message_key, created_at, attempts, last_error
		FROM outbox
		WHERE published_at IS NULL AND dead_lettered_at IS NULL AND attempts >= $1
		FOR UPDATE SKIP LOCKED`,
		r.config.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("select exhausted: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return 0, err
	}

	var moved int64
	for _, e := range entries {
		body, err := json.Marshal(deadLetter{
			OriginalTopic: e.Topic,
			RecordID:      e.RecordID,
			EventType:     e.EventType,
			Payload:       e.Payload,
			Attempts:      e.Attempts,
			LastError:     e.LastError,
			CreatedAt:     e.CreatedAt,
		})
		if err != nil {
			return moved, fmt.Errorf("marshal dead letter: %w", err)
		}
		if err := r.publisher.Publish(ctx, r.config.DeadLetterTopic, e.Key, body); err != nil {
			r.logger.Error("dead letter publish failed", zap.Int64("entry_id", e.ID), zap.Error(err))
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE outbox SET dead_lettered_at = NOW() WHERE id = $1`, e.ID); err != nil {
			return moved, fmt.Errorf("flag dead letter: %w", err)
		}
		moved++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return moved, nil
}

// PrunePublished deletes published and dead lettered entries older than retain
func (r *Relay) PrunePublished(ctx context.Context, retain time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM outbox
		WHERE COALESCE(published_at, dead_lettered_at) < NOW() - make_interval(secs => $1)`,
		retain.Seconds())
	if err != nil {
		return 0, fmt.Errorf("prune outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

// OutboxStats summarizes the outbox backlog
type OutboxStats struct {
	Pending       int64
	PublishedLast int64 // published in the last 24 hours
	DeadLettered  int64
	OldestPending *time.Time
}

// Stats returns the current backlog in a single scan
func (r *Relay) Stats(ctx context.Context) (*OutboxStats, error) {
	s := &OutboxStats{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE published_at IS NULL AND dead_lettered_at IS NULL),
			COUNT(*) FILTER (WHERE published_at > NOW() - INTERVAL '24 hours'),
			COUNT(*) FILTER (WHERE dead_lettered_at IS NOT NULL),
			MIN(created_at) FILTER (WHERE published_at IS NULL AND dead_lettered_at IS NULL)
		FROM outbox`,
	).Scan(&s.Pending, &s.PublishedLast, &s.DeadLettered, &s.OldestPending)
	if err != nil {
		return nil, fmt.Errorf("outbox stats: %w", err)
	}
	return s, nil
}
