// Package idempotency provides the Inbox pattern for exactly-once alert delivery.
// Keys are derived from the source event ID and the delivery channel so a
// redelivered Kafka record never notifies the same channel twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Status represents the processing status of an inbox entry
type Status string

const (
	StatusStarted     Status = "started"
	StatusFinished    Status = "finished"
	StatusRecoverable Status = "recoverable"
	StatusFailed      Status = "failed"
)

var (
	// ErrMessageInProgress indicates message is currently being processed
	ErrMessageInProgress = errors.New("message in progress by another handler")
	// ErrPreviouslyFailed is returned for keys whose handler failed terminally
	ErrPreviouslyFailed = errors.New("message previously failed permanently")
	// ErrTerminal marks handler errors that must not be retried
	ErrTerminal = errors.New("terminal failure")
)

// Terminal wraps err so the inbox records it as a permanent failure.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTerminal, err)
}

// IsTerminal reports whether err was marked with Terminal.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminal)
}

// ProcessResult represents the result of idempotent processing
type ProcessResult struct {
	IsNew        bool
	Duplicate    bool
	WasRecovered bool
	Result       json.RawMessage
}

// ProcessFunc is the function signature for idempotent handlers
type ProcessFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// GenerateKey derives a deterministic key from an event ID and a delivery channel.
func GenerateKey(eventID, channel string) string {
	hash := sha256.Sum256([]byte(eventID + "|" + channel))
	return hex.EncodeToString(hash[:])
}

// InboxEntry is the recorded state of one key
type InboxEntry struct {
	Key       string
	Handler   string
	Status    Status
	Payload   json.RawMessage
	Result    json.RawMessage
	UpdatedAt time.Time
}

// InboxConfig holds configuration for the inbox
type InboxConfig struct {
	// TTL is how long a key is remembered
	TTL time.Duration
	// MaintenanceInterval is how often expired keys are purged
	MaintenanceInterval time.Duration
	// StaleAfter is how long a started key may go without progress before
	// another delivery may claim it
	StaleAfter time.Duration
}

// DefaultInboxConfig returns defaults for alert deliveries
func DefaultInboxConfig() InboxConfig {
	return InboxConfig{
		TTL:                 7 * 24 * time.Hour,
		MaintenanceInterval: time.Hour,
		StaleAfter:          5 * time.Minute,
	}
}

// Inbox is the PostgreSQL backed inbox shared by every dispatcher replica
type Inbox struct {
	pool   *pgxpool.Pool
	config InboxConfig
	logger *zap.Logger
	tracer trace.Tracer
}

// NewInbox creates an inbox over the inbox table
func NewInbox(pool *pgxpool.Pool, cfg InboxConfig, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{
		pool:   pool,
		config: cfg,
		logger: logger,
		tracer: otel.Tracer("inbox"),
	}
}

// claimQuery takes a key that is new, retryable or stale. It returns no row
// when the key is finished, failed or held by a live delivery.
const claimQuery = `
	INSERT INTO inbox (idempotency_key, handler_name, status, payload, expires_at)
	VALUES ($1, $2, 'started', $3, NOW() + make_interval(secs => $4))
	ON CONFLICT (idempotency_key) DO UPDATE
	SET status = 'started', updated_at = NOW()
	WHERE inbox.status = 'recoverable'
	   OR (inbox.status = 'started' AND inbox.updated_at < NOW() - make_interval(secs => $5))
	RETURNING (xmax <> 0)`

// Process executes fn at most once per key. A finished key returns its stored
// result with Duplicate set; a terminally failed key returns ErrPreviouslyFailed.
func (i *Inbox) Process(ctx context.Context, key, handlerName string, payload json.RawMessage, fn ProcessFunc) (*ProcessResult, error) {
	ctx, span := i.tracer.Start(ctx, "inbox.process",
		trace.WithAttributes(
			attribute.String("inbox.key", key),
			attribute.String("inbox.handler", handlerName),
		))
	defer span.End()

	var reclaimed bool
	err := i.pool.QueryRow(ctx, claimQuery,
		key, handlerName, payload, i.config.TTL.Seconds(), i.config.StaleAfter.Seconds(),
	).Scan(&reclaimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return i.settled(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", key, err)
	}
	span.SetAttributes(attribute.Bool("inbox.reclaimed", reclaimed))

	result, handlerErr := fn(ctx, payload)
	if handlerErr != nil {
		status := StatusRecoverable
		if IsTerminal(handlerErr) {
			status = StatusFailed
		}
		errResult, _ := json.Marshal(map[string]string{"error": handlerErr.Error()})
		if err := i.finish(ctx, key, status, errResult); err != nil {
			i.logger.Error("failed to record handler error", zap.String("key", key), zap.Error(err))
		}
		span.RecordError(handlerErr)
		return nil, handlerErr
	}

	if err := i.finish(ctx, key, StatusFinished, result); err != nil {
		// fn already ran; the key stays started until StaleAfter elapses
		i.logger.Error("failed to record completion", zap.String("key", key), zap.Error(err))
	}
	return &ProcessResult{IsNew: !reclaimed, WasRecovered: reclaimed, Result: result}, nil
}

// settled explains why a key could not be claimed
func (i *Inbox) settled(ctx context.Context, key string) (*ProcessResult, error) {
	entry, err := i.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	switch entry.Status {
	case StatusFinished:
		return &ProcessResult{Duplicate: true, Result: entry.Result}, nil
	case StatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrPreviouslyFailed, key)
	default:
		return nil, ErrMessageInProgress
	}
}

// Get returns the recorded state of key; pgx.ErrNoRows when unknown
func (i *Inbox) Get(ctx context.Context, key string) (*InboxEntry, error) {
	e := &InboxEntry{}
	err := i.pool.QueryRow(ctx, `
		SELECT idempotency_key, handler_name, status, payload, result, updated_at
		FROM inbox WHERE idempotency_key = $1`, key,
	).Scan(&e.Key, &e.Handler, &e.Status, &e.Payload, &e.Result, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (i *Inbox) finish(ctx context.Context, key string, status Status, result json.RawMessage) error {
	_, err := i.pool.Exec(ctx, `
		UPDATE inbox SET status = $2, result = $3, updated_at = NOW()
		WHERE idempotency_key = $1`, key, status, result)
	return err
}

// RunMaintenance purges expired keys every MaintenanceInterval until ctx is done
func (i *Inbox) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(i.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := i.PurgeExpired(ctx)
			if err != nil {
				i.logger.Error("inbox purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				i.logger.Info("inbox purged", zap.Int64("deleted", n))
			}
		}
	}
}

// PurgeExpired deletes keys past their TTL
func (i *Inbox) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := i.pool.Exec(ctx, `DELETE FROM inbox WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purge inbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InboxStats holds counts per status
type InboxStats map[Status]int64

// Stats returns the number of keys in each status
func (i *Inbox) Stats(ctx context.Context) (InboxStats, error) {
	rows, err := i.pool.Query(ctx, `SELECT status, COUNT(*) FROM inbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("inbox stats: %w", err)
	}
	defer rows.Close()

	stats := InboxStats{}
	for rows.Next() {
		var status Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan inbox stats: %w", err)
		}
		stats[status] = n
	}
	return stats, rows.Err()
}
