package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const createLaborEventsTable = `
CREATE TABLE IF NOT EXISTS labor_events (
    event_id       UUID PRIMARY KEY,
    aggregate_id   TEXT NOT NULL,
    event_type     TEXT NOT NULL,
    event_data     JSONB NOT NULL,
    version        INTEGER NOT NULL,
    timestamp      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    recorded_by    TEXT NOT NULL DEFAULT '',
    patient_ref    TEXT NOT NULL DEFAULT '',
    correlation_id TEXT NOT NULL DEFAULT '',
    UNIQUE (aggregate_id, version)
)`

const createOutboxTable = `
CREATE TABLE IF NOT EXISTS outbox (
    id               BIGSERIAL PRIMARY KEY,
    record_id        TEXT NOT NULL,
    event_type       TEXT NOT NULL,
    payload          JSONB NOT NULL,
    topic            TEXT NOT NULL,
    message_key      TEXT NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    published_at     TIMESTAMPTZ,
    dead_lettered_at TIMESTAMPTZ,
    attempts         INTEGER NOT NULL DEFAULT 0,
    last_error       TEXT
)`

const createInboxTable = `
CREATE TABLE IF NOT EXISTS inbox (
    idempotency_key TEXT PRIMARY KEY,
    handler_name    TEXT NOT NULL,
    status          TEXT NOT NULL,
    payload         JSONB,
    result          JSONB,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at      TIMESTAMPTZ
)`

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_labor_events_type ON labor_events (event_type, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox (id) WHERE published_at IS NULL AND dead_lettered_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_inbox_expires ON inbox (expires_at)`,
}

// CreateSchema creates the event store, outbox and inbox tables if missing.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("ensuring database schema")

	for _, stmt := range []string{createLaborEventsTable, createOutboxTable, createInboxTable} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, stmt := range indexes {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
