package labor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medassist/clinical-core/internal/infrastructure/postgres"
)

// Store persists labor records as event streams.
type Store interface {
	Save(ctx context.Context, agg *Aggregate) error
	Load(ctx context.Context, id string) (*Aggregate, error)
	GetEvents(ctx context.Context, aggregateID string) ([]*Event, error)
}

// uniqueViolation is the PostgreSQL error code for a duplicate key.
const uniqueViolation = "23505"

// Repository provides event sourcing persistence
type Repository struct {
	pool       *pgxpool.Pool
	alertTopic string
	logger     *zap.Logger
}

// NewRepository creates a new repository. ActionLineCrossed events are
// written to the outbox for alertTopic in the same transaction as the events.
func NewRepository(pool *pgxpool.Pool, alertTopic string, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, alertTopic: alertTopic, logger: logger}
}

// Save persists new events for an aggregate
func (r *Repository) Save(ctx context.Context, agg *Aggregate) error {
	if len(agg.Changes()) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, event := range agg.Changes() {
		if err := r.insertEvent(ctx, tx, event); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", ErrVersionConflict, agg.ID())
			}
			return fmt.Errorf("insert event: %w", err)
		}

		if event.EventType != EventActionLineCrossed {
			continue
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal alert: %w", err)
		}
		entry := &postgres.OutboxEntry{
			RecordID:  event.AggregateID,
			EventType: string(event.EventType),
			Payload:   payload,
			Topic:     r.alertTopic,
			Key:       event.AggregateID,
		}
		if err := postgres.Enqueue(ctx, tx, entry); err != nil {
			return err
		}
		r.logger.Info("action line alert queued",
			zap.String("record_id", event.AggregateID),
			zap.String("event_id", event.ID))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	agg.ClearChanges()
	return nil
}

func (r *Repository) insertEvent(ctx context.Context, tx pgx.Tx, event *Event) error {
	query := `
		INSERT INTO labor_events
		(event_id, aggregate_id, event_type, event_data, version, timestamp, recorded_by, patient_ref, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.Exec(ctx, query,
		event.ID,
		event.AggregateID,
		event.EventType,
		event.EventData,
		event.Version,
		event.Timestamp,
		event.RecordedBy,
		event.PatientRef,
		event.CorrelationID,
	)
	return err
}

// Load retrieves an aggregate by ID
func (r *Repository) Load(ctx context.Context, id string) (*Aggregate, error) {
	events, err := r.GetEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	return replay(id, events)
}

// GetEvents retrieves all events for an aggregate
func (r *Repository) GetEvents(ctx context.Context, aggregateID string) ([]*Event, error) {
	query := `
		SELECT event_id, aggregate_id, event_type, event_data, version, timestamp,
		       recorded_by, patient_ref, correlation_id
		FROM labor_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`

	rows, err := r.pool.Query(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{AggregateType: AggregateType}
		err := rows.Scan(
			&e.ID, &e.AggregateID, &e.EventType, &e.EventData, &e.Version,
			&e.Timestamp, &e.RecordedBy, &e.PatientRef, &e.CorrelationID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetEventsByType retrieves the most recent events of one type across records
func (r *Repository) GetEventsByType(ctx context.Context, eventType EventType, limit int) ([]*Event, error) {
	query := `
		SELECT event_id, aggregate_id, event_type, event_data, version, timestamp
		FROM labor_events
		WHERE event_type = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{AggregateType: AggregateType}
		err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.EventData, &e.Version, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func replay(id string, events []*Event) (*Aggregate, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	agg := NewAggregate(id)
	if err := agg.LoadFromHistory(events); err != nil {
		return nil, fmt.Errorf("replay %s: %w", id, err)
	}
	return agg, nil
}

// MemoryStore keeps event streams in process memory. It backs the API when
// no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]*Event
	alerts  []*Event
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[string][]*Event)}
}

// Save appends the uncommitted events, rejecting stale aggregates.
func (m *MemoryStore) Save(_ context.Context, agg *Aggregate) error {
	changes := agg.Changes()
	if len(changes) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stream := m.streams[agg.ID()]
	if len(stream) != changes[0].Version-1 {
		return fmt.Errorf("%w: %s", ErrVersionConflict, agg.ID())
	}
	for _, e := range changes {
		cp := *e
		stream = append(stream, &cp)
		if e.EventType == EventActionLineCrossed {
			m.alerts = append(m.alerts, &cp)
		}
	}
	m.streams[agg.ID()] = stream

	agg.ClearChanges()
	return nil
}

// Load rebuilds the aggregate from its stream
func (m *MemoryStore) Load(ctx context.Context, id string) (*Aggregate, error) {
	events, err := m.GetEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	return replay(id, events)
}

// GetEvents returns a copy of the stream
func (m *MemoryStore) GetEvents(_ context.Context, aggregateID string) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stream := m.streams[aggregateID]
	out := make([]*Event, len(stream))
	for i, e := range stream {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// Alerts returns the ActionLineCrossed events saved so far.
func (m *MemoryStore) Alerts() []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Event, len(m.alerts))
	copy(out, m.alerts)
	return out
}
