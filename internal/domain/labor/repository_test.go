package labor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	agg := startedRecord(t)
	observe(t, agg, 2*time.Hour, 4)
	observe(t, agg, 5*time.Hour, 4)
	require.NoError(t, store.Save(ctx, agg))
	assert.Empty(t, agg.Changes())

	loaded, err := store.Load(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, agg.Version(), loaded.Version())
	assert.Equal(t, agg.Observations(), loaded.Observations())
	assert.True(t, loaded.CrossesActionLine())

	events, err := store.GetEvents(ctx, "rec-1")
	require.NoError(t, err)
	require.Len(t, events, 4)
	for i, e := range events {
		assert.Equal(t, i+1, e.Version)
	}

	alerts := store.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, EventActionLineCrossed, alerts[0].EventType)
}

func TestMemoryStoreDetectsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, startedRecord(t)))

	a, err := store.Load(ctx, "rec-1")
	require.NoError(t, err)
	b, err := store.Load(ctx, "rec-1")
	require.NoError(t, err)

	observe(t, a, time.Hour, 4)
	observe(t, b, time.Hour, 5)

	require.NoError(t, store.Save(ctx, a))
	assert.ErrorIs(t, store.Save(ctx, b), ErrVersionConflict)
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	_, err := NewMemoryStore().Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryStoreSaveWithoutChanges(t *testing.T) {
	agg := NewAggregate("rec-1")
	assert.NoError(t, NewMemoryStore().Save(context.Background(), agg))
}
