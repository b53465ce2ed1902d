package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medassist/clinical-core/internal/partogram"
)

// Lookup results reported to the Observer.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Observer receives lookup results; metrics.Metrics implements it.
type Observer interface {
	ObserveCacheResult(result string)
}

// ChartCache caches chart series per record version. Store failures are
// logged and reported as misses.
type ChartCache struct {
	store    Store
	ttl      time.Duration
	observer Observer
	logger   *zap.Logger
}

// NewChartCache creates a chart cache over store
func NewChartCache(store Store, ttl time.Duration, observer Observer, logger *zap.Logger) *ChartCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChartCache{store: store, ttl: ttl, observer: observer, logger: logger}
}

// ChartKey builds the cache key for a record version
func ChartKey(recordID string, version int) string {
	return fmt.Sprintf("partogram:chart:%s:%d", recordID, version)
}

// Get returns the cached chart, or false on a miss
func (c *ChartCache) Get(ctx context.Context, recordID string, version int) (*partogram.ChartSeries, bool) {
	key := ChartKey(recordID, version)
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		c.observe(ResultMiss)
		return nil, false
	}
	if err != nil {
		c.observe(ResultError)
		c.logger.Warn("chart cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var series partogram.ChartSeries
	if err := json.Unmarshal(data, &series); err != nil {
		c.observe(ResultError)
		c.logger.Warn("chart cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	c.observe(ResultHit)
	return &series, true
}

// Set stores a chart for a record version
func (c *ChartCache) Set(ctx context.Context, recordID string, version int, series *partogram.ChartSeries) {
	key := ChartKey(recordID, version)
	data, err := json.Marshal(series)
	if err != nil {
		c.logger.Warn("chart cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("chart cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *ChartCache) observe(result string) {
	if c.observer != nil {
		c.observer.ObserveCacheResult(result)
	}
}
