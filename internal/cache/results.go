package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danceforge/backoffice/internal/checklist"
	"github.com/danceforge/backoffice/internal/models"
)

// ResultsCache puts the saved-results query of an executor behind a Store.
// It is both the engine's Executor and its Invalidator: runs pass straight
// through, and invalidating ResultsKey makes the next SavedResults refetch.
type ResultsCache struct {
	checklist.Executor
	store  Store
	ttl    time.Duration
	logger *zap.Logger

	// version counts invalidations; a fetch that saw an older version
	// must not write its payload back
	mu      sync.Mutex
	version uint64
}

// NewResultsCache wraps executor. A nil logger is silent.
func NewResultsCache(executor checklist.Executor, store Store, ttl time.Duration, logger *zap.Logger) *ResultsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsCache{
		Executor: executor,
		store:    store,
		ttl:      ttl,
		logger:   logger,
	}
}

// SavedResults reads through the cache. Cache failures fall back to the
// executor and are only logged.
func (c *ResultsCache) SavedResults(ctx context.Context) (map[string]*models.TestResult, error) {
	data, ok, err := c.store.Get(ctx, checklist.ResultsKey)
	if err != nil {
		c.logger.Warn("saved results cache read failed", zap.Error(err))
	}
	if ok {
		var results map[string]*models.TestResult
		if err := json.Unmarshal(data, &results); err == nil {
			return results, nil
		}
		c.logger.Warn("discarding undecodable cached results")
	}

	c.mu.Lock()
	version := c.version
	c.mu.Unlock()

	results, err := c.Executor.SavedResults(ctx)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(results)
	if err != nil {
		return results, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != version {
		c.logger.Debug("saved results invalidated during fetch, not caching")
		return results, nil
	}
	if err := c.store.Set(ctx, checklist.ResultsKey, data, c.ttl); err != nil {
		c.logger.Warn("saved results cache write failed", zap.Error(err))
	}
	return results, nil
}

// Invalidate implements checklist.Invalidator
func (c *ResultsCache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	return c.store.Invalidate(ctx, key)
}
