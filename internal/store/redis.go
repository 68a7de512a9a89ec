package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sayso/market-engine/internal/model"
)

// ViewCache caches market and submission view snapshots in Redis for the
// read paths consumed by external query layers. Reads check Redis first and
// fall back to the engine; mutations invalidate the affected keys. The cache
// is best effort: Redis errors degrade to engine reads, never to failures.
type ViewCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewViewCache creates a view cache with the given TTL.
func NewViewCache(rdb *redis.Client, ttl time.Duration) *ViewCache {
	return &ViewCache{rdb: rdb, ttl: ttl}
}

// Market returns a cached market view, or ok=false on a miss.
func (c *ViewCache) Market(ctx context.Context, id uint64) (*model.MarketView, bool) {
	data, err := c.rdb.Get(ctx, marketKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var v model.MarketView
	if json.Unmarshal(data, &v) != nil {
		return nil, false
	}
	return &v, true
}

// SetMarket stores a market view.
func (c *ViewCache) SetMarket(ctx context.Context, v *model.MarketView) {
	if data, err := json.Marshal(v); err == nil {
		c.rdb.Set(ctx, marketKey(v.ID), data, c.ttl)
	}
}

// InvalidateMarket drops the cached view for one market.
func (c *ViewCache) InvalidateMarket(ctx context.Context, id uint64) {
	c.rdb.Del(ctx, marketKey(id))
}

// Submission returns a cached submission view, or ok=false on a miss.
func (c *ViewCache) Submission(ctx context.Context, id uint64) (*model.SubmissionView, bool) {
	data, err := c.rdb.Get(ctx, submissionKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var v model.SubmissionView
	if json.Unmarshal(data, &v) != nil {
		return nil, false
	}
	return &v, true
}

// SetSubmission stores a submission view.
func (c *ViewCache) SetSubmission(ctx context.Context, v *model.SubmissionView) {
	if data, err := json.Marshal(v); err == nil {
		c.rdb.Set(ctx, submissionKey(v.ID), data, c.ttl)
	}
}

// InvalidateSubmission drops the cached view for one submission.
func (c *ViewCache) InvalidateSubmission(ctx context.Context, id uint64) {
	c.rdb.Del(ctx, submissionKey(id))
}

func marketKey(id uint64) string     { return fmt.Sprintf("market:%d", id) }
func submissionKey(id uint64) string { return fmt.Sprintf("submission:%d", id) }
