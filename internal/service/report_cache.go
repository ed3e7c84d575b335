package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/issuedesk/issue-service/internal/persistence"
)

const (
	reportGenerationKey = "issues:reports:generation"
	reportSummaryPrefix = "issues:reports:summary"
)

// reportCache stores summaries in Redis under a generation number that every issue event
// bumps, so stale entries are never read and simply expire. Concurrent misses for the same
// key share one computation.
type reportCache struct {
	redis  *persistence.Redis
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
}

func newReportCache(r *persistence.Redis, ttl time.Duration, logger *zap.Logger) *reportCache {
	return &reportCache{redis: r, ttl: ttl, logger: logger}
}

func (c *reportCache) summary(ctx context.Context, filterKey string, fill func(context.Context) (*Summary, error)) (*Summary, error) {
	key := fmt.Sprintf("%s:%d:%s", reportSummaryPrefix, c.generation(ctx), filterKey)

	if cached, ok := c.get(ctx, key); ok {
		return cached, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		summary, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, summary)
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	summary := *val.(*Summary)
	return &summary, nil
}

// invalidate moves the cache to a new generation.
func (c *reportCache) invalidate(ctx context.Context) error {
	if !c.redis.Enabled() {
		return nil
	}
	return c.redis.Client.Incr(ctx, reportGenerationKey).Err()
}

func (c *reportCache) generation(ctx context.Context) int64 {
	if !c.redis.Enabled() {
		return 0
	}
	gen, err := c.redis.Client.Get(ctx, reportGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("report cache generation unavailable", zap.Error(err))
	}
	return gen
}

func (c *reportCache) get(ctx context.Context, key string) (*Summary, bool) {
	if !c.redis.Enabled() || c.ttl <= 0 {
		return nil, false
	}
	raw, err := c.redis.Client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		c.logger.Warn("report cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &summary, true
}

func (c *reportCache) set(ctx context.Context, key string, summary *Summary) {
	if !c.redis.Enabled() || c.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.redis.Client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}
