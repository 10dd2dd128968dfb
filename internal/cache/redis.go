// Package cache keeps short-lived copies of expensive reads in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/learnloop/internal/model"
)

const statsKey = "learnloop:admin_stats"

// StatsCache stores the admin dashboard aggregates as one JSON value.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache wraps an existing client. A non-positive ttl means 30s.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatsCache{client: client, ttl: ttl}
}

// Dial connects to addr and pings it so a bad address fails at startup.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

// GetStats returns the cached aggregates. ok is false on a miss.
func (c *StatsCache) GetStats(ctx context.Context) (stats model.Stats, ok bool, err error) {
	raw, err := c.client.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Stats{}, false, nil
	}
	if err != nil {
		return model.Stats{}, false, fmt.Errorf("redis: get stats: %w", err)
	}

	if err := json.Unmarshal(raw, &stats); err != nil {
		return model.Stats{}, false, fmt.Errorf("redis: decode stats: %w", err)
	}
	return stats, true, nil
}

func (c *StatsCache) SetStats(ctx context.Context, stats model.Stats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("redis: encode stats: %w", err)
	}
	if err := c.client.Set(ctx, statsKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set stats: %w", err)
	}
	return nil
}
