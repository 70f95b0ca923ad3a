package redis

import (
	"context"
	"fmt"
	"time"
)

// StatsTTL is how long the yield API caches a pool's trading statistics.
const StatsTTL = 90 * time.Minute

// StatsCacheKey is the key the yield API caches a pool's statistics under.
func StatsCacheKey(pool string) string {
	return "yield.s." + pool
}

// StatsCache drops cached pool statistics after new volume is written.
type StatsCache struct {
	client *Client
}

func NewStatsCache(client *Client) *StatsCache {
	return &StatsCache{client: client}
}

// Invalidate deletes the cached statistics of pools.
func (c *StatsCache) Invalidate(ctx context.Context, pools ...string) error {
	if len(pools) == 0 {
		return nil
	}
	keys := make([]string, len(pools))
	for i, p := range pools {
		keys[i] = StatsCacheKey(p)
	}
	if err := c.client.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate stats cache: %w", err)
	}
	return nil
}
