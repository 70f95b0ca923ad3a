// Package throttle reduces lite server load while the indexer catches up.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/poolwatch/internal/core/domain"
)

// TipSource returns the newest master block.
type TipSource interface {
	GetChainTip(ctx context.Context) (*domain.BlockRef, error)
}

// TipCache caches the chain tip so a catching-up indexer does not ask for it
// on every block.
type TipCache struct {
	source TipSource
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	cached   *domain.BlockRef
	cachedAt time.Time
}

// NewTipCache creates a new tip cache with the given TTL.
func NewTipCache(source TipSource, ttl time.Duration) *TipCache {
	return &TipCache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Tip returns the cached tip while it is fresh and still ahead of after.
// Otherwise it fetches a fresh one, so an indexer at the tip always sees
// new blocks as soon as the chain has them.
func (c *TipCache) Tip(ctx context.Context, after uint64) (*domain.BlockRef, error) {
	c.mu.Lock()
	if c.cached != nil && uint64(c.cached.SeqNo) > after && c.now().Sub(c.cachedAt) < c.ttl {
		tip := *c.cached
		c.mu.Unlock()
		return &tip, nil
	}
	c.mu.Unlock()

	tip, err := c.source.GetChainTip(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	cp := *tip
	c.cached = &cp
	c.cachedAt = c.now()
	c.mu.Unlock()

	return tip, nil
}

// Invalidate clears the cache, forcing the next call to fetch fresh data.
func (c *TipCache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
