package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/storage"
)

type poolKey struct {
	protocol domain.Protocol
	address  string
}

type statKey struct {
	protocol    domain.Protocol
	address     string
	tradingDate int64
}

type MemoryStorage struct {
	pools  map[poolKey]*domain.LiquidityPool
	stats  map[statKey]*domain.PoolStatsTradingVolume
	failed map[string][]*domain.FailedBlock
	mu     sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		pools:  make(map[poolKey]*domain.LiquidityPool),
		stats:  make(map[statKey]*domain.PoolStatsTradingVolume),
		failed: make(map[string][]*domain.FailedBlock),
	}
}

// -----------------------------------------------------------------------------
// Pools Repository
// -----------------------------------------------------------------------------

type PoolsRepo struct {
	store *MemoryStorage
}

var _ storage.PoolsRepository = (*PoolsRepo)(nil)

func NewPoolsRepo(store *MemoryStorage) *PoolsRepo {
	return &PoolsRepo{store: store}
}

func (r *PoolsRepo) SelectAllLiquidityPools(ctx context.Context) ([]*domain.LiquidityPool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.LiquidityPool, 0, len(r.store.pools))
	for _, p := range r.store.pools {
		cp := *p
		out = append(out, &cp)
	}
	sortPools(out)
	return out, nil
}

func (r *PoolsRepo) SelectLiquidityPoolsByProtocols(
	ctx context.Context,
	protocols []domain.Protocol,
) ([]*domain.LiquidityPool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.LiquidityPool
	for _, p := range r.store.pools {
		if slices.Contains(protocols, p.Protocol) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortPools(out)
	return out, nil
}

func (r *PoolsRepo) InsertLiquidityPool(ctx context.Context, pool *domain.LiquidityPool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *pool
	r.store.pools[poolKey{pool.Protocol, pool.PoolAddress}] = &cp
	return nil
}

func (r *PoolsRepo) InsertPoolsStatsTradingVolume(ctx context.Context, stat *domain.PoolStatsTradingVolume) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := statKey{stat.Protocol, stat.PoolAddress, stat.TradingDate}
	existing, ok := r.store.stats[key]
	if !ok {
		cp := *stat
		r.store.stats[key] = &cp
		return nil
	}
	existing.UsdVolumeAmount = existing.UsdVolumeAmount.Add(stat.UsdVolumeAmount)
	existing.InteractionCount += stat.InteractionCount
	existing.ExtraData = stat.ExtraData
	return nil
}

func (r *PoolsRepo) SelectPoolsStatsTradingVolume(
	ctx context.Context,
	protocol domain.Protocol,
	from, to int64,
) ([]*domain.PoolStatsTradingVolume, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.PoolStatsTradingVolume
	for _, s := range r.store.stats {
		if s.Protocol == protocol && s.TradingDate >= from && s.TradingDate <= to {
			cp := *s
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domain.PoolStatsTradingVolume) int {
		return cmp.Or(cmp.Compare(a.TradingDate, b.TradingDate), cmp.Compare(a.PoolAddress, b.PoolAddress))
	})
	return out, nil
}

func (r *PoolsRepo) DeleteStatsOlderThan(ctx context.Context, tradingDate int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for k := range r.store.stats {
		if k.tradingDate < tradingDate {
			delete(r.store.stats, k)
			n++
		}
	}
	return n, nil
}

func sortPools(pools []*domain.LiquidityPool) {
	slices.SortFunc(pools, func(a, b *domain.LiquidityPool) int {
		return cmp.Or(cmp.Compare(a.Protocol, b.Protocol), cmp.Compare(a.PoolAddress, b.PoolAddress))
	})
}

// -----------------------------------------------------------------------------
// Failed Block Repository
// -----------------------------------------------------------------------------

type FailedRepo struct {
	store *MemoryStorage
}

var _ storage.FailedBlockRepository = (*FailedRepo)(nil)

func NewFailedRepo(store *MemoryStorage) *FailedRepo {
	return &FailedRepo{store: store}
}

func (r *FailedRepo) Add(ctx context.Context, f *domain.FailedBlock) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *f
	if cp.Status == "" {
		cp.Status = domain.BlockStatusPending
	}
	r.store.failed[f.Network] = append(r.store.failed[f.Network], &cp)
	return nil
}

func (r *FailedRepo) IncrementRetry(ctx context.Context, id string, errMsg string) error {
	return r.update(id, func(f *domain.FailedBlock) {
		f.RetryCount++
		f.Error = errMsg
		f.LastAttempt = uint64(time.Now().Unix())
	})
}

func (r *FailedRepo) MarkResolved(ctx context.Context, id string) error {
	return r.update(id, func(f *domain.FailedBlock) {
		f.Status = domain.BlockStatusResolved
	})
}

func (r *FailedRepo) GetAll(ctx context.Context, network string) ([]*domain.FailedBlock, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.FailedBlock, 0, len(r.store.failed[network]))
	for _, f := range r.store.failed[network] {
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

func (r *FailedRepo) Count(ctx context.Context, network string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	n := 0
	for _, f := range r.store.failed[network] {
		if f.Status == domain.BlockStatusPending {
			n++
		}
	}
	return n, nil
}

func (r *FailedRepo) update(id string, fn func(*domain.FailedBlock)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, list := range r.store.failed {
		for _, f := range list {
			if f.ID == id {
				fn(f)
				return nil
			}
		}
	}
	return storage.ErrNotFound
}
