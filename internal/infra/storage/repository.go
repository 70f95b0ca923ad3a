package storage

import (
	"context"
	"errors"

	"github.com/vietddude/poolwatch/internal/core/domain"
)

var (
	// ErrNotFound is returned when a lookup has no row.
	ErrNotFound = errors.New("not found")
)

// PoolsRepository stores liquidity pools and their hourly trading stats.
type PoolsRepository interface {
	// SelectAllLiquidityPools returns every stored pool
	SelectAllLiquidityPools(ctx context.Context) ([]*domain.LiquidityPool, error)

	// SelectLiquidityPoolsByProtocols returns the pools of the given protocols
	SelectLiquidityPoolsByProtocols(
		ctx context.Context,
		protocols []domain.Protocol,
	) ([]*domain.LiquidityPool, error)

	// InsertLiquidityPool upserts on (protocol, pool_address), replacing
	// validity bounds and extra data
	InsertLiquidityPool(ctx context.Context, pool *domain.LiquidityPool) error

	// InsertPoolsStatsTradingVolume upserts on (protocol, pool_address,
	// trading_date), adding volume and interaction count and replacing extra data
	InsertPoolsStatsTradingVolume(ctx context.Context, stat *domain.PoolStatsTradingVolume) error

	// SelectPoolsStatsTradingVolume returns stats with from <= trading_date <= to
	SelectPoolsStatsTradingVolume(
		ctx context.Context,
		protocol domain.Protocol,
		from, to int64,
	) ([]*domain.PoolStatsTradingVolume, error)

	// DeleteStatsOlderThan removes stats with trading_date < tradingDate
	DeleteStatsOlderThan(ctx context.Context, tradingDate int64) (int64, error)
}

// FailedBlockRepository keeps a log of master blocks whose iteration failed
type FailedBlockRepository interface {
	// Add adds a failed block
	Add(ctx context.Context, failedBlock *domain.FailedBlock) error

	// IncrementRetry increments retry count
	IncrementRetry(ctx context.Context, id string, errMsg string) error

	// MarkResolved marks a failed block as processed
	MarkResolved(ctx context.Context, id string) error

	// GetAll retrieves all failed blocks
	GetAll(ctx context.Context, network string) ([]*domain.FailedBlock, error)

	// Count returns the count of pending failed blocks
	Count(ctx context.Context, network string) (int, error)
}
