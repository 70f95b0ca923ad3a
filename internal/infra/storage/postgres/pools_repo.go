package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/storage"
)

// PoolsRepo implements storage.PoolsRepository using PostgreSQL.
type PoolsRepo struct {
	db *DB
}

var _ storage.PoolsRepository = (*PoolsRepo)(nil)

// NewPoolsRepo creates a new PostgreSQL pools repository.
func NewPoolsRepo(db *DB) *PoolsRepo {
	return &PoolsRepo{db: db}
}

const selectPools = `
	SELECT protocol, pool_address, valid_from_utc_seconds, valid_till_utc_seconds, extra_data
	FROM liquidity_pool
`

func (r *PoolsRepo) SelectAllLiquidityPools(ctx context.Context) ([]*domain.LiquidityPool, error) {
	var pools []*domain.LiquidityPool
	if err := r.db.SelectContext(ctx, &pools, selectPools+` ORDER BY protocol, pool_address`); err != nil {
		return nil, fmt.Errorf("failed to select pools: %w", err)
	}
	return pools, nil
}

func (r *PoolsRepo) SelectLiquidityPoolsByProtocols(
	ctx context.Context,
	protocols []domain.Protocol,
) ([]*domain.LiquidityPool, error) {
	names := make([]string, len(protocols))
	for i, p := range protocols {
		names[i] = string(p)
	}

	var pools []*domain.LiquidityPool
	query := selectPools + ` WHERE protocol = ANY($1) ORDER BY protocol, pool_address`
	if err := r.db.SelectContext(ctx, &pools, query, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("failed to select pools by protocols: %w", err)
	}
	return pools, nil
}

// InsertLiquidityPool upserts a pool, replacing validity and extra data.
func (r *PoolsRepo) InsertLiquidityPool(ctx context.Context, pool *domain.LiquidityPool) error {
	query := `
		INSERT INTO liquidity_pool (
			protocol, pool_address, valid_from_utc_seconds, valid_till_utc_seconds, extra_data
		) VALUES (:protocol, :pool_address, :valid_from_utc_seconds, :valid_till_utc_seconds, :extra_data)
		ON CONFLICT (protocol, pool_address) DO UPDATE SET
			valid_from_utc_seconds = EXCLUDED.valid_from_utc_seconds,
			valid_till_utc_seconds = EXCLUDED.valid_till_utc_seconds,
			extra_data = EXCLUDED.extra_data
	`
	if _, err := r.db.NamedExecContext(ctx, query, pool); err != nil {
		return fmt.Errorf("failed to insert pool %s: %w", pool.PoolAddress, err)
	}
	return nil
}

// InsertPoolsStatsTradingVolume upserts a stat row, adding volume and count.
func (r *PoolsRepo) InsertPoolsStatsTradingVolume(ctx context.Context, stat *domain.PoolStatsTradingVolume) error {
	query := `
		INSERT INTO pool_stats_trading_volume (
			protocol, pool_address, trading_date, usd_volume_amount, interaction_count, extra_data
		) VALUES (:protocol, :pool_address, :trading_date, :usd_volume_amount, :interaction_count, :extra_data)
		ON CONFLICT (protocol, pool_address, trading_date) DO UPDATE SET
			usd_volume_amount = pool_stats_trading_volume.usd_volume_amount + EXCLUDED.usd_volume_amount,
			interaction_count = pool_stats_trading_volume.interaction_count + EXCLUDED.interaction_count,
			extra_data = EXCLUDED.extra_data
	`
	if _, err := r.db.NamedExecContext(ctx, query, stat); err != nil {
		return fmt.Errorf("failed to insert trading volume for %s: %w", stat.PoolAddress, err)
	}
	return nil
}

func (r *PoolsRepo) SelectPoolsStatsTradingVolume(
	ctx context.Context,
	protocol domain.Protocol,
	from, to int64,
) ([]*domain.PoolStatsTradingVolume, error) {
	query := `
		SELECT protocol, pool_address, trading_date, usd_volume_amount, interaction_count, extra_data
		FROM pool_stats_trading_volume
		WHERE protocol = $1 AND trading_date BETWEEN $2 AND $3
		ORDER BY trading_date, pool_address
	`
	var stats []*domain.PoolStatsTradingVolume
	if err := r.db.SelectContext(ctx, &stats, query, string(protocol), from, to); err != nil {
		return nil, fmt.Errorf("failed to select trading volume: %w", err)
	}
	return stats, nil
}

func (r *PoolsRepo) DeleteStatsOlderThan(ctx context.Context, tradingDate int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pool_stats_trading_volume WHERE trading_date < $1`, tradingDate)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old stats: %w", err)
	}
	return res.RowsAffected()
}
