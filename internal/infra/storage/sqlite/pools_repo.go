package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/storage"
)

// PoolsRepo implements storage.PoolsRepository on SQLite.
type PoolsRepo struct {
	db *gorm.DB
}

var _ storage.PoolsRepository = (*PoolsRepo)(nil)

func NewPoolsRepo(s *Storage) *PoolsRepo {
	return &PoolsRepo{db: s.db}
}

func (r *PoolsRepo) SelectAllLiquidityPools(ctx context.Context) ([]*domain.LiquidityPool, error) {
	var rows []poolRow
	if err := r.db.WithContext(ctx).Order("protocol, pool_address").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to select pools: %w", err)
	}
	return toPools(rows), nil
}

func (r *PoolsRepo) SelectLiquidityPoolsByProtocols(
	ctx context.Context,
	protocols []domain.Protocol,
) ([]*domain.LiquidityPool, error) {
	names := make([]string, len(protocols))
	for i, p := range protocols {
		names[i] = string(p)
	}

	var rows []poolRow
	err := r.db.WithContext(ctx).
		Where("protocol IN ?", names).
		Order("protocol, pool_address").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select pools by protocols: %w", err)
	}
	return toPools(rows), nil
}

func (r *PoolsRepo) InsertLiquidityPool(ctx context.Context, pool *domain.LiquidityPool) error {
	row := poolRow{
		Protocol:            string(pool.Protocol),
		PoolAddress:         pool.PoolAddress,
		ValidFromUtcSeconds: pool.ValidFromUtcSeconds,
		ValidTillUtcSeconds: pool.ValidTillUtcSeconds,
		ExtraData:           pool.ExtraData,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "protocol"}, {Name: "pool_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"valid_from_utc_seconds", "valid_till_utc_seconds", "extra_data"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to insert pool %s: %w", pool.PoolAddress, err)
	}
	return nil
}

// InsertPoolsStatsTradingVolume adds to an existing row. The sum is computed
// in Go so decimal precision survives SQLite's numeric affinity.
func (r *PoolsRepo) InsertPoolsStatsTradingVolume(ctx context.Context, stat *domain.PoolStatsTradingVolume) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row statRow
		err := tx.Where("protocol = ? AND pool_address = ? AND trading_date = ?",
			string(stat.Protocol), stat.PoolAddress, stat.TradingDate).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&statRow{
				Protocol:         string(stat.Protocol),
				PoolAddress:      stat.PoolAddress,
				TradingDate:      stat.TradingDate,
				UsdVolumeAmount:  stat.UsdVolumeAmount,
				InteractionCount: stat.InteractionCount,
				ExtraData:        stat.ExtraData,
			}).Error
		}
		if err != nil {
			return err
		}

		row.UsdVolumeAmount = row.UsdVolumeAmount.Add(stat.UsdVolumeAmount)
		row.InteractionCount += stat.InteractionCount
		row.ExtraData = stat.ExtraData
		return tx.Save(&row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert trading volume for %s: %w", stat.PoolAddress, err)
	}
	return nil
}

func (r *PoolsRepo) SelectPoolsStatsTradingVolume(
	ctx context.Context,
	protocol domain.Protocol,
	from, to int64,
) ([]*domain.PoolStatsTradingVolume, error) {
	var rows []statRow
	err := r.db.WithContext(ctx).
		Where("protocol = ? AND trading_date BETWEEN ? AND ?", string(protocol), from, to).
		Order("trading_date, pool_address").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select trading volume: %w", err)
	}

	stats := make([]*domain.PoolStatsTradingVolume, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, row.toDomain())
	}
	return stats, nil
}

func (r *PoolsRepo) DeleteStatsOlderThan(ctx context.Context, tradingDate int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("trading_date < ?", tradingDate).Delete(&statRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete old stats: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func toPools(rows []poolRow) []*domain.LiquidityPool {
	pools := make([]*domain.LiquidityPool, 0, len(rows))
	for _, row := range rows {
		pools = append(pools, row.toDomain())
	}
	return pools
}
