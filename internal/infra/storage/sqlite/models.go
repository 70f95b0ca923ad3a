package sqlite

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/poolwatch/internal/core/domain"
)

type poolRow struct {
	Protocol            string `gorm:"primaryKey;size:64"`
	PoolAddress         string `gorm:"primaryKey;size:128"`
	ValidFromUtcSeconds int64
	ValidTillUtcSeconds int64
	ExtraData           string
}

func (poolRow) TableName() string { return "liquidity_pool" }

func (r poolRow) toDomain() *domain.LiquidityPool {
	return &domain.LiquidityPool{
		Protocol:            domain.Protocol(r.Protocol),
		PoolAddress:         r.PoolAddress,
		ValidFromUtcSeconds: r.ValidFromUtcSeconds,
		ValidTillUtcSeconds: r.ValidTillUtcSeconds,
		ExtraData:           r.ExtraData,
	}
}

type statRow struct {
	Protocol         string          `gorm:"primaryKey;size:64"`
	PoolAddress      string          `gorm:"primaryKey;size:128"`
	TradingDate      int64           `gorm:"primaryKey;index"`
	UsdVolumeAmount  decimal.Decimal `gorm:"type:text"`
	InteractionCount int
	ExtraData        string
}

func (statRow) TableName() string { return "pool_stats_trading_volume" }

func (r statRow) toDomain() *domain.PoolStatsTradingVolume {
	return &domain.PoolStatsTradingVolume{
		Protocol:         domain.Protocol(r.Protocol),
		PoolAddress:      r.PoolAddress,
		TradingDate:      r.TradingDate,
		UsdVolumeAmount:  r.UsdVolumeAmount,
		InteractionCount: r.InteractionCount,
		ExtraData:        r.ExtraData,
	}
}

type failedRow struct {
	ID          string `gorm:"primaryKey"`
	Network     string `gorm:"index"`
	MasterSeqNo uint64
	FailureType string
	ErrorMsg    string
	RetryCount  int
	Status      string `gorm:"index"`
	LastAttempt time.Time
	CreatedAt   time.Time
}

func (failedRow) TableName() string { return "failed_blocks" }

func (r failedRow) toDomain() *domain.FailedBlock {
	return &domain.FailedBlock{
		ID:          r.ID,
		Network:     r.Network,
		MasterSeqNo: r.MasterSeqNo,
		FailureType: domain.FailureType(r.FailureType),
		Error:       r.ErrorMsg,
		RetryCount:  r.RetryCount,
		Status:      domain.BlockStatus(r.Status),
		LastAttempt: uint64(r.LastAttempt.Unix()),
		CreatedAt:   uint64(r.CreatedAt.Unix()),
	}
}
