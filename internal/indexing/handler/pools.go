package handler

import (
	"context"
	"fmt"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/deferred"
)

// PoolWriter is the subset of storage.PoolsRepository the handlers write to.
type PoolWriter interface {
	InsertLiquidityPool(ctx context.Context, pool *domain.LiquidityPool) error
	InsertPoolsStatsTradingVolume(ctx context.Context, stat *domain.PoolStatsTradingVolume) error
}

// PoolCreatedHandler upserts discovered pools.
type PoolCreatedHandler struct {
	repo PoolWriter
}

func NewPoolCreatedHandler(repo PoolWriter) *PoolCreatedHandler {
	return &PoolCreatedHandler{repo: repo}
}

func (h *PoolCreatedHandler) Tag() domain.RecordTag { return domain.TagPoolCreated }

// Handle emits one upsert per record. The upsert is idempotent, so a retried
// block does not duplicate pools and no rollback is needed.
func (h *PoolCreatedHandler) Handle(group []domain.Record) ([]deferred.Action, error) {
	recs, err := records[domain.PoolCreated](group)
	if err != nil {
		return nil, err
	}
	actions := make([]deferred.Action, 0, len(recs))
	for _, rec := range recs {
		pool := rec.Pool
		actions = append(actions, deferred.Func("insert_pool:"+pool.PoolAddress, func(ctx context.Context) error {
			return h.repo.InsertLiquidityPool(ctx, &pool)
		}))
	}
	return actions, nil
}

// TradingStatHandler adds trading volume to the hourly stat rows.
type TradingStatHandler struct {
	repo PoolWriter
}

func NewTradingStatHandler(repo PoolWriter) *TradingStatHandler {
	return &TradingStatHandler{repo: repo}
}

func (h *TradingStatHandler) Tag() domain.RecordTag { return domain.TagTradingStatUpdated }

// Handle emits one accumulating upsert per record. Rollback adds the negated
// increment back.
func (h *TradingStatHandler) Handle(group []domain.Record) ([]deferred.Action, error) {
	recs, err := records[domain.TradingStatUpdated](group)
	if err != nil {
		return nil, err
	}
	actions := make([]deferred.Action, 0, len(recs))
	for _, rec := range recs {
		stat := rec.Stat
		name := fmt.Sprintf("insert_stat:%s:%d", stat.PoolAddress, stat.TradingDate)
		actions = append(actions, deferred.WithRollback(name,
			func(ctx context.Context) error {
				return h.repo.InsertPoolsStatsTradingVolume(ctx, &stat)
			},
			func(ctx context.Context) error {
				undo := stat
				undo.UsdVolumeAmount = stat.UsdVolumeAmount.Neg()
				undo.InteractionCount = -stat.InteractionCount
				return h.repo.InsertPoolsStatsTradingVolume(ctx, &undo)
			},
		))
	}
	return actions, nil
}
