// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/storage"
)

// RunPoolsRepository checks upsert and query semantics on an empty repository.
func RunPoolsRepository(t *testing.T, repo storage.PoolsRepository) {
	t.Helper()
	ctx := context.Background()

	t.Run("pool upsert replaces validity and extra data", func(t *testing.T) {
		pool := &domain.LiquidityPool{
			Protocol:            domain.ProtocolStonfiV1,
			PoolAddress:         "EQ-pool-1",
			ValidFromUtcSeconds: 0,
			ValidTillUtcSeconds: domain.MaxValidTill,
			ExtraData:           `{"@type":"dex"}`,
		}
		require.NoError(t, repo.InsertLiquidityPool(ctx, pool))

		updated := *pool
		updated.ValidTillUtcSeconds = 1700000000
		updated.ExtraData = `{"@type":"dex","firstAsset":"A"}`
		require.NoError(t, repo.InsertLiquidityPool(ctx, &updated))

		pools, err := repo.SelectAllLiquidityPools(ctx)
		require.NoError(t, err)
		require.Len(t, pools, 1)
		assert.Equal(t, int64(1700000000), pools[0].ValidTillUtcSeconds)
		assert.Equal(t, updated.ExtraData, pools[0].ExtraData)
	})

	t.Run("select by protocols filters", func(t *testing.T) {
		require.NoError(t, repo.InsertLiquidityPool(ctx, &domain.LiquidityPool{
			Protocol:            "other_dex",
			PoolAddress:         "EQ-other",
			ValidTillUtcSeconds: domain.MaxValidTill,
		}))

		pools, err := repo.SelectLiquidityPoolsByProtocols(ctx, []domain.Protocol{domain.ProtocolStonfiV1})
		require.NoError(t, err)
		require.Len(t, pools, 1)
		assert.Equal(t, "EQ-pool-1", pools[0].PoolAddress)

		all, err := repo.SelectAllLiquidityPools(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("stat upsert accumulates", func(t *testing.T) {
		stat := &domain.PoolStatsTradingVolume{
			Protocol:         domain.ProtocolStonfiV1,
			PoolAddress:      "EQ-pool-1",
			TradingDate:      2024010112,
			UsdVolumeAmount:  decimal.RequireFromString("100.5"),
			InteractionCount: 1,
			ExtraData:        "first",
		}
		require.NoError(t, repo.InsertPoolsStatsTradingVolume(ctx, stat))

		second := *stat
		second.UsdVolumeAmount = decimal.RequireFromString("0.25")
		second.ExtraData = "second"
		require.NoError(t, repo.InsertPoolsStatsTradingVolume(ctx, &second))

		stats, err := repo.SelectPoolsStatsTradingVolume(ctx, domain.ProtocolStonfiV1, 2024010100, 2024010123)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.True(t, decimal.RequireFromString("100.75").Equal(stats[0].UsdVolumeAmount),
			"volume = %s", stats[0].UsdVolumeAmount)
		assert.Equal(t, 2, stats[0].InteractionCount)
		assert.Equal(t, "second", stats[0].ExtraData)
	})

	t.Run("stats are keyed by hour", func(t *testing.T) {
		require.NoError(t, repo.InsertPoolsStatsTradingVolume(ctx, &domain.PoolStatsTradingVolume{
			Protocol:         domain.ProtocolStonfiV1,
			PoolAddress:      "EQ-pool-1",
			TradingDate:      2024010113,
			UsdVolumeAmount:  decimal.NewFromInt(5),
			InteractionCount: 1,
		}))

		stats, err := repo.SelectPoolsStatsTradingVolume(ctx, domain.ProtocolStonfiV1, 2024010113, 2024010113)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, 1, stats[0].InteractionCount)
	})

	t.Run("delete older stats", func(t *testing.T) {
		n, err := repo.DeleteStatsOlderThan(ctx, 2024010113)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		stats, err := repo.SelectPoolsStatsTradingVolume(ctx, domain.ProtocolStonfiV1, 0, 9999999999)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, int64(2024010113), stats[0].TradingDate)
	})
}

// RunFailedBlockRepository checks the failed block log on an empty repository.
func RunFailedBlockRepository(t *testing.T, repo storage.FailedBlockRepository) {
	t.Helper()
	ctx := context.Background()

	fb := &domain.FailedBlock{
		ID:          uuid.NewString(),
		Network:     "mainnet",
		MasterSeqNo: 1001,
		FailureType: domain.FailureTypeFetch,
		Error:       "lite server timeout",
	}
	require.NoError(t, repo.Add(ctx, fb))

	count, err := repo.Count(ctx, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.IncrementRetry(ctx, fb.ID, "still failing"))

	all, err := repo.GetAll(ctx, "mainnet")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 1, all[0].RetryCount)
	assert.Equal(t, "still failing", all[0].Error)
	assert.Equal(t, domain.BlockStatusPending, all[0].Status)

	require.NoError(t, repo.MarkResolved(ctx, fb.ID))
	count, err = repo.Count(ctx, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	other, err := repo.GetAll(ctx, "testnet")
	require.NoError(t, err)
	assert.Empty(t, other)
}
