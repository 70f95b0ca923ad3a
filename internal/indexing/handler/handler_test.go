package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/deferred"
	"github.com/vietddude/poolwatch/internal/infra/storage/memory"
)

type otherRecord struct{}

func (otherRecord) Tag() domain.RecordTag { return "other" }

type recordingHandler struct {
	tag    domain.RecordTag
	name   string
	groups [][]domain.Record
	log    *[]string
	err    error
}

func (h *recordingHandler) Tag() domain.RecordTag { return h.tag }

func (h *recordingHandler) Handle(group []domain.Record) ([]deferred.Action, error) {
	h.groups = append(h.groups, group)
	if h.err != nil {
		return nil, h.err
	}
	return []deferred.Action{deferred.Func(h.name, func(context.Context) error {
		*h.log = append(*h.log, h.name)
		return nil
	})}, nil
}

func created(addr string) domain.Record {
	return domain.PoolCreated{Pool: domain.LiquidityPool{
		Protocol:            domain.ProtocolStonfiV1,
		PoolAddress:         addr,
		ValidTillUtcSeconds: domain.MaxValidTill,
	}}
}

func traded(addr string, usd int64) domain.Record {
	return domain.TradingStatUpdated{Stat: domain.PoolStatsTradingVolume{
		Protocol:         domain.ProtocolStonfiV1,
		PoolAddress:      addr,
		TradingDate:      2024010112,
		UsdVolumeAmount:  decimal.NewFromInt(usd),
		InteractionCount: 1,
	}}
}

func TestRouteGroupsInFirstOccurrenceOrder(t *testing.T) {
	var log []string
	poolH := &recordingHandler{tag: domain.TagPoolCreated, name: "pools", log: &log}
	statA := &recordingHandler{tag: domain.TagTradingStatUpdated, name: "statsA", log: &log}
	statB := &recordingHandler{tag: domain.TagTradingStatUpdated, name: "statsB", log: &log}

	reg := NewRegistry(statA, poolH, statB)
	routing, err := reg.Route([]domain.Record{
		created("P1"),
		traded("P1", 1),
		created("P2"),
		traded("P2", 2),
	})
	require.NoError(t, err)
	require.Empty(t, routing.Unhandled)

	require.NoError(t, deferred.NewExecutor().Run(context.Background(), routing.Actions))
	assert.Equal(t, []string{"pools", "statsA", "statsB"}, log)

	// each handler sees the whole group once, in record order
	require.Len(t, poolH.groups, 1)
	require.Len(t, poolH.groups[0], 2)
	assert.Equal(t, "P2", poolH.groups[0][1].(domain.PoolCreated).Pool.PoolAddress)
	require.Len(t, statB.groups, 1)
	assert.Len(t, statB.groups[0], 2)
}

func TestRouteReportsUnhandled(t *testing.T) {
	var log []string
	reg := NewRegistry(&recordingHandler{tag: domain.TagPoolCreated, name: "pools", log: &log})

	routing, err := reg.Route([]domain.Record{otherRecord{}, created("P1"), otherRecord{}})
	require.NoError(t, err)
	assert.Len(t, routing.Actions, 1)
	assert.Equal(t, []Unhandled{{Tag: "other", Count: 2}}, routing.Unhandled)
}

func TestRouteHandlerError(t *testing.T) {
	var log []string
	reg := NewRegistry(&recordingHandler{tag: domain.TagPoolCreated, name: "pools", log: &log, err: errors.New("boom")})

	_, err := reg.Route([]domain.Record{created("P1")})
	assert.Error(t, err)
}

func TestRouteEmpty(t *testing.T) {
	routing, err := NewRegistry().Route(nil)
	require.NoError(t, err)
	assert.Empty(t, routing.Actions)
	assert.Empty(t, routing.Unhandled)
}

func TestPoolCreatedHandlerIsIdempotent(t *testing.T) {
	repo := memory.NewPoolsRepo(memory.NewMemoryStorage())
	h := NewPoolCreatedHandler(repo)

	for i := 0; i < 2; i++ {
		actions, err := h.Handle([]domain.Record{created("P1")})
		require.NoError(t, err)
		require.NoError(t, deferred.NewExecutor().Run(context.Background(), actions))
	}

	pools, err := repo.SelectAllLiquidityPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, domain.MaxValidTill, pools[0].ValidTillUtcSeconds)
}

func TestTradingStatHandlerRollback(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewPoolsRepo(memory.NewMemoryStorage())
	h := NewTradingStatHandler(repo)

	actions, err := h.Handle([]domain.Record{traded("P1", 100)})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.NoError(t, actions[0].Execute(ctx))

	// the same block retried after a rollback leaves a single increment
	require.NoError(t, actions[0].Rollback(ctx))
	require.NoError(t, actions[0].Execute(ctx))

	stats, err := repo.SelectPoolsStatsTradingVolume(ctx, domain.ProtocolStonfiV1, 0, 9999999999)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(stats[0].UsdVolumeAmount))
	assert.Equal(t, 1, stats[0].InteractionCount)
}

func TestHandlerRejectsWrongVariant(t *testing.T) {
	h := NewPoolCreatedHandler(memory.NewPoolsRepo(memory.NewMemoryStorage()))
	_, err := h.Handle([]domain.Record{traded("P1", 1)})
	assert.Error(t, err)
}

type fakeCache struct {
	calls [][]string
}

func (c *fakeCache) Invalidate(_ context.Context, pools ...string) error {
	c.calls = append(c.calls, pools)
	return nil
}

func TestStatsCacheHandlerDeduplicates(t *testing.T) {
	cache := &fakeCache{}
	h := NewStatsCacheHandler(cache)

	actions, err := h.Handle([]domain.Record{traded("P1", 1), traded("P2", 1), traded("P1", 3)})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.NoError(t, actions[0].Execute(context.Background()))
	assert.Equal(t, [][]string{{"P1", "P2"}}, cache.calls)
}
