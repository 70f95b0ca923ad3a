package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/poolwatch/internal/core/domain"
)

type poolListerFunc func(ctx context.Context, protocols []domain.Protocol) ([]*domain.LiquidityPool, error)

func (f poolListerFunc) SelectLiquidityPoolsByProtocols(
	ctx context.Context,
	protocols []domain.Protocol,
) ([]*domain.LiquidityPool, error) {
	return f(ctx, protocols)
}

func TestSeed(t *testing.T) {
	repo := poolListerFunc(func(_ context.Context, protocols []domain.Protocol) ([]*domain.LiquidityPool, error) {
		assert.Equal(t, []domain.Protocol{domain.ProtocolStonfiV1}, protocols)
		return []*domain.LiquidityPool{
			{Protocol: domain.ProtocolStonfiV1, PoolAddress: "EQ1"},
			{Protocol: domain.ProtocolStonfiV1, PoolAddress: "EQ2"},
		}, nil
	})

	pc := NewContext()
	require.NoError(t, pc.Seed(context.Background(), repo, []domain.Protocol{domain.ProtocolStonfiV1}))

	known := pc.Known(domain.ProtocolStonfiV1)
	assert.Equal(t, 2, known.Len())
	assert.True(t, known.Contains("EQ1"))
	assert.False(t, known.Contains("EQ3"))
	assert.Equal(t, 0, pc.Pending())
}

func TestSeedError(t *testing.T) {
	repo := poolListerFunc(func(context.Context, []domain.Protocol) ([]*domain.LiquidityPool, error) {
		return nil, errors.New("db down")
	})
	assert.Error(t, NewContext().Seed(context.Background(), repo, domain.KnownProtocols))
}

func TestKnownSetAdd(t *testing.T) {
	pc := NewContext()
	known := pc.Known(domain.ProtocolStonfiV1)

	assert.True(t, known.Add("EQ1"))
	assert.False(t, known.Add("EQ1"))
	assert.Equal(t, 1, known.Len())
	assert.Equal(t, 1, pc.Pending())

	// other protocols are isolated
	assert.False(t, pc.Known("other").Contains("EQ1"))
}

func TestCommitAndRollback(t *testing.T) {
	pc := NewContext()
	known := pc.Known(domain.ProtocolStonfiV1)

	known.Add("EQ1")
	pc.Commit()

	known.Add("EQ2")
	known.Add("EQ3")
	pc.Rollback()

	assert.True(t, known.Contains("EQ1"))
	assert.False(t, known.Contains("EQ2"))
	assert.False(t, known.Contains("EQ3"))
	assert.Equal(t, 0, pc.Pending())

	// a retried block discovers the same pool again
	assert.True(t, known.Add("EQ2"))
}
