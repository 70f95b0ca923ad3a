package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/poolwatch/internal/core/config"
	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/storage/memory"
)

func seededStore(t *testing.T) (*memory.PoolsRepo, *memory.FailedRepo) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	pools := memory.NewPoolsRepo(store)

	extra, err := json.Marshal(domain.NewPoolFieldsDex("0:aa", "0:bb"))
	require.NoError(t, err)
	require.NoError(t, pools.InsertLiquidityPool(ctx, &domain.LiquidityPool{
		Protocol:            domain.ProtocolStonfiV1,
		PoolAddress:         "EQpool",
		ValidTillUtcSeconds: domain.MaxValidTill,
		ExtraData:           string(extra),
	}))
	for _, date := range []int64{2024030514, 2024030515} {
		require.NoError(t, pools.InsertPoolsStatsTradingVolume(ctx, &domain.PoolStatsTradingVolume{
			Protocol:         domain.ProtocolStonfiV1,
			PoolAddress:      "EQpool",
			TradingDate:      date,
			UsdVolumeAmount:  decimal.NewFromInt(100),
			InteractionCount: 1,
		}))
	}

	failed := memory.NewFailedRepo(store)
	require.NoError(t, failed.Add(ctx, &domain.FailedBlock{ID: "1", Network: "mainnet", MasterSeqNo: 7}))
	return pools, failed
}

func TestPrintStatus(t *testing.T) {
	pools, failed := seededStore(t)
	cfg, err := config.Parse([]byte("database:\n  driver: memory\n"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printStatus(context.Background(), &out, cfg, pools, failed))

	lines := strings.Split(out.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Contains(t, lines[1], "stonfi_v1")
	assert.Contains(t, lines[1], "200.00")
	fields := strings.Fields(strings.ReplaceAll(lines[1], "|", " "))
	assert.Equal(t, []string{"stonfi_v1", "1", "2", "2", "200.00"}, fields)
	assert.Contains(t, out.String(), "Pending failed blocks (mainnet): 1")
}

func TestPrintPools(t *testing.T) {
	pools, _ := seededStore(t)

	var out bytes.Buffer
	require.NoError(t, printPools(context.Background(), &out, pools, nil))
	assert.Contains(t, out.String(), "EQpool")
	assert.Contains(t, out.String(), "0:aa")
	assert.Contains(t, out.String(), "1 pools")

	out.Reset()
	require.NoError(t, printPools(context.Background(), &out, pools, []domain.Protocol{"other"}))
	assert.Contains(t, out.String(), "0 pools")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, parseLevel("", false))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN", false))
	assert.Equal(t, slog.LevelError, parseLevel("error", false))
	assert.Equal(t, slog.LevelDebug, parseLevel("info", true))
}

func TestTeeHandler(t *testing.T) {
	var info, debug bytes.Buffer
	h := teeHandler{
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	log := slog.New(h).With("component", "test")

	log.Debug("only debug")
	log.Info("both")

	assert.NotContains(t, info.String(), "only debug")
	assert.Contains(t, info.String(), "both")
	assert.Contains(t, debug.String(), "only debug")
	assert.Contains(t, debug.String(), `"component":"test"`)
}
