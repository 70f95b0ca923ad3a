package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vietddude/poolwatch/internal/control"
	"github.com/vietddude/poolwatch/internal/core/config"
	"github.com/vietddude/poolwatch/internal/core/domain"
	redisclient "github.com/vietddude/poolwatch/internal/infra/redis"
	"github.com/vietddude/poolwatch/internal/infra/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pool and trading stat counts per protocol",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	setupLogging(cfg.Logging, isDebug)

	ctx := context.Background()
	store, err := control.OpenStorage(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	failed := store.Failed
	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = rc.Close()
		}()
		failed = redisclient.NewFailedBlockRepo(rc)
	}

	if err := printStatus(ctx, os.Stdout, cfg, store.Pools, failed); err != nil {
		slog.Error("Failed to read status", "error", err)
		os.Exit(1)
	}
}

// printStatus writes one row per protocol followed by the failed block count.
func printStatus(
	ctx context.Context,
	out io.Writer,
	cfg *config.AppConfig,
	pools storage.PoolsRepository,
	failed storage.FailedBlockRepository,
) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROTOCOL\tPOOLS\tSTAT ROWS\tSWAPS\tUSD VOLUME")

	for _, p := range cfg.Protocols {
		ps, err := pools.SelectLiquidityPoolsByProtocols(ctx, []domain.Protocol{p})
		if err != nil {
			return fmt.Errorf("failed to select pools of %s: %w", p, err)
		}
		stats, err := pools.SelectPoolsStatsTradingVolume(ctx, p, 0, math.MaxInt64)
		if err != nil {
			return fmt.Errorf("failed to select stats of %s: %w", p, err)
		}

		swaps := 0
		volume := decimal.Zero
		for _, s := range stats {
			swaps += s.InteractionCount
			volume = volume.Add(s.UsdVolumeAmount)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", p, len(ps), len(stats), swaps, volume.StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	n, err := failed.Count(ctx, string(cfg.TON.Network))
	if err != nil {
		return fmt.Errorf("failed to count failed blocks: %w", err)
	}
	_, err = fmt.Fprintf(out, "\nPending failed blocks (%s): %d\n", cfg.TON.Network, n)
	return err
}
