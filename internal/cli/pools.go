package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/poolwatch/internal/control"
	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/storage"
)

var poolsProtocol string

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "List known liquidity pools",
	Run:   runPools,
}

func init() {
	poolsCmd.Flags().StringVar(&poolsProtocol, "protocol", "", "only list pools of this protocol")
	rootCmd.AddCommand(poolsCmd)
}

func runPools(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	setupLogging(cfg.Logging, isDebug)

	var protocols []domain.Protocol
	if poolsProtocol != "" {
		p, err := domain.ParseProtocol(poolsProtocol)
		if err != nil {
			slog.Error("Invalid protocol", "error", err)
			os.Exit(1)
		}
		protocols = []domain.Protocol{p}
	}

	ctx := context.Background()
	store, err := control.OpenStorage(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	if err := printPools(ctx, os.Stdout, store.Pools, protocols); err != nil {
		slog.Error("Failed to list pools", "error", err)
		os.Exit(1)
	}
}

// printPools lists pools with their assets. No protocols means all of them.
func printPools(ctx context.Context, out io.Writer, repo storage.PoolsRepository, protocols []domain.Protocol) error {
	var (
		pools []*domain.LiquidityPool
		err   error
	)
	if len(protocols) == 0 {
		pools, err = repo.SelectAllLiquidityPools(ctx)
	} else {
		pools, err = repo.SelectLiquidityPoolsByProtocols(ctx, protocols)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROTOCOL\tPOOL\tFIRST ASSET\tSECOND ASSET")
	for _, p := range pools {
		var fields domain.PoolFieldsDex
		// non-DEX extra data leaves the asset columns empty
		_ = json.Unmarshal([]byte(p.ExtraData), &fields)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Protocol, p.PoolAddress, fields.FirstAsset, fields.SecondAsset)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "\n%d pools\n", len(pools))
	return err
}
