// Package ton implements chain.Client on top of tonutils-go lite clients.
package ton

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/metrics"
	"github.com/vietddude/poolwatch/internal/infra/chain"
)

// Config holds lite server settings.
type Config struct {
	Network   domain.Network `yaml:"network"`
	ConfigURL string         `yaml:"config_url"`
}

// Client talks to lite servers through a retrying API client.
type Client struct {
	api     ton.APIClientWrapped
	network string
	log     *slog.Logger
}

// NewClient connects to the lite servers listed in the global config.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	url := cfg.ConfigURL
	if url == "" {
		url = domain.NetworkConfigURL[cfg.Network]
	}
	if url == "" {
		return nil, fmt.Errorf("no lite server config for network %q", cfg.Network)
	}

	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, url); err != nil {
		return nil, fmt.Errorf("failed to connect to lite servers: %w", err)
	}

	api := ton.NewAPIClient(pool, ton.ProofCheckPolicyFast).WithRetry()
	return NewClientWithAPI(api, string(cfg.Network)), nil
}

// NewClientWithAPI wraps an existing API client.
func NewClientWithAPI(api ton.APIClientWrapped, network string) *Client {
	return &Client{
		api:     api,
		network: network,
		log:     slog.Default().With("component", "ton_client"),
	}
}

func (c *Client) GetChainTip(ctx context.Context) (*domain.BlockRef, error) {
	defer metrics.ObserveChainCall(c.network, "get_chain_tip")()
	master, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		metrics.ChainErrorsTotal.WithLabelValues(c.network, "get_chain_tip").Inc()
		return nil, fmt.Errorf("get masterchain info: %w", err)
	}
	return toBlockRef(master), nil
}

func (c *Client) LookupBlock(
	ctx context.Context,
	seqNo uint32,
	workchain int32,
	shard int64,
) (*domain.BlockRef, error) {
	defer metrics.ObserveChainCall(c.network, "lookup_block")()
	blk, err := c.api.LookupBlock(ctx, workchain, shard, seqNo)
	if err != nil {
		metrics.ChainErrorsTotal.WithLabelValues(c.network, "lookup_block").Inc()
		if errors.Is(err, ton.ErrBlockNotFound) {
			return nil, fmt.Errorf("%w: (%d,%x,%d)", chain.ErrBlockNotFound, workchain, uint64(shard), seqNo)
		}
		return nil, fmt.Errorf("lookup block (%d,%x,%d): %w", workchain, uint64(shard), seqNo, err)
	}
	return toBlockRef(blk), nil
}

func (c *Client) GetShards(ctx context.Context, master *domain.BlockRef) ([]*domain.BlockRef, error) {
	defer metrics.ObserveChainCall(c.network, "get_shards")()
	shards, err := c.api.GetBlockShardsInfo(ctx, fromBlockRef(master))
	if err != nil {
		metrics.ChainErrorsTotal.WithLabelValues(c.network, "get_shards").Inc()
		return nil, fmt.Errorf("get shards of %s: %w", master, err)
	}
	refs := make([]*domain.BlockRef, 0, len(shards))
	for _, s := range shards {
		refs = append(refs, toBlockRef(s))
	}
	return refs, nil
}

func (c *Client) GetTransactions(
	ctx context.Context,
	block *domain.BlockRef,
	pageSize uint32,
	after *chain.TxCursor,
) ([]*domain.RawTransaction, *chain.TxCursor, error) {
	defer metrics.ObserveChainCall(c.network, "get_transactions")()
	blk := fromBlockRef(block)

	var afterID []*ton.TransactionID3
	if after != nil {
		afterID = append(afterID, &ton.TransactionID3{Account: after.Account, LT: after.LT})
	}

	infos, more, err := c.api.GetBlockTransactionsV2(ctx, blk, pageSize, afterID...)
	if err != nil {
		metrics.ChainErrorsTotal.WithLabelValues(c.network, "get_transactions").Inc()
		return nil, nil, fmt.Errorf("list transactions of %s: %w", block, err)
	}

	txs := make([]*domain.RawTransaction, 0, len(infos))
	for _, info := range infos {
		addr := address.NewAddress(0, byte(blk.Workchain), info.Account)
		tx, err := c.api.GetTransaction(ctx, blk, addr, info.LT)
		if err != nil {
			metrics.ChainErrorsTotal.WithLabelValues(c.network, "get_transaction").Inc()
			return nil, nil, fmt.Errorf("get transaction %d of %s: %w", info.LT, addr, err)
		}
		txs = append(txs, toRawTransaction(block.ShardID(), addr, tx))
	}

	if !more || len(infos) == 0 {
		return txs, nil, nil
	}
	last := infos[len(infos)-1]
	return txs, &chain.TxCursor{Account: last.Account, LT: last.LT}, nil
}

func (c *Client) RunGetMethod(
	ctx context.Context,
	addr string,
	method string,
	args ...any,
) (*chain.ExecutionResult, error) {
	defer metrics.ObserveChainCall(c.network, "run_get_method")()
	parsed, err := address.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", addr, err)
	}

	master, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get masterchain info: %w", err)
	}

	res, err := c.api.RunGetMethod(ctx, master, parsed, method, args...)
	if err != nil {
		metrics.ChainErrorsTotal.WithLabelValues(c.network, "run_get_method").Inc()
		var execErr ton.ContractExecError
		if errors.As(err, &execErr) {
			return nil, &chain.ContractExecError{Address: addr, Method: method, ExitCode: execErr.Code}
		}
		return nil, fmt.Errorf("run %s on %s: %w", method, addr, err)
	}

	return &chain.ExecutionResult{Stack: res.AsTuple()}, nil
}

func toBlockRef(b *ton.BlockIDExt) *domain.BlockRef {
	return &domain.BlockRef{
		Workchain: b.Workchain,
		Shard:     b.Shard,
		SeqNo:     b.SeqNo,
		RootHash:  b.RootHash,
		FileHash:  b.FileHash,
	}
}

func fromBlockRef(b *domain.BlockRef) *ton.BlockIDExt {
	return &ton.BlockIDExt{
		Workchain: b.Workchain,
		Shard:     b.Shard,
		SeqNo:     b.SeqNo,
		RootHash:  b.RootHash,
		FileHash:  b.FileHash,
	}
}

func toRawTransaction(shard domain.ShardID, account *address.Address, tx *tlb.Transaction) *domain.RawTransaction {
	raw := &domain.RawTransaction{
		Shard:   shard,
		Account: account.String(),
		LT:      tx.LT,
		Hash:    tx.Hash,
		Now:     tx.Now,
	}

	if tx.IO.In == nil || tx.IO.In.MsgType != tlb.MsgTypeInternal {
		return raw
	}
	in := tx.IO.In.AsInternal()
	raw.InMsg = &domain.Message{
		Body: in.Body,
	}
	if in.SrcAddr != nil {
		raw.InMsg.Source = in.SrcAddr.String()
	}
	if in.DstAddr != nil {
		raw.InMsg.Destination = in.DstAddr.String()
	}
	return raw
}
