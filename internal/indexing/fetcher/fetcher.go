// Package fetcher retrieves the transactions a master block added to its shards.
package fetcher

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/sethvargo/go-retry"

	"github.com/vietddude/poolwatch/internal/core/checkpoint"
	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/metrics"
	"github.com/vietddude/poolwatch/internal/infra/chain"
)

// Config controls fetch concurrency and retries.
type Config struct {
	Workers       int           `yaml:"workers"`
	PageSize      uint32        `yaml:"page_size"`
	RetryAttempts uint64        `yaml:"retry_attempts"`
	RetryBase     time.Duration `yaml:"retry_base"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:       10,
		PageSize:      1000,
		RetryAttempts: 3,
		RetryBase:     200 * time.Millisecond,
	}
}

// Result holds the transactions of one master block and the shard seqnos
// they cover. The seqnos are only proposals until the block commits.
type Result struct {
	Transactions []*domain.RawTransaction
	ShardSeqNos  map[domain.ShardID]uint64
	// NewShards counts shards seen for the first time.
	NewShards int
}

type shardResult struct {
	id    domain.ShardID
	seqNo uint64
	fresh bool
	txs   []*domain.RawTransaction
}

// Fetcher fans shard fetches out onto a bounded worker pool.
type Fetcher struct {
	client  chain.Client
	pool    pond.ResultPool[shardResult]
	cfg     Config
	network string
	log     *slog.Logger
}

func New(client chain.Client, cfg Config, network string) *Fetcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}

	return &Fetcher{
		client:  client,
		pool:    pond.NewResultPool[shardResult](cfg.Workers),
		cfg:     cfg,
		network: network,
		log:     slog.Default().With("component", "fetcher", "network", network),
	}
}

// Close waits for running tasks and stops the worker pool.
func (f *Fetcher) Close() {
	f.pool.StopAndWait()
}

// Fetch returns every transaction the shards referenced by master produced
// since their checkpointed seqno, sorted by logical time. Any shard failure
// fails the whole fetch. The checkpoint is only read.
func (f *Fetcher) Fetch(ctx context.Context, master *domain.BlockRef, cp checkpoint.Reader) (*Result, error) {
	var shards []*domain.BlockRef
	err := f.withRetry(ctx, "get_shards", func(ctx context.Context) error {
		var err error
		shards, err = f.client.GetShards(ctx, master)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get shards of %s: %w", master, err)
	}

	// a failing shard cancels the others
	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group := f.pool.NewGroupContext(groupCtx)
	for _, shard := range shards {
		group.SubmitErr(func() (shardResult, error) {
			r, err := f.fetchShard(groupCtx, shard, cp)
			if err != nil {
				cancel()
			}
			return r, err
		})
	}

	results, err := group.Wait()
	if err != nil {
		return nil, err
	}

	res := &Result{ShardSeqNos: make(map[domain.ShardID]uint64, len(results))}
	for _, r := range results {
		res.ShardSeqNos[r.id] = r.seqNo
		if r.fresh {
			res.NewShards++
		}
		res.Transactions = append(res.Transactions, r.txs...)
	}
	SortByLT(res.Transactions)

	metrics.TransactionsFetched.WithLabelValues(f.network).Add(float64(len(res.Transactions)))
	return res, nil
}

func (f *Fetcher) fetchShard(ctx context.Context, shard *domain.BlockRef, cp checkpoint.Reader) (shardResult, error) {
	id := shard.ShardID()
	current := uint64(shard.SeqNo)

	last, ok := cp.Shard(id)
	if !ok {
		// first sighting: history before this seqno is never ingested
		f.log.Info("New shard", "shard", id, "baseline", current)
		return shardResult{id: id, seqNo: current, fresh: true}, nil
	}
	if current <= last {
		return shardResult{id: id, seqNo: last}, nil
	}

	var txs []*domain.RawTransaction
	for seqNo := last + 1; seqNo <= current; seqNo++ {
		blk := shard
		if seqNo != current {
			err := f.withRetry(ctx, "lookup_block", func(ctx context.Context) error {
				var err error
				blk, err = f.client.LookupBlock(ctx, uint32(seqNo), id.Workchain, id.Shard)
				return err
			})
			if err != nil {
				return shardResult{}, fmt.Errorf("failed to lookup shard block %s:%d: %w", id, seqNo, err)
			}
		}

		blockTxs, err := f.blockTransactions(ctx, blk)
		if err != nil {
			return shardResult{}, err
		}
		txs = append(txs, blockTxs...)
	}

	f.log.Debug("Shard fetched", "shard", id, "from", last+1, "to", current, "txs", len(txs))
	return shardResult{id: id, seqNo: current, txs: txs}, nil
}

// blockTransactions pages through a shard block until the cursor runs out.
func (f *Fetcher) blockTransactions(ctx context.Context, blk *domain.BlockRef) ([]*domain.RawTransaction, error) {
	var (
		all   []*domain.RawTransaction
		after *chain.TxCursor
	)
	for {
		var (
			page []*domain.RawTransaction
			next *chain.TxCursor
		)
		err := f.withRetry(ctx, "get_transactions", func(ctx context.Context) error {
			var err error
			page, next, err = f.client.GetTransactions(ctx, blk, f.cfg.PageSize, after)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get transactions of %s: %w", blk, err)
		}

		all = append(all, page...)
		if next == nil {
			return all, nil
		}
		after = next
	}
}

func (f *Fetcher) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(f.cfg.RetryAttempts, retry.NewExponential(f.cfg.RetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return err
		}
		f.log.Debug("Chain call failed, retrying", "op", op, "error", err)
		return retry.RetryableError(err)
	})
}

// SortByLT orders transactions by logical time, then account.
func SortByLT(txs []*domain.RawTransaction) {
	slices.SortStableFunc(txs, func(a, b *domain.RawTransaction) int {
		return cmp.Or(cmp.Compare(a.LT, b.LT), cmp.Compare(a.Account, b.Account))
	})
}
