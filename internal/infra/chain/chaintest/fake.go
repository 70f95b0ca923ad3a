// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"fmt"
	"sync"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/chain"
)

type blockKey struct {
	shard domain.ShardID
	seqNo uint32
}

// Client is a scripted chain. Transaction pages use TxCursor.LT as an offset.
type Client struct {
	mu       sync.Mutex
	tip      *domain.BlockRef
	masters  map[uint32][]*domain.BlockRef
	txs      map[blockKey][]*domain.RawTransaction
	methods  map[string]*chain.ExecutionResult
	failures map[string][]error
	calls    map[string]int
}

var _ chain.Client = (*Client)(nil)

func New() *Client {
	return &Client{
		masters:  make(map[uint32][]*domain.BlockRef),
		txs:      make(map[blockKey][]*domain.RawTransaction),
		methods:  make(map[string]*chain.ExecutionResult),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// Master builds a master block ref.
func Master(seqNo uint32) *domain.BlockRef {
	return &domain.BlockRef{Workchain: domain.MasterchainID, Shard: domain.ShardAll, SeqNo: seqNo}
}

// Shard builds a basechain shard block ref.
func Shard(shard int64, seqNo uint32) *domain.BlockRef {
	return &domain.BlockRef{Workchain: 0, Shard: shard, SeqNo: seqNo}
}

// SetTip sets the master block returned by GetChainTip.
func (c *Client) SetTip(seqNo uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tip = Master(seqNo)
}

// AddMaster registers the shard blocks referenced by a master block.
func (c *Client) AddMaster(seqNo uint32, shards ...*domain.BlockRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.masters[seqNo] = shards
}

// AddTransactions appends transactions to a shard block.
func (c *Client) AddTransactions(block *domain.BlockRef, txs ...*domain.RawTransaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := blockKey{block.ShardID(), block.SeqNo}
	for _, tx := range txs {
		tx.Shard = block.ShardID()
	}
	c.txs[key] = append(c.txs[key], txs...)
}

// SetMethod scripts the result of a get-method.
func (c *Client) SetMethod(address, method string, res *chain.ExecutionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods[address+"/"+method] = res
}

// FailNext makes the next len(errs) calls of op return errs in order.
func (c *Client) FailNext(op string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = append(c.failures[op], errs...)
}

// Calls returns how many times op was called.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *Client) enter(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[op]++
	if errs := c.failures[op]; len(errs) > 0 {
		c.failures[op] = errs[1:]
		return errs[0]
	}
	return nil
}

func (c *Client) GetChainTip(ctx context.Context) (*domain.BlockRef, error) {
	if err := c.enter("GetChainTip"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tip == nil {
		return nil, fmt.Errorf("no tip")
	}
	tip := *c.tip
	return &tip, nil
}

func (c *Client) LookupBlock(ctx context.Context, seqNo uint32, workchain int32, shard int64) (*domain.BlockRef, error) {
	if err := c.enter("LookupBlock"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.BlockRef{Workchain: workchain, Shard: shard, SeqNo: seqNo}, nil
}

func (c *Client) GetShards(ctx context.Context, master *domain.BlockRef) ([]*domain.BlockRef, error) {
	if err := c.enter("GetShards"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	shards, ok := c.masters[master.SeqNo]
	if !ok {
		return nil, fmt.Errorf("%w: master %d", chain.ErrBlockNotFound, master.SeqNo)
	}
	return shards, nil
}

func (c *Client) GetTransactions(
	ctx context.Context,
	block *domain.BlockRef,
	pageSize uint32,
	after *chain.TxCursor,
) ([]*domain.RawTransaction, *chain.TxCursor, error) {
	if err := c.enter("GetTransactions"); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	all := c.txs[blockKey{block.ShardID(), block.SeqNo}]
	offset := uint64(0)
	if after != nil {
		offset = after.LT
	}
	end := min(offset+uint64(pageSize), uint64(len(all)))
	page := all[offset:end]
	if end == uint64(len(all)) {
		return page, nil, nil
	}
	return page, &chain.TxCursor{LT: end}, nil
}

func (c *Client) RunGetMethod(ctx context.Context, address string, method string, args ...any) (*chain.ExecutionResult, error) {
	if err := c.enter("RunGetMethod"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.methods[address+"/"+method]
	if !ok {
		return nil, &chain.ContractExecError{Address: address, Method: method, ExitCode: 11}
	}
	return res, nil
}
