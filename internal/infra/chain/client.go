package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// ErrBlockNotFound is returned when a block lookup has no result yet.
var ErrBlockNotFound = errors.New("block not found")

// TxCursor marks where the next transaction page of a block starts.
type TxCursor struct {
	Account []byte
	LT      uint64
}

// Client is the boundary between the ingestion core and the chain.
// Results are best effort: the caller orders and deduplicates as needed.
type Client interface {
	// GetChainTip returns the latest master block.
	GetChainTip(ctx context.Context) (*domain.BlockRef, error)

	// LookupBlock resolves a block by sequence number inside a shard.
	LookupBlock(ctx context.Context, seqNo uint32, workchain int32, shard int64) (*domain.BlockRef, error)

	// GetShards lists the shard blocks referenced by a master block.
	GetShards(ctx context.Context, master *domain.BlockRef) ([]*domain.BlockRef, error)

	// GetTransactions returns one page of a block's transactions. A nil
	// next cursor means the block has no more pages.
	GetTransactions(
		ctx context.Context,
		block *domain.BlockRef,
		pageSize uint32,
		after *TxCursor,
	) (txs []*domain.RawTransaction, next *TxCursor, err error)

	// RunGetMethod executes a contract get-method on the latest state.
	RunGetMethod(ctx context.Context, address string, method string, args ...any) (*ExecutionResult, error)
}

// ExecutionResult is the stack returned by a get-method.
type ExecutionResult struct {
	ExitCode int32
	Stack    []any
}

// Slice returns stack entry i as a cell slice.
func (r *ExecutionResult) Slice(i int) (*cell.Slice, error) {
	if i < 0 || i >= len(r.Stack) {
		return nil, fmt.Errorf("stack index %d out of range (size %d)", i, len(r.Stack))
	}
	switch v := r.Stack[i].(type) {
	case *cell.Slice:
		return v.Copy(), nil
	case *cell.Cell:
		return v.BeginParse(), nil
	default:
		return nil, fmt.Errorf("stack entry %d is %T, not a slice", i, r.Stack[i])
	}
}

// ContractExecError reports a get-method that finished with a non-zero exit code.
type ContractExecError struct {
	Address  string
	Method   string
	ExitCode int32
}

func (e *ContractExecError) Error() string {
	return fmt.Sprintf("get-method %s on %s failed, exit code: %d", e.Method, e.Address, e.ExitCode)
}
