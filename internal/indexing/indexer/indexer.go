// Package indexer drives the master block ingestion loop.
package indexer

import (
	"context"
	"time"

	"github.com/vietddude/poolwatch/internal/core/checkpoint"
	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/deferred"
	"github.com/vietddude/poolwatch/internal/indexing/fetcher"
	"github.com/vietddude/poolwatch/internal/indexing/handler"
	"github.com/vietddude/poolwatch/internal/indexing/parser"
	"github.com/vietddude/poolwatch/internal/indexing/recovery"
	"github.com/vietddude/poolwatch/internal/indexing/throttle"
	"github.com/vietddude/poolwatch/internal/infra/chain"
)

// Indexer is the main indexing interface
type Indexer interface {
	// Start begins indexing
	Start(ctx context.Context) error

	// Stop gracefully stops indexing
	Stop() error

	// GetStatus returns current indexing status
	GetStatus() Status
}

// Status represents the current indexer status
type Status struct {
	Network      string              `json:"network"`
	Running      bool                `json:"running"`
	MasterSeqNo  *uint64             `json:"master_seqno"`
	ChainTip     uint64              `json:"chain_tip"`
	Lag          int64               `json:"lag"`
	Shards       map[string]uint64   `json:"shards"`
	UpdatedAt    time.Time           `json:"updated_at"`
	LastError    string              `json:"last_error,omitempty"`
	PendingBlock *domain.FailedBlock `json:"pending_block,omitempty"`
}

// Config holds indexer configuration
type Config struct {
	Network      string
	Client       chain.Client
	Checkpoint   *checkpoint.Checkpoint
	Fetcher      *fetcher.Fetcher
	Parsers      *parser.Registry
	ParseContext *parser.Context
	Handlers     *handler.Registry
	Executor     *deferred.Executor
	Recorder     *recovery.Recorder
	ScanInterval time.Duration

	// Tips caches the chain tip while catching up. Optional.
	Tips *throttle.TipCache
}
