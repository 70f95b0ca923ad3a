package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/decoder"
	"github.com/vietddude/poolwatch/internal/indexing/metrics"
	"github.com/vietddude/poolwatch/internal/indexing/recovery"
)

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("pipeline already running")

// Pipeline implements the Indexer interface
type Pipeline struct {
	cfg      Config
	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	log      *slog.Logger

	// target is the master seqno of the current iteration. Loop goroutine only.
	target uint64

	mu      sync.RWMutex
	tip     uint64
	lastErr string
	pending *domain.FailedBlock
}

// NewPipeline creates a new indexing pipeline
func NewPipeline(cfg Config) *Pipeline {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Second
	}
	return &Pipeline{
		cfg:  cfg,
		stop: make(chan struct{}),
		log:  slog.Default().With("component", "indexer", "network", cfg.Network),
	}
}

// Start runs the indexing loop until ctx is cancelled or Stop is called.
// It polls every ScanInterval while idle and continues immediately after a
// processed block.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	p.log.Info("Indexer started", "scan_interval", p.cfg.ScanInterval)
	defer p.log.Info("Indexer stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stop:
			return nil
		case <-timer.C:
		}

		wait := p.cfg.ScanInterval
		processed, err := p.processNextBlock(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			wait = p.handleError(ctx, err)
		case processed:
			wait = 0
		}
		timer.Reset(wait)
	}
}

// Stop stops the pipeline
func (p *Pipeline) Stop() error {
	p.stopOnce.Do(func() { close(p.stop) })
	return nil
}

// GetStatus returns the current status
func (p *Pipeline) GetStatus() Status {
	snap := p.cfg.Checkpoint.Snapshot()

	p.mu.RLock()
	defer p.mu.RUnlock()

	st := Status{
		Network:      p.cfg.Network,
		Running:      p.running.Load(),
		MasterSeqNo:  snap.Master,
		ChainTip:     p.tip,
		Shards:       snap.Shards,
		UpdatedAt:    snap.UpdatedAt,
		LastError:    p.lastErr,
		PendingBlock: p.pending,
	}
	if p.tip > 0 {
		st.Lag = p.cfg.Checkpoint.Lag(p.tip)
	}
	return st
}

// processNextBlock handles the master block after the checkpoint. It reports
// whether a block was committed. Nothing is committed when it fails.
func (p *Pipeline) processNextBlock(ctx context.Context) (processed bool, err error) {
	cp := p.cfg.Checkpoint
	pc := p.cfg.ParseContext

	p.target = 0
	current, known := cp.Master()
	if known {
		p.target = current + 1
	}

	tip, err := p.chainTip(ctx, current, known)
	if err != nil {
		return false, recovery.Wrap(domain.FailureTypeChain, fmt.Errorf("failed to get chain tip: %w", err))
	}
	p.setTip(uint64(tip.SeqNo))
	metrics.ChainLatestMaster.WithLabelValues(p.cfg.Network).Set(float64(tip.SeqNo))

	if cp.InitMaster(uint64(tip.SeqNo)) {
		p.log.Info("Checkpoint initialized at chain tip", "master", tip.SeqNo)
		metrics.IndexerLatestMaster.WithLabelValues(p.cfg.Network).Set(float64(tip.SeqNo))
		return false, nil
	}

	if uint64(tip.SeqNo) <= current {
		return false, nil
	}
	target := current + 1
	p.target = target

	defer func() {
		if err != nil {
			pc.Rollback()
		}
	}()

	master, err := p.cfg.Client.LookupBlock(ctx, uint32(target), domain.MasterchainID, domain.ShardAll)
	if err != nil {
		return false, recovery.Wrap(domain.FailureTypeChain, fmt.Errorf("failed to lookup master %d: %w", target, err))
	}

	res, err := p.cfg.Fetcher.Fetch(ctx, master, cp)
	if err != nil {
		return false, recovery.Wrap(domain.FailureTypeFetch, err)
	}

	inputs, skipped := decoder.DecodeAll(res.Transactions)

	records, err := p.cfg.Parsers.Dispatch(ctx, pc, inputs)
	if err != nil {
		return false, recovery.Wrap(domain.FailureTypeHandler, fmt.Errorf("dispatch failed: %w", err))
	}

	routing, err := p.cfg.Handlers.Route(records)
	if err != nil {
		return false, recovery.Wrap(domain.FailureTypeHandler, err)
	}

	if err := p.cfg.Executor.Run(ctx, routing.Actions); err != nil {
		return false, recovery.Wrap(domain.FailureTypeApply, err)
	}

	if err := cp.Commit(target, res.ShardSeqNos); err != nil {
		return false, recovery.Wrap(domain.FailureTypeCommit, err)
	}
	pc.Commit()

	if p.cfg.Recorder != nil {
		if err := p.cfg.Recorder.HandleSuccess(ctx, target); err != nil {
			p.log.Warn("Failed to resolve failed block", "master", target, "error", err)
		}
	}
	p.clearFailure()

	metrics.MasterBlocksProcessed.WithLabelValues(p.cfg.Network).Inc()
	metrics.IndexerLatestMaster.WithLabelValues(p.cfg.Network).Set(float64(target))

	p.log.Debug("Master block processed",
		"master", target,
		"txs", len(res.Transactions),
		"skipped", skipped,
		"new_shards", res.NewShards,
		"records", len(records),
		"actions", len(routing.Actions),
		"unhandled", len(routing.Unhandled),
	)
	return true, nil
}

// handleError records the failure and returns how long to wait before retrying.
func (p *Pipeline) handleError(ctx context.Context, err error) time.Duration {
	p.log.Error("Failed to process master block",
		"master", p.target,
		"stage", recovery.Classify(err),
		"error", err,
	)

	delay := p.cfg.ScanInterval
	var pending *domain.FailedBlock
	if p.cfg.Recorder != nil && p.target > 0 {
		d, recErr := p.cfg.Recorder.HandleFailure(ctx, p.target, err)
		if recErr != nil {
			p.log.Warn("Failed to record failed block", "master", p.target, "error", recErr)
		}
		delay = d
		pending = p.cfg.Recorder.Pending()
	}

	p.mu.Lock()
	p.lastErr = err.Error()
	p.pending = pending
	p.mu.Unlock()
	return delay
}

// chainTip serves the tip from the cache while the checkpoint is behind it.
func (p *Pipeline) chainTip(ctx context.Context, current uint64, known bool) (*domain.BlockRef, error) {
	if p.cfg.Tips == nil || !known {
		return p.cfg.Client.GetChainTip(ctx)
	}
	return p.cfg.Tips.Tip(ctx, current)
}

func (p *Pipeline) setTip(tip uint64) {
	p.mu.Lock()
	p.tip = tip
	p.mu.Unlock()
}

func (p *Pipeline) clearFailure() {
	p.mu.Lock()
	p.lastErr = ""
	p.pending = nil
	p.mu.Unlock()
}
